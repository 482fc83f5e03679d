package fuseserver

import (
	"context"
	"os"
	"testing"

	"bazil.org/fuse"
	"github.com/stretchr/testify/require"

	"github.com/tapwag/siefs/internal/obexfs"
	"github.com/tapwag/siefs/internal/session"
)

// stubObex is a minimal session.Obex fake, just enough to exercise the
// fuseserver adapter's path plumbing and error translation.
type stubObex struct{}

func (s *stubObex) Readdir(dir string) error { return nil }

func (s *stubObex) NextEntry() (obexfs.DirEntry, bool) {
	return obexfs.DirEntry{}, false
}

func (s *stubObex) Get(name string, offset int64) (int64, error) { return 0, nil }
func (s *stubObex) Read(buf []byte) (int, error)                 { return 0, nil }
func (s *stubObex) Put(name string) error                        { return nil }
func (s *stubObex) Write(buf []byte) (int, error)                { return len(buf), nil }
func (s *stubObex) Close() error                                 { return nil }
func (s *stubObex) Suspend() error                               { return nil }
func (s *stubObex) Resume() error                                { return nil }
func (s *stubObex) Mkdir(name string) error                      { return nil }
func (s *stubObex) Move(src, dest string) error                  { return nil }
func (s *stubObex) Delete(name string) error                     { return nil }
func (s *stubObex) Chmod(name string, mode uint32) error         { return nil }
func (s *stubObex) Capacity() int64                              { return 0 }
func (s *stubObex) Available() int64                             { return 0 }
func (s *stubObex) Shutdown() error                              { return nil }

func TestRootAttrIsDirectory(t *testing.T) {
	state := session.New(&stubObex{}, session.Options{})
	fs := FS{State: state}

	node, err := fs.Root()
	require.NoError(t, err)

	var attr fuse.Attr
	require.NoError(t, node.Attr(context.Background(), &attr))
	require.NotZero(t, attr.Mode&os.ModeDir)
	require.Equal(t, attrValid, attr.Valid)
}

func TestChildPathJoining(t *testing.T) {
	require.Equal(t, "/a", child("/", "a"))
	require.Equal(t, "/a/b", child("/a", "b"))
}
