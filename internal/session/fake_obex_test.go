package session

import (
	"errors"
	"time"

	"github.com/tapwag/siefs/internal/obexfs"
)

// fakeObex is an in-memory Obex: directory listings keyed by path,
// plus minimal bookkeeping for GET/PUT/suspend-resume so session-layer
// locking and caching can be exercised without a real phone.
type fakeObex struct {
	dirs map[string][]obexfs.DirEntry

	readdirCalls int
	lastReaddir  string

	suspendCalls int
	resumeCalls  int
	suspendErr   error
	resumeErr    error

	getName   string
	getOffset int64
	getData   map[string][]byte
	readPos   int

	putName    string
	putWritten []byte
	closeErr   error

	capacity  int64
	available int64

	mkdirCalls  []string
	deleteCalls []string
	moveCalls   [][2]string
	chmodCalls  []string

	entries []obexfs.DirEntry
	pos     int
}

func newFakeObex() *fakeObex {
	return &fakeObex{
		dirs:    map[string][]obexfs.DirEntry{},
		getData: map[string][]byte{},
	}
}

func (f *fakeObex) Readdir(dir string) error {
	f.readdirCalls++
	f.lastReaddir = dir
	f.entries = f.dirs[dir]
	f.pos = 0
	return nil
}

func (f *fakeObex) NextEntry() (obexfs.DirEntry, bool) {
	if f.pos >= len(f.entries) {
		return obexfs.DirEntry{}, false
	}
	e := f.entries[f.pos]
	f.pos++
	return e, true
}

func (f *fakeObex) Get(name string, offset int64) (int64, error) {
	f.getName = name
	f.getOffset = offset
	f.readPos = int(offset)
	data := f.getData[name]
	return int64(len(data)), nil
}

func (f *fakeObex) Read(buf []byte) (int, error) {
	data := f.getData[f.getName]
	n := copy(buf, data[f.readPos:])
	f.readPos += n
	return n, nil
}

func (f *fakeObex) Put(name string) error {
	f.putName = name
	f.putWritten = nil
	return nil
}

func (f *fakeObex) Write(buf []byte) (int, error) {
	f.putWritten = append(f.putWritten, buf...)
	return len(buf), nil
}

func (f *fakeObex) Close() error { return f.closeErr }

func (f *fakeObex) Suspend() error {
	f.suspendCalls++
	return f.suspendErr
}

func (f *fakeObex) Resume() error {
	f.resumeCalls++
	return f.resumeErr
}

func (f *fakeObex) Mkdir(name string) error {
	f.mkdirCalls = append(f.mkdirCalls, name)
	return nil
}

func (f *fakeObex) Move(src, dest string) error {
	f.moveCalls = append(f.moveCalls, [2]string{src, dest})
	return nil
}

func (f *fakeObex) Delete(name string) error {
	f.deleteCalls = append(f.deleteCalls, name)
	return nil
}

func (f *fakeObex) Chmod(name string, mode uint32) error {
	f.chmodCalls = append(f.chmodCalls, name)
	return nil
}

func (f *fakeObex) Capacity() int64  { return f.capacity }
func (f *fakeObex) Available() int64 { return f.available }
func (f *fakeObex) Shutdown() error  { return nil }

var errFakeObex = errors.New("fake obex error")

func entry(name string, isDir bool, size int64) obexfs.DirEntry {
	return obexfs.DirEntry{Name: name, IsDir: isDir, Size: size, Mtime: time.Now()}
}
