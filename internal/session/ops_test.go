package session

import (
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tapwag/siefs/internal/charset"
	"github.com/tapwag/siefs/internal/obexfs"
)

func newTestState(obex *fakeObex) *FsState {
	return New(obex, Options{Uid: 1000, Gid: 1000, Umask: 0022})
}

func TestGetattrRoot(t *testing.T) {
	f := newTestState(newFakeObex())
	attr, err := f.Getattr("/")
	require.NoError(t, err)
	require.NotZero(t, attr.Mode&syscall.S_IFDIR, "root attr not a directory: %#o", attr.Mode)
}

func TestGetattrMissingEntryIsENOENT(t *testing.T) {
	obex := newFakeObex()
	obex.dirs["/"] = []obexfs.DirEntry{entry("present.txt", false, 10)}
	f := newTestState(obex)

	_, err := f.Getattr("/missing.txt")
	require.Equal(t, syscall.ENOENT, err)
}

func TestGetattrFileReturnsSizeAndMtime(t *testing.T) {
	obex := newFakeObex()
	obex.dirs["/"] = []obexfs.DirEntry{entry("present.txt", false, 42)}
	f := newTestState(obex)

	attr, err := f.Getattr("/present.txt")
	require.NoError(t, err)
	require.EqualValues(t, 42, attr.Size)
	require.NotZero(t, attr.Mode&syscall.S_IFREG, "attr.Mode not a regular file: %#o", attr.Mode)
}

func TestGetattrDirectoryAncestorSkipsScan(t *testing.T) {
	obex := newFakeObex()
	obex.dirs["/sub"] = []obexfs.DirEntry{entry("a.txt", false, 1)}
	f := newTestState(obex)

	_, err := f.Getdir("/sub")
	require.NoError(t, err)
	before := obex.readdirCalls

	attr, err := f.Getattr("/sub")
	require.NoError(t, err)
	require.NotZero(t, attr.Mode&syscall.S_IFDIR, "expected directory attr for cached dir itself")
	require.Equal(t, before, obex.readdirCalls, "Getattr on the cached directory triggered a rescan")
}

func TestGetdirCachesWithinTTL(t *testing.T) {
	obex := newFakeObex()
	obex.dirs["/"] = []obexfs.DirEntry{entry("a.txt", false, 1)}
	f := newTestState(obex)

	_, err := f.Getdir("/")
	require.NoError(t, err)
	_, err = f.Getdir("/")
	require.NoError(t, err)
	require.Equal(t, 1, obex.readdirCalls, "second call should hit cache")
}

func TestGetdirRescansAfterTTLExpiry(t *testing.T) {
	obex := newFakeObex()
	obex.dirs["/"] = []obexfs.DirEntry{entry("a.txt", false, 1)}
	f := newTestState(obex)

	_, err := f.Getdir("/")
	require.NoError(t, err)
	f.lastScan = time.Now().Add(-(idleScanTTL + time.Second))

	_, err = f.Getdir("/")
	require.NoError(t, err)
	require.Equal(t, 2, obex.readdirCalls, "TTL should have expired")
}

func TestGetdirHidesTelecomAtRootWhenConfigured(t *testing.T) {
	obex := newFakeObex()
	obex.dirs["/"] = []obexfs.DirEntry{
		entry("telecom", true, 0),
		entry("other", true, 0),
	}
	f := New(obex, Options{HideTelecom: true})

	entries, err := f.Getdir("/")
	require.NoError(t, err)
	for _, e := range entries {
		require.NotEqual(t, "telecom", e.Name, "telecom entry should have been filtered")
	}
	require.Len(t, entries, 1)
}

func TestOpenReadCloseRoundTrip(t *testing.T) {
	obex := newFakeObex()
	obex.getData["/file.bin"] = []byte("hello world")
	f := newTestState(obex)

	require.NoError(t, f.Open("/file.bin", false))

	buf := make([]byte, 5)
	n, err := f.Read("/file.bin", buf, 0)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))

	n, err = f.Read("/file.bin", buf, 5)
	require.NoError(t, err)
	require.Equal(t, " worl", string(buf[:n]))

	require.NoError(t, f.Release("/file.bin"))
	require.Equal(t, opIdle, f.operation)
}

func TestWriteRejectsNonSequentialOffset(t *testing.T) {
	obex := newFakeObex()
	f := newTestState(obex)

	require.NoError(t, f.Open("/new.bin", true))
	_, err := f.Write("/new.bin", []byte("abc"), 5)
	require.Equal(t, syscall.ESPIPE, err)
}

func TestWriteSequentialAccumulates(t *testing.T) {
	obex := newFakeObex()
	f := newTestState(obex)

	require.NoError(t, f.Open("/new.bin", true))
	n, err := f.Write("/new.bin", []byte("hello"), 0)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	_, err = f.Write("/new.bin", []byte(" world"), 5)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(obex.putWritten))

	require.NoError(t, f.Release("/new.bin"))
}

func TestSessionMutexRejectsConcurrentOpenWithEBUSY(t *testing.T) {
	obex := newFakeObex()
	obex.getData["/a.bin"] = []byte("data")
	f := newTestState(obex)

	require.NoError(t, f.Open("/a.bin", false))

	done := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		done <- f.Open("/b.bin", false)
	}()
	wg.Wait()

	require.Equal(t, syscall.EBUSY, <-done)
	require.NoError(t, f.Release("/a.bin"))
}

func TestMetadataOpSuspendsAndResumesActiveTransfer(t *testing.T) {
	obex := newFakeObex()
	obex.getData["/a.bin"] = []byte("data")
	f := newTestState(obex)

	require.NoError(t, f.Open("/a.bin", false))
	require.NoError(t, f.Mkdir("/newdir"))

	require.Equal(t, 1, obex.suspendCalls)
	require.Equal(t, 1, obex.resumeCalls)
	require.Equal(t, []string{"/newdir"}, obex.mkdirCalls)

	require.NoError(t, f.Release("/a.bin"))
}

func TestMetadataOpIdleDoesNotSuspend(t *testing.T) {
	obex := newFakeObex()
	f := newTestState(obex)

	require.NoError(t, f.Unlink("/gone.bin"))
	require.Zero(t, obex.suspendCalls)
	require.Zero(t, obex.resumeCalls)
	require.Equal(t, []string{"/gone.bin"}, obex.deleteCalls)
}

func TestRenameInvalidatesCache(t *testing.T) {
	obex := newFakeObex()
	obex.dirs["/"] = []obexfs.DirEntry{entry("a.txt", false, 1)}
	f := newTestState(obex)

	_, err := f.Getdir("/")
	require.NoError(t, err)
	require.NoError(t, f.Rename("/a.txt", "/b.txt"))
	require.True(t, f.lastScan.IsZero(), "cache was not invalidated after Rename")
}

func TestStatfsReportsZeroWhenUnknown(t *testing.T) {
	obex := newFakeObex()
	f := newTestState(obex)

	res := f.Statfs()
	require.Zero(t, res.Blocks)
	require.Zero(t, res.BlocksFree)
}

func TestStatfsComputesBlockCounts(t *testing.T) {
	obex := newFakeObex()
	obex.capacity = 1024 * 512
	obex.available = 512 * 512
	f := newTestState(obex)

	res := f.Statfs()
	require.EqualValues(t, 1024, res.Blocks)
	require.EqualValues(t, 512, res.BlocksFree)
}

func TestReadlinkLinkSymlinkReturnEPERM(t *testing.T) {
	f := newTestState(newFakeObex())

	_, err := f.Readlink("/any")
	require.Equal(t, syscall.EPERM, err)
	require.Equal(t, syscall.EPERM, f.Link("/a", "/b"))
	require.Equal(t, syscall.EPERM, f.Symlink("target", "/link"))
}

func TestOutboundNamesAreEncodedToLocalCharset(t *testing.T) {
	codec, err := charset.New("iso8859-1")
	require.NoError(t, err)

	obex := newFakeObex()
	f := New(obex, Options{Charset: codec})

	require.NoError(t, f.Mkdir("/café"))
	require.Len(t, obex.mkdirCalls, 1)
	require.NotEqual(t, "/café", obex.mkdirCalls[0], "name should have been encoded to the local charset")
}
