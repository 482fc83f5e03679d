// Package session implements the filesystem session layer: it turns
// obexfs's OBEX primitives into the small set of POSIX-shaped
// operations a FUSE adapter needs (getattr, getdir, open/read/write/
// release, mknod, truncate, unlink, rmdir, rename, statfs), and owns
// the two-mutex concurrency discipline that keeps at most one
// transfer in flight while still letting metadata calls interleave
// with it.
package session

import (
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tapwag/siefs/internal/charset"
	"github.com/tapwag/siefs/internal/obexfs"
)

var log = logrus.WithField("component", "session")

// idleScanTTL and activeScanTTL are how long a cached directory
// listing is trusted before Getdir re-scans: longer while a transfer
// is in flight, when each re-scan has to suspend and resume that
// transfer.
const (
	idleScanTTL   = 2 * time.Second
	activeScanTTL = 5 * time.Second
)

// Attr is the subset of stat(2) fields the FUSE adapter needs.
type Attr struct {
	Mode  uint32
	Size  int64
	Mtime time.Time
	Uid   uint32
	Gid   uint32
}

// Obex is the subset of obexfs.Session the filesystem layer drives.
// Exported as an interface so tests can substitute a fake without a
// real phone.
type Obex interface {
	Readdir(dir string) error
	NextEntry() (obexfs.DirEntry, bool)
	Get(name string, offset int64) (int64, error)
	Read(buf []byte) (int, error)
	Put(name string) error
	Write(buf []byte) (int, error)
	Close() error
	Suspend() error
	Resume() error
	Mkdir(name string) error
	Move(src, dest string) error
	Delete(name string) error
	Chmod(name string, mode uint32) error
	Capacity() int64
	Available() int64
	Shutdown() error
}

// Options configures a FsState's ownership/visibility policy.
type Options struct {
	Uid         uint32
	Gid         uint32
	Umask       uint32
	HideTelecom bool

	// Charset decodes filenames the phone returns from its local 8-bit
	// charset into UTF-8 for display. Nil means the identity mapping.
	Charset *charset.Codec
}

// op tracks which transfer, if any, is in flight.
type op int

const (
	opIdle op = iota
	opGet
	opPut
)

// FsState is the single, process-wide filesystem session: one
// ObexSession, a cached directory listing, and the in-flight
// transfer's bookkeeping.
//
// Invariant: session must be held for the whole lifetime of any
// transfer (open through release); exchange must be held while any
// request is on the wire. Ordering guarantees are per-file: there is
// no support for two concurrent clients driving the same phone.
type FsState struct {
	obex Obex
	opts Options

	session  sync.Mutex
	exchange sync.Mutex

	operation   op
	currentFile string
	currentPos  int64

	cachedDir     string
	cachedEntries []obexfs.DirEntry
	lastScan      time.Time

	dirTemplate  Attr
	fileTemplate Attr
}

// New constructs an FsState bound to an already-handshaken Obex
// session, with directory/file stat templates derived from opts.
func New(obex Obex, opts Options) *FsState {
	now := time.Now()
	dirMode := (uint32(syscall.S_IFDIR) | 0777) &^ opts.Umask
	fileMode := (uint32(syscall.S_IFREG) | 0666) &^ opts.Umask
	return &FsState{
		obex: obex,
		opts: opts,
		dirTemplate: Attr{
			Mode: dirMode, Mtime: now, Uid: opts.Uid, Gid: opts.Gid,
		},
		fileTemplate: Attr{
			Mode: fileMode, Mtime: now, Uid: opts.Uid, Gid: opts.Gid,
		},
	}
}

// startSession tries for one second (10 attempts, 100ms apart) to
// acquire exclusive ownership of the transfer slot, mirroring
// start_session's trylock loop; callers see EBUSY rather than
// blocking indefinitely behind a stuck transfer.
func (f *FsState) startSession() error {
	for i := 0; i < 10; i++ {
		if f.session.TryLock() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return syscall.EBUSY
}

func (f *FsState) endSession() {
	f.session.Unlock()
}

// startFreq acquires the exchange lock for a "fast request": a
// metadata call that needs to interleave with an in-flight transfer.
// If a transfer is active it is suspended first so the metadata call
// has the wire to itself.
func (f *FsState) startFreq() {
	f.exchange.Lock()
	if f.operation != opIdle {
		if err := f.obex.Suspend(); err != nil {
			log.WithError(err).Warn("suspend before metadata call failed")
		}
	}
}

// endFreq resumes any suspended transfer and releases the exchange lock.
func (f *FsState) endFreq() {
	if f.operation != opIdle {
		if err := f.obex.Resume(); err != nil {
			log.WithError(err).Warn("resume after metadata call failed")
		}
	}
	f.exchange.Unlock()
}

func (f *FsState) startXfer() { f.exchange.Lock() }
func (f *FsState) endXfer()   { f.exchange.Unlock() }

func (f *FsState) invalidate() {
	f.lastScan = time.Time{}
}

// toLocal encodes a UTF-8 path into the phone's local 8-bit charset
// before it goes out over the wire — the outbound half of the
// ToUTF8 conversion Getdir applies to names coming back. A name that
// can't be represented in the local charset surfaces as EILSEQ rather
// than being sent corrupted.
func (f *FsState) toLocal(path string) (string, error) {
	if f.opts.Charset == nil {
		return path, nil
	}
	local, err := f.opts.Charset.ToLocal(path)
	if err != nil {
		return "", syscall.EILSEQ
	}
	return local, nil
}

func splitParent(path string) (dir, name string) {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return "/", ""
	}
	i := strings.LastIndexByte(path, '/')
	if i <= 0 {
		return "/", path[i+1:]
	}
	return path[:i], path[i+1:]
}
