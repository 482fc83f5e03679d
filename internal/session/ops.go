package session

import (
	"strings"
	"syscall"
	"time"

	"github.com/tapwag/siefs/internal/obexfs"
)

// Getattr resolves path to an Attr. The root and any prefix of the
// cached directory are known to be directories without a round trip;
// anything else requires (and may trigger) a directory scan of its
// parent.
func (f *FsState) Getattr(path string) (Attr, error) {
	if path == "/" {
		return f.dirTemplate, nil
	}

	if f.cachedDir != "" && isAncestorOrSelf(f.cachedDir, path) {
		return f.dirTemplate, nil
	}

	dir, name := splitParent(path)
	entries, err := f.Getdir(dir)
	if err != nil {
		return Attr{}, err
	}

	for _, e := range entries {
		if !strings.EqualFold(e.Name, name) {
			continue
		}
		attr := f.fileTemplate
		if e.IsDir {
			attr = f.dirTemplate
		}
		attr.Size = e.Size
		if !e.Mtime.IsZero() {
			attr.Mtime = e.Mtime
		}
		return attr, nil
	}
	return Attr{}, syscall.ENOENT
}

// isAncestorOrSelf reports whether path is dir or nested under it.
func isAncestorOrSelf(dir, path string) bool {
	if strings.EqualFold(dir, path) {
		return true
	}
	prefix := dir
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return len(path) > len(prefix) && strings.EqualFold(path[:len(prefix)], prefix)
}

// Getdir lists dir, replaying a cached scan when it targets the same
// path and is still within its TTL (longer while a transfer is
// active, when a re-scan has to suspend and resume it). The telecom
// folder at the root is hidden when
// configured to do so.
func (f *FsState) Getdir(dir string) ([]obexfs.DirEntry, error) {
	ttl := idleScanTTL
	if f.operation != opIdle {
		ttl = activeScanTTL
	}

	if strings.EqualFold(f.cachedDir, dir) && time.Since(f.lastScan) < ttl {
		return f.filtered(dir), nil
	}

	f.startFreq()
	defer f.endFreq()

	if err := f.obex.Readdir(dir); err != nil {
		return nil, err
	}

	entries := make([]obexfs.DirEntry, 0, 16)
	for {
		e, ok := f.obex.NextEntry()
		if !ok {
			break
		}
		if f.opts.Charset != nil {
			if decoded, err := f.opts.Charset.ToUTF8(e.Name); err == nil {
				e.Name = decoded
			}
		}
		entries = append(entries, e)
	}

	f.cachedDir = dir
	f.cachedEntries = entries
	f.lastScan = time.Now()

	return f.filtered(dir), nil
}

func (f *FsState) filtered(dir string) []obexfs.DirEntry {
	if !f.opts.HideTelecom || dir != "/" {
		return f.cachedEntries
	}
	out := make([]obexfs.DirEntry, 0, len(f.cachedEntries))
	for _, e := range f.cachedEntries {
		if e.IsDir && strings.EqualFold(e.Name, "telecom") {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Open begins a GET or PUT transfer at path under the session lock,
// which is held until Release. write selects GET (false) or PUT
// (true).
func (f *FsState) Open(path string, write bool) error {
	local, err := f.toLocal(path)
	if err != nil {
		return err
	}

	if err := f.startSession(); err != nil {
		return err
	}

	f.startXfer()
	defer f.endXfer()

	if write {
		if err := f.obex.Put(local); err != nil {
			f.endSession()
			return err
		}
		f.operation = opPut
	} else {
		if _, err := f.obex.Get(local, 0); err != nil {
			f.endSession()
			return err
		}
		f.operation = opGet
	}

	f.currentFile = path
	f.currentPos = 0
	return nil
}

// Read serves a read at offset for the file opened by Open. A
// non-sequential offset forces a fresh GET positioned at the new
// offset, mirroring how the protocol has to reopen the stream to
// seek.
func (f *FsState) Read(path string, buf []byte, offset int64) (int, error) {
	if f.operation != opGet || !strings.EqualFold(path, f.currentFile) {
		return 0, syscall.EBADF
	}

	f.startXfer()
	defer f.endXfer()

	if offset != f.currentPos {
		local, err := f.toLocal(path)
		if err != nil {
			return 0, err
		}
		_ = f.obex.Close()
		if _, err := f.obex.Get(local, offset); err != nil {
			return 0, err
		}
		f.currentPos = offset
	}

	n, err := f.obex.Read(buf)
	if err != nil {
		return 0, err
	}
	f.currentPos += int64(n)
	return n, nil
}

// Write serves a sequential write at offset for the file opened by
// Open. The protocol only supports appending to the stream in order;
// a non-sequential offset is rejected outright.
func (f *FsState) Write(path string, buf []byte, offset int64) (int, error) {
	if f.operation != opPut || !strings.EqualFold(path, f.currentFile) {
		return 0, syscall.EBADF
	}
	if offset != f.currentPos {
		return 0, syscall.ESPIPE
	}

	f.startXfer()
	defer f.endXfer()

	n, err := f.obex.Write(buf)
	if err != nil {
		return 0, err
	}
	f.currentPos += int64(n)
	return n, nil
}

// Release completes the transfer opened by Open and releases the
// session lock.
func (f *FsState) Release(path string) error {
	if f.operation == opIdle || !strings.EqualFold(path, f.currentFile) {
		return nil
	}

	f.startXfer()
	err := f.obex.Close()
	f.currentFile = ""
	f.operation = opIdle
	f.invalidate()
	f.endXfer()

	f.endSession()
	return err
}

// Mknod creates an empty regular file: a PUT immediately closed
// without any bytes written. Only plain files are supported.
func (f *FsState) Mknod(path string, mode uint32) error {
	if mode&syscall.S_IFMT != 0 && mode&syscall.S_IFMT != syscall.S_IFREG {
		return syscall.EPERM
	}
	local, err := f.toLocal(path)
	if err != nil {
		return err
	}
	if err := f.startSession(); err != nil {
		return err
	}
	defer f.endSession()

	f.startXfer()
	defer f.endXfer()

	if err := f.obex.Put(local); err != nil {
		return err
	}
	err = f.obex.Close()
	f.invalidate()
	return err
}

// Truncate is only meaningful as "truncate to zero": the protocol has
// no random-access write, so this deletes and recreates an empty file.
func (f *FsState) Truncate(path string, size int64) error {
	local, err := f.toLocal(path)
	if err != nil {
		return err
	}

	f.startFreq()
	defer f.endFreq()

	if err := f.obex.Delete(local); err != nil {
		return err
	}
	if err := f.obex.Put(local); err != nil {
		return err
	}
	err = f.obex.Close()
	f.invalidate()
	return err
}

// Unlink removes a file or empty directory.
func (f *FsState) Unlink(path string) error {
	local, err := f.toLocal(path)
	if err != nil {
		return err
	}

	f.startFreq()
	defer f.endFreq()

	err = f.obex.Delete(local)
	f.invalidate()
	return err
}

// Rmdir removes an empty directory; the wire protocol doesn't
// distinguish files from directories for deletion.
func (f *FsState) Rmdir(path string) error {
	return f.Unlink(path)
}

// Rename moves/renames a file or directory.
func (f *FsState) Rename(from, to string) error {
	localFrom, err := f.toLocal(from)
	if err != nil {
		return err
	}
	localTo, err := f.toLocal(to)
	if err != nil {
		return err
	}

	f.startFreq()
	defer f.endFreq()

	err = f.obex.Move(localFrom, localTo)
	f.invalidate()
	return err
}

// Mkdir creates a directory (and any missing intermediate components).
func (f *FsState) Mkdir(path string) error {
	local, err := f.toLocal(path)
	if err != nil {
		return err
	}

	f.startFreq()
	defer f.endFreq()

	err = f.obex.Mkdir(local)
	f.invalidate()
	return err
}

// Chmod changes path's permission bits.
func (f *FsState) Chmod(path string, mode uint32) error {
	local, err := f.toLocal(path)
	if err != nil {
		return err
	}

	f.startFreq()
	defer f.endFreq()

	return f.obex.Chmod(local, mode)
}

// Readlink, Link, and Symlink are not supported: the wire protocol has
// no notion of filesystem links. This matches siefs_readlink,
// siefs_link, and siefs_symlink in the original, which all return
// -EPERM without touching the phone.
func (f *FsState) Readlink(path string) (string, error) {
	return "", syscall.EPERM
}

func (f *FsState) Link(oldpath, newpath string) error {
	return syscall.EPERM
}

func (f *FsState) Symlink(target, linkpath string) error {
	return syscall.EPERM
}

// Statfs reports capacity/available as 512-byte block counts, the
// classic statfs(2) unit; both read as zero when the phone doesn't
// answer (the documented "unknown" sentinel).
type StatfsResult struct {
	BlockSize  uint32
	Blocks     uint64
	BlocksFree uint64
	NameLen    uint32
}

func (f *FsState) Statfs() StatfsResult {
	f.startFreq()
	defer f.endFreq()

	var res StatfsResult
	total := f.obex.Capacity()
	if total > 0 {
		res.BlockSize = 512
		res.Blocks = uint64(total) / 512
		res.BlocksFree = uint64(f.obex.Available()) / 512
		res.NameLen = 255
	}
	return res
}

// Shutdown tears down the underlying OBEX session.
func (f *FsState) Shutdown() error {
	return f.obex.Shutdown()
}
