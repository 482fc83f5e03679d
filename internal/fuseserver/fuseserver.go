// Package fuseserver adapts session.FsState's POSIX-shaped operation
// surface to bazil.org/fuse's fs.Node/fs.Handle interfaces. It is a
// thin, mechanical adapter: path bookkeeping and fuse request/response
// marshalling only, no protocol logic of its own.
package fuseserver

import (
	"context"
	"os"
	"syscall"
	"time"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"bazil.org/fuse/fuseutil"

	"github.com/tapwag/siefs/internal/session"
)

// attrValid is how long the kernel may cache an Attr response before
// asking again; kept short since the phone's own directory cache
// (session.idleScanTTL/activeScanTTL) is the real source of truth.
const attrValid = time.Second

// FS is the bazil.org/fuse root: one process-wide FsState shared by
// every Node it hands out.
type FS struct {
	State *session.FsState
}

var _ fusefs.FS = FS{}

// Root returns the filesystem root node.
func (f FS) Root() (fusefs.Node, error) {
	return &Node{state: f.State, path: "/"}, nil
}

// Node is one path in the tree. It carries no cached attributes of
// its own; every Attr/Lookup call asks FsState, which owns the TTL
// cache.
type Node struct {
	state *session.FsState
	path  string
}

var (
	_ fusefs.Node               = (*Node)(nil)
	_ fusefs.NodeStringLookuper = (*Node)(nil)
	_ fusefs.HandleReadDirAller = (*Node)(nil)
	_ fusefs.NodeMkdirer        = (*Node)(nil)
	_ fusefs.NodeCreater        = (*Node)(nil)
	_ fusefs.NodeRemover        = (*Node)(nil)
	_ fusefs.NodeRenamer        = (*Node)(nil)
	_ fusefs.NodeMknoder        = (*Node)(nil)
	_ fusefs.NodeOpener         = (*Node)(nil)
	_ fusefs.NodeSetattrer      = (*Node)(nil)
	_ fusefs.NodeReadlinker     = (*Node)(nil)
	_ fusefs.NodeLinker         = (*Node)(nil)
	_ fusefs.NodeSymlinker      = (*Node)(nil)
	_ fusefs.FSStatfser         = FS{}
)

func child(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

func toFuseErr(err error) error {
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if e, ok := err.(syscall.Errno); ok {
		errno = e
	} else {
		errno = syscall.EIO
	}
	return fuse.Errno(errno)
}

func fillAttr(a session.Attr, out *fuse.Attr) {
	out.Size = uint64(a.Size)
	out.Mode = os.FileMode(a.Mode & 0777)
	if a.Mode&syscall.S_IFDIR != 0 {
		out.Mode |= os.ModeDir
	}
	out.Mtime = a.Mtime
	out.Ctime = a.Mtime
	out.Uid = a.Uid
	out.Gid = a.Gid
	out.Valid = attrValid
}

// Attr fills out with path's metadata.
func (n *Node) Attr(ctx context.Context, out *fuse.Attr) error {
	attr, err := n.state.Getattr(n.path)
	if err != nil {
		return toFuseErr(err)
	}
	fillAttr(attr, out)
	return nil
}

// Lookup resolves name within the directory n, returning ENOENT
// through toFuseErr when it doesn't exist.
func (n *Node) Lookup(ctx context.Context, name string) (fusefs.Node, error) {
	p := child(n.path, name)
	if _, err := n.state.Getattr(p); err != nil {
		return nil, toFuseErr(err)
	}
	return &Node{state: n.state, path: p}, nil
}

// ReadDirAll lists n's contents.
func (n *Node) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	entries, err := n.state.Getdir(n.path)
	if err != nil {
		return nil, toFuseErr(err)
	}
	out := make([]fuse.Dirent, 0, len(entries))
	for _, e := range entries {
		typ := fuse.DT_File
		if e.IsDir {
			typ = fuse.DT_Dir
		}
		out = append(out, fuse.Dirent{Name: e.Name, Type: typ})
	}
	return out, nil
}

// Mkdir creates a subdirectory.
func (n *Node) Mkdir(ctx context.Context, req *fuse.MkdirRequest) (fusefs.Node, error) {
	p := child(n.path, req.Name)
	if err := n.state.Mkdir(p); err != nil {
		return nil, toFuseErr(err)
	}
	return &Node{state: n.state, path: p}, nil
}

// Create creates and opens a new regular file for writing.
func (n *Node) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fusefs.Node, fusefs.Handle, error) {
	p := child(n.path, req.Name)
	if err := n.state.Open(p, true); err != nil {
		return nil, nil, toFuseErr(err)
	}
	node := &Node{state: n.state, path: p}
	return node, &Handle{node: node}, nil
}

// Mknod creates an empty regular file without opening it.
func (n *Node) Mknod(ctx context.Context, req *fuse.MknodRequest) (fusefs.Node, error) {
	p := child(n.path, req.Name)
	if err := n.state.Mknod(p, uint32(req.Mode)); err != nil {
		return nil, toFuseErr(err)
	}
	return &Node{state: n.state, path: p}, nil
}

// Remove deletes a file or empty directory.
func (n *Node) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	p := child(n.path, req.Name)
	var err error
	if req.Dir {
		err = n.state.Rmdir(p)
	} else {
		err = n.state.Unlink(p)
	}
	return toFuseErr(err)
}

// Rename moves/renames n's child req.OldName to newDir's req.NewName.
func (n *Node) Rename(ctx context.Context, req *fuse.RenameRequest, newDir fusefs.Node) error {
	destDir, ok := newDir.(*Node)
	if !ok {
		return fuse.Errno(syscall.EXDEV)
	}
	from := child(n.path, req.OldName)
	to := child(destDir.path, req.NewName)
	return toFuseErr(n.state.Rename(from, to))
}

// Setattr only honours truncation to zero and permission-bit changes;
// the wire protocol supports neither arbitrary sizes nor arbitrary
// timestamps.
func (n *Node) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if req.Valid.Size() && req.Size == 0 {
		if err := n.state.Truncate(n.path, 0); err != nil {
			return toFuseErr(err)
		}
	}
	if req.Valid.Mode() {
		if err := n.state.Chmod(n.path, uint32(req.Mode)); err != nil {
			return toFuseErr(err)
		}
	}
	attr, err := n.state.Getattr(n.path)
	if err != nil {
		return toFuseErr(err)
	}
	fillAttr(attr, &resp.Attr)
	return nil
}

// Readlink always fails: the phone's file area has no link concept.
func (n *Node) Readlink(ctx context.Context, req *fuse.ReadlinkRequest) (string, error) {
	_, err := n.state.Readlink(n.path)
	return "", toFuseErr(err)
}

// Link always fails: the phone's file area has no link concept.
func (n *Node) Link(ctx context.Context, req *fuse.LinkRequest, old fusefs.Node) (fusefs.Node, error) {
	return nil, toFuseErr(n.state.Link(n.path, req.NewName))
}

// Symlink always fails: the phone's file area has no link concept.
func (n *Node) Symlink(ctx context.Context, req *fuse.SymlinkRequest) (fusefs.Node, error) {
	return nil, toFuseErr(n.state.Symlink(req.Target, req.NewName))
}

// Open begins a GET or PUT transfer and returns a Handle bound to it.
func (n *Node) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fusefs.Handle, error) {
	if err := n.state.Open(n.path, req.Flags.IsWriteOnly() || req.Flags.IsReadWrite()); err != nil {
		return nil, toFuseErr(err)
	}
	return &Handle{node: n}, nil
}

// Handle is the open instance of a Node's transfer.
type Handle struct {
	node *Node
}

var (
	_ fusefs.HandleReader   = (*Handle)(nil)
	_ fusefs.HandleWriter   = (*Handle)(nil)
	_ fusefs.HandleReleaser = (*Handle)(nil)
)

// Read serves a read at req.Offset into resp.
func (h *Handle) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	buf := make([]byte, req.Size)
	n, err := h.node.state.Read(h.node.path, buf, req.Offset)
	if err != nil {
		return toFuseErr(err)
	}
	fuseutil.HandleRead(req, resp, buf[:n])
	return nil
}

// Write serves a sequential write at req.Offset.
func (h *Handle) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	n, err := h.node.state.Write(h.node.path, req.Data, req.Offset)
	if err != nil {
		return toFuseErr(err)
	}
	resp.Size = n
	return nil
}

// Release completes the transfer and releases the session lock.
func (h *Handle) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	return toFuseErr(h.node.state.Release(h.node.path))
}

// Statfs reports capacity/available.
func (f FS) Statfs(ctx context.Context, req *fuse.StatfsRequest, resp *fuse.StatfsResponse) error {
	r := f.State.Statfs()
	resp.Bsize = r.BlockSize
	resp.Blocks = r.Blocks
	resp.Bfree = r.BlocksFree
	resp.Bavail = r.BlocksFree
	resp.Namelen = r.NameLen
	return nil
}
