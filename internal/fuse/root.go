package fuse

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/systemshift/ledger/internal/dag"
)

// RootNode is the mountpoint directory. Contains "HEAD", "branches/",
// "commits/" and "log/".
type RootNode struct {
	fs.Inode
	repo *dag.Repository
}

var _ = (fs.NodeOnAdder)((*RootNode)(nil))
var _ = (fs.NodeGetattrer)((*RootNode)(nil))

func (r *RootNode) OnAdd(ctx context.Context) {
	head := &DataFile{ino: stableIno("HEAD"), data: r.headBytes}
	r.AddChild("HEAD", r.NewPersistentInode(ctx, head, fs.StableAttr{
		Mode: syscall.S_IFREG,
		Ino:  stableIno("HEAD"),
	}), true)

	branches := &BranchesDir{repo: r.repo}
	r.AddChild("branches", r.NewPersistentInode(ctx, branches, fs.StableAttr{
		Mode: syscall.S_IFDIR,
		Ino:  stableIno("branches"),
	}), true)

	commits := &CommitsDir{repo: r.repo}
	r.AddChild("commits", r.NewPersistentInode(ctx, commits, fs.StableAttr{
		Mode: syscall.S_IFDIR,
		Ino:  stableIno("commits"),
	}), true)

	logDir := &LogDir{repo: r.repo}
	r.AddChild("log", r.NewPersistentInode(ctx, logDir, fs.StableAttr{
		Mode: syscall.S_IFDIR,
		Ino:  stableIno("log"),
	}), true)
}

func (r *RootNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno("/")
	return fs.OK
}

// headBytes renders the HEAD pointer followed by the commit it resolves to.
func (r *RootNode) headBytes() ([]byte, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, err
	}
	id, err := r.repo.ResolveCurrentCommit()
	if err != nil {
		return nil, err
	}
	if head.IsDetached() {
		return []byte(head.String() + "\n"), nil
	}
	return []byte(head.String() + "\n" + id + "\n"), nil
}

// DataFile is a read-only file whose content is computed on each access.
type DataFile struct {
	fs.Inode
	ino  uint64
	data func() ([]byte, error)
}

var _ = (fs.NodeGetattrer)((*DataFile)(nil))
var _ = (fs.NodeReader)((*DataFile)(nil))
var _ = (fs.NodeOpener)((*DataFile)(nil))

func (f *DataFile) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	data, err := f.data()
	if err != nil {
		return syscall.EIO
	}
	out.Mode = 0444
	out.Size = uint64(len(data))
	out.Ino = f.ino
	return fs.OK
}

func (f *DataFile) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	return nil, fuse.FOPEN_DIRECT_IO, fs.OK
}

func (f *DataFile) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := f.data()
	if err != nil {
		return nil, syscall.EIO
	}
	return fuse.ReadResultData(sliceAt(data, dest, off)), fs.OK
}

// sliceAt returns the part of data a read of len(dest) bytes at off sees.
func sliceAt(data, dest []byte, off int64) []byte {
	if off >= int64(len(data)) {
		return nil
	}
	end := off + int64(len(dest))
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[off:end]
}
