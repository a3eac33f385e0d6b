package fuse

import (
	"context"
	"errors"
	"net/url"
	"slices"
	"strings"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/systemshift/ledger/internal/dag"
)

// BranchesDir lists branches; each entry is the tree of the branch head at
// lookup time. Slashes in branch names are escaped as %2F.
type BranchesDir struct {
	fs.Inode
	repo *dag.Repository
}

var _ = (fs.NodeLookuper)((*BranchesDir)(nil))
var _ = (fs.NodeReaddirer)((*BranchesDir)(nil))
var _ = (fs.NodeGetattrer)((*BranchesDir)(nil))

func (d *BranchesDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno("branches")
	return fs.OK
}

func (d *BranchesDir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	branches, err := d.repo.ListBranches()
	if err != nil {
		return nil, syscall.EIO
	}
	entries := make([]fuse.DirEntry, len(branches))
	for i, b := range branches {
		entries[i] = fuse.DirEntry{
			Name: url.PathEscape(b.Name),
			Mode: syscall.S_IFDIR,
			Ino:  treeIno(b.Commit, ""),
		}
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (d *BranchesDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	branch, err := url.PathUnescape(name)
	if err != nil {
		return nil, syscall.ENOENT
	}
	id, err := d.repo.Refs.Branch(branch)
	if errors.Is(err, dag.ErrBranchNotFound) {
		return nil, syscall.ENOENT
	}
	if err != nil {
		return nil, syscall.EIO
	}
	return newTreeInode(ctx, &d.Inode, d.repo, id, ""), fs.OK
}

// CommitsDir lists every commit by id.
type CommitsDir struct {
	fs.Inode
	repo *dag.Repository
}

var _ = (fs.NodeLookuper)((*CommitsDir)(nil))
var _ = (fs.NodeReaddirer)((*CommitsDir)(nil))
var _ = (fs.NodeGetattrer)((*CommitsDir)(nil))

func (d *CommitsDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno("commits")
	return fs.OK
}

func (d *CommitsDir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	ids, err := d.repo.Commits.List()
	if err != nil {
		return nil, syscall.EIO
	}
	entries := make([]fuse.DirEntry, len(ids))
	for i, id := range ids {
		entries[i] = fuse.DirEntry{Name: id, Mode: syscall.S_IFDIR, Ino: treeIno(id, "")}
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (d *CommitsDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if !d.repo.Commits.Has(name) {
		return nil, syscall.ENOENT
	}
	return newTreeInode(ctx, &d.Inode, d.repo, name, ""), fs.OK
}

// TreeDir is one directory of a commit's file table. Directories are not
// stored; they are derived from the paths in the table.
type TreeDir struct {
	fs.Inode
	repo   *dag.Repository
	commit string
	dir    string // repo-relative, "" for the top
}

var _ = (fs.NodeLookuper)((*TreeDir)(nil))
var _ = (fs.NodeReaddirer)((*TreeDir)(nil))
var _ = (fs.NodeGetattrer)((*TreeDir)(nil))

func newTreeInode(ctx context.Context, parent *fs.Inode, repo *dag.Repository, commit, dir string) *fs.Inode {
	t := &TreeDir{repo: repo, commit: commit, dir: dir}
	return parent.NewInode(ctx, t, fs.StableAttr{Mode: syscall.S_IFDIR, Ino: treeIno(commit, dir)})
}

func (d *TreeDir) files() (dag.FileTable, error) {
	c, err := d.repo.Commits.Get(d.commit)
	if err != nil {
		return nil, err
	}
	return c.Files, nil
}

func (d *TreeDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	c, err := d.repo.Commits.Get(d.commit)
	if err != nil {
		return syscall.ENOENT
	}
	out.Mode = 0555
	out.Ino = treeIno(d.commit, d.dir)
	out.SetTimes(nil, timeOf(c.Timestamp), timeOf(c.Timestamp))
	return fs.OK
}

func (d *TreeDir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	files, err := d.files()
	if err != nil {
		return nil, syscall.EIO
	}
	dirs, names := listTree(files, d.dir)
	entries := make([]fuse.DirEntry, 0, len(dirs)+len(names))
	for _, name := range dirs {
		entries = append(entries, fuse.DirEntry{
			Name: name,
			Mode: syscall.S_IFDIR,
			Ino:  treeIno(d.commit, joinRel(d.dir, name)),
		})
	}
	for _, name := range names {
		entries = append(entries, fuse.DirEntry{
			Name: name,
			Mode: syscall.S_IFREG,
			Ino:  blobIno(d.commit, joinRel(d.dir, name)),
		})
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (d *TreeDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	files, err := d.files()
	if err != nil {
		return nil, syscall.EIO
	}
	rel := joinRel(d.dir, name)
	if entry, ok := files[rel]; ok {
		f := &BlobFile{repo: d.repo, entry: entry, ino: blobIno(d.commit, rel)}
		return d.NewInode(ctx, f, fs.StableAttr{Mode: syscall.S_IFREG, Ino: f.ino}), fs.OK
	}
	prefix := rel + "/"
	for p := range files {
		if strings.HasPrefix(p, prefix) {
			return newTreeInode(ctx, &d.Inode, d.repo, d.commit, rel), fs.OK
		}
	}
	return nil, syscall.ENOENT
}

// BlobFile exposes one stored blob.
type BlobFile struct {
	fs.Inode
	repo  *dag.Repository
	entry dag.FileEntry
	ino   uint64
}

var _ = (fs.NodeGetattrer)((*BlobFile)(nil))
var _ = (fs.NodeReader)((*BlobFile)(nil))
var _ = (fs.NodeOpener)((*BlobFile)(nil))

func (f *BlobFile) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	data, err := f.repo.Store.Get(f.entry.Hash)
	if err != nil {
		return syscall.EIO
	}
	out.Mode = 0444
	out.Size = uint64(len(data))
	out.Ino = f.ino
	out.SetTimes(nil, timeOf(f.entry.LastEdited), timeOf(f.entry.LastEdited))
	return fs.OK
}

func (f *BlobFile) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	// Blobs are immutable.
	return nil, fuse.FOPEN_KEEP_CACHE, fs.OK
}

func (f *BlobFile) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := f.repo.Store.Get(f.entry.Hash)
	if err != nil {
		return nil, syscall.EIO
	}
	return fuse.ReadResultData(sliceAt(data, dest, off)), fs.OK
}

// listTree returns the immediate subdirectories and files of dir in a file
// table, each sorted.
func listTree(files dag.FileTable, dir string) (dirs, names []string) {
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	seen := map[string]bool{}
	for p := range files {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok || rest == "" {
			continue
		}
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			if sub := rest[:i]; !seen[sub] {
				seen[sub] = true
				dirs = append(dirs, sub)
			}
			continue
		}
		names = append(names, rest)
	}
	slices.Sort(dirs)
	slices.Sort(names)
	return dirs, names
}

func joinRel(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
