package fuse

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/systemshift/ledger/internal/dag"
)

const maxLogEntries = 64

// LogDir exposes recent first-parent history as files.
// Layout: log/0 (HEAD commit JSON), log/1 (its first parent), ...
type LogDir struct {
	fs.Inode
	repo *dag.Repository
}

var _ = (fs.NodeLookuper)((*LogDir)(nil))
var _ = (fs.NodeReaddirer)((*LogDir)(nil))
var _ = (fs.NodeGetattrer)((*LogDir)(nil))

func (d *LogDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno("log")
	return fs.OK
}

func (d *LogDir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	history, err := d.repo.Log(maxLogEntries)
	if err != nil {
		return nil, syscall.EIO
	}
	entries := make([]fuse.DirEntry, len(history))
	for i, e := range history {
		entries[i] = fuse.DirEntry{
			Name: strconv.Itoa(i),
			Mode: syscall.S_IFREG,
			Ino:  logIno(e.ID),
		}
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (d *LogDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	idx, err := strconv.Atoi(name)
	if err != nil || idx < 0 || strconv.Itoa(idx) != name {
		return nil, syscall.ENOENT
	}
	history, err := d.repo.Log(idx + 1)
	if err != nil {
		return nil, syscall.EIO
	}
	if idx >= len(history) {
		return nil, syscall.ENOENT
	}

	entry := history[idx]
	f := &DataFile{ino: logIno(entry.ID), data: func() ([]byte, error) { return logEntryBytes(entry) }}
	child := d.NewInode(ctx, f, fs.StableAttr{
		Mode: syscall.S_IFREG,
		Ino:  f.ino,
	})
	return child, fs.OK
}

func logIno(id string) uint64 {
	return stableIno(fmt.Sprintf("log/%s", id))
}

// logEntryBytes renders one log entry as indented JSON.
func logEntryBytes(e dag.LogEntry) ([]byte, error) {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
