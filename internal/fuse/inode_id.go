package fuse

import (
	"hash/fnv"
	"time"
)

// stableIno returns a stable inode number for a given path string.
func stableIno(path string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(path))
	return h.Sum64()
}

// treeIno keys a directory by commit, so a branch that moves gets fresh
// inodes instead of stale cached ones.
func treeIno(commit, dir string) uint64 {
	return stableIno("tree/" + commit + "/" + dir)
}

func blobIno(commit, path string) uint64 {
	return stableIno("blob/" + commit + "/" + path)
}

func timeOf(unix int64) *time.Time {
	t := time.Unix(unix, 0)
	return &t
}
