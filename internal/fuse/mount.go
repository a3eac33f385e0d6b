package fuse

import (
	"github.com/hanwen/go-fuse/v2/fs"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"
	"github.com/systemshift/ledger/internal/dag"
)

// MountOptions tunes the mount. The zero value is a quiet read-only mount.
type MountOptions struct {
	Debug bool
}

// MountFS mounts a read-only view of repo at mountpoint.
// Returns the server (call server.Wait() to block, server.Unmount() to stop).
func MountFS(mountpoint string, repo *dag.Repository, mo MountOptions) (*gofuse.Server, error) {
	root := &RootNode{repo: repo}

	opts := &fs.Options{
		MountOptions: gofuse.MountOptions{
			FsName:        "ledger",
			Name:          "ledger",
			DisableXAttrs: true,
			Debug:         mo.Debug,
			Options:       []string{"ro"},
		},
	}

	server, err := fs.Mount(mountpoint, root, opts)
	if err != nil {
		return nil, err
	}
	return server, nil
}
