package dag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// SafeWrite writes data to path atomically: tempfile -> fsync -> rename.
// The tempfile is created in the same directory as path to ensure the rename
// is atomic (same filesystem).
func SafeWrite(path string, data []byte, perm os.FileMode) error {
	return safeWriteFunc(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// SafeWriteFrom streams r into path with the same atomicity as SafeWrite.
func SafeWriteFrom(path string, r io.Reader, perm os.FileMode) error {
	return safeWriteFunc(path, perm, func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	})
}

func safeWriteFunc(path string, perm os.FileMode, fill func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()

	// Clean up on any error
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	if err = fill(f); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err = f.Chmod(perm); err != nil {
		f.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp to target: %w", err)
	}
	return nil
}

// SafeCreate writes data to path only if path does not exist yet. It returns
// os.ErrExist (wrapped) when another record already occupies path.
func SafeCreate(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Chmod(perm); err != nil {
		f.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	// Link fails if the target exists, unlike rename.
	if err := os.Link(tmp, path); err != nil {
		return fmt.Errorf("link temp to target: %w", err)
	}
	return nil
}
