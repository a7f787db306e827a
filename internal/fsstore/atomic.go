package fsstore

import (
	"fmt"
	"os"
	"path/filepath"
)

func EnsureDir(path string, perm os.FileMode) error {
	dir, err := normalizePath(path)
	if err != nil {
		return err
	}
	if perm == 0 {
		perm = defaultDirPerm
	}
	if err := os.MkdirAll(dir, perm); err != nil {
		return fmt.Errorf("fsstore ensure dir %s: %w", dir, err)
	}
	return nil
}

// writeAtomic lands content at path via a temp file in the same
// directory plus rename, so readers never observe a partial file.
func writeAtomic(path string, content []byte, opts FileOptions) error {
	target, err := normalizePath(path)
	if err != nil {
		return err
	}
	opts = normalizeFileOptions(opts)

	dir := filepath.Dir(target)
	if err := EnsureDir(dir, opts.DirPerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*")
	if err != nil {
		return atomicErr(target, "create temp", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(content); err != nil {
		return atomicErr(target, "write temp", err)
	}
	if err := tmp.Sync(); err != nil {
		return atomicErr(target, "sync temp", err)
	}
	if err := tmp.Chmod(opts.FilePerm); err != nil {
		return atomicErr(target, "chmod temp", err)
	}
	if err := tmp.Close(); err != nil {
		return atomicErr(target, "close temp", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return atomicErr(target, "rename temp", err)
	}

	// Best effort: flush the rename to the directory entry too.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

func atomicErr(target, stage string, err error) error {
	return fmt.Errorf("%w: %s for %s: %v", ErrAtomicWriteFailed, stage, target, err)
}
