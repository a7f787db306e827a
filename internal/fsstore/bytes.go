package fsstore

import (
	"errors"
	"fmt"
	"os"
)

func ReadBytes(path string) ([]byte, bool, error) {
	normalizedPath, err := normalizePath(path)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(normalizedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", normalizedPath, err)
	}
	return data, true, nil
}

func WriteBytesAtomic(path string, content []byte, opts FileOptions) error {
	normalizedPath, err := normalizePath(path)
	if err != nil {
		return err
	}
	return writeAtomic(normalizedPath, content, opts)
}

// Remove deletes the file if present. A missing file is not an error.
func Remove(path string) error {
	normalizedPath, err := normalizePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(normalizedPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", normalizedPath, err)
	}
	return nil
}
