package fsstore

import (
	"fmt"
	"path/filepath"
	"strings"
)

// normalizePath rejects empty paths and cleans the rest. Every exported
// entry point funnels through here.
func normalizePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	return filepath.Clean(path), nil
}
