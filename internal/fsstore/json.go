package fsstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ReadJSON decodes path into out. The bool reports whether the file
// existed with content; a missing or empty file is not an error.
func ReadJSON(path string, out any) (bool, error) {
	data, found, err := ReadBytes(path)
	if err != nil {
		return false, err
	}
	if !found || len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrDecodeFailed, path, err)
	}
	return true, nil
}

func WriteJSONAtomic(path string, v any, opts FileOptions) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrEncodeFailed, path, err)
	}
	return writeAtomic(path, append(data, '\n'), opts)
}
