package fsstore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestReadWriteJSONAtomic(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	type payload struct {
		Model string `json:"model"`
	}
	in := payload{Model: "gemini-pro"}
	if err := WriteJSONAtomic(path, in, FileOptions{}); err != nil {
		t.Fatalf("WriteJSONAtomic() error = %v", err)
	}
	var out payload
	ok, err := ReadJSON(path, &out)
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if !ok {
		t.Fatalf("ReadJSON() exists = false, want true")
	}
	if out.Model != in.Model {
		t.Fatalf("ReadJSON() value = %+v, want %+v", out, in)
	}
}

func TestReadJSONMissingFile(t *testing.T) {
	t.Parallel()

	var out map[string]any
	ok, err := ReadJSON(filepath.Join(t.TempDir(), "absent.json"), &out)
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if ok {
		t.Fatalf("ReadJSON() exists = true, want false")
	}
}

func TestReadJSONCorrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	var out map[string]any
	_, err := ReadJSON(path, &out)
	if !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("ReadJSON() error = %v, want ErrDecodeFailed", err)
	}
}

func TestReadWriteBytesAtomic(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "itchat.session")
	in := []byte("opaque-session-blob")
	if err := WriteBytesAtomic(path, in, FileOptions{}); err != nil {
		t.Fatalf("WriteBytesAtomic() error = %v", err)
	}
	got, ok, err := ReadBytes(path)
	if err != nil {
		t.Fatalf("ReadBytes() error = %v", err)
	}
	if !ok {
		t.Fatalf("ReadBytes() exists = false, want true")
	}
	if !bytes.Equal(got, in) {
		t.Fatalf("ReadBytes() = %q, want %q", got, in)
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "itchat.session")
	if err := WriteBytesAtomic(path, []byte("blob"), FileOptions{}); err != nil {
		t.Fatalf("WriteBytesAtomic() error = %v", err)
	}
	if err := Remove(path); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, ok, _ := ReadBytes(path); ok {
		t.Fatalf("ReadBytes() exists = true after Remove")
	}
	// Removing an already-missing file stays silent.
	if err := Remove(path); err != nil {
		t.Fatalf("Remove() second call error = %v", err)
	}
}
