package session

import (
	"github.com/yk-CNMB/gemini-itchat-bot/internal/fsstore"
)

// ArtifactStore persists the transport's opaque session blob so a
// restart can resume without interactive login. Only existence and
// deletion mean anything here; the bytes belong to the transport.
type ArtifactStore struct {
	path string
}

func NewArtifactStore(path string) *ArtifactStore {
	return &ArtifactStore{path: path}
}

func (s *ArtifactStore) Load() ([]byte, bool, error) {
	return fsstore.ReadBytes(s.path)
}

func (s *ArtifactStore) Save(blob []byte) error {
	return fsstore.WriteBytesAtomic(s.path, blob, fsstore.FileOptions{})
}

func (s *ArtifactStore) Delete() error {
	return fsstore.Remove(s.path)
}
