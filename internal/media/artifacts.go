package media

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// artifactIDPattern matches sha256 hex digests. Anything else is rejected
// before touching the filesystem.
var artifactIDPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// artifactStore is a content-addressed file store. The artifact id is the
// sha256 of the bytes, so identical media dedups to one file.
type artifactStore struct {
	dir string
}

func newArtifactStore(dir string) (*artifactStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}
	return &artifactStore{dir: dir}, nil
}

// Put stores data and returns its content address.
func (s *artifactStore) Put(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	id := hex.EncodeToString(sum[:])
	path := filepath.Join(s.dir, id)
	if _, err := os.Stat(path); err == nil {
		return id, nil
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing artifact: %w", err)
	}
	return id, nil
}

// Get returns the bytes for an artifact id, or os.ErrNotExist.
func (s *artifactStore) Get(id string) ([]byte, error) {
	if !artifactIDPattern.MatchString(id) {
		return nil, os.ErrNotExist
	}
	return os.ReadFile(filepath.Join(s.dir, id))
}
