package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store resolves opaque secret identifiers to their content. The content is
// held only transiently by callers and must never be logged.
type Store interface {
	// Resolve returns the content of the named secret. An empty id resolves
	// to empty content, which is a valid "no secret configured" state.
	Resolve(ctx context.Context, id string) (string, error)
}

// DirStore implements Store by reading one file per secret from a directory.
type DirStore struct {
	dir string
}

// NewDirStore creates a Store backed by the given directory.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// Resolve reads the secret file named by id.
func (s *DirStore) Resolve(_ context.Context, id string) (string, error) {
	if id == "" {
		return "", nil
	}

	// Reject ids that would escape the secrets directory.
	if id != filepath.Base(id) {
		return "", fmt.Errorf("invalid secret id %q", id)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, id))
	if err != nil {
		return "", fmt.Errorf("failed to resolve secret %q: %w", id, err)
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return "", nil
	}
	// ssh requires key files to be newline terminated.
	return content + "\n", nil
}
