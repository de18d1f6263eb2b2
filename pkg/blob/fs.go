package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FSStore stores blobs as files under a root directory. References are
// root-relative paths so the root can be relocated between deployments.
type FSStore struct {
	root string
}

// NewFSStore creates an FSStore rooted at dir, creating it if needed.
func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("blob root directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root %s: %w", dir, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve blob root %s: %w", dir, err)
	}
	return &FSStore{root: abs}, nil
}

// Save writes the bytes under a uuid-prefixed file name derived from
// suggestedName and returns the root-relative reference.
func (s *FSStore) Save(data []byte, suggestedName, operator string) (string, error) {
	name := uuid.New().String()
	if cleaned := sanitizeName(suggestedName); cleaned != "" {
		name = name + "_" + cleaned
	}
	_ = operator // recorded by the caller's history, not the blob layer

	path := filepath.Join(s.root, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob %s: %w", name, err)
	}
	return name, nil
}

// Read returns the bytes stored under ref. Refs that escape the root are
// rejected.
func (s *FSStore) Read(ref string) ([]byte, error) {
	path := filepath.Join(s.root, filepath.Clean("/"+ref))
	if !strings.HasPrefix(path, s.root+string(filepath.Separator)) && path != s.root {
		return nil, fmt.Errorf("invalid blob ref %q", ref)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("read blob %s: %w", ref, err)
	}
	return data, nil
}

// sanitizeName keeps only filename-safe characters from the suggested name.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "." || cleaned == ".." {
		return ""
	}
	return cleaned
}
