// Package artifact persists rendered tool outputs (charts, exports) and
// hands back stable references. Identifiers are derived from the run and
// step that produced them, so concurrent runs sharing a directory never
// collide and a re-render of the same step overwrites only its own file.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store persists artifact bytes under an identifier and returns a resolved
// reference the caller can embed in an answer.
type Store interface {
	Write(id string, data []byte) (ref string, err error)
}

// ID builds the canonical artifact identifier for one tool invocation.
func ID(runID string, step int, name, ext string) string {
	return fmt.Sprintf("%s/%03d_%s.%s", runID, step, name, ext)
}

// FSStore writes artifacts under a base directory. The identifier's path
// separators become directories, so each run gets its own subtree.
type FSStore struct {
	mu   sync.Mutex
	base string
}

// NewFSStore creates the base directory if needed.
func NewFSStore(base string) (*FSStore, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create base dir: %w", err)
	}
	return &FSStore{base: base}, nil
}

// Write persists data and returns the identifier as the reference. The
// identifier must not escape the base directory.
func (s *FSStore) Write(id string, data []byte) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(id))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("artifact: invalid identifier %q", id)
	}
	path := filepath.Join(s.base, clean)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("artifact: create run dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("artifact: write %s: %w", id, err)
	}
	return id, nil
}

// Path resolves a reference back to its location on disk, rejecting
// references that escape the base directory.
func (s *FSStore) Path(ref string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(ref))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("artifact: invalid reference %q", ref)
	}
	return filepath.Join(s.base, clean), nil
}

// Interface guard.
var _ Store = (*FSStore)(nil)
