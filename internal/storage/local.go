package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore writes attachment payloads under a single directory.
// Collision-safe naming is the caller's responsibility.
type LocalStore struct {
	root string
}

// NewLocalStore ensures the root directory exists and returns a store.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", root, err)
	}
	return &LocalStore{root: root}, nil
}

// Root returns the store's base directory.
func (s *LocalStore) Root() string {
	return s.root
}

// Write persists data under name and returns the full storage path.
func (s *LocalStore) Write(name string, data []byte) (string, error) {
	path := filepath.Join(s.root, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write attachment %s: %w", name, err)
	}
	return path, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (s *LocalStore) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove attachment %s: %w", path, err)
	}
	return nil
}
