package storage

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactStore wraps the on-disk files referenced by job file paths. Paths
// persisted on jobs are relative to the uploads root so the root can move
// between deployments.
type ArtifactStore struct {
	root string
}

func NewArtifactStore(root string) (*ArtifactStore, error) {
	if root == "" {
		root = "./uploads"
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &ArtifactStore{root: root}, nil
}

func (s *ArtifactStore) Root() string {
	return s.root
}

// Resolve turns a stored path into an absolute path under the root. Stored
// paths must not escape the root.
func (s *ArtifactStore) Resolve(path string) (string, error) {
	clean := filepath.Clean(path)
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("artifact path %q escapes uploads root", path)
	}
	return filepath.Join(s.root, clean), nil
}

// Remove deletes the artifact if it exists. A missing file is not an error;
// it is logged and treated as already cleaned up.
func (s *ArtifactStore) Remove(path string) error {
	full, err := s.Resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			log.Printf("[storage] artifact already gone: %s", path)
			return nil
		}
		return fmt.Errorf("failed to remove artifact %s: %w", path, err)
	}
	return nil
}

// Exists reports whether the artifact is present on disk.
func (s *ArtifactStore) Exists(path string) bool {
	full, err := s.Resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

// Size reports the artifact's current size on disk. The recorded size on a
// job is what the uploader claimed at creation; this is the truth.
func (s *ArtifactStore) Size(path string) (int64, error) {
	full, err := s.Resolve(path)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("artifact %s is a directory", path)
	}
	return info.Size(), nil
}

// Open returns a handle for streaming the artifact to a caller.
func (s *ArtifactStore) Open(path string) (io.ReadCloser, error) {
	full, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}
