package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes artifacts under a base directory on the local filesystem.
type LocalStore struct {
	baseDir string
}

// NewLocalStore validates the base directory, creating it when absent.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	info, err := os.Stat(baseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(baseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}
	return &LocalStore{baseDir: baseDir}, nil
}

// PutObject writes the content to a file and returns a file:// URI.
func (s *LocalStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}

	fullPath := filepath.Join(s.baseDir, path)
	cleanBase := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}

	content, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read artifact content: %w", err)
	}
	if err := os.WriteFile(fullPath, content, 0o600); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return "file://" + fullPath, nil
}
