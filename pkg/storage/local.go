package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps blobs on the local filesystem, served under publicBaseURL
type LocalStore struct {
	root          string
	publicBaseURL string
}

// NewLocalStore creates the root directory if needed
func NewLocalStore(root, publicBaseURL string) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("storage root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalStore{root: root, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// Root is the directory blobs are written under
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

// UploadBlob implements BlobStore
func (s *LocalStore) UploadBlob(ctx context.Context, localPath, key, mimeType string) (string, error) {
	dst, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	in, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create blob: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}

	return s.publicBaseURL + "/" + strings.TrimLeft(key, "/"), nil
}

// Download implements BlobStore
func (s *LocalStore) Download(ctx context.Context, key string) ([]byte, error) {
	src, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(src)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	return data, err
}
