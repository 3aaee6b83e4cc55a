// Package storage hands uploaded documents off to a blob store and reads them back for extraction.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/suteetoe/tradeflow/pkg/config"
	"go.uber.org/zap"
)

// ErrObjectNotFound is returned by Download when the key does not exist
var ErrObjectNotFound = errors.New("object not found")

// BlobStore is the document storage capability
type BlobStore interface {
	// UploadBlob copies the file at localPath to key and returns its public URL
	UploadBlob(ctx context.Context, localPath, key, mimeType string) (string, error)
	// Download returns the object stored at key
	Download(ctx context.Context, key string) ([]byte, error)
}

// New builds the store selected by cfg.Driver
func New(cfg *config.StorageConfig, log *zap.Logger) (BlobStore, error) {
	switch cfg.Driver {
	case "s3":
		return NewS3Store(cfg, WithLogger(log))
	case "local", "":
		return NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
