package storage

import (
	"context"
	"io"
	"log/slog"

	cfg "github.com/questboard/questboard/internal/config"
)

// Storage defines the interface for file storage operations
type Storage interface {
	// Save stores a file at the given path
	Save(ctx context.Context, path string, file io.Reader) error

	// Delete removes a file at the given path
	Delete(ctx context.Context, path string) error

	// URL returns a URL the client can load the file from
	URL(path string) string
}

// New picks S3-compatible storage when a bucket is configured and local disk otherwise.
func New(c *cfg.Config) (Storage, error) {
	if !c.UsesS3() {
		slog.Info("initializing local storage", "path", c.UploadPath)
		return NewLocalStorage(c.UploadPath, "/uploads")
	}

	slog.Info("initializing S3 storage",
		"bucket", c.S3Bucket,
		"region", c.S3Region,
		"endpoint", c.S3Endpoint,
	)
	return NewS3Storage(S3Config{
		Region:               c.S3Region,
		Bucket:               c.S3Bucket,
		AccessKey:            c.S3AccessKey,
		SecretKey:            c.S3SecretKey,
		Endpoint:             c.S3Endpoint,
		PresignExpiryPublic:  c.S3PresignExpiryPublic,
		PresignExpiryPrivate: c.S3PresignExpiryPrivate,
	})
}
