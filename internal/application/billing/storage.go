package billing

import (
	"context"
	"time"
)

// ObjectStorage abstracts the durable object store backing export
// artifacts. Implemented by storage.S3ObjectStorage and, for tests,
// storage.MemoryObjectStorage.
type ObjectStorage interface {
	// Upload writes an object. Overwrites any existing object at the key.
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error

	// ObjectExists reports whether an object is visible at the key.
	// Eventually consistent backends may lag a recent Upload.
	ObjectExists(ctx context.Context, storageKey string) (bool, error)

	// DeleteObject removes an object. Deleting a missing key is not an error.
	DeleteObject(ctx context.Context, storageKey string) error

	// ObjectURL returns the stable, non-expiring URL of an object.
	ObjectURL(storageKey string) string

	// GenerateDownloadURL returns a presigned GET URL and its expiry.
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)
}
