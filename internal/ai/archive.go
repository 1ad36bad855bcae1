package ai

import (
	"context"
	"io"

	"github.com/oklog/ulid/v2"
)

// archivePrefix namespaces annotated images in the bucket.
const archivePrefix = "predictions/"

// Archiver stores annotated result images.
type Archiver interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

// ArchiveKey returns a new time-ordered object key for an image.
func ArchiveKey(mimeType string) string {
	return archivePrefix + ulid.Make().String() + extensionFor(mimeType)
}
