package blob

import (
	"context"
	"io"
	"strings"
)

// RefScheme prefixes image references that live in object storage.
const RefScheme = "blob:"

// ObjectStorage abstracts blob storage (R2/S3/local).
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, mimeType string) (StoredObject, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// StoredObject captures persisted blob metadata.
type StoredObject struct {
	Key      string
	Size     int64
	MimeType string
	ETag     string
}

// Ref turns a storage key into an image reference.
func Ref(key string) string {
	return RefScheme + key
}

// KeyFromRef extracts the storage key from a blob reference.
func KeyFromRef(ref string) (string, bool) {
	if !strings.HasPrefix(ref, RefScheme) {
		return "", false
	}
	key := strings.TrimPrefix(ref, RefScheme)
	return key, key != ""
}
