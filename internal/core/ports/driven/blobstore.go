package driven

import "context"

// BlobStore is durable binary storage for attachment content.
// Implementations are stateless and safe for concurrent use.
type BlobStore interface {
	// Put writes data under key with the given content type and returns
	// the durable URL of the stored object. Each call fails
	// independently; a failed Put means the attachment must not be
	// reported as fetched.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
