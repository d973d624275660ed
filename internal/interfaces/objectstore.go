package interfaces

import "context"

// ObjectStore downloads and uploads spreadsheets by bucket + key. It is
// stateless: no retry is mandated at this layer, retries belong to the
// orchestrator.
type ObjectStore interface {
	// Download fetches bucket/key via the public-read path. A missing
	// object returns ErrNotFound (downgraded by the caller to a
	// "file skipped" note).
	Download(ctx context.Context, bucket, key string) ([]byte, error)

	// Upload writes bucket/key via the authenticated path using the
	// configured service credential.
	Upload(ctx context.Context, bucket, key string, data []byte) error
}
