// Package artifact persists scrape-run snapshots to blob storage. Providers
// cover local filesystem, in-memory (development), and Google Cloud Storage.
package artifact

import (
	"context"
	"io"
)

// BlobStore writes one artifact and returns a URI describing where it landed.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}
