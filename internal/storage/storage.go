// Package storage provides the blob store client used for raw uploads and
// the latest-summary artifact. The production implementation targets AWS S3
// or any S3-compatible endpoint such as minio.
package storage

import "context"

// BlobStore is the minimal key-value surface the pipeline needs from the
// object store. Implementations must treat Put as a whole-object overwrite.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}
