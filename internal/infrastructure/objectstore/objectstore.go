// Package objectstore abstracts the content store holding uploaded documents.
// Keys follow {applicationId}/{documentId}-{fileName}.
package objectstore

import "context"

type ObjectInfo struct {
	Exists bool
	Size   int64
}

type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Head(ctx context.Context, key string) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}
