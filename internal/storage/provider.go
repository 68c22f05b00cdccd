// Package storage talks to the image bucket and builds public URLs for its
// objects.
package storage

import (
	"context"
	"errors"
	"io"

	"github.com/cosconsole/internal/model"
)

// ErrIncompleteCredentials is returned when the stored bucket configuration
// is missing a credential, the bucket name or the region.
var ErrIncompleteCredentials = errors.New("storage: bucket configuration is incomplete")

// ErrObjectNotFound is returned when the addressed object does not exist.
var ErrObjectNotFound = errors.New("storage: object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified string
	ETag         string
}

// Provider is an object store holding the image library.
type Provider interface {
	List(ctx context.Context, prefix string, maxKeys int) ([]ObjectInfo, error)
	// Put stores body under key and returns the object's ETag.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	// Copy duplicates sourceKey to destKey within the same bucket.
	Copy(ctx context.Context, destKey, sourceKey string) error
}

// Factory builds a Provider from decrypted bucket configuration.
type Factory func(cfg model.COSConfig) (Provider, error)
