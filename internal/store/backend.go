package store

import "context"

// Backend persists the serialized settings record as a single document.
type Backend interface {
	// Load returns the stored document or ErrNotFound.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the stored document.
	Save(ctx context.Context, data []byte) error
	Ping(ctx context.Context) error
	// Location names where the document lives, for logs and errors.
	Location() string
}
