package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by a Backend that holds no settings record yet.
	ErrNotFound = errors.New("store: settings record not found")

	// ErrCorrupt marks a stored record that could not be parsed.
	ErrCorrupt = errors.New("store: settings record is corrupt")
)

// ReadError reports a stored record that exists but could not be used.
// Readers receive defaults alongside it.
type ReadError struct {
	Location string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("store: read settings from %s: %v", e.Location, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// PersistenceError reports a failed write of the settings record.
type PersistenceError struct {
	Op       string
	Location string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s settings at %s: %v", e.Op, e.Location, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
