// Package storage persists analysis sessions as objects under a per-session
// prefix and optionally indexes them in Firestore.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrObjectNotExist is returned when reading or deleting a missing object.
	ErrObjectNotExist = errors.New("object does not exist")
	// ErrObjectExists is returned when a write would overwrite an object.
	ErrObjectExists = errors.New("object already exists")
)

// Object describes a stored object.
type Object struct {
	Name    string
	Size    int64
	Updated time.Time
}

// Bucket is a flat object namespace. Writes never overwrite: writing an
// existing name returns ErrObjectExists.
type Bucket interface {
	Name() string
	Write(ctx context.Context, name string, data []byte, contentType string) error
	Read(ctx context.Context, name string) ([]byte, error)
	// List returns objects under prefix. With a delimiter, names containing
	// it past the prefix are rolled up into the returned prefixes.
	List(ctx context.Context, prefix, delimiter string) ([]Object, []string, error)
	Delete(ctx context.Context, name string) error
}
