package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// GCSBucket is a Bucket backed by Cloud Storage.
type GCSBucket struct {
	handle *storage.BucketHandle
	name   string
}

// NewGCSBucket wraps the named bucket. The client stays owned by the caller.
func NewGCSBucket(client *storage.Client, name string) *GCSBucket {
	return &GCSBucket{handle: client.Bucket(name), name: name}
}

// Name returns the bucket name.
func (b *GCSBucket) Name() string { return b.name }

// Write creates the object with a does-not-exist precondition.
func (b *GCSBucket) Write(ctx context.Context, name string, data []byte, contentType string) error {
	w := b.handle.Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", b.name, name, err)
	}
	if err := w.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			return ErrObjectExists
		}
		return fmt.Errorf("failed to write gs://%s/%s: %w", b.name, name, err)
	}
	return nil
}

// Read returns the object's contents.
func (b *GCSBucket) Read(ctx context.Context, name string) ([]byte, error) {
	r, err := b.handle.Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrObjectNotExist
		}
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", b.name, name, err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", b.name, name, err)
	}
	return data, nil
}

// List iterates objects under prefix.
func (b *GCSBucket) List(ctx context.Context, prefix, delimiter string) ([]Object, []string, error) {
	it := b.handle.Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: delimiter})

	var objects []Object
	var prefixes []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list gs://%s/%s: %w", b.name, prefix, err)
		}
		if attrs.Prefix != "" {
			prefixes = append(prefixes, attrs.Prefix)
			continue
		}
		objects = append(objects, Object{Name: attrs.Name, Size: attrs.Size, Updated: attrs.Updated})
	}
	return objects, prefixes, nil
}

// Delete removes the object.
func (b *GCSBucket) Delete(ctx context.Context, name string) error {
	if err := b.handle.Object(name).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return ErrObjectNotExist
		}
		return fmt.Errorf("failed to delete gs://%s/%s: %w", b.name, name, err)
	}
	return nil
}
