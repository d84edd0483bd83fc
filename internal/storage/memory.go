package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	data        []byte
	contentType string
	updated     time.Time
}

// MemoryBucket is an in-process Bucket for local runs and tests.
type MemoryBucket struct {
	name    string
	mu      sync.RWMutex
	objects map[string]memoryObject
}

// NewMemoryBucket creates an empty bucket.
func NewMemoryBucket(name string) *MemoryBucket {
	return &MemoryBucket{name: name, objects: make(map[string]memoryObject)}
}

// Name returns the bucket name.
func (b *MemoryBucket) Name() string { return b.name }

// Write stores a copy of data.
func (b *MemoryBucket) Write(_ context.Context, name string, data []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[name]; ok {
		return ErrObjectExists
	}
	b.objects[name] = memoryObject{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		updated:     time.Now(),
	}
	return nil
}

// Read returns a copy of the object's contents.
func (b *MemoryBucket) Read(_ context.Context, name string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[name]
	if !ok {
		return nil, ErrObjectNotExist
	}
	return append([]byte(nil), obj.data...), nil
}

// ContentType returns the content type an object was written with.
func (b *MemoryBucket) ContentType(name string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.objects[name].contentType
}

// List returns objects and rolled-up prefixes in name order.
func (b *MemoryBucket) List(_ context.Context, prefix, delimiter string) ([]Object, []string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.objects))
	for name := range b.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var objects []Object
	var prefixes []string
	seen := map[string]bool{}
	for _, name := range names {
		if delimiter != "" {
			rest := name[len(prefix):]
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				p := prefix + rest[:idx+len(delimiter)]
				if !seen[p] {
					seen[p] = true
					prefixes = append(prefixes, p)
				}
				continue
			}
		}
		obj := b.objects[name]
		objects = append(objects, Object{Name: name, Size: int64(len(obj.data)), Updated: obj.updated})
	}
	return objects, prefixes, nil
}

// Delete removes the object.
func (b *MemoryBucket) Delete(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[name]; !ok {
		return ErrObjectNotExist
	}
	delete(b.objects, name)
	return nil
}
