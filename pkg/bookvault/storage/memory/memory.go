package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bookvault/bookvault/pkg/bookvault"
)

// Backend is an in-memory implementation of the bookvault.BlobStore
// interface, used in tests and development.
type Backend struct {
	mu          sync.RWMutex
	objects     map[string][]byte
	contentType map[string]string
	unavailable bool
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects:     make(map[string][]byte),
		contentType: make(map[string]string),
	}
}

// SetUnavailable makes every operation fail with ErrBackendUnavailable,
// simulating a deleted bucket or unreachable container.
func (b *Backend) SetUnavailable(unavailable bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unavailable = unavailable
}

// Put writes the object, overwriting any previous content at the same key.
func (b *Backend) Put(ctx context.Context, objectKey string, reader io.Reader, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.unavailable {
		return bookvault.ErrBackendUnavailable
	}

	b.objects[objectKey] = data
	b.contentType[objectKey] = contentType
	return nil
}

// GetAccessURL returns a synthetic signed URL with the requested expiry.
func (b *Backend) GetAccessURL(ctx context.Context, objectKey string, ttl time.Duration) (*bookvault.AccessURL, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.unavailable {
		return nil, bookvault.ErrBackendUnavailable
	}
	if _, exists := b.objects[objectKey]; !exists {
		return nil, bookvault.ErrObjectNotFound
	}

	expires := time.Now().UTC().Add(ttl)
	return &bookvault.AccessURL{
		URL:       fmt.Sprintf("memory://%s?expires=%d", objectKey, expires.UnixNano()),
		ExpiresAt: &expires,
		Kind:      bookvault.AccessKindDownloadable,
	}, nil
}

// PublicURL has no meaning for the memory backend.
func (b *Backend) PublicURL(objectKey string) (string, bool) {
	return "", false
}

// Stat returns the object's metadata.
func (b *Backend) Stat(ctx context.Context, objectKey string) (*bookvault.ObjectInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.unavailable {
		return nil, bookvault.ErrBackendUnavailable
	}
	data, exists := b.objects[objectKey]
	if !exists {
		return nil, bookvault.ErrObjectNotFound
	}

	return &bookvault.ObjectInfo{
		Key:         objectKey,
		Size:        int64(len(data)),
		ContentType: b.contentType[objectKey],
	}, nil
}

// Get reads the object directly.
func (b *Backend) Get(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.unavailable {
		return nil, bookvault.ErrBackendUnavailable
	}
	data, exists := b.objects[objectKey]
	if !exists {
		return nil, bookvault.ErrObjectNotFound
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Remove deletes the object. Removing a missing object is a no-op.
func (b *Backend) Remove(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.unavailable {
		return bookvault.ErrBackendUnavailable
	}

	delete(b.objects, objectKey)
	delete(b.contentType, objectKey)
	return nil
}

// List returns the keys of all objects under prefix, sorted.
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.unavailable {
		return nil, bookvault.ErrBackendUnavailable
	}

	var keys []string
	for key := range b.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
