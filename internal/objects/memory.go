package objects

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"gallery-go/internal/gallery"
	"gallery-go/internal/model"
)

type memoryObject struct {
	data         []byte
	contentType  string
	etag         string
	lastModified time.Time
}

// MemoryStore is an in-memory implementation of gallery.ObjectStore.
// It is mostly useful for testing.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	objects map[string]map[string]*memoryObject // bucket -> key -> object
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory object store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]map[string]*memoryObject),
	}
}

// Put stores data under bucket/key, replacing any existing object.
// The ETag is the quoted MD5 of data, as S3 reports it for single-part uploads.
func (m *MemoryStore) Put(bucket, key, contentType string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.objects[bucket] == nil {
		m.objects[bucket] = make(map[string]*memoryObject)
	}
	m.objects[bucket][key] = &memoryObject{
		data:         slices.Clone(data),
		contentType:  contentType,
		etag:         etagOf(data),
		lastModified: time.Now().UTC(),
	}
}

// Delete removes bucket/key if present.
func (m *MemoryStore) Delete(bucket, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects[bucket], key)
}

func (m *MemoryStore) Head(_ context.Context, bucket, key string) (*model.ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[bucket][key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, gallery.ErrObjectNotFound)
	}
	return &model.ObjectInfo{
		Bucket:       bucket,
		Key:          key,
		ETag:         obj.etag,
		ContentType:  obj.contentType,
		Size:         int64(len(obj.data)),
		LastModified: obj.lastModified,
	}, nil
}

func (m *MemoryStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[bucket][key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, gallery.ErrObjectNotFound)
	}
	return slices.Clone(obj.data), nil
}

func (m *MemoryStore) List(_ context.Context, bucket, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := []string{}
	for _, key := range slices.Sorted(maps.Keys(m.objects[bucket])) {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func etagOf(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// Compile-time check that MemoryStore implements gallery.ObjectStore
var _ gallery.ObjectStore = (*MemoryStore)(nil)
