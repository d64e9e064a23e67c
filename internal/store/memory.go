package store

import (
	"context"
	"maps"
	"slices"
	"sync"

	"gallery-go/internal/gallery"
	"gallery-go/internal/model"
)

type memoryItem struct {
	contentType string
	captureTime *int64
	locations   map[string]bool
	albums      map[string]bool
}

// MemoryStore is an in-memory implementation of gallery.ItemStore.
// Every method takes the store lock, so each call behaves like a single
// conditional write. This implementation is safe for concurrent use.
type MemoryStore struct {
	items   map[string]*memoryItem     // content hash -> item
	albums  map[string]bool            // album registry
	members map[string]map[string]bool // album -> content hashes
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:   make(map[string]*memoryItem),
		albums:  make(map[string]bool),
		members: make(map[string]map[string]bool),
	}
}

func (m *MemoryStore) UpdateItem(_ context.Context, update model.ItemUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[update.ContentHash]
	if !ok {
		return gallery.ErrConditionFailed
	}

	item.contentType = update.ContentType
	if update.Location != "" {
		item.locations[update.Location] = true
	}
	if update.Album != "" {
		item.albums[update.Album] = true
	}
	if update.CaptureTime != nil && item.captureTime == nil {
		v := *update.CaptureTime
		item.captureTime = &v
	}
	return nil
}

func (m *MemoryStore) InsertItem(_ context.Context, contentHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[contentHash]; ok {
		return gallery.ErrConditionFailed
	}
	m.items[contentHash] = &memoryItem{
		locations: make(map[string]bool),
		albums:    make(map[string]bool),
	}
	return nil
}

func (m *MemoryStore) AddItemAlbum(_ context.Context, contentHash, album string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[contentHash]
	if !ok {
		return gallery.ErrConditionFailed
	}
	item.albums[album] = true
	return nil
}

func (m *MemoryStore) GetItem(_ context.Context, contentHash string) (*model.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[contentHash]
	if !ok {
		return nil, nil
	}

	result := &model.Item{
		ContentHash: contentHash,
		ContentType: item.contentType,
		Locations:   sortedKeys(item.locations),
		Albums:      sortedKeys(item.albums),
	}
	if item.captureTime != nil {
		v := *item.captureTime
		result.CaptureTime = &v
	}
	return result, nil
}

func (m *MemoryStore) PutMembership(_ context.Context, album, contentHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.members[album] == nil {
		m.members[album] = make(map[string]bool)
	}
	m.members[album][contentHash] = true
	return nil
}

func (m *MemoryStore) RegisterAlbum(_ context.Context, album string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.albums[album] = true
	return nil
}

func (m *MemoryStore) ListAlbums(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return sortedKeys(m.albums), nil
}

func (m *MemoryStore) ListAlbumMembers(_ context.Context, album string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return sortedKeys(m.members[album]), nil
}

// sortedKeys never returns nil, so empty results match the SQL and
// DynamoDB stores.
func sortedKeys(m map[string]bool) []string {
	return append([]string{}, slices.Sorted(maps.Keys(m))...)
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// Compile-time check that MemoryStore implements gallery.ItemStore
var _ gallery.ItemStore = (*MemoryStore)(nil)
