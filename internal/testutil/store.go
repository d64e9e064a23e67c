package testutil

import (
	"context"
	"sync"
	"testing"

	"gallery-go/internal/gallery"
	"gallery-go/internal/model"
	"gallery-go/internal/store"
)

// NewTestStore creates a new in-memory SQLite item store with migrations applied.
// The store is automatically closed when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	if err := s.MigrateUp(); err != nil {
		s.Close()
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// FaultyStore wraps an ItemStore and lets tests intercept individual calls.
// A nil hook passes the call through. Calls are counted per method.
type FaultyStore struct {
	gallery.ItemStore

	OnUpdateItem    func(ctx context.Context, update model.ItemUpdate) error
	OnInsertItem    func(ctx context.Context, contentHash string) error
	OnAddItemAlbum  func(ctx context.Context, contentHash, album string) error
	OnPutMembership func(ctx context.Context, album, contentHash string) error
	OnRegisterAlbum func(ctx context.Context, album string) error

	mu    sync.Mutex
	calls map[string]int
}

// NewFaultyStore wraps inner.
func NewFaultyStore(inner gallery.ItemStore) *FaultyStore {
	return &FaultyStore{ItemStore: inner, calls: make(map[string]int)}
}

// Calls returns how many times method was called.
func (f *FaultyStore) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *FaultyStore) count(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
}

func (f *FaultyStore) UpdateItem(ctx context.Context, update model.ItemUpdate) error {
	f.count("UpdateItem")
	if f.OnUpdateItem != nil {
		return f.OnUpdateItem(ctx, update)
	}
	return f.ItemStore.UpdateItem(ctx, update)
}

func (f *FaultyStore) InsertItem(ctx context.Context, contentHash string) error {
	f.count("InsertItem")
	if f.OnInsertItem != nil {
		return f.OnInsertItem(ctx, contentHash)
	}
	return f.ItemStore.InsertItem(ctx, contentHash)
}

func (f *FaultyStore) AddItemAlbum(ctx context.Context, contentHash, album string) error {
	f.count("AddItemAlbum")
	if f.OnAddItemAlbum != nil {
		return f.OnAddItemAlbum(ctx, contentHash, album)
	}
	return f.ItemStore.AddItemAlbum(ctx, contentHash, album)
}

func (f *FaultyStore) PutMembership(ctx context.Context, album, contentHash string) error {
	f.count("PutMembership")
	if f.OnPutMembership != nil {
		return f.OnPutMembership(ctx, album, contentHash)
	}
	return f.ItemStore.PutMembership(ctx, album, contentHash)
}

func (f *FaultyStore) RegisterAlbum(ctx context.Context, album string) error {
	f.count("RegisterAlbum")
	if f.OnRegisterAlbum != nil {
		return f.OnRegisterAlbum(ctx, album)
	}
	return f.ItemStore.RegisterAlbum(ctx, album)
}
