package gallery_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"gallery-go/internal/gallery"
	"gallery-go/internal/model"
	"gallery-go/internal/testutil"
)

func TestUpsert_CreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewFaultyStore(testutil.NewTestStore(t))
	u := gallery.NewUpserter(store, gallery.NewNopLogger(), 0)

	ts := int64(1581790238)
	result, err := u.Upsert(ctx, model.ItemUpdate{
		ContentHash: "abc",
		ContentType: "image/jpeg",
		Location:    "Takeout/Google Photos/Trip/a.jpg",
		Album:       "source/Trip",
		CaptureTime: &ts,
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if result.Attempts != 2 || !result.Inserted {
		t.Errorf("Upsert() = %+v, want 2 attempts with insert", result)
	}
	if got := store.Calls("InsertItem"); got != 1 {
		t.Errorf("InsertItem calls = %d, want 1", got)
	}

	item, err := store.GetItem(ctx, "abc")
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if item == nil {
		t.Fatal("GetItem() = nil after upsert")
	}
	if item.ContentType != "image/jpeg" {
		t.Errorf("ContentType = %q", item.ContentType)
	}
	if item.CaptureTime == nil || *item.CaptureTime != ts {
		t.Errorf("CaptureTime = %v, want %d", item.CaptureTime, ts)
	}
	if !slices.Equal(item.Locations, []string{"Takeout/Google Photos/Trip/a.jpg"}) {
		t.Errorf("Locations = %v", item.Locations)
	}
	if !slices.Equal(item.Albums, []string{"source/Trip"}) {
		t.Errorf("Albums = %v", item.Albums)
	}
}

func TestUpsert_ExistingItemTakesOneUpdate(t *testing.T) {
	ctx := context.Background()
	inner := testutil.NewTestStore(t)
	if err := inner.InsertItem(ctx, "abc"); err != nil {
		t.Fatalf("InsertItem() error = %v", err)
	}
	store := testutil.NewFaultyStore(inner)
	u := gallery.NewUpserter(store, gallery.NewNopLogger(), 0)

	result, err := u.Upsert(ctx, model.ItemUpdate{ContentHash: "abc", Location: "k", Album: "source/x"})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if result.Attempts != 1 || result.Inserted {
		t.Errorf("Upsert() = %+v, want 1 attempt without insert", result)
	}
	if got := store.Calls("InsertItem"); got != 0 {
		t.Errorf("InsertItem calls = %d, want 0", got)
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewTestStore(t)
	u := gallery.NewUpserter(store, gallery.NewNopLogger(), 0)

	update := model.ItemUpdate{ContentHash: "abc", ContentType: "image/jpeg", Location: "k", Album: "source/x"}
	for i := 0; i < 3; i++ {
		if _, err := u.Upsert(ctx, update); err != nil {
			t.Fatalf("Upsert() #%d error = %v", i, err)
		}
	}

	item, err := store.GetItem(ctx, "abc")
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if !slices.Equal(item.Locations, []string{"k"}) || !slices.Equal(item.Albums, []string{"source/x"}) {
		t.Errorf("item = %+v, want single location and album", item)
	}
}

func TestUpsert_ExhaustsAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewFaultyStore(testutil.NewTestStore(t))
	store.OnUpdateItem = func(context.Context, model.ItemUpdate) error {
		return gallery.ErrConditionFailed
	}
	u := gallery.NewUpserter(store, gallery.NewNopLogger(), gallery.DefaultMaxAttempts)

	result, err := u.Upsert(ctx, model.ItemUpdate{ContentHash: "abc", Location: "k", Album: "source/x"})
	if !errors.Is(err, gallery.ErrUpsertExhausted) {
		t.Fatalf("Upsert() error = %v, want ErrUpsertExhausted", err)
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
	if got := store.Calls("UpdateItem"); got != 3 {
		t.Errorf("UpdateItem calls = %d, want 3", got)
	}
	// no insert after the last failed update
	if got := store.Calls("InsertItem"); got != 2 {
		t.Errorf("InsertItem calls = %d, want 2", got)
	}
}

func TestUpsert_StoreErrorsAreFatal(t *testing.T) {
	boom := errors.New("throttled")

	tests := []struct {
		name  string
		setup func(*testutil.FaultyStore)
		calls map[string]int
	}{
		{
			name: "update fails",
			setup: func(s *testutil.FaultyStore) {
				s.OnUpdateItem = func(context.Context, model.ItemUpdate) error { return boom }
			},
			calls: map[string]int{"UpdateItem": 1, "InsertItem": 0},
		},
		{
			name: "insert fails",
			setup: func(s *testutil.FaultyStore) {
				s.OnInsertItem = func(context.Context, string) error { return boom }
			},
			calls: map[string]int{"UpdateItem": 1, "InsertItem": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewFaultyStore(testutil.NewTestStore(t))
			tt.setup(store)
			u := gallery.NewUpserter(store, gallery.NewNopLogger(), 0)

			_, err := u.Upsert(context.Background(), model.ItemUpdate{ContentHash: "abc", Location: "k", Album: "source/x"})
			if !errors.Is(err, boom) {
				t.Fatalf("Upsert() error = %v, want %v", err, boom)
			}
			if errors.Is(err, gallery.ErrUpsertExhausted) {
				t.Errorf("Upsert() error = %v, should not report exhaustion", err)
			}
			for method, want := range tt.calls {
				if got := store.Calls(method); got != want {
					t.Errorf("%s calls = %d, want %d", method, got, want)
				}
			}
		})
	}
}

func TestUpsert_ConcurrentConverges(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewTestStore(t)
	u := gallery.NewUpserter(store, gallery.NewNopLogger(), 0)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
		errs     []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := u.Upsert(ctx, model.ItemUpdate{
				ContentHash: "same",
				ContentType: "image/jpeg",
				Location:    fmt.Sprintf("Takeout/Google Photos/copy-%d/a.jpg", i),
				Album:       fmt.Sprintf("source/copy-%d", i),
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			}
			if result.Inserted {
				inserted++
			}
		}(i)
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("Upsert() errors = %v", errs)
	}
	if inserted != 1 {
		t.Errorf("inserts won = %d, want 1", inserted)
	}

	item, err := store.GetItem(ctx, "same")
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if len(item.Locations) != workers || len(item.Albums) != workers {
		t.Errorf("item has %d locations and %d albums, want %d each", len(item.Locations), len(item.Albums), workers)
	}
}
