package gallery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gallery-go/internal/metrics"
)

// AlbumLinker fans an item out into the album membership index, the album
// registry and the item's own album set.
type AlbumLinker struct {
	store  ItemStore
	logger Logger
}

// NewAlbumLinker creates an AlbumLinker.
func NewAlbumLinker(store ItemStore, logger Logger) *AlbumLinker {
	return &AlbumLinker{store: store, logger: logger}
}

// Link links contentHash into each album in order. Every write is an
// idempotent upsert, so a partially applied fan-out is completed by running
// Link again. Nothing is rolled back.
//
// A failed membership or registry write abandons that album and moves on;
// those failures are joined and returned at the end. A failed item update
// means the item is gone or unreachable and is returned at once.
func (l *AlbumLinker) Link(ctx context.Context, contentHash string, albums []string) error {
	l.logger.Info("linking to albums", "hash", contentHash, "count", len(albums), "albums", strings.Join(albums, ","))

	var errs []error
	for _, album := range albums {
		if err := l.store.PutMembership(ctx, album, contentHash); err != nil {
			errs = append(errs, fmt.Errorf("adding %s to album %s: %w", contentHash, album, err))
			continue
		}

		if err := l.store.RegisterAlbum(ctx, album); err != nil {
			errs = append(errs, fmt.Errorf("registering album %s: %w", album, err))
			continue
		}

		if err := l.store.AddItemAlbum(ctx, contentHash, album); err != nil {
			if errors.Is(err, ErrConditionFailed) {
				err = fmt.Errorf("item does not exist: %w", err)
			}
			errs = append(errs, fmt.Errorf("marking album %s on item %s: %w", album, contentHash, err))
			return errors.Join(errs...)
		}

		namespace, _, _ := strings.Cut(album, "/")
		metrics.AlbumLinks.WithLabelValues(namespace).Inc()
	}

	return errors.Join(errs...)
}
