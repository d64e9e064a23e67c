package gallery

import (
	"context"
	"errors"
	"fmt"

	"gallery-go/internal/metrics"
	"gallery-go/internal/model"
)

// DefaultMaxAttempts bounds the number of conditional updates per upsert.
const DefaultMaxAttempts = 3

// UpsertState is the result of one step of the upsert loop.
type UpsertState int

const (
	// UpsertUpdated means the conditional update applied; the loop is done.
	UpsertUpdated UpsertState = iota
	// UpsertInsertedThenRetry means the item was missing, an insert was
	// attempted (won by this caller or a concurrent one), and the update
	// must be tried again.
	UpsertInsertedThenRetry
	// UpsertExhausted means the last permitted update failed its precondition.
	UpsertExhausted
)

func (s UpsertState) String() string {
	switch s {
	case UpsertUpdated:
		return "updated"
	case UpsertInsertedThenRetry:
		return "inserted-then-retry"
	case UpsertExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// UpsertResult reports how an upsert converged.
type UpsertResult struct {
	Attempts int  // conditional updates issued
	Inserted bool // this caller's insert created the item
}

// Upserter performs the insert-or-update of an item on top of a store that
// only offers single-record conditional writes.
type Upserter struct {
	store       ItemStore
	logger      Logger
	maxAttempts int
}

// NewUpserter creates an Upserter. maxAttempts <= 0 selects DefaultMaxAttempts.
func NewUpserter(store ItemStore, logger Logger, maxAttempts int) *Upserter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Upserter{
		store:       store,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// Upsert applies update, creating the item first if it does not exist.
// Concurrent upserts of the same hash converge: whichever insert wins, every
// caller ends on the update path, and Locations/Albums are unions.
// Any store error other than ErrConditionFailed is returned immediately.
func (u *Upserter) Upsert(ctx context.Context, update model.ItemUpdate) (UpsertResult, error) {
	var result UpsertResult

	for attempt := 1; ; attempt++ {
		result.Attempts = attempt
		state, inserted, err := u.step(ctx, update, attempt == u.maxAttempts)
		if err != nil {
			metrics.UpsertAttempts.Observe(float64(attempt))
			return result, err
		}
		result.Inserted = result.Inserted || inserted

		switch state {
		case UpsertUpdated:
			metrics.UpsertAttempts.Observe(float64(attempt))
			u.logger.Info("appended file location", "hash", update.ContentHash, "key", update.Location, "attempts", attempt)
			return result, nil
		case UpsertExhausted:
			metrics.UpsertAttempts.Observe(float64(attempt))
			metrics.UpsertExhausted.Inc()
			u.logger.Error("upsert attempts exhausted", "hash", update.ContentHash, "attempts", attempt)
			return result, fmt.Errorf("upserting %s: %w after %d attempts", update.ContentHash, ErrUpsertExhausted, attempt)
		case UpsertInsertedThenRetry:
			// next attempt
		}
	}
}

// step issues one conditional update and, if the item is missing, one
// conditional insert. last suppresses the insert on the final attempt.
func (u *Upserter) step(ctx context.Context, update model.ItemUpdate, last bool) (UpsertState, bool, error) {
	err := u.store.UpdateItem(ctx, update)
	if err == nil {
		return UpsertUpdated, false, nil
	}
	if !errors.Is(err, ErrConditionFailed) {
		return 0, false, fmt.Errorf("updating item %s: %w", update.ContentHash, err)
	}
	if last {
		return UpsertExhausted, false, nil
	}

	err = u.store.InsertItem(ctx, update.ContentHash)
	switch {
	case err == nil:
		u.logger.Info("added item", "hash", update.ContentHash)
		return UpsertInsertedThenRetry, true, nil
	case errors.Is(err, ErrConditionFailed):
		u.logger.Debug("item created concurrently", "hash", update.ContentHash)
		return UpsertInsertedThenRetry, false, nil
	default:
		return 0, false, fmt.Errorf("inserting item %s: %w", update.ContentHash, err)
	}
}
