package gallery

import (
	"context"

	"gallery-go/internal/model"
)

// ItemStore provides the three shared collections the engine writes to:
// items keyed by content hash, the album registry, and the album membership
// index. Implementations offer single-record conditional writes only; there
// are no cross-record transactions.
type ItemStore interface {
	// Item operations

	// UpdateItem applies update to an existing item: it sets the content type,
	// adds the location and album, and sets the capture time if the item has
	// none. Returns ErrConditionFailed if no item exists for the hash.
	UpdateItem(ctx context.Context, update model.ItemUpdate) error

	// InsertItem creates an item with empty Locations and Albums.
	// Returns ErrConditionFailed if an item already exists for the hash.
	InsertItem(ctx context.Context, contentHash string) error

	// AddItemAlbum adds album to an existing item's Albums.
	// Returns ErrConditionFailed if no item exists for the hash.
	AddItemAlbum(ctx context.Context, contentHash, album string) error

	// GetItem returns the item for a hash, or nil if there is none.
	GetItem(ctx context.Context, contentHash string) (*model.Item, error)

	// Album operations

	// PutMembership records that contentHash is a member of album. Idempotent.
	PutMembership(ctx context.Context, album, contentHash string) error

	// RegisterAlbum adds album to the album registry. Idempotent.
	RegisterAlbum(ctx context.Context, album string) error

	// ListAlbums returns every registered album identifier.
	ListAlbums(ctx context.Context) ([]string, error)

	// ListAlbumMembers returns the content hashes linked to album.
	ListAlbumMembers(ctx context.Context, album string) ([]string, error)

	// Close releases the store's resources.
	Close() error
}

// ObjectStore provides read access to object storage.
type ObjectStore interface {
	// Head returns the attributes of an object without its body.
	// Returns an error wrapping ErrObjectNotFound if the object does not exist.
	Head(ctx context.Context, bucket, key string) (*model.ObjectInfo, error)

	// Get returns the full body of an object.
	// Returns an error wrapping ErrObjectNotFound if the object does not exist.
	Get(ctx context.Context, bucket, key string) ([]byte, error)

	// List returns the keys of all objects in bucket that start with prefix.
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}
