package gallery

import "errors"

var (
	// ErrConditionFailed reports that the precondition of a conditional write
	// did not hold (the item was missing for an update, or present for an insert).
	ErrConditionFailed = errors.New("conditional request failed")

	// ErrObjectNotFound reports that object storage has no object under a key.
	ErrObjectNotFound = errors.New("object not found")

	// ErrUpsertExhausted reports that the bounded upsert loop gave up.
	ErrUpsertExhausted = errors.New("upsert attempts exhausted")

	// ErrUnknownAlbumNamespace reports an album identifier outside the
	// source/ and date/ namespaces.
	ErrUnknownAlbumNamespace = errors.New("unknown album namespace")
)
