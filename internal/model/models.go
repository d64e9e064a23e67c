package model

import "time"

// Item represents one unique piece of content, keyed by its content hash.
// Locations and Albums only ever grow; nothing is removed from an Item.
type Item struct {
	ContentHash string   // storage-provided checksum (ETag without quotes)
	ContentType string   // as reported by object storage
	CaptureTime *int64   // unix seconds, nil when no sidecar supplied one
	Locations   []string // storage keys where this content was observed, sorted
	Albums      []string // album identifiers, sorted
}

// ItemUpdate describes the additive changes applied to an existing Item.
type ItemUpdate struct {
	ContentHash string
	ContentType string
	Location    string // added to Locations
	Album       string // added to Albums
	CaptureTime *int64 // set only if the item has none yet
}

// ObjectInfo is what object storage reports about a single object.
type ObjectInfo struct {
	Bucket       string
	Key          string
	ETag         string // as returned by storage, usually quoted
	ContentType  string
	Size         int64
	LastModified time.Time
}
