package testutil

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"testing"

	"gallery-go/internal/objects"
)

// Bucket is the bucket fixtures are written to.
const Bucket = "photos"

// Export is an in-memory object store seeded like a photo export.
type Export struct {
	*objects.MemoryStore
	t *testing.T
}

// NewExport creates an empty export.
func NewExport(t *testing.T) *Export {
	t.Helper()
	return &Export{MemoryStore: objects.NewMemoryStore(), t: t}
}

// AddMedia stores a media object and returns its content hash.
func (e *Export) AddMedia(key string, data []byte) string {
	e.t.Helper()
	e.Put(Bucket, key, "image/jpeg", data)
	return ContentHash(data)
}

// AddSidecar stores a metadata sidecar with the given title and capture time.
// timestamp is written verbatim, so tests can pass quoted or bare numbers.
func (e *Export) AddSidecar(key, title, timestamp string) {
	e.t.Helper()
	body := fmt.Sprintf(`{"title":%q,"photoTakenTime":{"timestamp":%s,"formatted":"ignored"}}`, title, timestamp)
	e.Put(Bucket, key, "application/json", []byte(body))
}

// AddRaw stores an object body verbatim.
func (e *Export) AddRaw(key string, body []byte) {
	e.t.Helper()
	e.Put(Bucket, key, "application/octet-stream", body)
}

// ContentHash returns the content hash object storage reports for data:
// the hex MD5, without the quotes an ETag carries.
func ContentHash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
