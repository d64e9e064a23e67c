package gallery

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Album namespaces. Every album identifier is "<namespace>/<name>".
const (
	SourceNamespace = "source"
	DateNamespace   = "date"
)

// SourceAlbum returns the identifier of the album named after an export folder.
func SourceAlbum(folder string) string {
	return SourceNamespace + "/" + folder
}

// DateAlbum returns the identifier of the album for t's calendar date.
// Month and day are not zero-padded.
func DateAlbum(t time.Time) string {
	return fmt.Sprintf("%s/%d/%d/%d", DateNamespace, t.Year(), int(t.Month()), t.Day())
}

// AlbumDeriver computes the albums a media object belongs to.
type AlbumDeriver struct {
	loc *time.Location
}

// NewAlbumDeriver returns an AlbumDeriver that interprets capture times in loc.
// A nil loc means the process local time zone.
func NewAlbumDeriver(loc *time.Location) AlbumDeriver {
	return AlbumDeriver{loc: loc}
}

// Derive returns the source album for key's parent folder followed, when
// captureTime is known, by the date album for that instant.
func (d AlbumDeriver) Derive(key string, captureTime *int64) []string {
	albums := []string{SourceAlbum(parentFolder(key))}
	if captureTime != nil {
		loc := d.loc
		if loc == nil {
			loc = time.Local
		}
		albums = append(albums, DateAlbum(time.Unix(*captureTime, 0).In(loc)))
	}
	return albums
}

// parentFolder returns the path segment immediately preceding the filename.
func parentFolder(key string) string {
	segments := strings.Split(key, "/")
	if len(segments) < 2 {
		return ""
	}
	return segments[len(segments)-2]
}

// PartitionAlbums splits album identifiers by namespace. The result always
// has both the "source" and "date" keys; names are sorted and de-duplicated.
func PartitionAlbums(ids []string) (map[string][]string, error) {
	partitioned := map[string][]string{
		SourceNamespace: {},
		DateNamespace:   {},
	}

	for _, id := range ids {
		namespace, name, ok := strings.Cut(id, "/")
		if _, known := partitioned[namespace]; !ok || !known {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAlbumNamespace, id)
		}
		partitioned[namespace] = append(partitioned[namespace], name)
	}

	for namespace, names := range partitioned {
		slices.Sort(names)
		partitioned[namespace] = slices.Compact(names)
	}

	return partitioned, nil
}
