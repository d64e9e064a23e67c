package gallery

import (
	"path"
	"strings"
)

// DefaultExportRoot is the substring every key of a Google Photos export contains.
const DefaultExportRoot = "Takeout/Google Photos"

// Kind is the classification of an object key.
type Kind int

const (
	KindIgnore Kind = iota
	KindMedia
	KindMetadata
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindIgnore:
		return "ignore"
	case KindMedia:
		return "media"
	case KindMetadata:
		return "metadata"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Classifier decides how an object key is handled. Keys must already be
// URL-decoded (see DecodeKey).
type Classifier struct {
	exportRoot string
	exclude    *KeyFilter
}

// NewClassifier returns a Classifier for keys under exportRoot.
// An empty exportRoot selects DefaultExportRoot. Keys matching any of the
// exclude patterns (see KeyFilter) are ignored.
func NewClassifier(exportRoot string, exclude ...string) Classifier {
	if exportRoot == "" {
		exportRoot = DefaultExportRoot
	}
	return Classifier{exportRoot: exportRoot, exclude: NewKeyFilter(exclude)}
}

// Classify returns KindIgnore for keys outside the export root or matching
// an exclude pattern, otherwise a kind based on the case-insensitive extension.
func (c Classifier) Classify(key string) Kind {
	root := c.exportRoot
	if root == "" {
		root = DefaultExportRoot
	}
	i := strings.Index(key, root)
	if i < 0 {
		return KindIgnore
	}
	if c.exclude.Match(strings.TrimPrefix(key[i+len(root):], "/")) {
		return KindIgnore
	}

	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg":
		return KindMedia
	case ".json":
		return KindMetadata
	default:
		return KindUnsupported
	}
}
