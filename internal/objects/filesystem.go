package objects

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"gallery-go/internal/gallery"
	"gallery-go/internal/model"
)

// FileSystemStore is a filesystem-based implementation of gallery.ObjectStore.
// Buckets are directories under the root and keys are slash-separated paths
// within them:
//
//	<root>/
//	  <bucket>/
//	    Takeout/Google Photos/<album>/<file>
//
// It lets a local copy of an export be indexed without S3.
type FileSystemStore struct {
	root string
}

// NewFileSystemStore creates a store rooted at the given path.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create object root: %w", err)
	}
	return &FileSystemStore{root: root}, nil
}

// Root returns the directory buckets live under.
func (s *FileSystemStore) Root() string {
	return s.root
}

// Head computes the ETag as the quoted MD5 of the file, matching a
// single-part S3 upload. Content type comes from the file extension.
func (s *FileSystemStore) Head(_ context.Context, bucket, key string) (*model.ObjectInfo, error) {
	p, err := s.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, s.translateError(bucket, key, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s/%s: %w", bucket, key, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, gallery.ErrObjectNotFound)
	}

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("hashing %s/%s: %w", bucket, key, err)
	}

	return &model.ObjectInfo{
		Bucket:       bucket,
		Key:          key,
		ETag:         `"` + hex.EncodeToString(h.Sum(nil)) + `"`,
		ContentType:  mime.TypeByExtension(strings.ToLower(path.Ext(key))),
		Size:         info.Size(),
		LastModified: info.ModTime().UTC(),
	}, nil
}

func (s *FileSystemStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	p, err := s.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, s.translateError(bucket, key, err)
	}
	return data, nil
}

// List walks the bucket directory. Keys are returned in lexical order.
func (s *FileSystemStore) List(_ context.Context, bucket, prefix string) ([]string, error) {
	bucketDir, err := s.objectPath(bucket, "")
	if err != nil {
		return nil, err
	}

	keys := []string{}
	err = filepath.WalkDir(bucketDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == bucketDir {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(bucketDir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", bucket, err)
	}
	slices.Sort(keys)
	return keys, nil
}

// Put writes data to bucket/key using an atomic write (temp file + rename).
func (s *FileSystemStore) Put(bucket, key string, r io.Reader) error {
	destPath, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Create temp file in the same directory to ensure atomic rename works
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// objectPath maps bucket/key onto the filesystem, refusing anything that
// would escape the bucket directory.
func (s *FileSystemStore) objectPath(bucket, key string) (string, error) {
	if bucket == "" || bucket == "." || bucket == ".." || strings.ContainsAny(bucket, `/\`) {
		return "", fmt.Errorf("invalid bucket name %q", bucket)
	}
	if key != "" && !filepath.IsLocal(filepath.FromSlash(key)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.root, bucket, filepath.FromSlash(key)), nil
}

func (s *FileSystemStore) translateError(bucket, key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s/%s: %w", bucket, key, gallery.ErrObjectNotFound)
	}
	return fmt.Errorf("reading %s/%s: %w", bucket, key, err)
}

// Compile-time check that FileSystemStore implements gallery.ObjectStore
var _ gallery.ObjectStore = (*FileSystemStore)(nil)
