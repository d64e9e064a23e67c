package objects

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"gallery-go/internal/config"
	"gallery-go/internal/gallery"
)

// fakeS3 serves objects from a map and pages listings two keys at a time.
type fakeS3 struct {
	objects map[string][]byte
	headErr error
	lists   int
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ETag:          aws.String(etagOf(data)),
		ContentType:   aws.String("image/jpeg"),
		ContentLength: aws.Int64(int64(len(data))),
		LastModified:  aws.Time(time.Unix(1600000000, 0).UTC()),
	}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	n := len(data)
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(n)),
		ContentRange:  aws.String(fmt.Sprintf("bytes 0-%d/%d", n-1, n)),
	}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.lists++

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	start := 0
	if in.ContinuationToken != nil {
		start = slices.Index(keys, aws.ToString(in.ContinuationToken))
	}
	end := min(start+2, len(keys))

	out := &s3.ListObjectsV2Output{}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[end])
	}
	return out, nil
}

func TestS3Store_Head(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{"a.jpg": []byte("hello world")}}
	s := NewS3Store(fake)

	info, err := s.Head(context.Background(), "photos", "a.jpg")
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	if info.ETag != helloETag || info.Size != 11 || info.ContentType != "image/jpeg" {
		t.Errorf("Head() = %+v", info)
	}

	_, err = s.Head(context.Background(), "photos", "missing.jpg")
	if !errors.Is(err, gallery.ErrObjectNotFound) {
		t.Errorf("Head() missing error = %v, want ErrObjectNotFound", err)
	}
}

func TestS3Store_Get(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{"a.json": []byte(`{"title":"a.jpg"}`)}}
	s := NewS3Store(fake)

	data, err := s.Get(context.Background(), "photos", "a.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(data) != `{"title":"a.jpg"}` {
		t.Errorf("Get() = %q", data)
	}

	_, err = s.Get(context.Background(), "photos", "missing.json")
	if !errors.Is(err, gallery.ErrObjectNotFound) {
		t.Errorf("Get() missing error = %v, want ErrObjectNotFound", err)
	}
}

func TestS3Store_List(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{
		"p/1.jpg": nil, "p/2.jpg": nil, "p/3.jpg": nil, "q/4.jpg": nil,
	}}
	s := NewS3Store(fake)

	keys, err := s.List(context.Background(), "photos", "p/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if !slices.Equal(keys, []string{"p/1.jpg", "p/2.jpg", "p/3.jpg"}) {
		t.Errorf("List() = %v", keys)
	}
	if fake.lists != 2 {
		t.Errorf("ListObjectsV2 calls = %d, want 2", fake.lists)
	}
}

func TestTranslateS3Error(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
	}{
		{name: "typed NotFound", err: &types.NotFound{}, notFound: true},
		{name: "typed NoSuchKey", err: &types.NoSuchKey{}, notFound: true},
		{name: "generic 404 code", err: &smithy.GenericAPIError{Code: "NotFound"}, notFound: true},
		{name: "access denied", err: &smithy.GenericAPIError{Code: "AccessDenied"}, notFound: false},
		{name: "plain error", err: errors.New("connection reset"), notFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateS3Error("b", "k", tt.err)
			if errors.Is(got, gallery.ErrObjectNotFound) != tt.notFound {
				t.Errorf("translateS3Error(%v) = %v, notFound want %v", tt.err, got, tt.notFound)
			}
			if !tt.notFound && !errors.Is(got, tt.err) {
				t.Errorf("translateS3Error() lost the cause: %v", got)
			}
		})
	}
}

func TestNewObjectStoreFromConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		got, err := NewObjectStoreFromConfig(ctx, config.ObjectsConfig{Type: "memory"}, config.AWSConfig{})
		if err != nil {
			t.Fatalf("NewObjectStoreFromConfig() error = %v", err)
		}
		if _, ok := got.(*MemoryStore); !ok {
			t.Errorf("NewObjectStoreFromConfig() = %T, want *MemoryStore", got)
		}
	})

	t.Run("filesystem", func(t *testing.T) {
		got, err := NewObjectStoreFromConfig(ctx, config.ObjectsConfig{Type: "filesystem", FSRoot: t.TempDir()}, config.AWSConfig{})
		if err != nil {
			t.Fatalf("NewObjectStoreFromConfig() error = %v", err)
		}
		if _, ok := got.(*FileSystemStore); !ok {
			t.Errorf("NewObjectStoreFromConfig() = %T, want *FileSystemStore", got)
		}
	})

	t.Run("filesystem without root", func(t *testing.T) {
		if _, err := NewObjectStoreFromConfig(ctx, config.ObjectsConfig{Type: "filesystem"}, config.AWSConfig{}); err == nil {
			t.Error("NewObjectStoreFromConfig() expected error for missing fs_root")
		}
	})

	t.Run("s3", func(t *testing.T) {
		cfg := config.ObjectsConfig{Type: "s3", Endpoint: "http://localhost:9000", UsePathStyle: true}
		awsCfg := config.AWSConfig{Region: "us-east-1", AccessKeyID: "x", SecretAccessKey: "y"}

		got, err := NewObjectStoreFromConfig(ctx, cfg, awsCfg)
		if err != nil {
			t.Fatalf("NewObjectStoreFromConfig() error = %v", err)
		}
		if _, ok := got.(*S3Store); !ok {
			t.Errorf("NewObjectStoreFromConfig() = %T, want *S3Store", got)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := NewObjectStoreFromConfig(ctx, config.ObjectsConfig{Type: "ftp"}, config.AWSConfig{}); err == nil {
			t.Error("NewObjectStoreFromConfig() expected error for unknown type")
		}
	})
}
