package objects

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"gallery-go/internal/gallery"
	"gallery-go/internal/model"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	manager.DownloadAPIClient
	s3.ListObjectsV2APIClient
}

// S3Store implements gallery.ObjectStore on Amazon S3 or an S3-compatible
// service.
type S3Store struct {
	client     S3API
	downloader *manager.Downloader
}

// NewS3Store creates a store backed by client.
func NewS3Store(client S3API) *S3Store {
	return &S3Store{
		client:     client,
		downloader: manager.NewDownloader(client),
	}
}

func (s *S3Store) Head(ctx context.Context, bucket, key string) (*model.ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translateS3Error(bucket, key, err)
	}

	return &model.ObjectInfo{
		Bucket:       bucket,
		Key:          key,
		ETag:         aws.ToString(out.ETag),
		ContentType:  aws.ToString(out.ContentType),
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// Get downloads the whole object into memory. Sidecars are small; media
// bodies are never fetched.
func (s *S3Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	buf := manager.NewWriteAtBuffer(nil)
	_, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translateS3Error(bucket, key, err)
	}
	return buf.Bytes(), nil
}

func (s *S3Store) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	keys := []string{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing %s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// translateS3Error maps the S3 "no such object" errors onto
// gallery.ErrObjectNotFound. HeadObject has no body, so it only reports a
// bare 404 (NotFound); GetObject reports NoSuchKey.
func translateS3Error(bucket, key string, err error) error {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return fmt.Errorf("%s/%s: %w", bucket, key, gallery.ErrObjectNotFound)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return fmt.Errorf("%s/%s: %w", bucket, key, gallery.ErrObjectNotFound)
		}
	}
	return fmt.Errorf("reading %s/%s: %w", bucket, key, err)
}

// Compile-time check that S3Store implements gallery.ObjectStore
var _ gallery.ObjectStore = (*S3Store)(nil)
