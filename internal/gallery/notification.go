package gallery

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
)

// Notification is the normalized "object changed" event handed to the
// coordinator by the event-source adapters. Either Bucket or BucketARN
// identifies the bucket. Key is in the URL-encoded form S3 events use.
type Notification struct {
	Bucket    string
	BucketARN string
	Key       string
}

// BucketName returns Bucket if set, otherwise the resource of BucketARN.
func (n Notification) BucketName() (string, error) {
	if n.Bucket != "" {
		return n.Bucket, nil
	}
	if n.BucketARN == "" {
		return "", fmt.Errorf("notification for %q has neither bucket nor bucket ARN", n.Key)
	}

	parsed, err := arn.Parse(n.BucketARN)
	if err != nil {
		return "", fmt.Errorf("parsing bucket ARN %q: %w", n.BucketARN, err)
	}
	if parsed.Resource == "" {
		return "", fmt.Errorf("bucket ARN %q has no resource", n.BucketARN)
	}
	return parsed.Resource, nil
}

// DecodeKey reverses the encoding S3 applies to keys in event payloads:
// '+' stands for a space and everything else is percent-encoded.
func DecodeKey(raw string) (string, error) {
	key, err := url.PathUnescape(strings.ReplaceAll(raw, "+", " "))
	if err != nil {
		return "", fmt.Errorf("decoding key %q: %w", raw, err)
	}
	return key, nil
}

// EncodeKey is the inverse of DecodeKey. It is used to feed keys listed from
// storage through the same path as keys taken from event payloads.
func EncodeKey(key string) string {
	return url.QueryEscape(key)
}

// ContentHash derives the content hash from an ETag by dropping the quotes
// storage wraps it in.
func ContentHash(etag string) string {
	return strings.Trim(etag, `"`)
}
