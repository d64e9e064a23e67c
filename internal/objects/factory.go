package objects

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"gallery-go/internal/config"
	"gallery-go/internal/gallery"
)

// NewObjectStoreFromConfig creates an ObjectStore implementation based on the objects config type.
func NewObjectStoreFromConfig(ctx context.Context, cfg config.ObjectsConfig, awsCfg config.AWSConfig) (gallery.ObjectStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem object store requires fs_root to be set")
		}
		return NewFileSystemStore(cfg.FSRoot)
	case "s3":
		sdkCfg, err := awsCfg.Load(ctx)
		if err != nil {
			return nil, err
		}
		client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = cfg.UsePathStyle
		})
		return NewS3Store(client), nil
	default:
		return nil, fmt.Errorf("unknown object store type: %s", cfg.Type)
	}
}
