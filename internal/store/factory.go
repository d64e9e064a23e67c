package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"gallery-go/internal/config"
	"gallery-go/internal/gallery"
)

// DatabaseFile is the SQLite file name inside the configured data directory.
const DatabaseFile = "gallery.db"

// NewItemStoreFromConfig creates an ItemStore implementation based on the store config type.
// A SQLite store must already be migrated; see OpenSQLiteFromConfig for the migrate command.
func NewItemStoreFromConfig(ctx context.Context, cfg config.StoreConfig, awsCfg config.AWSConfig) (gallery.ItemStore, error) {
	switch cfg.Type {
	case "sqlite":
		s, err := OpenSQLiteFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		if err := s.CheckMigrations(); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case "memory":
		return NewMemoryStore(), nil
	case "dynamodb":
		client, err := newDynamoDBClient(ctx, cfg, awsCfg)
		if err != nil {
			return nil, err
		}
		return NewDynamoDBStore(client, DynamoDBTables{
			Items:       cfg.ItemsTable,
			Albums:      cfg.AlbumsTable,
			Memberships: cfg.MembershipsTable,
		}), nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}

// OpenSQLiteFromConfig opens the SQLite database in cfg.DataDir, creating
// the directory if needed.
func OpenSQLiteFromConfig(cfg config.StoreConfig) (*SQLiteStore, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir required for sqlite store")
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return NewSQLiteStore(filepath.Join(cfg.DataDir, DatabaseFile))
}

func newDynamoDBClient(ctx context.Context, cfg config.StoreConfig, awsCfg config.AWSConfig) (*dynamodb.Client, error) {
	sdkCfg, err := awsCfg.Load(ctx)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(sdkCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}
