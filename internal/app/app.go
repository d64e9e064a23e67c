package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"

	"gallery-go/internal/config"
	"gallery-go/internal/gallery"
	"gallery-go/internal/model"
	"gallery-go/internal/objects"
	"gallery-go/internal/server"
	"gallery-go/internal/store"
	"gallery-go/internal/trigger"
)

// GalleryApp is the application layer between the CLI and the gallery Service.
// It constructs all dependencies from config, exposes high-level operations,
// and closes the stores and log file on Close.
type GalleryApp struct {
	cfg     *config.Config
	items   gallery.ItemStore
	objects gallery.ObjectStore
	logger  gallery.Logger
	ids     gallery.IDGenerator
	service *gallery.Service
	op      *Operation
	logFile *os.File
}

// Deps overrides pieces NewGalleryApp would otherwise build from config.
// Zero fields are built from config.
type Deps struct {
	Items   gallery.ItemStore
	Objects gallery.ObjectStore
	Clock   gallery.Clock
	IDs     gallery.IDGenerator
	Stderr  io.Writer
}

// NewGalleryApp creates a fully wired GalleryApp from the given config.
// command identifies the CLI command being run (e.g. "ingest", "serve").
// The caller must call Close when done.
func NewGalleryApp(ctx context.Context, cfg *config.Config, command string, deps Deps) (*GalleryApp, error) {
	if deps.Clock == nil {
		deps.Clock = gallery.RealClock{}
	}
	if deps.IDs == nil {
		deps.IDs = gallery.UUIDGenerator{}
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}

	loc, err := cfg.Ingest.Location()
	if err != nil {
		return nil, err
	}

	op := NewOperation(deps.IDs.New(), command, deps.Clock.Now())
	slogger, logFile, err := newLogger(deps.Stderr, cfg.Log.Dir, cfg.Log.Level, op.ID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	a := &GalleryApp{
		cfg:     cfg,
		items:   deps.Items,
		objects: deps.Objects,
		logger:  logger,
		ids:     deps.IDs,
		op:      op,
		logFile: logFile,
	}

	if a.objects == nil {
		a.objects, err = objects.NewObjectStoreFromConfig(ctx, cfg.Objects, cfg.AWS)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating object store: %w", err)
		}
	}
	if a.items == nil {
		a.items, err = store.NewItemStoreFromConfig(ctx, cfg.Store, cfg.AWS)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating item store: %w", err)
		}
	}

	a.service = gallery.NewService(a.items, a.objects, logger, deps.Clock, gallery.Options{
		ExportRoot:  cfg.Ingest.ExportRoot,
		Exclude:     cfg.Ingest.Exclude,
		Location:    loc,
		MaxAttempts: cfg.Ingest.MaxAttempts,
	})

	logger.Debug("gallery started", "command", command, "store", cfg.Store.Type, "objects", cfg.Objects.Type)
	return a, nil
}

// Operation returns the invocation being run.
func (a *GalleryApp) Operation() *Operation {
	return a.op
}

// IngestResult is the outcome of one ingested key.
type IngestResult struct {
	Key     string
	Outcome gallery.Outcome
	Err     error
}

// Ingest runs each raw (decoded) key in bucket through the coordinator.
// Every key is attempted; failures are reported per key.
func (a *GalleryApp) Ingest(ctx context.Context, bucket string, keys []string) []IngestResult {
	results := make([]IngestResult, 0, len(keys))
	for _, key := range keys {
		outcome, err := a.service.Handle(ctx, gallery.Notification{
			Bucket: bucket,
			Key:    gallery.EncodeKey(key),
		})
		results = append(results, IngestResult{Key: key, Outcome: outcome, Err: err})
	}
	return results
}

// Scan lists every object in bucket under prefix and runs them through the
// batch handler as one job, the way an S3 Batch Operations job over an
// inventory would. Result codes are tallied on the Operation.
func (a *GalleryApp) Scan(ctx context.Context, bucket, prefix string) (events.S3BatchJobResponse, error) {
	keys, err := a.objects.List(ctx, bucket, prefix)
	if err != nil {
		return events.S3BatchJobResponse{}, fmt.Errorf("listing %s: %w", bucket, err)
	}
	a.logger.Info("scanning", "bucket", bucket, "prefix", prefix, "objects", len(keys))

	job := events.S3BatchJobEvent{
		InvocationSchemaVersion: trigger.InvocationSchemaVersion,
		InvocationID:            a.op.ID,
		Tasks:                   make([]events.S3BatchJobTask, 0, len(keys)),
	}
	for _, key := range keys {
		job.Tasks = append(job.Tasks, events.S3BatchJobTask{
			TaskID:      a.ids.New(),
			S3Key:       gallery.EncodeKey(key),
			S3BucketARN: "arn:aws:s3:::" + bucket,
		})
	}

	resp, err := a.BatchHandler().Handle(ctx, job)
	if err != nil {
		return resp, err
	}
	for _, r := range resp.Results {
		a.op.Record(r.ResultCode)
	}
	return resp, nil
}

// Albums returns registered albums partitioned by namespace.
func (a *GalleryApp) Albums(ctx context.Context) (map[string][]string, error) {
	return a.service.ListAlbums(ctx)
}

// AlbumMembers returns the content hashes linked to album.
func (a *GalleryApp) AlbumMembers(ctx context.Context, album string) ([]string, error) {
	return a.service.AlbumMembers(ctx, album)
}

// GetItem returns one item, or nil if the hash is unknown.
func (a *GalleryApp) GetItem(ctx context.Context, contentHash string) (*model.Item, error) {
	return a.service.GetItem(ctx, contentHash)
}

// BatchHandler returns the S3 Batch Operations handler.
func (a *GalleryApp) BatchHandler() *trigger.BatchHandler {
	return trigger.NewBatchHandler(a.service, a.logger)
}

// QueueHandler returns the SQS notification handler.
func (a *GalleryApp) QueueHandler() *trigger.QueueHandler {
	return trigger.NewQueueHandler(a.service, a.logger)
}

// Router returns the read-only HTTP view.
func (a *GalleryApp) Router() http.Handler {
	return server.NewRouter(server.NewHandlers(a.service, a.logger))
}

// Logger returns the application logger.
func (a *GalleryApp) Logger() gallery.Logger {
	return a.logger
}

// Close closes the item store and the log file.
func (a *GalleryApp) Close() error {
	var firstErr error

	if a.items != nil {
		if err := a.items.Close(); err != nil {
			firstErr = fmt.Errorf("closing item store: %w", err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// Migrate applies pending schema migrations to the configured SQLite store.
func Migrate(cfg *config.Config) error {
	if cfg.Store.Type != "sqlite" {
		return fmt.Errorf("migrations apply only to the sqlite store, not %q", cfg.Store.Type)
	}

	s, err := store.OpenSQLiteFromConfig(cfg.Store)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	if err := s.MigrateUp(); err != nil {
		return err
	}
	return s.CheckMigrations()
}
