package gallery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gallery-go/internal/metrics"
	"gallery-go/internal/model"
)

// Outcome is the terminal state of one notification.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeIndexed
	OutcomeCorrelated
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeIndexed:
		return "indexed"
	case OutcomeCorrelated:
		return "correlated"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options tunes a Service. The zero value is usable.
type Options struct {
	ExportRoot  string         // substring every in-scope key contains; default DefaultExportRoot
	Exclude     []string       // glob patterns of keys to ignore; see KeyFilter
	Location    *time.Location // zone for date albums; nil means local time
	MaxAttempts int            // upsert bound; default DefaultMaxAttempts
	Strategies  []KeyStrategy  // sidecar resolution order; default DefaultStrategies
}

// Service is the ingestion coordinator. It classifies each notification,
// correlates sidecars with their media, and indexes media into the item
// store. It holds no per-notification state and is safe for concurrent use;
// correctness under concurrency rests on the store's conditional writes.
type Service struct {
	items      ItemStore
	objects    ObjectStore
	logger     Logger
	clock      Clock
	classifier Classifier
	deriver    AlbumDeriver
	correlator *Correlator
	upserter   *Upserter
	linker     *AlbumLinker
}

// NewService creates a Service with the provided dependencies.
func NewService(items ItemStore, objects ObjectStore, logger Logger, clock Clock, opts Options) *Service {
	classifier := NewClassifier(opts.ExportRoot, opts.Exclude...)
	return &Service{
		items:      items,
		objects:    objects,
		logger:     logger,
		clock:      clock,
		classifier: classifier,
		deriver:    NewAlbumDeriver(opts.Location),
		correlator: NewCorrelator(objects, classifier, opts.Strategies, logger),
		upserter:   NewUpserter(items, logger, opts.MaxAttempts),
		linker:     NewAlbumLinker(items, logger),
	}
}

// Handle processes one notification to a terminal outcome. Errors are
// returned only for OutcomeFailed; ignored keys and sidecars whose media
// cannot be indexed are successes.
func (s *Service) Handle(ctx context.Context, n Notification) (Outcome, error) {
	start := s.clock.Now()
	outcome, kind, err := s.handle(ctx, n)

	metrics.NotificationsTotal.WithLabelValues(outcome.String()).Inc()
	metrics.NotificationDuration.WithLabelValues(kind.String()).Observe(s.clock.Now().Sub(start).Seconds())
	return outcome, err
}

func (s *Service) handle(ctx context.Context, n Notification) (Outcome, Kind, error) {
	bucket, err := n.BucketName()
	if err != nil {
		return OutcomeFailed, KindIgnore, err
	}
	key, err := DecodeKey(n.Key)
	if err != nil {
		return OutcomeFailed, KindIgnore, err
	}

	kind := s.classifier.Classify(key)
	switch kind {
	case KindMedia:
		if err := s.IndexMedia(ctx, bucket, key, nil); err != nil {
			return OutcomeFailed, kind, err
		}
		return OutcomeIndexed, kind, nil

	case KindMetadata:
		if err := s.handleMetadata(ctx, bucket, key); err != nil {
			return OutcomeFailed, kind, err
		}
		return OutcomeCorrelated, kind, nil

	case KindUnsupported:
		s.logger.Info("discarding key, unsupported file type", "bucket", bucket, "key", key)
		return OutcomeIgnored, kind, nil

	default:
		s.logger.Info("discarding key, not under export root or excluded", "bucket", bucket, "key", key, "root", s.classifier.exportRoot)
		return OutcomeIgnored, kind, nil
	}
}

// handleMetadata correlates a sidecar and indexes its media. Only a sidecar
// that cannot be read or parsed fails; anything that goes wrong with the
// media it points at is logged and swallowed, since the media may arrive in
// a later event or never.
func (s *Service) handleMetadata(ctx context.Context, bucket, key string) error {
	s.logger.Debug("processing metadata", "bucket", bucket, "key", key)

	corr, err := s.correlator.Correlate(ctx, bucket, key)
	if err != nil {
		return err
	}

	switch corr.Status {
	case CorrelationSkip:
		s.logger.Info("metadata has no capture time", "key", key)
		return nil

	case CorrelationUnresolved:
		metrics.SoftCorrelationFailures.Inc()
		s.logger.Warn("could not locate media for metadata", "key", key, "error", errors.Join(corr.Misses...))
		return nil
	}

	captureTime := corr.CaptureTime
	if err := s.indexObject(ctx, corr.Media, &captureTime); err != nil {
		metrics.SoftCorrelationFailures.Inc()
		s.logger.Warn("could not index media for metadata", "key", key, "media", corr.Media.Key, "strategy", corr.Strategy, "error", err)
		return nil
	}

	s.logger.Info("correlated metadata", "key", key, "media", corr.Media.Key, "strategy", corr.Strategy)
	return nil
}

// IndexMedia heads the media object at bucket/key and indexes it.
func (s *Service) IndexMedia(ctx context.Context, bucket, key string, captureTime *int64) error {
	s.logger.Debug("locating media", "bucket", bucket, "key", key)

	info, err := s.objects.Head(ctx, bucket, key)
	if err != nil {
		return fmt.Errorf("locating media %s: %w", key, err)
	}
	return s.indexObject(ctx, info, captureTime)
}

// indexObject upserts the item for info and then links it into its albums.
// The upsert must finish first: fan-out requires the item to exist.
func (s *Service) indexObject(ctx context.Context, info *model.ObjectInfo, captureTime *int64) error {
	hash := ContentHash(info.ETag)
	if hash == "" {
		return fmt.Errorf("object %s has no ETag", info.Key)
	}

	albums := s.deriver.Derive(info.Key, captureTime)

	if _, err := s.Upsert(ctx, model.ItemUpdate{
		ContentHash: hash,
		ContentType: info.ContentType,
		Location:    info.Key,
		Album:       albums[0],
		CaptureTime: captureTime,
	}); err != nil {
		return err
	}

	return s.LinkToAlbums(ctx, hash, albums)
}

// Upsert inserts or updates an item; see Upserter.Upsert.
func (s *Service) Upsert(ctx context.Context, update model.ItemUpdate) (UpsertResult, error) {
	return s.upserter.Upsert(ctx, update)
}

// LinkToAlbums links an existing item into albums; see AlbumLinker.Link.
func (s *Service) LinkToAlbums(ctx context.Context, contentHash string, albums []string) error {
	return s.linker.Link(ctx, contentHash, albums)
}

// DeriveAlbums returns the albums an object key belongs to.
func (s *Service) DeriveAlbums(key string, captureTime *int64) []string {
	return s.deriver.Derive(key, captureTime)
}

// Classify returns the kind of a decoded object key.
func (s *Service) Classify(key string) Kind {
	return s.classifier.Classify(key)
}

// ListAlbums returns registered albums partitioned into the source and date
// namespaces.
func (s *Service) ListAlbums(ctx context.Context) (map[string][]string, error) {
	ids, err := s.items.ListAlbums(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing albums: %w", err)
	}
	return PartitionAlbums(ids)
}

// AlbumMembers returns the content hashes linked to album.
func (s *Service) AlbumMembers(ctx context.Context, album string) ([]string, error) {
	members, err := s.items.ListAlbumMembers(ctx, album)
	if err != nil {
		return nil, fmt.Errorf("listing members of %s: %w", album, err)
	}
	return members, nil
}

// GetItem returns the item for a content hash, or nil if there is none.
func (s *Service) GetItem(ctx context.Context, contentHash string) (*model.Item, error) {
	item, err := s.items.GetItem(ctx, contentHash)
	if err != nil {
		return nil, fmt.Errorf("getting item %s: %w", contentHash, err)
	}
	return item, nil
}
