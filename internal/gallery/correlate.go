package gallery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gallery-go/internal/model"
)

// Sidecar is the subset of a Google Photos JSON sidecar the engine reads.
type Sidecar struct {
	Title          string     `json:"title"`
	PhotoTakenTime *TimeBlock `json:"photoTakenTime"`
}

// TimeBlock is a nested timestamp block of a sidecar.
type TimeBlock struct {
	Timestamp Timestamp `json:"timestamp"`
}

// Timestamp is a unix-seconds value that exports write either as a JSON
// string ("1581790238") or a JSON number. Anything that is not an integer
// leaves it invalid.
type Timestamp struct {
	Seconds int64
	Valid   bool
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}

	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*t = Timestamp{}
			return nil
		}
	}

	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// Unreadable values ("1581790238.0", "yesterday") count as no
		// capture time rather than failing the whole sidecar.
		*t = Timestamp{}
		return nil
	}
	*t = Timestamp{Seconds: seconds, Valid: true}
	return nil
}

// CaptureTime returns the capture timestamp, if the sidecar has one.
func (s *Sidecar) CaptureTime() (int64, bool) {
	if s.PhotoTakenTime == nil || !s.PhotoTakenTime.Timestamp.Valid {
		return 0, false
	}
	return s.PhotoTakenTime.Timestamp.Seconds, true
}

// KeyStrategy proposes a media key for a sidecar. It reports false when it
// has no candidate for this sidecar.
type KeyStrategy struct {
	Name    string
	Resolve func(metadataKey string, sidecar *Sidecar) (string, bool)
}

// DefaultStrategies are tried in order: the sidecar's title next to the
// sidecar, then the sidecar key without its .json suffix.
var DefaultStrategies = []KeyStrategy{
	{Name: "title", Resolve: keyFromTitle},
	{Name: "strip-suffix", Resolve: keyWithoutSuffix},
}

// keyFromTitle replaces the final path segment of the sidecar key with its title.
func keyFromTitle(metadataKey string, sidecar *Sidecar) (string, bool) {
	if sidecar.Title == "" {
		return "", false
	}
	i := strings.LastIndex(metadataKey, "/")
	if i <= 0 {
		return "", false
	}
	return metadataKey[:i+1] + sidecar.Title, true
}

// keyWithoutSuffix strips the trailing .json from the sidecar key.
func keyWithoutSuffix(metadataKey string, _ *Sidecar) (string, bool) {
	if !strings.HasSuffix(strings.ToLower(metadataKey), ".json") {
		return "", false
	}
	return metadataKey[:len(metadataKey)-len(".json")], true
}

// CorrelationStatus is the tagged result of correlating a sidecar.
type CorrelationStatus int

const (
	// CorrelationSkip means the sidecar has no capture time; it describes
	// something other than a photo.
	CorrelationSkip CorrelationStatus = iota
	// CorrelationResolved means a companion media object was found.
	CorrelationResolved
	// CorrelationUnresolved means no strategy located a media object.
	CorrelationUnresolved
)

func (s CorrelationStatus) String() string {
	switch s {
	case CorrelationSkip:
		return "skip"
	case CorrelationResolved:
		return "resolved"
	case CorrelationUnresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}

// Correlation is the outcome of Correlator.Correlate.
type Correlation struct {
	Status      CorrelationStatus
	CaptureTime int64
	Strategy    string            // strategy that resolved the media key
	Media       *model.ObjectInfo // set when Status is CorrelationResolved
	Misses      []error           // one entry per strategy that failed to resolve
}

// Correlator locates the media object a sidecar describes.
type Correlator struct {
	objects    ObjectStore
	classifier Classifier
	strategies []KeyStrategy
	logger     Logger
}

// NewCorrelator creates a Correlator. A nil strategies slice selects DefaultStrategies.
func NewCorrelator(objects ObjectStore, classifier Classifier, strategies []KeyStrategy, logger Logger) *Correlator {
	if strategies == nil {
		strategies = DefaultStrategies
	}
	return &Correlator{
		objects:    objects,
		classifier: classifier,
		strategies: strategies,
		logger:     logger,
	}
}

// Correlate reads the sidecar at bucket/key and resolves its media companion.
// Errors are returned only when the sidecar itself cannot be read or parsed;
// a missing companion is reported as CorrelationUnresolved.
func (c *Correlator) Correlate(ctx context.Context, bucket, key string) (*Correlation, error) {
	body, err := c.objects.Get(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("reading metadata %s: %w", key, err)
	}

	var sidecar Sidecar
	if err := json.Unmarshal(body, &sidecar); err != nil {
		return nil, fmt.Errorf("parsing metadata %s: %w", key, err)
	}

	captureTime, ok := sidecar.CaptureTime()
	if !ok {
		return &Correlation{Status: CorrelationSkip}, nil
	}

	result := &Correlation{Status: CorrelationUnresolved, CaptureTime: captureTime}
	tried := make(map[string]bool, len(c.strategies))

	for _, strategy := range c.strategies {
		candidate, ok := strategy.Resolve(key, &sidecar)
		if !ok {
			result.Misses = append(result.Misses, fmt.Errorf("%s: no candidate", strategy.Name))
			continue
		}
		if tried[candidate] {
			continue
		}
		tried[candidate] = true

		info, err := c.lookup(ctx, bucket, candidate)
		if err != nil {
			c.logger.Debug("media candidate not usable", "strategy", strategy.Name, "key", candidate, "error", err)
			result.Misses = append(result.Misses, fmt.Errorf("%s: %w", strategy.Name, err))
			continue
		}

		result.Status = CorrelationResolved
		result.Strategy = strategy.Name
		result.Media = info
		return result, nil
	}

	return result, nil
}

// lookup accepts a candidate only if it classifies as media and exists.
func (c *Correlator) lookup(ctx context.Context, bucket, key string) (*model.ObjectInfo, error) {
	if kind := c.classifier.Classify(key); kind != KindMedia {
		return nil, fmt.Errorf("candidate %s classified as %s", key, kind)
	}
	info, err := c.objects.Head(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("looking up candidate %s: %w", key, err)
	}
	return info, nil
}
