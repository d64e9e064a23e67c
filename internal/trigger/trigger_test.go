package trigger

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"gallery-go/internal/gallery"
)

// recordingProcessor records notifications and fails for keys listed in fail.
type recordingProcessor struct {
	seen   []gallery.Notification
	fail   map[string]error
	cancel func() // called after the first notification, if set
}

func (p *recordingProcessor) Handle(_ context.Context, n gallery.Notification) (gallery.Outcome, error) {
	p.seen = append(p.seen, n)
	if p.cancel != nil {
		p.cancel()
	}
	if err, ok := p.fail[n.Key]; ok {
		return gallery.OutcomeFailed, err
	}
	return gallery.OutcomeIndexed, nil
}

func batchJob(keys ...string) events.S3BatchJobEvent {
	job := events.S3BatchJobEvent{
		InvocationSchemaVersion: "1.0",
		InvocationID:            "inv-1",
	}
	for i, k := range keys {
		job.Tasks = append(job.Tasks, events.S3BatchJobTask{
			TaskID:      string(rune('a' + i)),
			S3Key:       k,
			S3BucketARN: "arn:aws:s3:::photos",
		})
	}
	return job
}

func TestBatchHandler_Handle(t *testing.T) {
	t.Run("reports one result per task", func(t *testing.T) {
		proc := &recordingProcessor{fail: map[string]error{"bad.jpg": errors.New("boom")}}
		h := NewBatchHandler(proc, gallery.NewNopLogger())

		resp, err := h.Handle(context.Background(), batchJob("good.jpg", "bad.jpg", "other.jpg"))
		if err != nil {
			t.Fatalf("Handle() error = %v", err)
		}

		if resp.InvocationSchemaVersion != "1.0" {
			t.Errorf("InvocationSchemaVersion = %q", resp.InvocationSchemaVersion)
		}
		if resp.TreatMissingKeysAs != ResultPermanentFailure {
			t.Errorf("TreatMissingKeysAs = %q", resp.TreatMissingKeysAs)
		}
		if resp.InvocationID != "inv-1" {
			t.Errorf("InvocationID = %q, want inv-1", resp.InvocationID)
		}

		want := []events.S3BatchJobResult{
			{TaskID: "a", ResultCode: ResultSucceeded, ResultString: "indexed"},
			{TaskID: "b", ResultCode: ResultPermanentFailure, ResultString: "boom"},
			{TaskID: "c", ResultCode: ResultSucceeded, ResultString: "indexed"},
		}
		if !slices.Equal(resp.Results, want) {
			t.Errorf("Results = %+v, want %+v", resp.Results, want)
		}

		if proc.seen[0].BucketARN != "arn:aws:s3:::photos" || proc.seen[0].Key != "good.jpg" {
			t.Errorf("notification = %+v", proc.seen[0])
		}
	})

	t.Run("remaining tasks are temporary failures after deadline", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		proc := &recordingProcessor{cancel: cancel}
		h := NewBatchHandler(proc, gallery.NewNopLogger())

		resp, err := h.Handle(ctx, batchJob("1.jpg", "2.jpg", "3.jpg"))
		if err != nil {
			t.Fatalf("Handle() error = %v", err)
		}

		codes := make([]string, len(resp.Results))
		for i, r := range resp.Results {
			codes[i] = r.ResultCode
		}
		want := []string{ResultSucceeded, ResultTemporaryFailure, ResultTemporaryFailure}
		if !slices.Equal(codes, want) {
			t.Errorf("result codes = %v, want %v", codes, want)
		}
		if len(proc.seen) != 1 {
			t.Errorf("processed %d tasks, want 1", len(proc.seen))
		}
	})

	t.Run("empty job", func(t *testing.T) {
		h := NewBatchHandler(&recordingProcessor{}, gallery.NewNopLogger())

		resp, err := h.Handle(context.Background(), batchJob())
		if err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		if resp.Results == nil || len(resp.Results) != 0 {
			t.Errorf("Results = %#v, want empty slice", resp.Results)
		}
	})
}

const s3Body = `{"Records":[
 {"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"photos","arn":"arn:aws:s3:::photos"},"object":{"key":"Takeout/Google+Photos/Trip/a.jpg","eTag":"abc"}}},
 {"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"photos","arn":"arn:aws:s3:::photos"},"object":{"key":"Takeout/Google+Photos/Trip/a.jpg.json","eTag":"def"}}}
]}`

func TestQueueHandler_Handle(t *testing.T) {
	t.Run("processes every record in order", func(t *testing.T) {
		proc := &recordingProcessor{}
		h := NewQueueHandler(proc, gallery.NewNopLogger())

		ev := events.SQSEvent{Records: []events.SQSMessage{
			{MessageId: "m1", Body: s3Body},
			{MessageId: "m2", Body: `{"Records":[{"s3":{"bucket":{"name":"other"},"object":{"key":"x.jpg"}}}]}`},
		}}
		if err := h.Handle(context.Background(), ev); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}

		var keys []string
		for _, n := range proc.seen {
			keys = append(keys, n.Bucket+":"+n.Key)
		}
		want := []string{
			"photos:Takeout/Google+Photos/Trip/a.jpg",
			"photos:Takeout/Google+Photos/Trip/a.jpg.json",
			"other:x.jpg",
		}
		if !slices.Equal(keys, want) {
			t.Errorf("notifications = %v, want %v", keys, want)
		}
	})

	t.Run("skips S3 test events", func(t *testing.T) {
		proc := &recordingProcessor{}
		h := NewQueueHandler(proc, gallery.NewNopLogger())

		body := `{"Service":"Amazon S3","Event":"s3:TestEvent","Time":"2024-01-01T00:00:00.000Z","Bucket":"photos"}`
		if err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{{MessageId: "t", Body: body}}}); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		if len(proc.seen) != 0 {
			t.Errorf("processed %d notifications, want 0", len(proc.seen))
		}
	})

	t.Run("first error aborts with message id", func(t *testing.T) {
		boom := errors.New("boom")
		proc := &recordingProcessor{fail: map[string]error{"Takeout/Google+Photos/Trip/a.jpg": boom}}
		h := NewQueueHandler(proc, gallery.NewNopLogger())

		ev := events.SQSEvent{Records: []events.SQSMessage{
			{MessageId: "m1", Body: s3Body},
			{MessageId: "m2", Body: s3Body},
		}}
		err := h.Handle(context.Background(), ev)
		if !errors.Is(err, boom) {
			t.Fatalf("Handle() error = %v, want boom", err)
		}
		if !strings.Contains(err.Error(), "m1") {
			t.Errorf("Handle() error = %q, want message id m1", err)
		}
		if len(proc.seen) != 1 {
			t.Errorf("processed %d notifications, want 1", len(proc.seen))
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		h := NewQueueHandler(&recordingProcessor{}, gallery.NewNopLogger())

		err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{{MessageId: "m9", Body: "not json"}}})
		if err == nil || !strings.Contains(err.Error(), "m9") {
			t.Errorf("Handle() error = %v, want decode error for m9", err)
		}
	})
}
