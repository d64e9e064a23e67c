package trigger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"

	"gallery-go/internal/gallery"
)

// s3TestEvent is the body S3 sends once when a notification target is configured.
const s3TestEvent = "s3:TestEvent"

// QueueHandler consumes SQS messages whose bodies are S3 event notifications.
type QueueHandler struct {
	processor Processor
	logger    gallery.Logger
}

// NewQueueHandler creates a QueueHandler.
func NewQueueHandler(processor Processor, logger gallery.Logger) *QueueHandler {
	return &QueueHandler{processor: processor, logger: logger}
}

// Handle processes every record of every message in order. The first error
// stops the batch and is returned, so the messages go back to the queue.
func (h *QueueHandler) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, msg := range ev.Records {
		if err := h.handleMessage(ctx, msg); err != nil {
			return fmt.Errorf("message %s: %w", msg.MessageId, err)
		}
	}
	return nil
}

func (h *QueueHandler) handleMessage(ctx context.Context, msg events.SQSMessage) error {
	var probe struct {
		Event string `json:"Event"`
	}
	if err := json.Unmarshal([]byte(msg.Body), &probe); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}
	if probe.Event == s3TestEvent {
		h.logger.Info("skipping S3 test event", "message", msg.MessageId)
		return nil
	}

	var s3Event events.S3Event
	if err := json.Unmarshal([]byte(msg.Body), &s3Event); err != nil {
		return fmt.Errorf("decoding S3 event: %w", err)
	}

	for _, record := range s3Event.Records {
		n := gallery.Notification{
			Bucket:    record.S3.Bucket.Name,
			BucketARN: record.S3.Bucket.Arn,
			Key:       record.S3.Object.Key,
		}
		outcome, err := h.processor.Handle(ctx, n)
		if err != nil {
			return err
		}
		h.logger.Debug("processed record", "message", msg.MessageId, "key", n.Key, "outcome", outcome.String())
	}
	return nil
}
