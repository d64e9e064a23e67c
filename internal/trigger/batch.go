package trigger

import (
	"context"

	"github.com/aws/aws-lambda-go/events"

	"gallery-go/internal/gallery"
)

// S3 Batch Operations result codes and response settings.
const (
	ResultSucceeded        = "Succeeded"
	ResultTemporaryFailure = "TemporaryFailure"
	ResultPermanentFailure = "PermanentFailure"

	InvocationSchemaVersion = "1.0"
)

// Processor handles one normalized notification. *gallery.Service implements it.
type Processor interface {
	Handle(ctx context.Context, n gallery.Notification) (gallery.Outcome, error)
}

// BatchHandler answers S3 Batch Operations "invoke Lambda" jobs: one
// notification per task, one result per task.
type BatchHandler struct {
	processor Processor
	logger    gallery.Logger
}

// NewBatchHandler creates a BatchHandler.
func NewBatchHandler(processor Processor, logger gallery.Logger) *BatchHandler {
	return &BatchHandler{processor: processor, logger: logger}
}

// Handle processes the job's tasks in order. A failed task is reported as a
// permanent failure and does not stop the others. Once ctx is done, the
// remaining tasks are reported as temporary failures so the job retries them.
func (h *BatchHandler) Handle(ctx context.Context, job events.S3BatchJobEvent) (events.S3BatchJobResponse, error) {
	resp := events.S3BatchJobResponse{
		InvocationSchemaVersion: InvocationSchemaVersion,
		TreatMissingKeysAs:      ResultPermanentFailure,
		InvocationID:            job.InvocationID,
		Results:                 make([]events.S3BatchJobResult, 0, len(job.Tasks)),
	}

	for _, task := range job.Tasks {
		resp.Results = append(resp.Results, h.runTask(ctx, task))
	}
	return resp, nil
}

func (h *BatchHandler) runTask(ctx context.Context, task events.S3BatchJobTask) events.S3BatchJobResult {
	result := events.S3BatchJobResult{TaskID: task.TaskID}

	if ctx.Err() != nil {
		result.ResultCode = ResultTemporaryFailure
		result.ResultString = "invocation deadline reached"
		return result
	}

	outcome, err := h.processor.Handle(ctx, gallery.Notification{
		BucketARN: task.S3BucketARN,
		Key:       task.S3Key,
	})
	if err != nil {
		h.logger.Error("batch task failed", "task", task.TaskID, "key", task.S3Key, "error", err)
		result.ResultCode = ResultPermanentFailure
		result.ResultString = err.Error()
		return result
	}

	result.ResultCode = ResultSucceeded
	result.ResultString = outcome.String()
	return result
}
