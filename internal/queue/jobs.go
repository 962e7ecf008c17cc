package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// IndexCVTask is enqueued after a submission whose CV is a PDF.
	IndexCVTask = "application:index_cv"
	// SweepOrphansTask is registered on the scheduler.
	SweepOrphansTask = "documents:sweep_orphans"
)

// IndexCVPayload tells the worker which stored CV belongs to which row.
type IndexCVPayload struct {
	ApplicationID int64  `json:"application_id"`
	CVFile        string `json:"cv_file"`
}

// SweepPayload configures one orphan sweep run.
type SweepPayload struct {
	DryRun bool `json:"dry_run"`
}

// NewIndexCVTask builds the extraction task.
func NewIndexCVTask(payload IndexCVPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(IndexCVTask, data, asynq.MaxRetry(3), asynq.Timeout(2*time.Minute)), nil
}

// NewSweepTask builds the orphan sweep task. Unique keeps overlapping
// scheduler ticks from queueing the same sweep twice.
func NewSweepTask(payload SweepPayload, interval time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(SweepOrphansTask, data, asynq.MaxRetry(1), asynq.Unique(interval)), nil
}

// Client enqueues background work for the API server.
type Client struct {
	client *asynq.Client
}

// NewClient connects to the Redis instance backing asynq.
func NewClient(opt asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(opt)}
}

// EnqueueIndexCV schedules text extraction for an application's CV.
func (c *Client) EnqueueIndexCV(ctx context.Context, applicationID int64, cvFile string) error {
	task, err := NewIndexCVTask(IndexCVPayload{ApplicationID: applicationID, CVFile: cvFile})
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue index task: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
