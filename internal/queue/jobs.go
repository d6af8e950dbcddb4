// Package queue enqueues classification jobs on Redis through asynq, for
// deployments that run more than one FileShelf process.
package queue

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/FileShelf/internal/processing"
)

const (
	// ClassifyFileTask is scheduled each time a file is uploaded.
	ClassifyFileTask = "file:classify"
)

// NewClassifyTask serializes job into an asynq task.
func NewClassifyTask(job processing.Job) (*asynq.Task, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(ClassifyFileTask, data), nil
}

// EnqueueClassify enqueues a classification job.
func EnqueueClassify(ctx context.Context, client *asynq.Client, job processing.Job) error {
	task, err := NewClassifyTask(job)
	if err != nil {
		return err
	}
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue classify task: %w", err)
	}
	return nil
}

// DecodeClassify reads the job back out of a task payload.
func DecodeClassify(task *asynq.Task) (processing.Job, error) {
	var job processing.Job
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return processing.Job{}, fmt.Errorf("decode payload: %w", err)
	}
	if job.FileID == "" {
		return processing.Job{}, fmt.Errorf("decode payload: missing file_id")
	}
	return job, nil
}

// Dispatcher hands jobs to Redis. It satisfies the same Enqueue contract as
// the in-process processing.Processor.
type Dispatcher struct {
	client *asynq.Client
}

// NewDispatcher connects an asynq client.
func NewDispatcher(opt asynq.RedisClientOpt) *Dispatcher {
	return &Dispatcher{client: asynq.NewClient(opt)}
}

// Enqueue implements the job dispatch contract.
func (d *Dispatcher) Enqueue(ctx context.Context, job processing.Job) error {
	return EnqueueClassify(ctx, d.client, job)
}

// Close releases the Redis connection.
func (d *Dispatcher) Close() error {
	return d.client.Close()
}
