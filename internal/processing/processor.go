// Package processing runs classification jobs. The Pipeline does the work for
// one file; the Processor is an in-process worker pool in front of it, built
// from goroutines and a buffered channel.
package processing

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrQueueFull is returned by Enqueue when the buffer has no room.
var ErrQueueFull = errors.New("processing queue full")

// Handler executes a single job.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// Processor consumes Jobs on a fixed number of goroutines.
type Processor struct {
	handler Handler
	queue   chan Job
	workers int
	wg      sync.WaitGroup
	logger  zerolog.Logger
}

// New builds a Processor with queue capacity tied to worker count.
func New(handler Handler, workers int, logger zerolog.Logger) *Processor {
	if workers <= 0 {
		workers = 1
	}
	return &Processor{
		handler: handler,
		// A buffered channel keeps uploads responsive while workers are busy.
		queue:   make(chan Job, workers*16),
		workers: workers,
		logger:  logger.With().Str("component", "processor").Logger(),
	}
}

// Start launches worker goroutines. They exit when ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Wait blocks until every worker has exited.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// Enqueue queues a job without blocking.
func (p *Processor) Enqueue(_ context.Context, job Job) error {
	select {
	case p.queue <- job:
		return nil
	default:
		p.logger.Warn().Str("file_id", job.FileID).Msg("processor queue full, dropping job")
		return ErrQueueFull
	}
}

func (p *Processor) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.queue:
			if err := p.handler.Handle(ctx, job); err != nil {
				p.logger.Error().Err(err).Str("file_id", job.FileID).Msg("classification job failed")
			}
		}
	}
}
