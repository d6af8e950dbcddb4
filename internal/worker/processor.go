// Package worker consumes classification tasks from asynq and runs them
// through the processing pipeline.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/FileShelf/internal/processing"
	"github.com/dharsanguruparan/FileShelf/internal/queue"
	"github.com/dharsanguruparan/FileShelf/internal/storage"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	handler processing.Handler
	logger  zerolog.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(handler processing.Handler, logger zerolog.Logger) *Processor {
	return &Processor{handler: handler, logger: logger.With().Str("component", "worker").Logger()}
}

// Handler registers the classify job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ClassifyFileTask, p.handleClassify)
	return mux
}

func (p *Processor) handleClassify(ctx context.Context, task *asynq.Task) error {
	job, err := queue.DecodeClassify(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err := p.handler.Handle(ctx, job); err != nil {
		p.logger.Error().Err(err).Str("file_id", job.FileID).Msg("classify failed")
		if errors.Is(err, storage.ErrNotFound) {
			// The file is gone; retrying cannot help.
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}

// Run serves tasks until ctx is cancelled.
func Run(ctx context.Context, opt asynq.RedisClientOpt, concurrency int, p *Processor) error {
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Logger:      asynqLogger{p.logger},
	})
	if err := server.Start(p.Handler()); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	<-ctx.Done()
	server.Shutdown()
	return nil
}

// asynqLogger routes asynq's own logging into zerolog.
type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...interface{}) { a.l.Fatal().Msg(fmt.Sprint(args...)) }
