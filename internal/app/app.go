// Package app assembles FileShelf from its configuration: it picks the state,
// blob and queue backends, loads persisted state, and runs the HTTP API next
// to the classification workers and the periodic save loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/FileShelf/internal/api"
	"github.com/dharsanguruparan/FileShelf/internal/classify"
	"github.com/dharsanguruparan/FileShelf/internal/config"
	"github.com/dharsanguruparan/FileShelf/internal/database"
	"github.com/dharsanguruparan/FileShelf/internal/logging"
	"github.com/dharsanguruparan/FileShelf/internal/metadata"
	"github.com/dharsanguruparan/FileShelf/internal/preference"
	"github.com/dharsanguruparan/FileShelf/internal/processing"
	"github.com/dharsanguruparan/FileShelf/internal/queue"
	"github.com/dharsanguruparan/FileShelf/internal/recommend"
	"github.com/dharsanguruparan/FileShelf/internal/repository"
	"github.com/dharsanguruparan/FileShelf/internal/s3storage"
	"github.com/dharsanguruparan/FileShelf/internal/server"
	"github.com/dharsanguruparan/FileShelf/internal/signing"
	"github.com/dharsanguruparan/FileShelf/internal/snapshot"
	"github.com/dharsanguruparan/FileShelf/internal/storage"
	"github.com/dharsanguruparan/FileShelf/internal/worker"
)

// App holds every long-lived FileShelf component.
type App struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Catalog     *storage.MemoryStore
	Blobs       storage.BlobStore
	Metadata    *metadata.Store
	Preferences *preference.Tracker
	Classifier  *classify.Classifier
	Engine      *recommend.Engine
	Signer      *signing.Signer
	Pipeline    *processing.Pipeline

	closers []func()
}

// New builds the application and loads persisted state. Failing to reach an
// explicitly configured backend is an error; a corrupt snapshot is only
// logged and leaves that collection empty.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	state, blobs, err := a.backends(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Blobs = blobs
	a.Catalog = storage.NewMemoryStore(state)
	a.Metadata = metadata.NewStore(state, logger)
	a.Preferences = preference.NewTracker(a.Metadata, state, logger)
	a.Engine = recommend.New(a.Metadata, a.Preferences)
	a.Signer = signing.NewSigner([]byte(cfg.SigningSecret))

	var capability classify.Capability
	if cfg.AI.Enabled() {
		chat, err := classify.NewOpenAI(ctx, classify.OpenAIConfig{
			APIKey:  cfg.AI.APIKey,
			BaseURL: cfg.AI.BaseURL,
			Model:   cfg.AI.Model,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init ai classifier: %w", err)
		}
		capability = chat
	}
	a.Classifier = classify.New(capability, classify.Options{
		Timeout:    cfg.AI.Timeout,
		RatePerSec: cfg.AI.RatePerSec,
		Burst:      cfg.AI.Burst,
	}, logger)

	a.Pipeline = processing.NewPipeline(processing.Deps{
		Catalog:      a.Catalog,
		Blobs:        a.Blobs,
		Classifier:   a.Classifier,
		Metadata:     a.Metadata,
		Preferences:  a.Preferences,
		ExcerptBytes: cfg.AI.ExcerptBytes,
	}, logger)

	a.load(ctx)
	return a, nil
}

func (a *App) backends(ctx context.Context) (snapshot.Backend, storage.BlobStore, error) {
	cfg := a.Config
	var s3 *s3storage.Storage
	needS3 := cfg.State.Backend == "s3" || cfg.Blob.Backend == "s3"
	if needS3 {
		st, err := s3storage.New(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := st.EnsureBuckets(ctx); err != nil {
			return nil, nil, fmt.Errorf("ensure buckets: %w", err)
		}
		s3 = st
	}

	var state snapshot.Backend
	switch cfg.State.Backend {
	case "postgres":
		pool, err := database.Connect(ctx, cfg.State.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return nil, nil, err
		}
		state = repository.NewSnapshotRepository(pool)
	case "s3":
		state = s3
	default:
		fb, err := snapshot.NewFileBackend(cfg.State.Dir)
		if err != nil {
			return nil, nil, err
		}
		state = fb
	}

	var blobs storage.BlobStore
	if cfg.Blob.Backend == "s3" {
		blobs = s3
	} else {
		disk, err := storage.NewDiskBlobs(cfg.Blob.Dir)
		if err != nil {
			return nil, nil, err
		}
		blobs = disk
	}
	return state, blobs, nil
}

func (a *App) load(ctx context.Context) {
	if err := a.Catalog.Load(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("load catalog, starting empty")
	}
	// The stores log their own load failures.
	_ = a.Metadata.Load(ctx)
	_ = a.Preferences.Load(ctx)
	a.Logger.Info().
		Int("files", a.Catalog.Stats().Files).
		Int("classified", a.Metadata.Len()).
		Int("users", a.Preferences.Len()).
		Bool("ai", a.Classifier.AIEnabled()).
		Msg("state loaded")
}

// Flush persists every collection.
func (a *App) Flush(ctx context.Context) error {
	catalogErr := a.Catalog.Flush(ctx)
	metadata.RecordFlush(snapshot.CollectionFiles, catalogErr)
	if catalogErr != nil {
		a.Logger.Error().Err(catalogErr).Msg("save catalog")
	}
	return errors.Join(catalogErr, a.Metadata.Flush(ctx), a.Preferences.Flush(ctx))
}

// Run serves HTTP and runs the classification workers until ctx is
// cancelled, then saves state one last time.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs, stopJobs, err := a.startJobs(runCtx)
	if err != nil {
		return err
	}

	handler := api.New(a.Config, api.Deps{
		Catalog:     a.Catalog,
		Blobs:       a.Blobs,
		Metadata:    a.Metadata,
		Preferences: a.Preferences,
		Engine:      a.Engine,
		Signer:      a.Signer,
		Jobs:        jobs,
	}, a.Logger).Routes()
	srv := server.New(a.Config.Address, handler, a.Logger)

	saverDone := make(chan struct{})
	go func() {
		defer close(saverDone)
		a.saveLoop(runCtx, a.Config.SaveInterval)
	}()
	backfillDone := make(chan struct{})
	go func() {
		defer close(backfillDone)
		a.backfill(runCtx, jobs)
	}()

	serveErr := srv.Serve(runCtx)
	cancel()
	<-backfillDone
	stopJobs()
	<-saverDone

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer flushCancel()
	if err := a.Flush(flushCtx); err != nil {
		a.Logger.Error().Err(err).Msg("final save")
	} else {
		a.Logger.Info().Msg("state saved")
	}
	return serveErr
}

// startJobs starts the configured job backend and returns its dispatcher and
// a function that blocks until it has stopped.
func (a *App) startJobs(ctx context.Context) (api.Dispatcher, func(), error) {
	logger := logging.Component(a.Logger, "jobs")
	if a.Config.Queue.Backend == "redis" {
		opt := asynq.RedisClientOpt{
			Addr:     a.Config.Queue.RedisAddr,
			Password: a.Config.Queue.RedisPassword,
			DB:       a.Config.Queue.RedisDB,
		}
		dispatcher := queue.NewDispatcher(opt)
		done := make(chan error, 1)
		go func() {
			done <- worker.Run(ctx, opt, a.Config.ProcessingPool, worker.NewProcessor(a.Pipeline, a.Logger))
		}()
		logger.Info().Str("redis", opt.Addr).Msg("classification jobs on redis")
		return dispatcher, func() {
			if err := <-done; err != nil {
				logger.Error().Err(err).Msg("worker stopped")
			}
			_ = dispatcher.Close()
		}, nil
	}
	proc := processing.New(a.Pipeline, a.Config.ProcessingPool, a.Logger)
	proc.Start(ctx)
	logger.Info().Int("workers", a.Config.ProcessingPool).Msg("classification jobs in process")
	return proc, proc.Wait, nil
}

// backfillRetry is how long backfill waits when the job queue is full.
var backfillRetry = 100 * time.Millisecond

// backfill queues a classification for every catalog entry that has no
// metadata record, such as uploads whose job could not be queued or was still
// buffered at the last shutdown. It returns the number of jobs queued.
func (a *App) backfill(ctx context.Context, jobs api.Dispatcher) int {
	logger := logging.Component(a.Logger, "backfill")
	queued := 0
	for _, rec := range a.Catalog.List() {
		if _, ok := a.Metadata.Get(rec.ID); ok {
			continue
		}
		job := processing.Job{FileID: rec.ID, UploaderID: rec.UploaderID}
		for {
			err := jobs.Enqueue(ctx, job)
			if err == nil {
				queued++
				break
			}
			if !errors.Is(err, processing.ErrQueueFull) {
				logger.Error().Err(err).Str("file_id", rec.ID).Msg("queue classification")
				break
			}
			select {
			case <-ctx.Done():
				logger.Warn().Int("queued", queued).Msg("backfill interrupted")
				return queued
			case <-time.After(backfillRetry):
			}
		}
	}
	if queued > 0 {
		logger.Info().Int("queued", queued).Msg("unclassified files queued")
	}
	return queued
}

func (a *App) saveLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Flush(ctx); err != nil {
				a.Logger.Warn().Err(err).Msg("periodic save failed")
			}
		}
	}
}

// Close releases backend connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
