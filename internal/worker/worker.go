// Package worker consumes queued job ids and turns each job into a
// delivered document: fetch every media item, compose the pages, hand the
// PDF to the delivery sink, and record the final status. A single job's
// failure never stops the loop.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Janithmanodaya/pdf-relay/internal/deliver"
	"github.com/Janithmanodaya/pdf-relay/internal/domain"
	"github.com/Janithmanodaya/pdf-relay/internal/jobstore"
	"github.com/Janithmanodaya/pdf-relay/internal/storage"
	"github.com/Janithmanodaya/pdf-relay/shared/rabbitmq"
)

// Fetcher retrieves one media item into destDir; see internal/fetch.
type Fetcher interface {
	Fetch(ctx context.Context, descriptor, destDir string) (string, error)
}

// Composer renders a set of local image files into a document; see
// internal/layout.
type Composer interface {
	ComposeFiles(paths []string, pdfPath, metaPath string) error
}

// Config holds worker configuration
type Config struct {
	Logger           *slog.Logger
	RabbitClient     *rabbitmq.Client
	Store            jobstore.Store
	Fetcher          Fetcher
	Composer         Composer
	Sink             deliver.Sink
	Layout           *storage.Layout
	AdminDestination string
	Concurrency      int
	PrefetchCount    int
	JobTimeout       time.Duration
	QueueName        string
}

// Worker represents the background job worker
type Worker struct {
	logger           *slog.Logger
	rabbitClient     *rabbitmq.Client
	store            jobstore.Store
	fetcher          Fetcher
	composer         Composer
	sink             deliver.Sink
	layout           *storage.Layout
	adminDestination string
	concurrency      int
	prefetchCount    int
	jobTimeout       time.Duration
	queueName        string
	workerID         string

	jobsChan chan *domain.JobMessage
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}
	jobTimeout := cfg.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = 10 * time.Minute
	}

	hostname, _ := os.Hostname()
	return &Worker{
		logger:           cfg.Logger,
		rabbitClient:     cfg.RabbitClient,
		store:            cfg.Store,
		fetcher:          cfg.Fetcher,
		composer:         cfg.Composer,
		sink:             cfg.Sink,
		layout:           cfg.Layout,
		adminDestination: cfg.AdminDestination,
		concurrency:      concurrency,
		prefetchCount:    prefetch,
		jobTimeout:       jobTimeout,
		queueName:        cfg.QueueName,
		workerID:         fmt.Sprintf("worker-%s-%d", hostname, os.Getpid()),
		jobsChan:         make(chan *domain.JobMessage),
		stopChan:         make(chan struct{}),
	}
}

// Start begins processing jobs. It blocks until the context is canceled or
// the broker's delivery channel closes.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return fmt.Errorf("failed to setup consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)
	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
