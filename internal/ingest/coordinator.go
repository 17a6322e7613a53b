package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Janithmanodaya/pdf-relay/internal/domain"
	"github.com/Janithmanodaya/pdf-relay/internal/jobstore"
	"github.com/Janithmanodaya/pdf-relay/internal/queue"
)

const fireTimeout = 30 * time.Second

// pendingBatch is the open window for one sender. open is flipped under the
// coordinator lock, so a firing timer and a concurrent cancel cannot both
// act on the same batch.
type pendingBatch struct {
	jobID string
	timer *time.Timer
	open  bool
}

// Coordinator windows each sender's image burst into one job. It owns the
// pending-batch map; all transitions happen under a single lock.
type Coordinator struct {
	mu      sync.Mutex
	pending map[string]*pendingBatch

	store  jobstore.Store
	queue  queue.Enqueuer
	window time.Duration
	logger *slog.Logger
}

// NewCoordinator creates a coordinator with the given debounce window.
func NewCoordinator(store jobstore.Store, q queue.Enqueuer, window time.Duration, logger *slog.Logger) *Coordinator {
	if window <= 0 {
		window = 60 * time.Second
	}
	return &Coordinator{
		pending: make(map[string]*pendingBatch),
		store:   store,
		queue:   q,
		window:  window,
		logger:  logger,
	}
}

// CreateOrAppend attributes the attachments to the sender's open job,
// creating the job and starting the debounce timer on the first image. The
// timer is never restarted by later images: a sender gets one window
// measured from their first attachment.
func (c *Coordinator) CreateOrAppend(ctx context.Context, sender, msgID string, descriptors []string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pb, ok := c.pending[sender]; ok && pb.open {
		for _, d := range descriptors {
			if err := c.store.AddMedia(ctx, pb.jobID, d); err != nil {
				return "", err
			}
		}
		c.logger.Debug("Media appended to open batch",
			slog.String("sender", sender),
			slog.String("job_id", pb.jobID),
			slog.Int("count", len(descriptors)),
		)
		return pb.jobID, nil
	}

	jobID, err := c.store.CreateJob(ctx, sender, msgID, domain.JobStatusNew)
	if err != nil {
		return "", err
	}
	for _, d := range descriptors {
		if err := c.store.AddMedia(ctx, jobID, d); err != nil {
			return "", err
		}
	}

	c.pending[sender] = &pendingBatch{
		jobID: jobID,
		open:  true,
		timer: time.AfterFunc(c.window, func() { c.fire(sender, jobID) }),
	}
	c.logger.Info("Batch opened",
		slog.String("sender", sender),
		slog.String("job_id", jobID),
		slog.Duration("window", c.window),
	)
	return jobID, nil
}

// fire closes the sender's batch when the debounce timer expires. The open
// flag is checked under the lock, so firing is idempotent against a
// concurrent Cancel.
func (c *Coordinator) fire(sender, jobID string) {
	c.mu.Lock()
	pb, ok := c.pending[sender]
	if !ok || !pb.open || pb.jobID != jobID {
		c.mu.Unlock()
		return
	}
	pb.open = false
	delete(c.pending, sender)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	if err := c.store.UpdateStatus(ctx, jobID, domain.JobStatusPending); err != nil {
		c.logger.Error("Failed to move fired batch to PENDING",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := c.queue.Enqueue(ctx, jobID); err != nil {
		c.logger.Error("Failed to enqueue fired batch",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}
	c.logger.Info("Batch fired",
		slog.String("sender", sender),
		slog.String("job_id", jobID),
	)
}

// Cancel aborts the sender's open batch if any. The job keeps its attached
// media and stays in NEW for audit; nothing is enqueued. Returns the
// abandoned job id when a batch was open.
func (c *Coordinator) Cancel(sender string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pb, ok := c.pending[sender]
	if !ok {
		return "", false
	}
	pb.open = false
	pb.timer.Stop()
	delete(c.pending, sender)

	c.logger.Info("Batch cancelled",
		slog.String("sender", sender),
		slog.String("job_id", pb.jobID),
	)
	return pb.jobID, true
}

// OpenJobID returns the sender's open job id, if a batch is open.
func (c *Coordinator) OpenJobID(sender string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pb, ok := c.pending[sender]
	if !ok || !pb.open {
		return "", false
	}
	return pb.jobID, true
}
