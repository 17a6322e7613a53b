// Package queue moves job ids between the batching coordinator and the
// worker pool over RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Janithmanodaya/pdf-relay/internal/domain"
	"github.com/Janithmanodaya/pdf-relay/shared/rabbitmq"
)

// Enqueuer pushes a job id onto the queue. The coordinator and the resend
// endpoint depend on this rather than on the broker client directly.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string) error
}

// Queue is the RabbitMQ-backed Enqueuer.
type Queue struct {
	client *rabbitmq.Client
	logger *slog.Logger
}

// NewQueue wraps an established RabbitMQ client.
func NewQueue(client *rabbitmq.Client, logger *slog.Logger) *Queue {
	return &Queue{
		client: client,
		logger: logger,
	}
}

// Enqueue publishes the job id with broker-side retry.
func (q *Queue) Enqueue(ctx context.Context, jobID string) error {
	body, err := json.Marshal(domain.JobMessage{JobID: jobID})
	if err != nil {
		return fmt.Errorf("failed to marshal job message: %w", err)
	}

	if err := q.client.PublishWithRetry(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish job message: %w", err)
	}

	q.logger.Info("Job enqueued",
		slog.String("job_id", jobID),
	)
	return nil
}
