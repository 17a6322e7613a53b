package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/Janithmanodaya/pdf-relay/internal/domain"
	"github.com/Janithmanodaya/pdf-relay/internal/jobstore"
)

// OutcomeKind classifies what HandleEvent did with an event.
type OutcomeKind string

const (
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeBatched OutcomeKind = "batched"
	OutcomeAudited OutcomeKind = "audited"
)

// Outcome reports the disposition of one event.
type Outcome struct {
	Kind   OutcomeKind
	JobID  string
	Reason string
}

// PayloadArchiver persists raw webhook bodies; satisfied by storage.Layout.
type PayloadArchiver interface {
	SaveIncomingPayload(msgID string, payload []byte) (string, error)
}

// Ingestor applies the stale and duplicate checks, then routes events with
// attachments to the coordinator and everything else to a trivial audit job.
type Ingestor struct {
	store       jobstore.Store
	coordinator *Coordinator
	archiver    PayloadArchiver
	maxEventAge time.Duration
	logger      *slog.Logger
}

// NewIngestor wires the ingestion pipeline. maxEventAge <= 0 selects the
// default of 180 seconds. archiver may be nil to skip payload archiving.
func NewIngestor(store jobstore.Store, coordinator *Coordinator, archiver PayloadArchiver, maxEventAge time.Duration, logger *slog.Logger) *Ingestor {
	if maxEventAge <= 0 {
		maxEventAge = 180 * time.Second
	}
	return &Ingestor{
		store:       store,
		coordinator: coordinator,
		archiver:    archiver,
		maxEventAge: maxEventAge,
		logger:      logger,
	}
}

// HandleEvent ingests one decoded event. rawPayload, when non-nil, is
// archived best effort before any other decision.
func (i *Ingestor) HandleEvent(ctx context.Context, ev *Event, rawPayload []byte) (Outcome, error) {
	if i.archiver != nil && rawPayload != nil {
		if _, err := i.archiver.SaveIncomingPayload(ev.MsgID, rawPayload); err != nil {
			i.logger.Warn("Failed to archive incoming payload",
				slog.String("msg_id", ev.MsgID),
				slog.String("error", err.Error()),
			)
		}
	}

	if !ev.Timestamp.IsZero() && time.Since(ev.Timestamp) > i.maxEventAge {
		i.logger.Debug("Stale event dropped",
			slog.String("msg_id", ev.MsgID),
			slog.Time("timestamp", ev.Timestamp),
		)
		return Outcome{Kind: OutcomeSkipped, Reason: domain.ErrStaleEvent.Error()}, nil
	}

	fresh, err := i.store.MarkProcessed(ctx, ev.MsgID)
	if err != nil {
		return Outcome{}, err
	}
	if !fresh {
		i.logger.Debug("Duplicate event dropped",
			slog.String("msg_id", ev.MsgID),
		)
		return Outcome{Kind: OutcomeSkipped, Reason: domain.ErrDuplicateEvent.Error()}, nil
	}

	if len(ev.Attachments) > 0 {
		jobID, err := i.coordinator.CreateOrAppend(ctx, ev.Sender, ev.MsgID, ev.Attachments)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: OutcomeBatched, JobID: jobID}, nil
	}

	// Text while a batch is open is informational only; it neither cancels
	// nor extends the window.
	if openID, ok := i.coordinator.OpenJobID(ev.Sender); ok {
		if err := i.store.AppendLog(ctx, openID, "info", "text message received while batch open: "+ev.Text); err != nil {
			i.logger.Warn("Failed to log text during open batch",
				slog.String("job_id", openID),
				slog.String("error", err.Error()),
			)
		}
	}

	jobID, err := i.store.CreateJob(ctx, ev.Sender, ev.MsgID, domain.JobStatusSent)
	if err != nil {
		return Outcome{}, err
	}
	if err := i.store.AppendLog(ctx, jobID, "info", "message had no attachments; recorded for audit"); err != nil {
		i.logger.Warn("Failed to log audit job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
	return Outcome{Kind: OutcomeAudited, JobID: jobID}, nil
}
