package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Janithmanodaya/pdf-relay/internal/deliver"
	"github.com/Janithmanodaya/pdf-relay/internal/domain"
)

// processJob runs one job through fetch, layout, and delivery. Job-level
// failures are persisted as FAILED plus a quarantine side effect and return
// nil so the message is acked; only infrastructure errors (store or broker
// trouble) come back as retryable errors for a requeue.
func (w *Worker) processJob(ctx context.Context, msg *domain.JobMessage) error {
	ctx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	job, err := w.store.GetJob(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			w.logger.Warn("Job not found, skipping",
				slog.String("job_id", msg.JobID),
			)
			return nil
		}
		return domain.NewRetryableError(err)
	}

	if err := w.store.UpdateStatus(ctx, job.JobID, domain.JobStatusProcessing); err != nil {
		return domain.NewRetryableError(err)
	}
	w.appendLog(ctx, job.JobID, "info", fmt.Sprintf("processing started with %d media item(s)", len(job.Media)))

	rawDir, err := w.layout.RawDir(job.Sender, job.JobID)
	if err != nil {
		w.failJob(ctx, job.JobID, job.Sender, "", err)
		return nil
	}

	localPaths, err := w.fetchMedia(ctx, job, rawDir)
	if err != nil {
		// A shutdown mid-download is not the sender's problem: leave the
		// job in PROCESSING and requeue so the next worker run retries it.
		if errors.Is(err, context.Canceled) {
			return domain.NewRetryableError(err)
		}
		w.failJob(ctx, job.JobID, job.Sender, rawDir, err)
		w.notifySender(ctx, job.Sender, "Sorry, your images could not be downloaded. Please try sending them again.")
		return nil
	}

	pdfPath, metaPath := w.layout.DocumentPaths(job.Sender, job.JobID)
	if err := w.composer.ComposeFiles(localPaths, pdfPath, metaPath); err != nil {
		w.failJob(ctx, job.JobID, job.Sender, rawDir, &domain.LayoutError{Err: err}, pdfPath, metaPath)
		w.notifySender(ctx, job.Sender, "Sorry, your images could not be read. Please try sending them again.")
		return nil
	}

	if err := w.store.UpdateDocumentPaths(ctx, job.JobID, pdfPath, metaPath); err != nil {
		return domain.NewRetryableError(err)
	}

	destination := w.adminDestination
	if destination == "" {
		destination = job.Sender
	}
	destination = deliver.NormalizeChatID(destination)

	caption := fmt.Sprintf("Document from %s (%d image(s))", job.Sender, len(localPaths))
	ack, err := w.sink.Deliver(ctx, destination, pdfPath, caption)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return domain.NewRetryableError(err)
		}
		// The document survives a delivery failure so an operator can
		// resend it; only the raw downloads move to quarantine.
		w.failJob(ctx, job.JobID, job.Sender, rawDir, err)
		return nil
	}

	if err := w.store.UpdateStatus(ctx, job.JobID, domain.JobStatusSent); err != nil {
		return domain.NewRetryableError(err)
	}
	w.appendLog(ctx, job.JobID, "info", fmt.Sprintf("delivered to %s, ack %s", destination, ack))

	w.logger.Info("Job completed",
		slog.String("job_id", job.JobID),
		slog.String("sender", job.Sender),
		slog.Int("media_count", len(localPaths)),
	)
	return nil
}

// fetchMedia downloads every media item that has no usable local path yet,
// in attachment order. The first item whose retry budget is exhausted fails
// the whole job: a partially illustrated document is worse than none.
func (w *Worker) fetchMedia(ctx context.Context, job *domain.Job, rawDir string) ([]string, error) {
	paths := make([]string, 0, len(job.Media))
	for _, m := range job.Media {
		if m.LocalPath != "" {
			if _, err := os.Stat(m.LocalPath); err == nil {
				paths = append(paths, m.LocalPath)
				continue
			}
			// local path recorded but the file is gone (quarantined or
			// cleaned up), download again
		}

		localPath, err := w.fetcher.Fetch(ctx, m.Descriptor, rawDir)
		if err != nil {
			return nil, err
		}
		if err := w.store.SetMediaLocalPath(ctx, m.ID, localPath); err != nil {
			w.logger.Warn("Failed to persist media local path",
				slog.String("job_id", job.JobID),
				slog.Int64("media_id", m.ID),
				slog.String("error", err.Error()),
			)
		}
		paths = append(paths, localPath)
	}
	return paths, nil
}

// failJob records a terminal failure: status FAILED, an error log entry,
// and the quarantine side effect. Store errors here are logged and
// swallowed so the original failure stays visible.
func (w *Worker) failJob(ctx context.Context, jobID, sender, rawDir string, cause error, extraPaths ...string) {
	w.logger.Error("Job failed",
		slog.String("job_id", jobID),
		slog.String("sender", sender),
		slog.String("error", cause.Error()),
	)

	if err := w.store.UpdateStatus(ctx, jobID, domain.JobStatusFailed); err != nil {
		w.logger.Error("Failed to persist FAILED status",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
	w.appendLog(ctx, jobID, "error", cause.Error())

	paths := append([]string{rawDir}, extraPaths...)
	if err := w.layout.QuarantineJob(jobID, paths...); err != nil {
		w.logger.Error("Failed to quarantine job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// notifySender sends a best-effort failure notice to the original sender.
func (w *Worker) notifySender(ctx context.Context, sender, message string) {
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	if err := w.sink.SendText(notifyCtx, deliver.NormalizeChatID(sender), message); err != nil {
		w.logger.Warn("Failed to notify sender",
			slog.String("sender", sender),
			slog.String("error", err.Error()),
		)
	}
}

func (w *Worker) appendLog(ctx context.Context, jobID, level, message string) {
	if err := w.store.AppendLog(ctx, jobID, level, message); err != nil {
		w.logger.Warn("Failed to append job log",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}
