// Package jobstore is the durable record of jobs, their media references,
// and the processed-message ledger. It is the single source of truth for
// job state; concurrent status updates are serialized by the database.
package jobstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Janithmanodaya/pdf-relay/internal/domain"
)

// Store is the job persistence contract shared by the API service, the
// batching coordinator, and the worker pool.
type Store interface {
	CreateJob(ctx context.Context, sender, msgID, status string) (string, error)
	AddMedia(ctx context.Context, jobID, descriptor string) error
	SetMediaLocalPath(ctx context.Context, mediaID int64, localPath string) error
	UpdateStatus(ctx context.Context, jobID, status string) error
	UpdateDocumentPaths(ctx context.Context, jobID, documentPath, metadataPath string) error
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	ListJobs(ctx context.Context, sender, status string, limit int) ([]domain.Job, error)
	AppendLog(ctx context.Context, jobID, level, message string) error
	GetLogs(ctx context.Context, jobID string) ([]domain.LogEntry, error)
	MarkProcessed(ctx context.Context, msgID string) (bool, error)
}

// Storage implements Store on PostgreSQL.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
	newID  func() string
}

// NewStorage creates a new Storage instance. newID generates job ids; pass
// nil for the default (uuid).
func NewStorage(db *sqlx.DB, logger *slog.Logger, newID func() string) *Storage {
	if newID == nil {
		newID = defaultJobID
	}
	return &Storage{
		db:     db,
		logger: logger,
		newID:  newID,
	}
}

// CreateJob inserts a new job and returns its id.
func (s *Storage) CreateJob(ctx context.Context, sender, msgID, status string) (string, error) {
	jobID := s.newID()
	query := `
		INSERT INTO jobs (job_id, sender, msg_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`

	_, err := s.db.ExecContext(ctx, query, jobID, sender, msgID, status)
	if err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("Job created",
		slog.String("job_id", jobID),
		slog.String("sender", sender),
		slog.String("status", status),
	)

	return jobID, nil
}

// AddMedia appends one attachment descriptor to a job.
func (s *Storage) AddMedia(ctx context.Context, jobID, descriptor string) error {
	query := `
		INSERT INTO media (job_id, descriptor, created_at)
		VALUES ($1, $2, NOW())
	`

	_, err := s.db.ExecContext(ctx, query, jobID, descriptor)
	if err != nil {
		return fmt.Errorf("failed to add media: %w", err)
	}

	return nil
}

// SetMediaLocalPath records the downloaded location of one media item.
func (s *Storage) SetMediaLocalPath(ctx context.Context, mediaID int64, localPath string) error {
	query := `
		UPDATE media
		SET local_path = $1
		WHERE id = $2
	`

	_, err := s.db.ExecContext(ctx, query, localPath, mediaID)
	if err != nil {
		return fmt.Errorf("failed to set media local path: %w", err)
	}

	return nil
}

// UpdateStatus moves a job to the given status.
func (s *Storage) UpdateStatus(ctx context.Context, jobID, status string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    updated_at = NOW()
		WHERE job_id = $2
	`

	result, err := s.db.ExecContext(ctx, query, status, jobID)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrJobNotFound
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", status),
	)

	return nil
}

// UpdateDocumentPaths records the finished document and its metadata sidecar.
func (s *Storage) UpdateDocumentPaths(ctx context.Context, jobID, documentPath, metadataPath string) error {
	query := `
		UPDATE jobs
		SET document_path = $1,
		    metadata_path = $2,
		    updated_at = NOW()
		WHERE job_id = $3
	`

	_, err := s.db.ExecContext(ctx, query, documentPath, metadataPath, jobID)
	if err != nil {
		return fmt.Errorf("failed to update document paths: %w", err)
	}

	return nil
}

// GetJob loads one job with its media, or domain.ErrJobNotFound.
func (s *Storage) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		SELECT job_id, sender, msg_id, status,
		       COALESCE(document_path, '') AS document_path,
		       COALESCE(metadata_path, '') AS metadata_path,
		       created_at, updated_at
		FROM jobs
		WHERE job_id = $1
	`

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	mediaQuery := `
		SELECT id, job_id, descriptor, COALESCE(local_path, '') AS local_path
		FROM media
		WHERE job_id = $1
		ORDER BY id
	`

	if err := s.db.SelectContext(ctx, &job.Media, mediaQuery, jobID); err != nil {
		return nil, fmt.Errorf("failed to get job media: %w", err)
	}

	return &job, nil
}

// ListJobs returns recent jobs, newest first, optionally filtered by sender
// and status.
func (s *Storage) ListJobs(ctx context.Context, sender, status string, limit int) ([]domain.Job, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `
		SELECT job_id, sender, msg_id, status,
		       COALESCE(document_path, '') AS document_path,
		       COALESCE(metadata_path, '') AS metadata_path,
		       created_at, updated_at
		FROM jobs
		WHERE ($1 = '' OR sender = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`

	jobs := []domain.Job{}
	if err := s.db.SelectContext(ctx, &jobs, query, sender, status, limit); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// AppendLog attaches one structured log entry to a job.
func (s *Storage) AppendLog(ctx context.Context, jobID, level, message string) error {
	query := `
		INSERT INTO job_logs (job_id, level, message, created_at)
		VALUES ($1, $2, $3, NOW())
	`

	_, err := s.db.ExecContext(ctx, query, jobID, level, message)
	if err != nil {
		return fmt.Errorf("failed to append job log: %w", err)
	}

	return nil
}

// GetLogs returns a job's log entries in append order.
func (s *Storage) GetLogs(ctx context.Context, jobID string) ([]domain.LogEntry, error) {
	query := `
		SELECT id, job_id, level, message, created_at
		FROM job_logs
		WHERE job_id = $1
		ORDER BY id
	`

	logs := []domain.LogEntry{}
	if err := s.db.SelectContext(ctx, &logs, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to get job logs: %w", err)
	}

	return logs, nil
}

// MarkProcessed inserts msgID into the processed-message ledger. It returns
// false if the id was already present; the check and insert are one atomic
// statement so concurrent redeliveries of the same id cannot both win.
func (s *Storage) MarkProcessed(ctx context.Context, msgID string) (bool, error) {
	query := `
		INSERT INTO processed_messages (msg_id, processed_at)
		VALUES ($1, NOW())
		ON CONFLICT (msg_id) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query, msgID)
	if err != nil {
		return false, fmt.Errorf("failed to mark message processed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

func defaultJobID() string {
	return uuid.NewString()
}
