package postgresql

import (
	"context"
	"fmt"
)

// schema is applied idempotently on service startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		job_id        TEXT PRIMARY KEY,
		sender        TEXT NOT NULL,
		msg_id        TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL,
		document_path TEXT,
		metadata_path TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_sender ON jobs (sender)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status)`,
	`CREATE TABLE IF NOT EXISTS media (
		id         BIGSERIAL PRIMARY KEY,
		job_id     TEXT NOT NULL REFERENCES jobs (job_id) ON DELETE CASCADE,
		descriptor TEXT NOT NULL,
		local_path TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_media_job_id ON media (job_id)`,
	`CREATE TABLE IF NOT EXISTS job_logs (
		id         BIGSERIAL PRIMARY KEY,
		job_id     TEXT NOT NULL,
		level      TEXT NOT NULL,
		message    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_job_logs_job_id ON job_logs (job_id)`,
	`CREATE TABLE IF NOT EXISTS processed_messages (
		msg_id       TEXT PRIMARY KEY,
		processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (c *Client) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	c.logger.Info("Database schema ensured")
	return nil
}
