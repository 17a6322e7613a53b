package domain

import "time"

// Job represents one outgoing document: all images collected from a single
// sender within one debounce window.
type Job struct {
	JobID        string     `db:"job_id" json:"job_id"`
	Sender       string     `db:"sender" json:"sender"`
	MsgID        string     `db:"msg_id" json:"msg_id"`
	Status       string     `db:"status" json:"status"`
	DocumentPath string     `db:"document_path" json:"document_path,omitempty"`
	MetadataPath string     `db:"metadata_path" json:"metadata_path,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	Media        []MediaRef `db:"-" json:"media,omitempty"`
}

// MediaRef is one attachment belonging to a Job. Descriptor holds whatever
// the webhook delivered (JSON), sufficient for the media fetcher; LocalPath
// is populated after download and never cleared.
type MediaRef struct {
	ID         int64  `db:"id" json:"id"`
	JobID      string `db:"job_id" json:"job_id"`
	Descriptor string `db:"descriptor" json:"descriptor"` // JSON string
	LocalPath  string `db:"local_path" json:"local_path,omitempty"`
}

// LogEntry is one append-only structured log line attached to a job.
type LogEntry struct {
	ID        int64     `db:"id" json:"id"`
	JobID     string    `db:"job_id" json:"job_id"`
	Level     string    `db:"level" json:"level"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// JobMessage represents a job message from RabbitMQ
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`
}
