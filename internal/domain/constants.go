package domain

// Job status constants
const (
	JobStatusNew        = "NEW"
	JobStatusPending    = "PENDING"
	JobStatusProcessing = "PROCESSING"
	JobStatusSent       = "SENT"
	JobStatusFailed     = "FAILED"
)
