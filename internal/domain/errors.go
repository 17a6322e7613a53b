package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrStaleEvent marks an incoming event older than the configured
	// maximum age; ingestion skips it
	ErrStaleEvent = errors.New("stale event")

	// ErrDuplicateEvent marks a message id that has already been attributed
	// to a job; ingestion skips the redelivery
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrEmptyInput is returned when layout is asked to compose zero
	// readable images
	ErrEmptyInput = errors.New("no valid images to compose")
)

// RetryableError wraps transient infrastructure errors that should trigger
// a queue requeue rather than failing the job.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// FetchError wraps a media download failure after the retry budget is
// exhausted. It fails the whole job.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return "fetch failed for " + e.URL + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// LayoutError wraps a failure to produce any document page.
type LayoutError struct {
	Err error
}

func (e *LayoutError) Error() string {
	return "layout failed: " + e.Err.Error()
}

func (e *LayoutError) Unwrap() error {
	return e.Err
}

// DeliveryError wraps a failure to hand a finished document to the sink.
// The document artifact is retained for manual resend.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return "delivery failed: " + e.Err.Error()
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
