package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Janithmanodaya/pdf-relay/internal/domain"
	"github.com/Janithmanodaya/pdf-relay/internal/storage"
)

// stubStore is an in-memory jobstore.Store tracking status transitions and
// job logs for processor assertions.
type stubStore struct {
	mu       sync.Mutex
	jobs     map[string]*domain.Job
	statuses map[string][]string
	logs     map[string][]string
	docPaths map[string][2]string

	updateStatusErr error
}

func newStubStore() *stubStore {
	return &stubStore{
		jobs:     make(map[string]*domain.Job),
		statuses: make(map[string][]string),
		logs:     make(map[string][]string),
		docPaths: make(map[string][2]string),
	}
}

func (s *stubStore) CreateJob(_ context.Context, _, _, _ string) (string, error) {
	return "", errors.New("not used")
}

func (s *stubStore) AddMedia(_ context.Context, _, _ string) error { return nil }

func (s *stubStore) SetMediaLocalPath(_ context.Context, mediaID int64, localPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		for i := range job.Media {
			if job.Media[i].ID == mediaID {
				job.Media[i].LocalPath = localPath
			}
		}
	}
	return nil
}

func (s *stubStore) UpdateStatus(_ context.Context, jobID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateStatusErr != nil {
		return s.updateStatusErr
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.Status = status
	s.statuses[jobID] = append(s.statuses[jobID], status)
	return nil
}

func (s *stubStore) UpdateDocumentPaths(_ context.Context, jobID, documentPath, metadataPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docPaths[jobID] = [2]string{documentPath, metadataPath}
	return nil
}

func (s *stubStore) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	clone := *job
	clone.Media = append([]domain.MediaRef(nil), job.Media...)
	return &clone, nil
}

func (s *stubStore) ListJobs(_ context.Context, _, _ string, _ int) ([]domain.Job, error) {
	return nil, nil
}

func (s *stubStore) AppendLog(_ context.Context, jobID, _, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[jobID] = append(s.logs[jobID], message)
	return nil
}

func (s *stubStore) GetLogs(_ context.Context, _ string) ([]domain.LogEntry, error) {
	return nil, nil
}

func (s *stubStore) MarkProcessed(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func (s *stubStore) statusHistory(jobID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.statuses[jobID]...)
}

// stubFetcher writes a placeholder file per descriptor, or fails.
type stubFetcher struct {
	err     error
	fetched int
}

func (f *stubFetcher) Fetch(ctx context.Context, descriptor, destDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &domain.FetchError{URL: descriptor, Err: err}
	}
	if f.err != nil {
		return "", f.err
	}
	f.fetched++
	path := filepath.Join(destDir, filepath.Base(descriptor))
	if err := os.WriteFile(path, []byte("image-bytes"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// stubComposer writes placeholder output files, or fails.
type stubComposer struct {
	err      error
	composed [][]string
}

func (c *stubComposer) ComposeFiles(paths []string, pdfPath, metaPath string) error {
	if c.err != nil {
		return c.err
	}
	c.composed = append(c.composed, paths)
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o644); err != nil {
		return err
	}
	return os.WriteFile(metaPath, []byte("{}"), 0o644)
}

// stubSink records deliveries and text notices.
type stubSink struct {
	deliverErr   error
	destinations []string
	documents    []string
	notices      []string
}

func (s *stubSink) Deliver(_ context.Context, destination, documentPath, _ string) (string, error) {
	if s.deliverErr != nil {
		return "", s.deliverErr
	}
	s.destinations = append(s.destinations, destination)
	s.documents = append(s.documents, documentPath)
	return "ack-1", nil
}

func (s *stubSink) SendText(_ context.Context, _, message string) error {
	s.notices = append(s.notices, message)
	return nil
}

type processorFixture struct {
	worker   *Worker
	store    *stubStore
	fetcher  *stubFetcher
	composer *stubComposer
	sink     *stubSink
	layout   *storage.Layout
	root     string
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()
	root := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fsLayout, err := storage.NewLayout(root, logger)
	require.NoError(t, err)

	store := newStubStore()
	fetcher := &stubFetcher{}
	composer := &stubComposer{}
	sink := &stubSink{}

	w := NewWorker(&Config{
		Logger:   logger,
		Store:    store,
		Fetcher:  fetcher,
		Composer: composer,
		Sink:     sink,
		Layout:   fsLayout,
	})

	return &processorFixture{
		worker:   w,
		store:    store,
		fetcher:  fetcher,
		composer: composer,
		sink:     sink,
		layout:   fsLayout,
		root:     root,
	}
}

func (f *processorFixture) addJob(jobID, sender string, descriptors ...string) {
	job := &domain.Job{
		JobID:  jobID,
		Sender: sender,
		Status: domain.JobStatusPending,
	}
	for i, d := range descriptors {
		job.Media = append(job.Media, domain.MediaRef{ID: int64(i + 1), JobID: jobID, Descriptor: d})
	}
	f.store.jobs[jobID] = job
}

func TestProcessJob_Success(t *testing.T) {
	f := newProcessorFixture(t)
	f.addJob("job-1", "94771234567@c.us", "a.jpg", "b.jpg")

	err := f.worker.processJob(context.Background(), &domain.JobMessage{JobID: "job-1"})
	require.NoError(t, err)

	assert.Equal(t, []string{domain.JobStatusProcessing, domain.JobStatusSent}, f.store.statusHistory("job-1"))
	assert.Equal(t, 2, f.fetcher.fetched)

	require.Len(t, f.sink.destinations, 1)
	assert.Equal(t, "94771234567@c.us", f.sink.destinations[0])

	// Document and sidecar were written and recorded.
	paths, ok := f.store.docPaths["job-1"]
	require.True(t, ok)
	assert.FileExists(t, paths[0])
	assert.FileExists(t, paths[1])

	// Delivery is noted in the job log.
	logs := f.store.logs["job-1"]
	require.NotEmpty(t, logs)
	assert.Contains(t, logs[len(logs)-1], "ack-1")
}

func TestProcessJob_AdminDestinationOverridesSender(t *testing.T) {
	f := newProcessorFixture(t)
	f.worker.adminDestination = "94770000000"
	f.addJob("job-1", "94771234567@c.us", "a.jpg")

	err := f.worker.processJob(context.Background(), &domain.JobMessage{JobID: "job-1"})
	require.NoError(t, err)

	require.Len(t, f.sink.destinations, 1)
	assert.Equal(t, "94770000000@c.us", f.sink.destinations[0])
}

func TestProcessJob_FetchFailureQuarantines(t *testing.T) {
	f := newProcessorFixture(t)
	f.addJob("job-1", "94771234567@c.us", "a.jpg")
	f.fetcher.err = &domain.FetchError{URL: "http://x/a.jpg", Err: errors.New("connection refused")}

	err := f.worker.processJob(context.Background(), &domain.JobMessage{JobID: "job-1"})
	require.NoError(t, err, "job-level failures are acked, not retried")

	assert.Equal(t, []string{domain.JobStatusProcessing, domain.JobStatusFailed}, f.store.statusHistory("job-1"))

	// No document, no delivery, but the sender was told.
	assert.Empty(t, f.sink.destinations)
	require.Len(t, f.sink.notices, 1)
	assert.Contains(t, f.sink.notices[0], "downloaded")

	// The raw dir moved under quarantine.
	assert.DirExists(t, filepath.Join(f.root, "quarantine", "job-1"))
}

func TestProcessJob_ShutdownLeavesJobProcessing(t *testing.T) {
	f := newProcessorFixture(t)
	f.addJob("job-1", "94771234567@c.us", "a.jpg")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.worker.processJob(ctx, &domain.JobMessage{JobID: "job-1"})
	require.Error(t, err)

	var retryable *domain.RetryableError
	assert.ErrorAs(t, err, &retryable)
	assert.True(t, f.worker.shouldRequeueJob(err))

	// The job stays in PROCESSING for the requeued message; nothing was
	// quarantined and the sender got no failure notice.
	assert.Equal(t, []string{domain.JobStatusProcessing}, f.store.statusHistory("job-1"))
	assert.Empty(t, f.sink.notices)
	assert.NoDirExists(t, filepath.Join(f.root, "quarantine", "job-1"))
}

func TestProcessJob_ComposeFailureQuarantines(t *testing.T) {
	f := newProcessorFixture(t)
	f.addJob("job-1", "94771234567@c.us", "a.jpg")
	f.composer.err = errors.New("decode failed")

	err := f.worker.processJob(context.Background(), &domain.JobMessage{JobID: "job-1"})
	require.NoError(t, err)

	assert.Equal(t, []string{domain.JobStatusProcessing, domain.JobStatusFailed}, f.store.statusHistory("job-1"))
	assert.Empty(t, f.sink.destinations)
	require.Len(t, f.sink.notices, 1)
	assert.Contains(t, f.sink.notices[0], "read")
}

func TestProcessJob_DeliveryFailureKeepsDocument(t *testing.T) {
	f := newProcessorFixture(t)
	f.addJob("job-1", "94771234567@c.us", "a.jpg")
	f.sink.deliverErr = &domain.DeliveryError{Err: errors.New("gateway 502")}

	err := f.worker.processJob(context.Background(), &domain.JobMessage{JobID: "job-1"})
	require.NoError(t, err)

	assert.Equal(t, []string{domain.JobStatusProcessing, domain.JobStatusFailed}, f.store.statusHistory("job-1"))

	// The finished document stays where it is for a manual resend.
	paths, ok := f.store.docPaths["job-1"]
	require.True(t, ok)
	assert.FileExists(t, paths[0])
}

func TestProcessJob_MissingJobIsAcked(t *testing.T) {
	f := newProcessorFixture(t)

	err := f.worker.processJob(context.Background(), &domain.JobMessage{JobID: "no-such-job"})
	assert.NoError(t, err)
	assert.Empty(t, f.sink.destinations)
}

func TestProcessJob_StoreFailureIsRetryable(t *testing.T) {
	f := newProcessorFixture(t)
	f.addJob("job-1", "94771234567@c.us", "a.jpg")
	f.store.updateStatusErr = errors.New("connection reset")

	err := f.worker.processJob(context.Background(), &domain.JobMessage{JobID: "job-1"})
	require.Error(t, err)

	var retryable *domain.RetryableError
	assert.ErrorAs(t, err, &retryable)
	assert.True(t, f.worker.shouldRequeueJob(err))
}

func TestProcessJob_ResendSkipsAlreadyDownloadedMedia(t *testing.T) {
	f := newProcessorFixture(t)
	f.addJob("job-1", "94771234567@c.us", "a.jpg")

	existing := filepath.Join(t.TempDir(), "a.jpg")
	require.NoError(t, os.WriteFile(existing, []byte("image-bytes"), 0o644))
	f.store.jobs["job-1"].Media[0].LocalPath = existing

	err := f.worker.processJob(context.Background(), &domain.JobMessage{JobID: "job-1"})
	require.NoError(t, err)

	assert.Equal(t, 0, f.fetcher.fetched, "existing download reused")
	require.Len(t, f.composer.composed, 1)
	assert.Equal(t, []string{existing}, f.composer.composed[0])
}

func TestShouldRequeueJob(t *testing.T) {
	f := newProcessorFixture(t)

	assert.True(t, f.worker.shouldRequeueJob(domain.NewRetryableError(errors.New("db down"))))
	assert.False(t, f.worker.shouldRequeueJob(&domain.FetchError{URL: "x", Err: errors.New("404")}))
	assert.False(t, f.worker.shouldRequeueJob(errors.New("plain")))
	assert.False(t, f.worker.shouldRequeueJob(nil))
}
