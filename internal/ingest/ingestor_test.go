package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Janithmanodaya/pdf-relay/internal/domain"
)

type fakeArchiver struct {
	mu       sync.Mutex
	payloads map[string][]byte
}

func newFakeArchiver() *fakeArchiver {
	return &fakeArchiver{payloads: make(map[string][]byte)}
}

func (a *fakeArchiver) SaveIncomingPayload(msgID string, payload []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.payloads[msgID] = payload
	return "/archive/" + msgID + ".json", nil
}

func newTestIngestor(store *fakeStore, q *fakeEnqueuer, archiver PayloadArchiver) *Ingestor {
	coordinator := NewCoordinator(store, q, time.Minute, testLogger())
	return NewIngestor(store, coordinator, archiver, 180*time.Second, testLogger())
}

func TestHandleEvent_ImageEventIsBatched(t *testing.T) {
	store := newFakeStore()
	q := &fakeEnqueuer{}
	ing := newTestIngestor(store, q, nil)

	outcome, err := ing.HandleEvent(context.Background(), &Event{
		Sender:      "123@c.us",
		MsgID:       "msg-1",
		Timestamp:   time.Now(),
		Attachments: []string{`{"downloadUrl":"http://x/img.jpg"}`},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeBatched, outcome.Kind)
	assert.NotEmpty(t, outcome.JobID)
	assert.Equal(t, 1, store.mediaCount(outcome.JobID))
	assert.Equal(t, domain.JobStatusNew, store.jobStatus(outcome.JobID))
}

func TestHandleEvent_DuplicateDelivery(t *testing.T) {
	store := newFakeStore()
	q := &fakeEnqueuer{}
	ing := newTestIngestor(store, q, nil)
	ctx := context.Background()

	ev := &Event{
		Sender:      "123@c.us",
		MsgID:       "msg-1",
		Timestamp:   time.Now(),
		Attachments: []string{`{"downloadUrl":"http://x/img.jpg"}`},
	}

	first, err := ing.HandleEvent(ctx, ev, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeBatched, first.Kind)

	second, err := ing.HandleEvent(ctx, ev, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, second.Kind)
	assert.Equal(t, domain.ErrDuplicateEvent.Error(), second.Reason)

	// The redelivery attached nothing new.
	assert.Equal(t, 1, store.jobCount())
	assert.Equal(t, 1, store.mediaCount(first.JobID))
}

func TestHandleEvent_StaleEventDropped(t *testing.T) {
	store := newFakeStore()
	q := &fakeEnqueuer{}
	ing := newTestIngestor(store, q, nil)

	outcome, err := ing.HandleEvent(context.Background(), &Event{
		Sender:      "123@c.us",
		MsgID:       "msg-old",
		Timestamp:   time.Now().Add(-time.Hour),
		Attachments: []string{`{"downloadUrl":"http://x/img.jpg"}`},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSkipped, outcome.Kind)
	assert.Equal(t, domain.ErrStaleEvent.Error(), outcome.Reason)
	assert.Equal(t, 0, store.jobCount())
}

func TestHandleEvent_ZeroTimestampIsNotStale(t *testing.T) {
	store := newFakeStore()
	q := &fakeEnqueuer{}
	ing := newTestIngestor(store, q, nil)

	outcome, err := ing.HandleEvent(context.Background(), &Event{
		Sender:      "123@c.us",
		MsgID:       "msg-1",
		Attachments: []string{`{"downloadUrl":"http://x/img.jpg"}`},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBatched, outcome.Kind)
}

func TestHandleEvent_TextOnlyBecomesAuditJob(t *testing.T) {
	store := newFakeStore()
	q := &fakeEnqueuer{}
	ing := newTestIngestor(store, q, nil)

	outcome, err := ing.HandleEvent(context.Background(), &Event{
		Sender:    "123@c.us",
		MsgID:     "msg-1",
		Timestamp: time.Now(),
		Text:      "hello",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeAudited, outcome.Kind)
	assert.Equal(t, domain.JobStatusSent, store.jobStatus(outcome.JobID))
	assert.Equal(t, 0, store.mediaCount(outcome.JobID))

	store.mu.Lock()
	logs := store.logs[outcome.JobID]
	store.mu.Unlock()
	require.Len(t, logs, 1)
	assert.Equal(t, "info", logs[0].level)
}

func TestHandleEvent_TextDuringOpenBatchIsLogged(t *testing.T) {
	store := newFakeStore()
	q := &fakeEnqueuer{}
	ing := newTestIngestor(store, q, nil)
	ctx := context.Background()

	batched, err := ing.HandleEvent(ctx, &Event{
		Sender:      "123@c.us",
		MsgID:       "msg-1",
		Timestamp:   time.Now(),
		Attachments: []string{`{"downloadUrl":"http://x/img.jpg"}`},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeBatched, batched.Kind)

	outcome, err := ing.HandleEvent(ctx, &Event{
		Sender:    "123@c.us",
		MsgID:     "msg-2",
		Timestamp: time.Now(),
		Text:      "that is all",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAudited, outcome.Kind)

	// The text neither cancelled the batch nor joined it, but it left a
	// trace on the open job.
	openID, ok := ing.coordinator.OpenJobID("123@c.us")
	require.True(t, ok)
	assert.Equal(t, batched.JobID, openID)

	store.mu.Lock()
	openLogs := store.logs[batched.JobID]
	store.mu.Unlock()
	require.Len(t, openLogs, 1)
	assert.Contains(t, openLogs[0].message, "that is all")
}

func TestHandleEvent_ArchivesRawPayload(t *testing.T) {
	store := newFakeStore()
	q := &fakeEnqueuer{}
	archiver := newFakeArchiver()
	ing := newTestIngestor(store, q, archiver)

	payload := []byte(`{"typeWebhook":"incomingMessageReceived"}`)
	_, err := ing.HandleEvent(context.Background(), &Event{
		Sender:    "123@c.us",
		MsgID:     "msg-1",
		Timestamp: time.Now(),
		Text:      "hi",
	}, payload)
	require.NoError(t, err)

	archiver.mu.Lock()
	defer archiver.mu.Unlock()
	assert.Equal(t, payload, archiver.payloads["msg-1"])
}
