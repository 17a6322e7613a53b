package handler

import (
	"log/slog"

	"github.com/Janithmanodaya/pdf-relay/internal/ingest"
	"github.com/Janithmanodaya/pdf-relay/internal/jobstore"
	"github.com/Janithmanodaya/pdf-relay/internal/queue"
	"github.com/Janithmanodaya/pdf-relay/shared/postgresql"
	"github.com/Janithmanodaya/pdf-relay/shared/rabbitmq"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	DBClient     *postgresql.Client
	RabbitClient *rabbitmq.Client
	Store        jobstore.Store
	Ingestor     *ingest.Ingestor
	Coordinator  *ingest.Coordinator
	Queue        queue.Enqueuer
	ServiceName  string
}

// RelayHandler handles webhook ingestion and the operator API
type RelayHandler struct {
	logger      *slog.Logger
	store       jobstore.Store
	ingestor    *ingest.Ingestor
	coordinator *ingest.Coordinator
	queue       queue.Enqueuer
}

// NewRelayHandler creates a new RelayHandler instance
func NewRelayHandler(deps *Dependencies) *RelayHandler {
	return &RelayHandler{
		logger:      deps.Logger,
		store:       deps.Store,
		ingestor:    deps.Ingestor,
		coordinator: deps.Coordinator,
		queue:       deps.Queue,
	}
}
