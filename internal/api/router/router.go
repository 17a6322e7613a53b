package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Janithmanodaya/pdf-relay/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbOK := deps.DBClient.HealthCheck(c.Request.Context()) == nil
		mqOK := deps.RabbitClient.IsConnected()
		if !dbOK || !mqOK {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"service":  deps.ServiceName,
			"database": dbOK,
			"rabbitmq": mqOK,
		})
	})

	relayHandler := handler.NewRelayHandler(deps)

	// Gateway webhook endpoint
	r.POST("/webhook", relayHandler.Webhook)

	// Operator API
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// GET /api/v1/jobs - List recent jobs
			jobs.GET("", relayHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Get job details with media
			jobs.GET("/:job_id", relayHandler.GetJob)

			// GET /api/v1/jobs/:job_id/logs - Get job log entries
			jobs.GET("/:job_id/logs", relayHandler.GetJobLogs)

			// GET /api/v1/jobs/:job_id/document - Download the composed PDF
			jobs.GET("/:job_id/document", relayHandler.DownloadDocument)

			// POST /api/v1/jobs/:job_id/resend - Re-enqueue a finished job
			jobs.POST("/:job_id/resend", relayHandler.ResendJob)
		}

		batches := v1.Group("/batches")
		{
			// POST /api/v1/batches/:sender/cancel - Abort an open batch
			batches.POST("/:sender/cancel", relayHandler.CancelBatch)
		}
	}

	return r
}
