package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Janithmanodaya/pdf-relay/internal/domain"
	"github.com/Janithmanodaya/pdf-relay/internal/ingest"
)

// Webhook handles POST /webhook
// Decodes one gateway notification and runs it through ingestion. Malformed
// bodies get a 200 so the gateway does not redeliver them forever.
func (h *RelayHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	ev, err := ingest.DecodeWebhook(body)
	if err != nil {
		h.logger.Warn("Undecodable webhook payload",
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusOK, gin.H{"result": "ignored"})
		return
	}

	outcome, err := h.ingestor.HandleEvent(c.Request.Context(), ev, body)
	if err != nil {
		h.logger.Error("Failed to handle event",
			slog.String("msg_id", ev.MsgID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to handle event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result": string(outcome.Kind),
		"reason": outcome.Reason,
		"job_id": outcome.JobID,
	})
}

// ListJobs handles GET /api/v1/jobs
// Lists recent jobs, optionally filtered by sender and status.
func (h *RelayHandler) ListJobs(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	jobs, err := h.store.ListJobs(c.Request.Context(), c.Query("sender"), c.Query("status"), limit)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *RelayHandler) GetJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	job, err := h.store.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// GetJobLogs handles GET /api/v1/jobs/:job_id/logs
func (h *RelayHandler) GetJobLogs(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	if _, err := h.store.GetJob(c.Request.Context(), jobID); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return
	}

	logs, err := h.store.GetLogs(c.Request.Context(), jobID)
	if err != nil {
		h.logger.Error("Failed to get job logs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id": jobID,
		"logs":   logs,
	})
}

// ResendJob handles POST /api/v1/jobs/:job_id/resend
// Re-enqueues a SENT or FAILED job. Media that still has a local file is
// not downloaded again.
func (h *RelayHandler) ResendJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	if _, err := h.store.GetJob(c.Request.Context(), jobID); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return
	}

	if err := h.store.UpdateStatus(c.Request.Context(), jobID, domain.JobStatusPending); err != nil {
		h.logger.Error("Failed to mark job pending", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resend job"})
		return
	}

	if err := h.queue.Enqueue(c.Request.Context(), jobID); err != nil {
		h.logger.Error("Failed to enqueue job for resend", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resend job"})
		return
	}

	h.logger.Info("Job resend requested",
		slog.String("job_id", jobID),
	)
	c.JSON(http.StatusAccepted, gin.H{
		"job_id": jobID,
		"status": domain.JobStatusPending,
	})
}

// DownloadDocument handles GET /api/v1/jobs/:job_id/document
func (h *RelayHandler) DownloadDocument(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	job, err := h.store.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return
	}

	if job.DocumentPath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "job has no document"})
		return
	}
	if _, err := os.Stat(job.DocumentPath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document file is missing"})
		return
	}

	c.FileAttachment(job.DocumentPath, jobID+".pdf")
}

// CancelBatch handles POST /api/v1/batches/:sender/cancel
// Explicit opt-out: aborts the sender's open debounce window. The abandoned
// job keeps its media for audit.
func (h *RelayHandler) CancelBatch(c *gin.Context) {
	sender := c.Param("sender")
	if sender == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sender is required"})
		return
	}

	jobID, ok := h.coordinator.Cancel(sender)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no open batch for sender"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sender": sender,
		"job_id": jobID,
		"result": "cancelled",
	})
}

func (h *RelayHandler) jobIDParam(c *gin.Context) (string, bool) {
	jobID := c.Param("job_id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id is required"})
		return "", false
	}
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id must be a valid UUID"})
		return "", false
	}
	return jobID, true
}
