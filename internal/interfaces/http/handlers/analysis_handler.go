package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/turtacn/RxDossier/internal/domain/candidate"
	"github.com/turtacn/RxDossier/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/pkg/errors"
)

// Runner executes one enrichment run.
type Runner interface {
	Run(ctx context.Context, documentID string, candidates []candidate.Candidate) (*candidate.Report, error)
}

// JobQueue accepts asynchronous analysis jobs.
type JobQueue interface {
	Publish(ctx context.Context, topic, key, eventType string, payload interface{}) error
}

// AnalysisRequest is the submission body.
type AnalysisRequest struct {
	DocumentID string                `json:"document_id" binding:"required"`
	Candidates []candidate.Candidate `json:"candidates" binding:"required"`
	// Async queues the job instead of running it inline.
	Async bool `json:"async"`
}

// AnalysisAccepted is returned for queued jobs.
type AnalysisAccepted struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// AnalysisHandler serves analysis submissions.
type AnalysisHandler struct {
	runner Runner
	repo   candidate.ReportRepository
	queue  JobQueue
	logger logging.Logger
}

// NewAnalysisHandler constructs the handler. repo and queue may be nil;
// a nil repo skips persistence, a nil queue disables async submission.
func NewAnalysisHandler(runner Runner, repo candidate.ReportRepository, queue JobQueue, logger logging.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		runner: runner,
		repo:   repo,
		queue:  queue,
		logger: logger.Named("analysis_handler"),
	}
}

// Submit handles POST /api/v1/analyses.
func (h *AnalysisHandler) Submit(c *gin.Context) {
	var req AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeValidation, "invalid analysis request"))
		return
	}
	if len(req.Candidates) == 0 {
		respondError(c, errors.New(errors.ErrCodeRunInputInvalid, "candidate list is empty"))
		return
	}

	if req.Async {
		h.submitAsync(c, req)
		return
	}

	report, err := h.runner.Run(c.Request.Context(), req.DocumentID, req.Candidates)
	if err != nil {
		respondError(c, err)
		return
	}

	if h.repo != nil {
		if err := h.repo.Save(c.Request.Context(), report); err != nil {
			// The caller still gets the report; persistence is recoverable
			// by re-running.
			h.logger.Warn("failed to persist report",
				logging.String("run_id", report.RunID),
				logging.Err(err),
			)
		}
	}

	c.JSON(http.StatusOK, report)
}

func (h *AnalysisHandler) submitAsync(c *gin.Context, req AnalysisRequest) {
	if h.queue == nil {
		respondError(c, errors.New(errors.ErrCodeServiceUnavailable, "async analysis is not configured"))
		return
	}

	jobID := uuid.NewString()
	payload := kafka.AnalysisRequestPayload{
		JobID:       jobID,
		DocumentID:  req.DocumentID,
		Candidates:  req.Candidates,
		SubmittedAt: time.Now().UTC(),
	}
	if err := h.queue.Publish(c.Request.Context(), kafka.TopicAnalysisRequest, req.DocumentID, "analysis.requested", payload); err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("analysis job queued",
		logging.String("job_id", jobID),
		logging.String("document_id", req.DocumentID),
		logging.Int("candidates", len(req.Candidates)),
	)
	c.JSON(http.StatusAccepted, AnalysisAccepted{JobID: jobID, Status: "queued"})
}
