package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/RxDossier/internal/application/export"
	"github.com/turtacn/RxDossier/internal/domain/candidate"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/pkg/errors"
)

// ReportHandler serves stored reports and their exports.
type ReportHandler struct {
	repo     candidate.ReportRepository
	exporter *export.Service
	logger   logging.Logger
}

// NewReportHandler constructs the handler.
func NewReportHandler(repo candidate.ReportRepository, exporter *export.Service, logger logging.Logger) *ReportHandler {
	return &ReportHandler{
		repo:     repo,
		exporter: exporter,
		logger:   logger.Named("report_handler"),
	}
}

// Get handles GET /api/v1/reports/:id.
func (h *ReportHandler) Get(c *gin.Context) {
	report, err := h.repo.FindByRunID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// List handles GET /api/v1/reports?document_id=...&limit=....
func (h *ReportHandler) List(c *gin.Context) {
	documentID := c.Query("document_id")
	if documentID == "" {
		respondError(c, errors.New(errors.ErrCodeValidation, "document_id query parameter is required"))
		return
	}
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			respondError(c, errors.New(errors.ErrCodeValidation, "limit must be in [1, 100]"))
			return
		}
		limit = n
	}

	reports, err := h.repo.ListByDocument(c.Request.Context(), documentID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if reports == nil {
		reports = []*candidate.Report{}
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// Export handles GET /api/v1/reports/:id/export?format=json|csv.
func (h *ReportHandler) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.DefaultQuery("format", "json"))
	if err != nil {
		respondError(c, err)
		return
	}

	report, err := h.repo.FindByRunID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	data, stored, err := h.exporter.Export(c.Request.Context(), report, format)
	if err != nil {
		respondError(c, err)
		return
	}
	if stored != "" {
		c.Header("X-Artifact-Location", stored)
	}
	c.Header("Content-Disposition", `attachment; filename="`+report.RunID+`.`+string(format)+`"`)
	c.Data(http.StatusOK, format.ContentType(), data)
}
