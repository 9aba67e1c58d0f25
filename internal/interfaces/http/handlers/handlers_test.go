package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/RxDossier/internal/application/export"
	"github.com/turtacn/RxDossier/internal/domain/candidate"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockRunner struct {
	runFn func(ctx context.Context, documentID string, candidates []candidate.Candidate) (*candidate.Report, error)
}

func (m *mockRunner) Run(ctx context.Context, documentID string, candidates []candidate.Candidate) (*candidate.Report, error) {
	return m.runFn(ctx, documentID, candidates)
}

type mockRepo struct {
	saveFn func(ctx context.Context, report *candidate.Report) error
	findFn func(ctx context.Context, runID string) (*candidate.Report, error)
	listFn func(ctx context.Context, documentID string, limit int) ([]*candidate.Report, error)
}

func (m *mockRepo) Save(ctx context.Context, report *candidate.Report) error {
	return m.saveFn(ctx, report)
}

func (m *mockRepo) FindByRunID(ctx context.Context, runID string) (*candidate.Report, error) {
	return m.findFn(ctx, runID)
}

func (m *mockRepo) ListByDocument(ctx context.Context, documentID string, limit int) ([]*candidate.Report, error) {
	return m.listFn(ctx, documentID, limit)
}

type mockQueue struct {
	publishFn func(ctx context.Context, topic, key, eventType string, payload interface{}) error
}

func (m *mockQueue) Publish(ctx context.Context, topic, key, eventType string, payload interface{}) error {
	return m.publishFn(ctx, topic, key, eventType, payload)
}

func storedReport() *candidate.Report {
	return &candidate.Report{
		RunID:       "run-1",
		DocumentID:  "doc-1",
		GeneratedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Entries: []candidate.Entry{{
			Candidate: candidate.Candidate{ID: "c1", SourceName: "Aspirin", SourceDosage: "500 mg"},
			State:     candidate.StateDone,
		}},
		Completed: 1,
	}
}

func analysisRouter(h *AnalysisHandler) *gin.Engine {
	r := gin.New()
	r.POST("/api/v1/analyses", h.Submit)
	return r
}

func reportRouter(h *ReportHandler) *gin.Engine {
	r := gin.New()
	r.GET("/api/v1/reports", h.List)
	r.GET("/api/v1/reports/:id", h.Get)
	r.GET("/api/v1/reports/:id/export", h.Export)
	return r
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubmit_SyncRunsAndPersists(t *testing.T) {
	var saved *candidate.Report
	runner := &mockRunner{
		runFn: func(_ context.Context, documentID string, candidates []candidate.Candidate) (*candidate.Report, error) {
			assert.Equal(t, "doc-1", documentID)
			assert.Len(t, candidates, 1)
			return storedReport(), nil
		},
	}
	repo := &mockRepo{
		saveFn: func(_ context.Context, report *candidate.Report) error {
			saved = report
			return nil
		},
	}
	h := NewAnalysisHandler(runner, repo, nil, logging.NewNopLogger())

	rec := postJSON(t, analysisRouter(h), "/api/v1/analyses", AnalysisRequest{
		DocumentID: "doc-1",
		Candidates: []candidate.Candidate{{ID: "c1", SourceName: "Aspirin", SourceDosage: "500 mg"}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, saved)
	assert.Equal(t, "run-1", saved.RunID)

	var got candidate.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "doc-1", got.DocumentID)
	assert.Len(t, got.Entries, 1)
}

func TestSubmit_PersistFailureStillReturnsReport(t *testing.T) {
	runner := &mockRunner{
		runFn: func(context.Context, string, []candidate.Candidate) (*candidate.Report, error) {
			return storedReport(), nil
		},
	}
	repo := &mockRepo{
		saveFn: func(context.Context, *candidate.Report) error {
			return errors.New(errors.ErrCodeReportStoreError, "db down")
		},
	}
	h := NewAnalysisHandler(runner, repo, nil, logging.NewNopLogger())

	rec := postJSON(t, analysisRouter(h), "/api/v1/analyses", AnalysisRequest{
		DocumentID: "doc-1",
		Candidates: []candidate.Candidate{{SourceName: "Aspirin"}},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmit_EmptyCandidates(t *testing.T) {
	h := NewAnalysisHandler(&mockRunner{}, nil, nil, logging.NewNopLogger())

	rec := postJSON(t, analysisRouter(h), "/api/v1/analyses", map[string]interface{}{
		"document_id": "doc-1",
		"candidates":  []candidate.Candidate{},
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, errors.ErrCodeRunInputInvalid.String(), body.Code)
}

func TestSubmit_AsyncQueuesJob(t *testing.T) {
	var gotTopic, gotKey string
	queue := &mockQueue{
		publishFn: func(_ context.Context, topic, key, eventType string, _ interface{}) error {
			gotTopic, gotKey = topic, key
			assert.Equal(t, "analysis.requested", eventType)
			return nil
		},
	}
	h := NewAnalysisHandler(&mockRunner{}, nil, queue, logging.NewNopLogger())

	rec := postJSON(t, analysisRouter(h), "/api/v1/analyses", AnalysisRequest{
		DocumentID: "doc-9",
		Candidates: []candidate.Candidate{{SourceName: "Metformin"}},
		Async:      true,
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "dossier.analysis.request", gotTopic)
	assert.Equal(t, "doc-9", gotKey)

	var accepted AnalysisAccepted
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	assert.NotEmpty(t, accepted.JobID)
	assert.Equal(t, "queued", accepted.Status)
}

func TestSubmit_AsyncWithoutQueue(t *testing.T) {
	h := NewAnalysisHandler(&mockRunner{}, nil, nil, logging.NewNopLogger())

	rec := postJSON(t, analysisRouter(h), "/api/v1/analyses", AnalysisRequest{
		DocumentID: "doc-1",
		Candidates: []candidate.Candidate{{SourceName: "Aspirin"}},
		Async:      true,
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetReport(t *testing.T) {
	repo := &mockRepo{
		findFn: func(_ context.Context, runID string) (*candidate.Report, error) {
			assert.Equal(t, "run-1", runID)
			return storedReport(), nil
		},
	}
	h := NewReportHandler(repo, export.NewService(nil, logging.NewNopLogger()), logging.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/run-1", nil)
	rec := httptest.NewRecorder()
	reportRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got candidate.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
}

func TestGetReport_NotFound(t *testing.T) {
	repo := &mockRepo{
		findFn: func(context.Context, string) (*candidate.Report, error) {
			return nil, errors.New(errors.ErrCodeReportNotFound, "report not found")
		},
	}
	h := NewReportHandler(repo, export.NewService(nil, logging.NewNopLogger()), logging.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/missing", nil)
	rec := httptest.NewRecorder()
	reportRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, errors.ErrCodeReportNotFound.String(), body.Code)
}

func TestListReports_RequiresDocumentID(t *testing.T) {
	h := NewReportHandler(&mockRepo{}, export.NewService(nil, logging.NewNopLogger()), logging.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
	rec := httptest.NewRecorder()
	reportRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListReports(t *testing.T) {
	repo := &mockRepo{
		listFn: func(_ context.Context, documentID string, limit int) ([]*candidate.Report, error) {
			assert.Equal(t, "doc-1", documentID)
			assert.Equal(t, 5, limit)
			return []*candidate.Report{storedReport()}, nil
		},
	}
	h := NewReportHandler(repo, export.NewService(nil, logging.NewNopLogger()), logging.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports?document_id=doc-1&limit=5", nil)
	rec := httptest.NewRecorder()
	reportRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestExportReport_CSV(t *testing.T) {
	repo := &mockRepo{
		findFn: func(context.Context, string) (*candidate.Report, error) {
			return storedReport(), nil
		},
	}
	h := NewReportHandler(repo, export.NewService(nil, logging.NewNopLogger()), logging.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/run-1/export?format=csv", nil)
	rec := httptest.NewRecorder()
	reportRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "run-1.csv")
	assert.Contains(t, rec.Body.String(), "source_name")
}

func TestExportReport_BadFormat(t *testing.T) {
	h := NewReportHandler(&mockRepo{}, export.NewService(nil, logging.NewNopLogger()), logging.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/run-1/export?format=xml", nil)
	rec := httptest.NewRecorder()
	reportRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
