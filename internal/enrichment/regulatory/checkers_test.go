package regulatory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/RxDossier/internal/domain/candidate"
	"github.com/turtacn/RxDossier/internal/domain/dosage"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/pkg/errors"
)

func TestFDAChecker_ApprovedWithReferenceRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drug/label.json", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("search"), "active_ingredient")
		_, _ = w.Write([]byte(`{"results":[{"dosage_and_administration":
			["The usual adult dose is 300-600 mg every 4 hours."]}]}`))
	}))
	t.Cleanup(srv.Close)

	checker := NewFDAChecker(srv.URL, 0, logging.NewNopLogger())
	result, err := checker.Check(context.Background(), "aspirin")
	require.NoError(t, err)
	assert.Equal(t, candidate.RegulatoryApproved, result.Status)
	require.NotNil(t, result.ReferenceRange)
	assert.InDelta(t, 300, result.ReferenceRange.Min, 1e-9)
	assert.InDelta(t, 600, result.ReferenceRange.Max, 1e-9)
	assert.Equal(t, dosage.UnitMilligram, result.ReferenceRange.Unit)
}

func TestFDAChecker_NotFoundOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	result, err := NewFDAChecker(srv.URL, 0, logging.NewNopLogger()).Check(context.Background(), "notadrug")
	require.NoError(t, err)
	assert.Equal(t, candidate.RegulatoryNotFound, result.Status)
	assert.Nil(t, result.ReferenceRange)
}

func TestFDAChecker_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	_, err := NewFDAChecker(srv.URL, 0, logging.NewNopLogger()).Check(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestEMAChecker_ApprovedWhenNameInPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>Results: Atorvastatin 20mg tablets</body></html>`))
	}))
	t.Cleanup(srv.Close)

	result, err := NewEMAChecker(srv.URL, 0, logging.NewNopLogger()).Check(context.Background(), "atorvastatin")
	require.NoError(t, err)
	assert.Equal(t, candidate.RegulatoryApproved, result.Status)
}

func TestEMAChecker_NotFoundWhenNameAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>No results found.</body></html>`))
	}))
	t.Cleanup(srv.Close)

	result, err := NewEMAChecker(srv.URL, 0, logging.NewNopLogger()).Check(context.Background(), "obscuredrug")
	require.NoError(t, err)
	assert.Equal(t, candidate.RegulatoryNotFound, result.Status)
}

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestBNFChecker_FindsMentionWithContext(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"adult.txt":    "Chapter 4. Ibuprofen is given 300 to 600 mg three times daily.",
		"children.txt": "Paediatric dosing tables.",
	})

	checker, err := NewBNFChecker(dir, logging.NewNopLogger())
	require.NoError(t, err)

	result, err := checker.Check(context.Background(), "ibuprofen")
	require.NoError(t, err)
	assert.Equal(t, candidate.RegulatoryApproved, result.Status)
	assert.Contains(t, result.Detail, "adult")
	assert.Contains(t, result.Detail, "Ibuprofen")
}

func TestBNFChecker_NotFound(t *testing.T) {
	dir := writeCorpus(t, map[string]string{"adult.txt": "Nothing relevant here."})

	checker, err := NewBNFChecker(dir, logging.NewNopLogger())
	require.NoError(t, err)

	result, err := checker.Check(context.Background(), "zzzmycin")
	require.NoError(t, err)
	assert.Equal(t, candidate.RegulatoryNotFound, result.Status)
}

func TestBNFChecker_EmptyCorpusDirIsNotFatal(t *testing.T) {
	checker, err := NewBNFChecker("", logging.NewNopLogger())
	require.NoError(t, err)

	result, err := checker.Check(context.Background(), "aspirin")
	require.NoError(t, err)
	assert.Equal(t, candidate.RegulatoryNotFound, result.Status)
	assert.Contains(t, result.Detail, "no formulary corpus")
}

func TestWHOEMLChecker_MatchesSaltForms(t *testing.T) {
	checker := NewWHOEMLChecker()

	result, err := checker.Check(context.Background(), "Metformin hydrochloride")
	require.NoError(t, err)
	assert.Equal(t, candidate.RegulatoryApproved, result.Status)

	result, err = checker.Check(context.Background(), "zuranolone")
	require.NoError(t, err)
	assert.Equal(t, candidate.RegulatoryNotFound, result.Status)
}
