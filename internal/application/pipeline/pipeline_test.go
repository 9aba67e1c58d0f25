package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/RxDossier/internal/domain/candidate"
	"github.com/turtacn/RxDossier/internal/domain/dosage"
	"github.com/turtacn/RxDossier/internal/enrichment/literature"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Stage mocks
// ─────────────────────────────────────────────────────────────────────────────

type mockNormalizer struct {
	resolveFunc func(ctx context.Context, name string) (candidate.Normalization, error)
}

func (m *mockNormalizer) Resolve(ctx context.Context, name string) (candidate.Normalization, error) {
	return m.resolveFunc(ctx, name)
}

type mockVerifier struct {
	verifyFunc func(ctx context.Context, name string) map[string]candidate.RegulatoryCheckResult
}

func (m *mockVerifier) VerifyAll(ctx context.Context, name string) map[string]candidate.RegulatoryCheckResult {
	return m.verifyFunc(ctx, name)
}

type mockSearcher struct {
	searchFunc func(ctx context.Context, q literature.Query) candidate.LiteratureResult
}

func (m *mockSearcher) Search(ctx context.Context, q literature.Query) candidate.LiteratureResult {
	return m.searchFunc(ctx, q)
}

type mockGrader struct {
	assessFunc func(ctx context.Context, c candidate.Candidate, e *candidate.Enrichment) candidate.Assessment
}

func (m *mockGrader) Assess(ctx context.Context, c candidate.Candidate, e *candidate.Enrichment) candidate.Assessment {
	return m.assessFunc(ctx, c, e)
}

func happyNormalizer() *mockNormalizer {
	return &mockNormalizer{resolveFunc: func(_ context.Context, name string) (candidate.Normalization, error) {
		return candidate.Normalization{INN: name, Source: candidate.ResolutionIndex, Confidence: candidate.ConfidenceHigh}, nil
	}}
}

func approvedVerifier(ref *dosage.Range) *mockVerifier {
	return &mockVerifier{verifyFunc: func(_ context.Context, _ string) map[string]candidate.RegulatoryCheckResult {
		return map[string]candidate.RegulatoryCheckResult{
			"FDA": {Authority: "FDA", Status: candidate.RegulatoryApproved, ReferenceRange: ref, CheckedAt: time.Now()},
		}
	}}
}

func emptySearcher() *mockSearcher {
	return &mockSearcher{searchFunc: func(_ context.Context, _ literature.Query) candidate.LiteratureResult {
		return candidate.LiteratureResult{Articles: []candidate.Article{}}
	}}
}

func highGrader() *mockGrader {
	return &mockGrader{assessFunc: func(_ context.Context, _ candidate.Candidate, _ *candidate.Enrichment) candidate.Assessment {
		return candidate.Assessment{Grade: candidate.GradeHigh, Justification: "solid evidence"}
	}}
}

func newTestOrchestrator(cfg Config, n Normalizer, v RegulatoryVerifier, s LiteratureSearcher, g EvidenceGrader) *Orchestrator {
	return NewOrchestrator(cfg, n, v, s, g, nil, logging.NewNopLogger())
}

// ─────────────────────────────────────────────────────────────────────────────
// Properties and scenarios
// ─────────────────────────────────────────────────────────────────────────────

func TestRun_EmptyInputIsTheOnlyCallerError(t *testing.T) {
	o := newTestOrchestrator(Config{}, happyNormalizer(), approvedVerifier(nil), emptySearcher(), highGrader())

	_, err := o.Run(context.Background(), "doc-1", nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRunInputInvalid))
}

func TestRun_ReportOrderEqualsInputOrderUnderRandomLatency(t *testing.T) {
	normalizer := &mockNormalizer{resolveFunc: func(ctx context.Context, name string) (candidate.Normalization, error) {
		select {
		case <-time.After(time.Duration(rand.Intn(30)) * time.Millisecond):
		case <-ctx.Done():
		}
		return candidate.Normalization{INN: name, Source: candidate.ResolutionIndex, Confidence: candidate.ConfidenceHigh}, nil
	}}
	o := newTestOrchestrator(Config{MaxInFlight: 4}, normalizer, approvedVerifier(nil), emptySearcher(), highGrader())

	const n = 20
	candidates := make([]candidate.Candidate, n)
	for i := range candidates {
		candidates[i] = candidate.Candidate{ID: fmt.Sprintf("c%02d", i), SourceName: fmt.Sprintf("drug%02d", i)}
	}

	report, err := o.Run(context.Background(), "doc-1", candidates)
	require.NoError(t, err)
	require.Len(t, report.Entries, n)
	for i, entry := range report.Entries {
		assert.Equal(t, candidates[i].ID, entry.Candidate.ID, "entry %d out of order", i)
	}
	assert.Equal(t, n, report.Completed+report.Degraded+report.Failed)
}

func TestRun_AspirinScenario(t *testing.T) {
	ref := &dosage.Range{Min: 300, Max: 600, Unit: dosage.UnitMilligram}
	o := newTestOrchestrator(Config{}, happyNormalizer(), approvedVerifier(ref), emptySearcher(), highGrader())

	report, err := o.Run(context.Background(), "doc-1", []candidate.Candidate{
		{ID: "c1", SourceName: "Aspirin", SourceDosage: "500mg", Context: "oral"},
	})
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)

	entry := report.Entries[0]
	assert.Equal(t, candidate.StateDone, entry.State)
	assert.Equal(t, candidate.RegulatoryApproved, entry.Enrichment.Regulatory["FDA"].Status)
	require.NotNil(t, entry.Enrichment.DosageVerdict)
	assert.Equal(t, dosage.VerdictWithinRange, *entry.Enrichment.DosageVerdict)
	assert.Equal(t, 1, report.Completed)
}

func TestRun_InvalidCandidateIsListedAsFailed(t *testing.T) {
	o := newTestOrchestrator(Config{}, happyNormalizer(), approvedVerifier(nil), emptySearcher(), highGrader())

	report, err := o.Run(context.Background(), "doc-1", []candidate.Candidate{
		{ID: "good", SourceName: "Aspirin"},
		{ID: "bad", SourceName: "   "},
	})
	require.NoError(t, err)
	require.Len(t, report.Entries, 2)

	assert.Equal(t, candidate.StateDone, report.Entries[0].State)
	assert.Equal(t, candidate.StateFailed, report.Entries[1].State)
	failure, ok := report.Entries[1].Enrichment.FailureFor(candidate.StageInput)
	require.True(t, ok, "failed candidate must carry its reason")
	assert.NotEmpty(t, failure.Reason)
	assert.Equal(t, 1, report.Failed)
}

func TestRun_TimedOutAuthorityDegradesOnlyItsEntry(t *testing.T) {
	verifier := &mockVerifier{verifyFunc: func(ctx context.Context, _ string) map[string]candidate.RegulatoryCheckResult {
		return map[string]candidate.RegulatoryCheckResult{
			"FDA": {Authority: "FDA", Status: candidate.RegulatoryApproved, CheckedAt: time.Now()},
			"EMA": {Authority: "EMA", Status: candidate.RegulatoryError, Detail: "deadline exceeded", CheckedAt: time.Now()},
		}
	}}
	o := newTestOrchestrator(Config{}, happyNormalizer(), verifier, emptySearcher(), highGrader())

	report, err := o.Run(context.Background(), "doc-1", []candidate.Candidate{{ID: "c1", SourceName: "Aspirin"}})
	require.NoError(t, err)

	reg := report.Entries[0].Enrichment.Regulatory
	assert.Equal(t, candidate.RegulatoryApproved, reg["FDA"].Status)
	assert.Equal(t, candidate.RegulatoryError, reg["EMA"].Status)
	// The per-authority error stays inside the map; the candidate completes.
	assert.Equal(t, candidate.StateDone, report.Entries[0].State)
}

func TestRun_UndeterminedGradeDoesNotAbortRun(t *testing.T) {
	grader := &mockGrader{assessFunc: func(_ context.Context, _ candidate.Candidate, _ *candidate.Enrichment) candidate.Assessment {
		return candidate.Assessment{Grade: candidate.GradeUndetermined, Justification: "grading output was not valid JSON"}
	}}
	o := newTestOrchestrator(Config{}, happyNormalizer(), approvedVerifier(nil), emptySearcher(), grader)

	report, err := o.Run(context.Background(), "doc-1", []candidate.Candidate{{ID: "c1", SourceName: "Aspirin"}})
	require.NoError(t, err)

	entry := report.Entries[0]
	require.NotNil(t, entry.Enrichment.Assessment)
	assert.Equal(t, candidate.GradeUndetermined, entry.Enrichment.Assessment.Grade)
	assert.NotEmpty(t, entry.Enrichment.Assessment.Justification)
	assert.Equal(t, candidate.StateDone, entry.State)
}

func TestRun_LiteratureFailureDegradesCandidate(t *testing.T) {
	searcher := &mockSearcher{searchFunc: func(_ context.Context, _ literature.Query) candidate.LiteratureResult {
		return candidate.LiteratureResult{Articles: []candidate.Article{}, Failed: true, FailureReason: "index down"}
	}}
	o := newTestOrchestrator(Config{}, happyNormalizer(), approvedVerifier(nil), searcher, highGrader())

	report, err := o.Run(context.Background(), "doc-1", []candidate.Candidate{{ID: "c1", SourceName: "Aspirin"}})
	require.NoError(t, err)

	entry := report.Entries[0]
	assert.Equal(t, candidate.StateDegraded, entry.State)
	require.NotNil(t, entry.Enrichment.Literature)
	assert.True(t, entry.Enrichment.Literature.Failed)
	_, recorded := entry.Enrichment.FailureFor(candidate.StageLiterature)
	assert.True(t, recorded)
	// Grading still ran on the degraded evidence.
	assert.NotNil(t, entry.Enrichment.Assessment)
}

func TestRun_CancellationFlushesEveryoneToTerminalState(t *testing.T) {
	release := make(chan struct{})
	slowNormalizer := &mockNormalizer{resolveFunc: func(ctx context.Context, name string) (candidate.Normalization, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return candidate.Normalization{Source: candidate.ResolutionUnresolved, Confidence: candidate.ConfidenceNone}, ctx.Err()
		}
		return candidate.Normalization{INN: name, Source: candidate.ResolutionIndex, Confidence: candidate.ConfidenceHigh}, nil
	}}
	o := newTestOrchestrator(Config{MaxInFlight: 2}, slowNormalizer, approvedVerifier(nil), emptySearcher(), highGrader())

	ctx, cancel := context.WithCancel(context.Background())
	candidates := make([]candidate.Candidate, 10)
	for i := range candidates {
		candidates[i] = candidate.Candidate{ID: fmt.Sprintf("c%d", i), SourceName: fmt.Sprintf("drug%d", i)}
	}

	type runResult struct {
		report *candidate.Report
		err    error
	}
	done := make(chan runResult, 1)
	go func() {
		report, err := o.Run(ctx, "doc-1", candidates)
		done <- runResult{report, err}
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	close(release)

	result := <-done
	require.NoError(t, result.err)
	report := result.report
	require.Len(t, report.Entries, 10)
	for i, entry := range report.Entries {
		assert.Contains(t,
			[]candidate.State{candidate.StateDone, candidate.StateDegraded},
			entry.State, "entry %d must be terminal, got %s", i, entry.State)
		assert.Equal(t, candidates[i].ID, entry.Candidate.ID)
	}
}

func TestRun_UnresolvedNameFallsBackToSourceNameDownstream(t *testing.T) {
	var regName, litINN string
	normalizer := &mockNormalizer{resolveFunc: func(_ context.Context, _ string) (candidate.Normalization, error) {
		return candidate.Normalization{Source: candidate.ResolutionUnresolved, Confidence: candidate.ConfidenceNone}, nil
	}}
	verifier := &mockVerifier{verifyFunc: func(_ context.Context, name string) map[string]candidate.RegulatoryCheckResult {
		regName = name
		return map[string]candidate.RegulatoryCheckResult{"FDA": {Authority: "FDA", Status: candidate.RegulatoryNotFound}}
	}}
	searcher := &mockSearcher{searchFunc: func(_ context.Context, q literature.Query) candidate.LiteratureResult {
		litINN = q.INN
		return candidate.LiteratureResult{Articles: []candidate.Article{}}
	}}
	o := newTestOrchestrator(Config{}, normalizer, verifier, searcher, highGrader())

	_, err := o.Run(context.Background(), "doc-1", []candidate.Candidate{{ID: "c1", SourceName: "Dafalgan"}})
	require.NoError(t, err)
	assert.Equal(t, "Dafalgan", regName)
	assert.Equal(t, "Dafalgan", litINN)
}

func TestRun_WriteOnceFieldsSurviveConcurrentStress(t *testing.T) {
	o := newTestOrchestrator(Config{MaxInFlight: 8}, happyNormalizer(),
		approvedVerifier(&dosage.Range{Min: 100, Max: 200, Unit: dosage.UnitMilligram}),
		emptySearcher(), highGrader())

	candidates := make([]candidate.Candidate, 40)
	for i := range candidates {
		candidates[i] = candidate.Candidate{ID: fmt.Sprintf("c%d", i), SourceName: "Aspirin", SourceDosage: "150 mg"}
	}

	report, err := o.Run(context.Background(), "doc-1", candidates)
	require.NoError(t, err)
	for _, entry := range report.Entries {
		e := entry.Enrichment
		require.NotNil(t, e.Normalization)
		require.NotNil(t, e.Regulatory)
		require.NotNil(t, e.DosageVerdict)
		require.NotNil(t, e.Literature)
		require.NotNil(t, e.Assessment)
		assert.Equal(t, dosage.VerdictWithinRange, *e.DosageVerdict)
		assert.Equal(t, candidate.StateDone, entry.State)
	}
	assert.Equal(t, 40, report.Completed)
}
