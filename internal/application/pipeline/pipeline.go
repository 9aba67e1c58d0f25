// Package pipeline orchestrates the enrichment of one document's drug
// candidates: it owns the per-candidate state machine, bounds concurrency
// across candidates, applies per-stage timeouts, and assembles the final
// report in input order.  It is the only package aware of the full stage
// sequence; every stage behind its port is a function of its own inputs.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/RxDossier/internal/domain/candidate"
	"github.com/turtacn/RxDossier/internal/domain/dosage"
	"github.com/turtacn/RxDossier/internal/enrichment/literature"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/RxDossier/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Stage ports
// ─────────────────────────────────────────────────────────────────────────────

// Normalizer resolves a source-text drug name to an INN.  A non-nil error
// explains an unresolved result; it never signals a hard stop.
type Normalizer interface {
	Resolve(ctx context.Context, sourceName string) (candidate.Normalization, error)
}

// RegulatoryVerifier fans one name out to every authority.  The returned
// map always carries one entry per configured authority.
type RegulatoryVerifier interface {
	VerifyAll(ctx context.Context, name string) map[string]candidate.RegulatoryCheckResult
}

// LiteratureSearcher resolves one literature query, soft-failing into a
// flagged empty result.
type LiteratureSearcher interface {
	Search(ctx context.Context, q literature.Query) candidate.LiteratureResult
}

// EvidenceGrader produces the final assessment; it degrades internally and
// never fails.
type EvidenceGrader interface {
	Assess(ctx context.Context, c candidate.Candidate, e *candidate.Enrichment) candidate.Assessment
}

// ─────────────────────────────────────────────────────────────────────────────
// Orchestrator
// ─────────────────────────────────────────────────────────────────────────────

// Config holds the run-execution parameters.
type Config struct {
	// MaxInFlight bounds concurrently enriched candidates per run.
	MaxInFlight int

	// RunTimeout bounds the whole run; zero disables it.  Candidates not
	// done when it fires are flushed as degraded.
	RunTimeout time.Duration

	NormalizeTimeout  time.Duration
	RegulatoryTimeout time.Duration
	LiteratureTimeout time.Duration
	GradingTimeout    time.Duration

	// LiteratureMaxResults caps the article list per candidate.
	LiteratureMaxResults int
}

func (c *Config) applyDefaults() {
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 8
	}
	if c.NormalizeTimeout == 0 {
		c.NormalizeTimeout = 15 * time.Second
	}
	if c.RegulatoryTimeout == 0 {
		c.RegulatoryTimeout = 30 * time.Second
	}
	if c.LiteratureTimeout == 0 {
		c.LiteratureTimeout = 30 * time.Second
	}
	if c.GradingTimeout == 0 {
		c.GradingTimeout = 60 * time.Second
	}
	if c.LiteratureMaxResults <= 0 {
		c.LiteratureMaxResults = 5
	}
}

// Orchestrator drives pipeline runs.  Safe for concurrent use; each run is
// independent.
type Orchestrator struct {
	cfg        Config
	normalizer Normalizer
	regulatory RegulatoryVerifier
	literature LiteratureSearcher
	grader     EvidenceGrader
	metrics    *prometheus.Collector
	logger     logging.Logger
	now        func() time.Time
}

// NewOrchestrator wires the stages together.  metrics may be nil.
func NewOrchestrator(
	cfg Config,
	normalizer Normalizer,
	regulatory RegulatoryVerifier,
	literature LiteratureSearcher,
	grader EvidenceGrader,
	metrics *prometheus.Collector,
	logger logging.Logger,
) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		cfg:        cfg,
		normalizer: normalizer,
		regulatory: regulatory,
		literature: literature,
		grader:     grader,
		metrics:    metrics,
		logger:     logger.Named("pipeline"),
		now:        time.Now,
	}
}

// Run enriches every candidate and assembles the report.  The only
// caller-visible error is malformed input; external failures and run
// cancellation degrade individual entries instead.  Entry order always
// equals input order.
func (o *Orchestrator) Run(ctx context.Context, documentID string, candidates []candidate.Candidate) (*candidate.Report, error) {
	if len(candidates) == 0 {
		return nil, errors.New(errors.ErrCodeRunInputInvalid, "candidate list is empty")
	}

	runID := uuid.NewString()
	started := o.now()
	logger := o.logger.With(
		logging.String("run_id", runID),
		logging.String("document_id", documentID),
	)
	logger.Info("pipeline run started", logging.Int("candidates", len(candidates)))

	runCtx := ctx
	var cancel context.CancelFunc
	if o.cfg.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancel()
	}

	// Entries are written by input position, so completion order can never
	// reorder the report.
	entries := make([]candidate.Entry, len(candidates))

	var g errgroup.Group
	g.SetLimit(o.cfg.MaxInFlight)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			entries[i] = o.process(runCtx, logger, c)
			return nil
		})
	}
	_ = g.Wait()

	report := &candidate.Report{
		RunID:       runID,
		DocumentID:  documentID,
		GeneratedAt: o.now(),
		Entries:     entries,
	}
	for _, e := range entries {
		switch e.State {
		case candidate.StateDone:
			report.Completed++
		case candidate.StateFailed:
			report.Failed++
		default:
			report.Degraded++
		}
		o.metrics.ObserveCandidate(string(e.State))
	}

	outcome := "completed"
	if runCtx.Err() != nil {
		outcome = "cancelled"
	}
	elapsed := o.now().Sub(started)
	o.metrics.ObserveRun(outcome, elapsed, len(entries))
	logger.Info("pipeline run finished",
		logging.String("outcome", outcome),
		logging.Int("completed", report.Completed),
		logging.Int("degraded", report.Degraded),
		logging.Int("failed", report.Failed),
		logging.Duration("elapsed", elapsed),
	)
	return report, nil
}

// process drives one candidate through its strictly ordered stage sequence.
// It owns the candidate's state transitions; every transition is monotonic.
func (o *Orchestrator) process(ctx context.Context, logger logging.Logger, c candidate.Candidate) candidate.Entry {
	e := candidate.Enrichment{}
	state := candidate.StatePending

	if err := c.Validate(); err != nil {
		e.RecordFailure(candidate.StageInput, err)
		o.metrics.ObserveStageFailure(string(candidate.StageInput), string(errors.GetCode(err)))
		return candidate.Entry{Candidate: c, State: candidate.StateFailed, Enrichment: e}
	}

	// Normalization.
	state = candidate.StateNormalizing
	o.runStage(ctx, candidate.StageNormalization, o.cfg.NormalizeTimeout, &e, func(ctx context.Context) error {
		n, err := o.normalizer.Resolve(ctx, c.SourceName)
		if setErr := e.SetNormalization(n); setErr != nil {
			return setErr
		}
		return err
	})
	if e.Normalization != nil && e.Normalization.Source == candidate.ResolutionAI {
		o.metrics.ObserveLLMCall("normalization_fallback", "ok")
	}
	if ctx.Err() != nil {
		return o.flushDegraded(logger, c, state, e)
	}

	// Regulatory and dosage share the enriching state: the verdict needs
	// the reference range an authority may supply, so it is computed as
	// soon as the fan-out returns.
	state = candidate.StateEnriching
	name := c.SourceName
	if e.Normalization != nil && e.Normalization.Resolved() {
		name = e.Normalization.INN
	}
	o.runStage(ctx, candidate.StageRegulatory, o.cfg.RegulatoryTimeout, &e, func(ctx context.Context) error {
		return e.SetRegulatory(o.regulatory.VerifyAll(ctx, name))
	})
	if err := e.SetDosageVerdict(dosage.Compare(c.SourceDosage, e.ReferenceRange())); err != nil {
		e.RecordFailure(candidate.StageDosage, err)
	}
	if ctx.Err() != nil {
		return o.flushDegraded(logger, c, state, e)
	}

	// Literature.
	state = candidate.StateSearchingLiterature
	o.runStage(ctx, candidate.StageLiterature, o.cfg.LiteratureTimeout, &e, func(ctx context.Context) error {
		result := o.literature.Search(ctx, literature.Query{
			INN:        name,
			BrandName:  c.SourceName,
			Context:    c.Context,
			MaxResults: o.cfg.LiteratureMaxResults,
		})
		if setErr := e.SetLiterature(result); setErr != nil {
			return setErr
		}
		if result.Failed {
			return errors.New(errors.ErrCodeLiteratureUnavailable, result.FailureReason)
		}
		cacheResult := "miss"
		if result.FromCache {
			cacheResult = "hit"
		}
		o.metrics.ObserveLiteratureCache(cacheResult)
		return nil
	})
	if ctx.Err() != nil {
		return o.flushDegraded(logger, c, state, e)
	}

	// Grading.
	state = candidate.StateGrading
	o.runStage(ctx, candidate.StageGrading, o.cfg.GradingTimeout, &e, func(ctx context.Context) error {
		assessment := o.grader.Assess(ctx, c, &e)
		gradeOutcome := "ok"
		if assessment.Grade == candidate.GradeUndetermined {
			gradeOutcome = "undetermined"
		}
		o.metrics.ObserveLLMCall("grading", gradeOutcome)
		return e.SetAssessment(assessment)
	})
	if ctx.Err() != nil && !e.Complete() {
		return o.flushDegraded(logger, c, state, e)
	}

	final := candidate.StateDegraded
	if e.Complete() {
		final = candidate.StateDone
	}
	return candidate.Entry{Candidate: c, State: final, Enrichment: e}
}

// runStage executes one stage body under its timeout and records any
// failure against the enrichment state instead of propagating it.
func (o *Orchestrator) runStage(ctx context.Context, stage candidate.Stage, timeout time.Duration, e *candidate.Enrichment, fn func(ctx context.Context) error) {
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := o.now()
	err := fn(stageCtx)
	o.metrics.ObserveStage(string(stage), o.now().Sub(started))
	if err != nil {
		e.RecordFailure(stage, err)
		o.metrics.ObserveStageFailure(string(stage), string(errors.GetCode(err)))
	}
}

// flushDegraded finalizes a candidate interrupted by run cancellation,
// keeping whatever state was gathered.
func (o *Orchestrator) flushDegraded(logger logging.Logger, c candidate.Candidate, reached candidate.State, e candidate.Enrichment) candidate.Entry {
	logger.Warn("candidate flushed on run cancellation",
		logging.String("candidate", c.ID),
		logging.String("reached", string(reached)),
	)
	return candidate.Entry{Candidate: c, State: candidate.StateDegraded, Enrichment: e}
}
