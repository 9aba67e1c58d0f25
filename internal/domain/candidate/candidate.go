// Package candidate defines the shared record describing one extracted drug
// mention and its accumulating enrichment state, plus the Report produced at
// the end of a pipeline run.  The orchestrator owns Candidate values for the
// duration of one run; every enrichment field is written exactly once by the
// stage responsible for it.
package candidate

import (
	"strings"
	"time"

	"github.com/turtacn/RxDossier/internal/domain/dosage"
	"github.com/turtacn/RxDossier/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Candidate — immutable input record
// ─────────────────────────────────────────────────────────────────────────────

// Candidate is one extracted drug mention awaiting enrichment.  Created by
// the external document extractor; immutable once created.
type Candidate struct {
	// ID is the extractor-assigned stable identifier.
	ID string `json:"id"`

	// SourceName is the drug name exactly as written in the document.
	SourceName string `json:"source_name"`

	// SourceDosage is the dosage text as written, possibly empty.
	SourceDosage string `json:"source_dosage,omitempty"`

	// Context is the route/indication context surrounding the mention.
	Context string `json:"context,omitempty"`
}

// Validate reports whether the candidate is enrichable.  An empty source
// name is an input failure: the candidate is listed in the report as failed
// but never enters the pipeline stages.
func (c Candidate) Validate() error {
	if strings.TrimSpace(c.SourceName) == "" {
		return errors.New(errors.ErrCodeRunInputInvalid, "candidate has empty source name").
			WithDetail("id=" + c.ID)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// State machine
// ─────────────────────────────────────────────────────────────────────────────

// State is the per-candidate pipeline state.  Transitions are monotonic; no
// state is ever revisited.
type State string

const (
	StatePending             State = "pending"
	StateNormalizing         State = "normalizing"
	StateEnriching           State = "enriching"
	StateSearchingLiterature State = "searching_literature"
	StateGrading             State = "grading"

	// StateDone means every stage completed.
	StateDone State = "done"

	// StateDegraded means at least one stage failed but downstream stages
	// were still attempted with best-available input, or the run was
	// cancelled mid-flight.
	StateDegraded State = "degraded"

	// StateFailed means the candidate was unrecoverable (e.g. empty source
	// name) and enrichment never started.
	StateFailed State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateDegraded, StateFailed:
		return true
	}
	return false
}

// Stage identifies one enrichment stage, used in failure records and logs.
type Stage string

const (
	// StageInput marks validation failures before any enrichment ran.
	StageInput Stage = "input"

	StageNormalization Stage = "normalization"
	StageRegulatory    Stage = "regulatory"
	StageDosage        Stage = "dosage"
	StageLiterature    Stage = "literature"
	StageGrading       Stage = "grading"
)

// StageFailure records why a stage could not produce its field.  Candidates
// with failures still appear in the report; the absent field is explained,
// never silently dropped.
type StageFailure struct {
	Stage  Stage            `json:"stage"`
	Code   errors.ErrorCode `json:"code"`
	Reason string           `json:"reason"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Stage result types
// ─────────────────────────────────────────────────────────────────────────────

// ResolutionSource tells which capability produced the INN.
type ResolutionSource string

const (
	ResolutionIndex      ResolutionSource = "index"
	ResolutionAI         ResolutionSource = "ai"
	ResolutionUnresolved ResolutionSource = "unresolved"
)

// Confidence is the label attached to a normalization result.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceNone   Confidence = "none"
)

// Normalization is the outcome of the name-normalization stage.
type Normalization struct {
	INN        string           `json:"inn,omitempty"`
	Source     ResolutionSource `json:"source"`
	Confidence Confidence       `json:"confidence"`
}

// Resolved reports whether an INN was found.
func (n Normalization) Resolved() bool {
	return n.INN != "" && n.Source != ResolutionUnresolved
}

// RegulatoryStatus is the per-authority approval status.
type RegulatoryStatus string

const (
	RegulatoryApproved RegulatoryStatus = "approved"
	RegulatoryNotFound RegulatoryStatus = "not_found"
	RegulatoryError    RegulatoryStatus = "error"
)

// RegulatoryCheckResult is one authority's answer.  Produced by one checker,
// merged read-only into the enrichment state keyed by authority identity.
type RegulatoryCheckResult struct {
	Authority string           `json:"authority"`
	Status    RegulatoryStatus `json:"status"`
	Detail    string           `json:"detail,omitempty"`

	// ReferenceRange is the label's dosage range when the authority
	// publishes one; consumed by the dosage comparator.
	ReferenceRange *dosage.Range `json:"reference_range,omitempty"`

	CheckedAt time.Time `json:"checked_at"`
}

// Article is one literature search hit.
type Article struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Journal     string `json:"journal,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	StudyType   string `json:"study_type,omitempty"`
	Link        string `json:"link,omitempty"`
}

// LiteratureResult is the ranked article list for one candidate.  Failed is
// set when the index could not be queried after retries; the list is then
// empty but the candidate proceeds to grading regardless.
type LiteratureResult struct {
	Articles      []Article `json:"articles"`
	Failed        bool      `json:"failed,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	FromCache     bool      `json:"from_cache,omitempty"`
}

// Grade is the categorical evidence rating.
type Grade string

const (
	GradeHigh         Grade = "high"
	GradeModerate     Grade = "moderate"
	GradeLow          Grade = "low"
	GradeVeryLow      Grade = "very_low"
	GradeUndetermined Grade = "undetermined"
)

// ParseGrade maps free-form capability output onto the fixed enumeration.
// Anything unrecognised is GradeUndetermined.
func ParseGrade(s string) Grade {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "-", " "))) {
	case "high":
		return GradeHigh
	case "moderate":
		return GradeModerate
	case "low":
		return GradeLow
	case "very low", "very_low", "verylow":
		return GradeVeryLow
	default:
		return GradeUndetermined
	}
}

// Assessment is the AI-generated evidence grade with its narrative parts.
type Assessment struct {
	Grade         Grade  `json:"grade"`
	Justification string `json:"justification"`
	SummaryNote   string `json:"summary_note,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// EnrichmentState — write-once accumulator
// ─────────────────────────────────────────────────────────────────────────────

// Enrichment accumulates the stage results for one candidate.  Each field
// starts absent and is filled exactly once per run by its owning stage, or
// left absent with a StageFailure explaining why.  The setters enforce the
// write-once invariant; a second write is a programming error surfaced as a
// conflict rather than silent data loss.
type Enrichment struct {
	Normalization *Normalization                   `json:"normalization,omitempty"`
	Regulatory    map[string]RegulatoryCheckResult `json:"regulatory,omitempty"`
	DosageVerdict *dosage.Verdict                  `json:"dosage_verdict,omitempty"`
	Literature    *LiteratureResult                `json:"literature,omitempty"`
	Assessment    *Assessment                      `json:"assessment,omitempty"`
	Failures      []StageFailure                   `json:"failures,omitempty"`
}

func alreadySet(stage Stage) *errors.AppError {
	return errors.New(errors.ErrCodeConflict, "enrichment field already set").
		WithDetail("stage=" + string(stage))
}

// SetNormalization records the normalization outcome.  Returns an error if
// the field was already written this run.
func (e *Enrichment) SetNormalization(n Normalization) error {
	if e.Normalization != nil {
		return alreadySet(StageNormalization)
	}
	e.Normalization = &n
	return nil
}

// SetRegulatory records the authority-keyed check results.
func (e *Enrichment) SetRegulatory(results map[string]RegulatoryCheckResult) error {
	if e.Regulatory != nil {
		return alreadySet(StageRegulatory)
	}
	e.Regulatory = results
	return nil
}

// SetDosageVerdict records the dosage comparison verdict.
func (e *Enrichment) SetDosageVerdict(v dosage.Verdict) error {
	if e.DosageVerdict != nil {
		return alreadySet(StageDosage)
	}
	e.DosageVerdict = &v
	return nil
}

// SetLiterature records the literature search outcome.
func (e *Enrichment) SetLiterature(r LiteratureResult) error {
	if e.Literature != nil {
		return alreadySet(StageLiterature)
	}
	e.Literature = &r
	return nil
}

// SetAssessment records the AI evidence assessment.
func (e *Enrichment) SetAssessment(a Assessment) error {
	if e.Assessment != nil {
		return alreadySet(StageGrading)
	}
	e.Assessment = &a
	return nil
}

// RecordFailure attaches a stage failure.  Unlike the value fields, multiple
// failures may accumulate (one per stage).
func (e *Enrichment) RecordFailure(stage Stage, err error) {
	reason := "unknown failure"
	if err != nil {
		reason = err.Error()
	}
	e.Failures = append(e.Failures, StageFailure{
		Stage:  stage,
		Code:   errors.GetCode(err),
		Reason: reason,
	})
}

// FailureFor returns the recorded failure for a stage, if any.
func (e *Enrichment) FailureFor(stage Stage) (StageFailure, bool) {
	for _, f := range e.Failures {
		if f.Stage == stage {
			return f, true
		}
	}
	return StageFailure{}, false
}

// ReferenceRange returns the first dosage range any authority supplied, in
// authority-name order so the choice is deterministic.
func (e *Enrichment) ReferenceRange() *dosage.Range {
	if e.Regulatory == nil {
		return nil
	}
	var best *dosage.Range
	var bestAuthority string
	for name, r := range e.Regulatory {
		if r.ReferenceRange == nil {
			continue
		}
		if best == nil || name < bestAuthority {
			best = r.ReferenceRange
			bestAuthority = name
		}
	}
	return best
}

// Complete reports whether every stage produced its field.
func (e *Enrichment) Complete() bool {
	return e.Normalization != nil &&
		e.Regulatory != nil &&
		e.DosageVerdict != nil &&
		e.Literature != nil &&
		e.Assessment != nil &&
		len(e.Failures) == 0
}

// ─────────────────────────────────────────────────────────────────────────────
// Report
// ─────────────────────────────────────────────────────────────────────────────

// Entry pairs a candidate with its final state and enrichment.
type Entry struct {
	Candidate  Candidate  `json:"candidate"`
	State      State      `json:"state"`
	Enrichment Enrichment `json:"enrichment"`
}

/// Report is the immutable artifact of one pipeline run: every input
// candidate in input order, each with its final enrichment state, plus
// run-level metadata.  It is the only artifact handed to external
// collaborators.
type Report struct {
	RunID       string    `json:"run_id"`
	DocumentID  string    `json:"document_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Entries     []Entry   `json:"entries"`

	// Completed counts candidates that finished every stage; Degraded and
	// Failed count the rest.  Completed+Degraded+Failed == len(Entries).
	Completed int `json:"completed"`
	Degraded  int `json:"degraded"`
	Failed    int `json:"failed"`
}
