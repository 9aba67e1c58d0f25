package client

import "time"

// Candidate is one drug mention submitted for enrichment.
type Candidate struct {
	ID           string `json:"id,omitempty"`
	SourceName   string `json:"source_name"`
	SourceDosage string `json:"source_dosage,omitempty"`
	Context      string `json:"context,omitempty"`
}

// Normalization is the resolved INN for a candidate.
type Normalization struct {
	INN        string `json:"inn,omitempty"`
	Source     string `json:"source"`
	Confidence string `json:"confidence"`
}

// DosageRange is an authority's published dose range.
type DosageRange struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Unit string  `json:"unit"`
}

// RegulatoryResult is one authority's approval answer.
type RegulatoryResult struct {
	Authority      string       `json:"authority"`
	Status         string       `json:"status"`
	Detail         string       `json:"detail,omitempty"`
	ReferenceRange *DosageRange `json:"reference_range,omitempty"`
	CheckedAt      time.Time    `json:"checked_at"`
}

// Article is one literature hit.
type Article struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Journal     string `json:"journal,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	StudyType   string `json:"study_type,omitempty"`
	Link        string `json:"link,omitempty"`
}

// Literature is the article list for a candidate.
type Literature struct {
	Articles      []Article `json:"articles"`
	Failed        bool      `json:"failed,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	FromCache     bool      `json:"from_cache,omitempty"`
}

// Assessment is the evidence grade.
type Assessment struct {
	Grade         string `json:"grade"`
	Justification string `json:"justification"`
	SummaryNote   string `json:"summary_note,omitempty"`
}

// StageFailure records why one stage produced no result.
type StageFailure struct {
	Stage  string `json:"stage"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// Enrichment holds the stage results for one candidate.
type Enrichment struct {
	Normalization *Normalization              `json:"normalization,omitempty"`
	Regulatory    map[string]RegulatoryResult `json:"regulatory,omitempty"`
	DosageVerdict *string                     `json:"dosage_verdict,omitempty"`
	Literature    *Literature                 `json:"literature,omitempty"`
	Assessment    *Assessment                 `json:"assessment,omitempty"`
	Failures      []StageFailure              `json:"failures,omitempty"`
}

// Entry is one candidate's final state in a report.
type Entry struct {
	Candidate  Candidate  `json:"candidate"`
	State      string     `json:"state"`
	Enrichment Enrichment `json:"enrichment"`
}

// Report is the artifact of one enrichment run.
type Report struct {
	RunID       string    `json:"run_id"`
	DocumentID  string    `json:"document_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Entries     []Entry   `json:"entries"`
	Completed   int       `json:"completed"`
	Degraded    int       `json:"degraded"`
	Failed      int       `json:"failed"`
}
