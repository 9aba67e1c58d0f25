// Package grader produces the final evidence assessment for one enriched
// candidate: a GRADE-style categorical rating with a short justification,
// generated by the AI capability from everything the earlier stages found.
package grader

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/turtacn/RxDossier/internal/domain/candidate"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/internal/intelligence/llm"
)

const graderSystemPrompt = "You are a clinical pharmacologist and an expert in " +
	"evidence-based medicine. Assess the evidence for the drug described in " +
	"the user message. Respond with a JSON object with exactly these fields: " +
	`"grade" (one of "High", "Moderate", "Low", "Very Low"), ` +
	`"justification" (one sentence explaining the grade), ` +
	`"summary_note" (one or two sentences for the reviewing clinician).`

// unknownField marks absent enrichment data in the prompt so the model
// grades on what is present instead of inventing the rest.
const unknownField = "unknown"

// Grader is the assessment stage.
type Grader struct {
	ai     llm.Capability
	logger logging.Logger
}

// NewGrader constructs the stage around an inference capability.
func NewGrader(ai llm.Capability, logger logging.Logger) *Grader {
	return &Grader{
		ai:     ai,
		logger: logger.Named("grader"),
	}
}

// promptPayload is the evidence digest serialized into the user prompt.
type promptPayload struct {
	SourceName     string            `json:"source_name"`
	SourceDosage   string            `json:"source_dosage"`
	Context        string            `json:"context"`
	INN            string            `json:"inn"`
	INNSource      string            `json:"inn_source"`
	INNConfidence  string            `json:"inn_confidence"`
	Regulatory     map[string]string `json:"regulatory_status"`
	DosageVerdict  string            `json:"dosage_verdict"`
	ArticleCount   int               `json:"article_count"`
	Articles       []string          `json:"articles"`
	LiteratureNote string            `json:"literature_note,omitempty"`
}

type assessmentOutput struct {
	Grade         string `json:"grade"`
	Justification string `json:"justification"`
	SummaryNote   string `json:"summary_note"`
}

// Assess grades one candidate from its accumulated enrichment.  Absent
// fields are presented as "unknown" rather than omitted.  A capability
// failure or malformed output degrades to GradeUndetermined with a
// non-empty justification; Assess itself never fails.
func (g *Grader) Assess(ctx context.Context, c candidate.Candidate, e *candidate.Enrichment) candidate.Assessment {
	prompt, err := buildPrompt(c, e)
	if err != nil {
		// Marshalling plain structs cannot realistically fail; degrade anyway.
		return undetermined("evidence digest could not be serialized")
	}

	raw, err := g.ai.Complete(ctx, llm.Request{
		System:    graderSystemPrompt,
		Prompt:    prompt,
		ForceJSON: true,
	})
	if err != nil {
		g.logger.Warn("evidence grading failed",
			logging.String("candidate", c.ID),
			logging.Err(err),
		)
		return undetermined("evidence grading unavailable: " + err.Error())
	}

	var out assessmentOutput
	if err := llm.ParseJSONOutput(raw, &out); err != nil {
		g.logger.Warn("evidence grading returned malformed output",
			logging.String("candidate", c.ID),
			logging.Err(err),
		)
		return undetermined("grading output was not valid JSON")
	}

	grade := candidate.ParseGrade(out.Grade)
	justification := strings.TrimSpace(out.Justification)
	if grade == candidate.GradeUndetermined && justification == "" {
		justification = "model did not return a recognised grade"
	}
	if justification == "" {
		justification = "no justification provided"
	}
	return candidate.Assessment{
		Grade:         grade,
		Justification: justification,
		SummaryNote:   strings.TrimSpace(out.SummaryNote),
	}
}

func buildPrompt(c candidate.Candidate, e *candidate.Enrichment) (string, error) {
	payload := promptPayload{
		SourceName:    orUnknown(c.SourceName),
		SourceDosage:  orUnknown(c.SourceDosage),
		Context:       orUnknown(c.Context),
		INN:           unknownField,
		INNSource:     unknownField,
		INNConfidence: unknownField,
		Regulatory:    map[string]string{},
		DosageVerdict: unknownField,
		Articles:      []string{},
	}
	if e.Normalization != nil {
		payload.INN = orUnknown(e.Normalization.INN)
		payload.INNSource = string(e.Normalization.Source)
		payload.INNConfidence = string(e.Normalization.Confidence)
	}
	for authority, r := range e.Regulatory {
		payload.Regulatory[authority] = string(r.Status)
	}
	if e.DosageVerdict != nil {
		payload.DosageVerdict = string(*e.DosageVerdict)
	}
	if e.Literature != nil {
		payload.ArticleCount = len(e.Literature.Articles)
		for _, a := range e.Literature.Articles {
			payload.Articles = append(payload.Articles, a.Title+" ("+a.StudyType+", "+a.PublishedAt+")")
		}
		if e.Literature.Failed {
			payload.LiteratureNote = "literature search failed; article list is incomplete"
		}
	}

	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return "Drug evidence data:\n" + string(raw), nil
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknownField
	}
	return s
}

func undetermined(reason string) candidate.Assessment {
	return candidate.Assessment{
		Grade:         candidate.GradeUndetermined,
		Justification: reason,
	}
}
