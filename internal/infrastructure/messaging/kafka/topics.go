// Package kafka carries the asynchronous analysis jobs: the API server
// publishes requests, the worker consumes them, runs the pipeline, and
// publishes completions.  Jobs that keep failing are parked on the DLQ.
package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/RxDossier/internal/domain/candidate"
	"github.com/turtacn/RxDossier/pkg/errors"
)

// Topic constants
const (
	TopicAnalysisRequest   = "dossier.analysis.request"
	TopicAnalysisCompleted = "dossier.analysis.completed"
	TopicAnalysisDLQ       = "dossier.analysis.request.dlq"
)

const schemaVersion = "1.0"

// EventEnvelope standardizes event messages.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// AnalysisRequestPayload is one queued analysis job.
type AnalysisRequestPayload struct {
	JobID       string                `json:"job_id"`
	DocumentID  string                `json:"document_id"`
	Candidates  []candidate.Candidate `json:"candidates"`
	SubmittedAt time.Time             `json:"submitted_at"`
}

// AnalysisCompletedPayload announces a persisted report.
type AnalysisCompletedPayload struct {
	JobID       string    `json:"job_id"`
	RunID       string    `json:"run_id"`
	DocumentID  string    `json:"document_id"`
	Completed   int       `json:"completed"`
	Degraded    int       `json:"degraded"`
	Failed      int       `json:"failed"`
	GeneratedAt time.Time `json:"generated_at"`
}

// NewEnvelope wraps a payload for publishing.
func NewEnvelope(eventType, source string, payload interface{}) (EventEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return EventEnvelope{}, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode event payload")
	}
	return EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schemaVersion,
		Payload:       raw,
	}, nil
}

// DecodePayload unmarshals the envelope payload into dest.
func (e EventEnvelope) DecodePayload(dest interface{}) error {
	if err := json.Unmarshal(e.Payload, dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode event payload").
			WithDetail("event_type=" + e.EventType)
	}
	return nil
}
