// Package llm defines the language-model inference capability used by the
// enrichment pipeline (normalization fallback and evidence grading) and its
// OpenAI-compatible HTTP backend.  The pipeline only ever sees the
// Capability interface: prompt in, text out; retries and transport live
// here.
package llm

import "context"

// Request is one inference invocation.
type Request struct {
	// System is the role/instruction preamble.
	System string

	// Prompt is the user content.
	Prompt string

	// ForceJSON asks the backend for a JSON-object response when the model
	// supports response formats; callers must still validate the output.
	ForceJSON bool
}

// Capability is the inference contract.  Implementations must be safe for
// concurrent use; the pipeline invokes it from many candidate goroutines.
type Capability interface {
	// Complete runs one inference and returns the raw model output.
	// Transient transport failures are retried internally per the
	// configured budget; the returned error is terminal for this call.
	Complete(ctx context.Context, req Request) (string, error)
}
