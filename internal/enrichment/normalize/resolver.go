package normalize

import (
	"context"
	"fmt"
	"strings"

	"github.com/turtacn/RxDossier/internal/domain/candidate"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/internal/intelligence/llm"
	"github.com/turtacn/RxDossier/pkg/errors"
)

const resolverSystemPrompt = "You are a pharmacology assistant. Given a drug name " +
	"as written in a clinical document, reply with its International " +
	"Nonproprietary Name (INN) and nothing else. If you cannot determine the " +
	"INN, reply with the single word UNKNOWN."

// Resolver turns a source-text drug name into a Normalization result.  The
// nomenclature index is authoritative; the AI capability is consulted only
// when the index yields no match or is unreachable, and its answers carry
// medium confidence.  A nil capability disables the fallback.
type Resolver struct {
	index  NameIndex
	ai     llm.Capability
	logger logging.Logger
}

// NewResolver constructs the two-path resolver.
func NewResolver(index NameIndex, ai llm.Capability, logger logging.Logger) *Resolver {
	return &Resolver{
		index:  index,
		ai:     ai,
		logger: logger.Named("normalize"),
	}
}

// Resolve never hard-fails: the returned Normalization is always usable, and
// the error (when non-nil) only explains why the result is unresolved so the
// caller can record the stage failure.  A defined no-match on both paths
// returns an unresolved result with a nil error.
func (r *Resolver) Resolve(ctx context.Context, sourceName string) (candidate.Normalization, error) {
	name := strings.TrimSpace(sourceName)

	inn, found, indexErr := r.index.Lookup(ctx, name)
	if indexErr == nil && found {
		return candidate.Normalization{
			INN:        inn,
			Source:     candidate.ResolutionIndex,
			Confidence: candidate.ConfidenceHigh,
		}, nil
	}
	if indexErr != nil {
		r.logger.Warn("nomenclature index lookup failed, trying AI fallback",
			logging.String("name", name),
			logging.Err(indexErr),
		)
	}

	if r.ai == nil {
		return unresolved(), indexErr
	}

	inn, aiErr := r.resolveWithAI(ctx, name)
	if aiErr != nil {
		r.logger.Warn("AI normalization fallback failed",
			logging.String("name", name),
			logging.Err(aiErr),
		)
		if indexErr != nil {
			return unresolved(), indexErr
		}
		return unresolved(), aiErr
	}
	if inn == "" {
		return unresolved(), nil
	}
	return candidate.Normalization{
		INN:        inn,
		Source:     candidate.ResolutionAI,
		Confidence: candidate.ConfidenceMedium,
	}, nil
}

func (r *Resolver) resolveWithAI(ctx context.Context, name string) (string, error) {
	out, err := r.ai.Complete(ctx, llm.Request{
		System: resolverSystemPrompt,
		Prompt: fmt.Sprintf("Drug name: %s", name),
	})
	if err != nil {
		return "", err
	}

	answer := strings.TrimSpace(strings.Trim(out, "\"`.\n "))
	if answer == "" || strings.EqualFold(answer, "unknown") {
		return "", nil
	}
	// A multi-line or sentence-length answer means the model ignored the
	// instruction; treat it as malformed rather than guessing.
	if strings.ContainsAny(answer, "\n") || len(strings.Fields(answer)) > 4 {
		return "", errors.New(errors.ErrCodeAIMalformedOutput, "fallback did not return a bare INN").
			WithDetail(answer)
	}
	return answer, nil
}

func unresolved() candidate.Normalization {
	return candidate.Normalization{
		Source:     candidate.ResolutionUnresolved,
		Confidence: candidate.ConfidenceNone,
	}
}
