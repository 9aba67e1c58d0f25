// Package regulatory verifies a normalized drug name against multiple
// regulatory authorities in parallel.  Each authority is an independent
// Checker; one slow or failing authority never blocks the others, and its
// failure degrades only its own entry in the merged result map.
package regulatory

import (
	"context"

	"github.com/turtacn/RxDossier/internal/domain/candidate"
)

// Authority identifiers as they appear in the merged result map and reports.
const (
	AuthorityFDA    = "FDA"
	AuthorityEMA    = "EMA"
	AuthorityBNF    = "BNF"
	AuthorityWHOEML = "WHO_EML"
)

// Checker is one regulatory authority adapter.  Check answers for a single
// INN; a returned error means the authority could not be consulted (the
// verifier records it as a per-authority error result, never as a stage
// failure).  Implementations must be safe for concurrent use.
type Checker interface {
	// Authority returns the stable identifier used as the result-map key.
	Authority() string

	// Check queries the authority for the given INN.
	Check(ctx context.Context, inn string) (candidate.RegulatoryCheckResult, error)
}
