// Package literature searches a biomedical literature index for evidence
// articles about a drug, with request coalescing and a freshness-bounded
// cache in front of the upstream.  The stage fails soft: an unreachable
// index yields an empty, flagged result, never a pipeline error.
package literature

import (
	"context"
	"fmt"
	"strings"

	"github.com/turtacn/RxDossier/internal/domain/candidate"
)

// Query describes one literature search.
type Query struct {
	// INN is the normalized drug name; required.
	INN string

	// BrandName is the source-text name, used as an alternate search term.
	BrandName string

	// Context is the disease/indication context narrowing the search.
	Context string

	// MaxResults caps the returned article list.
	MaxResults int
}

// Key is the canonical cache/coalescing identity of the query.  Two queries
// with the same key are interchangeable.
func (q Query) Key() string {
	return fmt.Sprintf("lit:%s|%s|%s|%d",
		strings.ToLower(strings.TrimSpace(q.INN)),
		strings.ToLower(strings.TrimSpace(q.BrandName)),
		strings.ToLower(strings.TrimSpace(q.Context)),
		q.MaxResults,
	)
}

// Index is the literature-search port.  An empty slice with a nil error is
// a defined "no hits" answer; an error means the index could not be
// consulted after retries.
type Index interface {
	Search(ctx context.Context, q Query) ([]candidate.Article, error)
}
