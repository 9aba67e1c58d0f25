package candidate

import "context"

// ReportRepository is the persistence port for finished reports.  The
// pipeline hands each assembled Report to a repository implementation
// unmodified; storage concerns (schema, serialization) live entirely behind
// this interface.
type ReportRepository interface {
	// Save persists a finished report.  Saving the same RunID twice is a
	// conflict.
	Save(ctx context.Context, report *Report) error

	// FindByRunID returns the report for a run, or a not-found error.
	FindByRunID(ctx context.Context, runID string) (*Report, error)

	// ListByDocument returns reports generated for a document, newest
	// first, bounded by limit.
	ListByDocument(ctx context.Context, documentID string, limit int) ([]*Report, error)
}
