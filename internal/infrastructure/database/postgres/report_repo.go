package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/turtacn/RxDossier/internal/domain/candidate"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/pkg/errors"
)

// queryExecutor abstracts sql.DB and sql.Tx.
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// ReportRepo persists finished reports as one JSONB row per run, with the
// run metadata denormalized into columns for querying.
type ReportRepo struct {
	db     queryExecutor
	logger logging.Logger
}

var _ candidate.ReportRepository = (*ReportRepo)(nil)

// NewReportRepo constructs the repository.
func NewReportRepo(db queryExecutor, logger logging.Logger) *ReportRepo {
	return &ReportRepo{db: db, logger: logger.Named("report_repo")}
}

const insertReportSQL = `
INSERT INTO reports (run_id, document_id, generated_at, completed, degraded, failed, body)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Save implements candidate.ReportRepository.
func (r *ReportRepo) Save(ctx context.Context, report *candidate.Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode report")
	}

	_, err = r.db.ExecContext(ctx, insertReportSQL,
		report.RunID, report.DocumentID, report.GeneratedAt,
		report.Completed, report.Degraded, report.Failed, body,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == "23505" {
			return errors.New(errors.ErrCodeConflict, "report already saved").
				WithDetail("run_id=" + report.RunID)
		}
		return errors.Wrap(err, errors.ErrCodeReportStoreError, "failed to save report")
	}

	r.logger.Debug("report saved",
		logging.String("run_id", report.RunID),
		logging.Int("entries", len(report.Entries)),
	)
	return nil
}

const selectReportSQL = `SELECT body FROM reports WHERE run_id = $1`

// FindByRunID implements candidate.ReportRepository.
func (r *ReportRepo) FindByRunID(ctx context.Context, runID string) (*candidate.Report, error) {
	var body []byte
	err := r.db.QueryRowContext(ctx, selectReportSQL, runID).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeReportNotFound, "report not found").
			WithDetail("run_id=" + runID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeReportStoreError, "failed to load report")
	}
	return decodeReport(body)
}

const listReportsSQL = `
SELECT body FROM reports
WHERE document_id = $1
ORDER BY generated_at DESC
LIMIT $2`

// ListByDocument implements candidate.ReportRepository.
func (r *ReportRepo) ListByDocument(ctx context.Context, documentID string, limit int) ([]*candidate.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, listReportsSQL, documentID, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeReportStoreError, "failed to list reports")
	}
	defer rows.Close()

	var reports []*candidate.Report
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeReportStoreError, "failed to scan report row")
		}
		report, err := decodeReport(body)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeReportStoreError, "failed to iterate report rows")
	}
	return reports, nil
}

func decodeReport(body []byte) (*candidate.Report, error) {
	var report candidate.Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode stored report")
	}
	return &report, nil
}
