package export

import (
	"context"

	"github.com/turtacn/RxDossier/internal/domain/candidate"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
)

// ArtifactStore persists rendered exports; implemented by the object
// storage adapter.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Service renders reports and archives the artifacts.
type Service struct {
	store  ArtifactStore
	logger logging.Logger
}

// NewService constructs the export service.  store may be nil when the
// process only serves inline downloads.
func NewService(store ArtifactStore, logger logging.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.Named("export"),
	}
}

// Export renders the report and, when an artifact store is configured,
// uploads it under reports/<run-id>.<format>.  The rendered bytes are
// returned either way.
func (s *Service) Export(ctx context.Context, report *candidate.Report, format Format) ([]byte, string, error) {
	data, err := Render(report, format)
	if err != nil {
		return nil, "", err
	}
	if s.store == nil {
		return data, "", nil
	}

	key := "reports/" + report.RunID + "." + string(format)
	stored, err := s.store.Put(ctx, key, data, format.ContentType())
	if err != nil {
		// The rendering is still usable; archiving is best effort.
		s.logger.Warn("failed to archive export artifact",
			logging.String("run_id", report.RunID),
			logging.Err(err),
		)
		return data, "", nil
	}
	return data, stored, nil
}
