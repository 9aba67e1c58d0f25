package literature

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/turtacn/RxDossier/internal/domain/candidate"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
)

// Service fronts the literature index with a cache and request coalescing.
// Identical queries issued concurrently (the same drug mentioned several
// times in one document, or across documents in one process) share a
// single upstream call; its result is cached and fanned out to every
// waiter.
type Service struct {
	index  Index
	cache  Cache
	group  singleflight.Group
	logger logging.Logger
}

// NewService constructs the coalescing search service.
func NewService(index Index, cache Cache, logger logging.Logger) *Service {
	return &Service{
		index:  index,
		cache:  cache,
		logger: logger.Named("literature"),
	}
}

// Search resolves one query.  It never returns an error: an index failure
// after retries produces an empty result with Failed set, so grading can
// still run on the remaining evidence.
func (s *Service) Search(ctx context.Context, q Query) candidate.LiteratureResult {
	key := q.Key()

	type outcome struct {
		articles  []candidate.Article
		fromCache bool
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		if articles, hit, err := s.cache.Get(ctx, key); err == nil && hit {
			return outcome{articles: articles, fromCache: true}, nil
		} else if err != nil {
			s.logger.Warn("literature cache unavailable, querying index directly",
				logging.String("key", key), logging.Err(err))
		}

		articles, err := s.index.Search(ctx, q)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, key, articles); err != nil {
			s.logger.Warn("failed to cache literature result",
				logging.String("key", key), logging.Err(err))
		}
		return outcome{articles: articles}, nil
	})
	if err != nil {
		s.logger.Warn("literature search failed",
			logging.String("inn", q.INN), logging.Err(err))
		return candidate.LiteratureResult{
			Articles:      []candidate.Article{},
			Failed:        true,
			FailureReason: err.Error(),
		}
	}

	out := v.(outcome)
	return candidate.LiteratureResult{
		Articles:  out.articles,
		FromCache: out.fromCache,
	}
}
