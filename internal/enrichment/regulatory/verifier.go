package regulatory

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/RxDossier/internal/domain/candidate"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/pkg/backoff"
)

// Verifier fans one INN out to every configured authority in parallel and
// merges the answers into an authority-keyed map.  Failures are isolated:
// an unreachable authority becomes an error-status entry in the map after
// its retry budget is spent, and the other authorities are unaffected.
type Verifier struct {
	checkers       []Checker
	checkerTimeout time.Duration
	retry          backoff.Policy
	logger         logging.Logger
	now            func() time.Time
}

// NewVerifier constructs the fan-out verifier.  checkerTimeout bounds each
// individual authority call, attempts included.
func NewVerifier(checkers []Checker, checkerTimeout time.Duration, retry backoff.Policy, logger logging.Logger) *Verifier {
	if checkerTimeout == 0 {
		checkerTimeout = 15 * time.Second
	}
	return &Verifier{
		checkers:       checkers,
		checkerTimeout: checkerTimeout,
		retry:          retry,
		logger:         logger.Named("regulatory"),
		now:            time.Now,
	}
}

// VerifyAll runs every checker concurrently and returns one result per
// authority.  The returned map always has len(checkers) entries; VerifyAll
// itself never fails.
func (v *Verifier) VerifyAll(ctx context.Context, inn string) map[string]candidate.RegulatoryCheckResult {
	results := make(map[string]candidate.RegulatoryCheckResult, len(v.checkers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, checker := range v.checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			result := v.runChecker(ctx, c, inn)
			mu.Lock()
			results[c.Authority()] = result
			mu.Unlock()
		}(checker)
	}
	wg.Wait()
	return results
}

func (v *Verifier) runChecker(ctx context.Context, c Checker, inn string) candidate.RegulatoryCheckResult {
	ctx, cancel := context.WithTimeout(ctx, v.checkerTimeout)
	defer cancel()

	var result candidate.RegulatoryCheckResult
	err := backoff.Retry(ctx, v.retry, func(ctx context.Context) error {
		r, err := c.Check(ctx, inn)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		v.logger.Warn("authority check failed",
			logging.String("authority", c.Authority()),
			logging.String("inn", inn),
			logging.Err(err),
		)
		result = candidate.RegulatoryCheckResult{
			Authority: c.Authority(),
			Status:    candidate.RegulatoryError,
			Detail:    err.Error(),
		}
	}
	result.CheckedAt = v.now()
	return result
}
