package regulatory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/turtacn/RxDossier/internal/domain/candidate"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/pkg/errors"
)

// maxEMABodyBytes bounds how much of the medicines-search page is scanned.
const maxEMABodyBytes = 1 << 20

// EMAChecker queries the EMA medicines search.  The endpoint has no JSON
// API, so presence is decided by a case-insensitive scan of the result page
// for the queried name.
type EMAChecker struct {
	baseURL string
	http    *http.Client
	logger  logging.Logger
}

var _ Checker = (*EMAChecker)(nil)

// NewEMAChecker constructs the EMA adapter.
func NewEMAChecker(baseURL string, timeout time.Duration, logger logging.Logger) *EMAChecker {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &EMAChecker{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("ema"),
	}
}

// Authority implements Checker.
func (c *EMAChecker) Authority() string { return AuthorityEMA }

// Check implements Checker.
func (c *EMAChecker) Check(ctx context.Context, inn string) (candidate.RegulatoryCheckResult, error) {
	u := fmt.Sprintf("%s/medicines/search?search_api_views_fulltext=%s", c.baseURL, url.QueryEscape(inn))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return candidate.RegulatoryCheckResult{}, errors.Wrap(err, errors.ErrCodeAuthorityUnavailable, "failed to build EMA request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return candidate.RegulatoryCheckResult{}, errors.Wrap(err, errors.ErrCodeAuthorityUnavailable, "EMA request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return candidate.RegulatoryCheckResult{}, errors.New(errors.ErrCodeAuthorityRateLimited, "EMA rate limit exceeded")
	}
	if resp.StatusCode != http.StatusOK {
		return candidate.RegulatoryCheckResult{}, errors.Newf(errors.ErrCodeAuthorityUnavailable, "EMA returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEMABodyBytes))
	if err != nil {
		return candidate.RegulatoryCheckResult{}, errors.Wrap(err, errors.ErrCodeAuthorityUnavailable, "failed to read EMA response")
	}

	if strings.Contains(strings.ToLower(string(body)), strings.ToLower(inn)) {
		return candidate.RegulatoryCheckResult{
			Authority: AuthorityEMA,
			Status:    candidate.RegulatoryApproved,
			Detail:    "found in EMA medicines search",
		}, nil
	}
	return candidate.RegulatoryCheckResult{
		Authority: AuthorityEMA,
		Status:    candidate.RegulatoryNotFound,
		Detail:    "no match in EMA medicines search",
	}, nil
}
