package regulatory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/turtacn/RxDossier/internal/domain/candidate"
	"github.com/turtacn/RxDossier/internal/domain/dosage"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/pkg/errors"
)

// FDAChecker queries the openFDA drug-label endpoint by active ingredient.
// When the label carries a dosing section, the first parsable range is
// attached as the reference range for the dosage comparison stage.
type FDAChecker struct {
	baseURL string
	http    *http.Client
	logger  logging.Logger
}

var _ Checker = (*FDAChecker)(nil)

// NewFDAChecker constructs the openFDA adapter.
func NewFDAChecker(baseURL string, timeout time.Duration, logger logging.Logger) *FDAChecker {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &FDAChecker{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("fda"),
	}
}

// Authority implements Checker.
func (c *FDAChecker) Authority() string { return AuthorityFDA }

type fdaLabelResponse struct {
	Results []struct {
		DosageAndAdministration []string `json:"dosage_and_administration"`
	} `json:"results"`
}

// Check implements Checker.  openFDA answers 404 for "no matching labels";
// that is a defined not-found, not an error.
func (c *FDAChecker) Check(ctx context.Context, inn string) (candidate.RegulatoryCheckResult, error) {
	query := url.QueryEscape(fmt.Sprintf("active_ingredient:%q", inn))
	u := fmt.Sprintf("%s/drug/label.json?search=%s&limit=1", c.baseURL, query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return candidate.RegulatoryCheckResult{}, errors.Wrap(err, errors.ErrCodeAuthorityUnavailable, "failed to build openFDA request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return candidate.RegulatoryCheckResult{}, errors.Wrap(err, errors.ErrCodeAuthorityUnavailable, "openFDA request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return c.notFound(), nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return candidate.RegulatoryCheckResult{}, errors.New(errors.ErrCodeAuthorityRateLimited, "openFDA rate limit exceeded")
	case resp.StatusCode != http.StatusOK:
		return candidate.RegulatoryCheckResult{}, errors.Newf(errors.ErrCodeAuthorityUnavailable, "openFDA returned %d", resp.StatusCode)
	}

	var parsed fdaLabelResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return candidate.RegulatoryCheckResult{}, errors.Wrap(err, errors.ErrCodeAuthorityUnavailable, "failed to decode openFDA response")
	}
	if len(parsed.Results) == 0 {
		return c.notFound(), nil
	}

	result := candidate.RegulatoryCheckResult{
		Authority: AuthorityFDA,
		Status:    candidate.RegulatoryApproved,
		Detail:    "found in FDA label database",
	}
	if r, ok := extractReferenceRange(parsed.Results[0].DosageAndAdministration); ok {
		result.ReferenceRange = &r
	}
	return result, nil
}

func (c *FDAChecker) notFound() candidate.RegulatoryCheckResult {
	return candidate.RegulatoryCheckResult{
		Authority: AuthorityFDA,
		Status:    candidate.RegulatoryNotFound,
		Detail:    "no matching label in FDA database",
	}
}

func extractReferenceRange(sections []string) (dosage.Range, bool) {
	for _, section := range sections {
		if r, ok := dosage.ParseRange(strings.TrimSpace(section)); ok {
			return r, true
		}
	}
	return dosage.Range{}, false
}
