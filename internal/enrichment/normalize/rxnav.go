// Package normalize maps source-text drug names to International
// Nonproprietary Names.  The primary path is an RxNorm-style nomenclature
// index; when the index has no match or is unreachable, an AI fallback
// produces a best-guess INN with lower confidence.  The stage fails soft:
// when both paths are exhausted the resolver returns an explicit
// "unresolved" result rather than an error.
package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/pkg/backoff"
	"github.com/turtacn/RxDossier/pkg/errors"
)

// NameIndex is the nomenclature-lookup port.  Lookup returns the INN for a
// free-text drug name, found=false for a defined "no match", or an error
// when the index could not be consulted.
type NameIndex interface {
	Lookup(ctx context.Context, name string) (inn string, found bool, err error)
}

// RxNavConfig holds the RxNav REST client parameters.
type RxNavConfig struct {
	BaseURL string
	Timeout time.Duration
	Retry   backoff.Policy
}

// RxNavClient implements NameIndex against the RxNav REST API: first
// /rxcui.json?name=<n>&search=2 resolves the concept identifier, then
// /rxcui/{id}/allrelated.json yields the related concepts, among which the
// tty=="IN" group carries the ingredient (INN) name.
type RxNavClient struct {
	cfg    RxNavConfig
	http   *http.Client
	logger logging.Logger
}

var _ NameIndex = (*RxNavClient)(nil)

// NewRxNavClient constructs the RxNav-backed NameIndex.
func NewRxNavClient(cfg RxNavConfig, logger logging.Logger) *RxNavClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &RxNavClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("rxnav"),
	}
}

type rxcuiResponse struct {
	IDGroup struct {
		RxNormID []string `json:"rxnormId"`
	} `json:"idGroup"`
}

type allRelatedResponse struct {
	AllRelatedGroup struct {
		ConceptGroup []struct {
			TTY               string `json:"tty"`
			ConceptProperties []struct {
				Name string `json:"name"`
			} `json:"conceptProperties"`
		} `json:"conceptGroup"`
	} `json:"allRelatedGroup"`
}

// Lookup implements NameIndex.  Transient HTTP failures are retried with
// the configured budget; an empty rxnormId list or a missing IN concept is
// a defined no-match, not an error.
func (c *RxNavClient) Lookup(ctx context.Context, name string) (string, bool, error) {
	var inn string
	var found bool

	err := backoff.Retry(ctx, c.cfg.Retry, func(ctx context.Context) error {
		rxcui, ok, err := c.findRxCUI(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			found = false
			return nil
		}
		inn, found, err = c.findIngredient(ctx, rxcui)
		return err
	})
	if err != nil {
		return "", false, err
	}
	return inn, found, nil
}

func (c *RxNavClient) findRxCUI(ctx context.Context, name string) (string, bool, error) {
	// search=2 enables normalized search on the index side.
	u := fmt.Sprintf("%s/rxcui.json?name=%s&search=2", c.cfg.BaseURL, url.QueryEscape(name))

	var parsed rxcuiResponse
	if err := c.getJSON(ctx, u, &parsed); err != nil {
		return "", false, err
	}
	ids := parsed.IDGroup.RxNormID
	if len(ids) == 0 || ids[0] == "" {
		return "", false, nil
	}
	return ids[0], true, nil
}

func (c *RxNavClient) findIngredient(ctx context.Context, rxcui string) (string, bool, error) {
	u := fmt.Sprintf("%s/rxcui/%s/allrelated.json", c.cfg.BaseURL, url.PathEscape(rxcui))

	var parsed allRelatedResponse
	if err := c.getJSON(ctx, u, &parsed); err != nil {
		return "", false, err
	}
	for _, group := range parsed.AllRelatedGroup.ConceptGroup {
		if group.TTY != "IN" {
			continue
		}
		for _, prop := range group.ConceptProperties {
			if name := strings.TrimSpace(prop.Name); name != "" {
				return name, true, nil
			}
		}
	}
	return "", false, nil
}

func (c *RxNavClient) getJSON(ctx context.Context, rawURL string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeNameIndexUnavailable, "failed to build RxNav request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeNameIndexUnavailable, "RxNav request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf(errors.ErrCodeNameIndexUnavailable, "RxNav returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeNameIndexUnavailable, "failed to decode RxNav response")
	}
	return nil
}
