package literature

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/turtacn/RxDossier/internal/domain/candidate"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/pkg/backoff"
	"github.com/turtacn/RxDossier/pkg/errors"
)

// publicationTypeFilter restricts hits to study designs that can carry
// gradeable evidence.
const publicationTypeFilter = `"randomized controlled trial"[Publication Type] OR ` +
	`"meta-analysis"[Publication Type] OR "systematic review"[Publication Type]`

const articleLinkBase = "https://pubmed.ncbi.nlm.nih.gov/"

// EntrezConfig holds the E-utilities client parameters.  RatePerSecond
// should stay at or under the published per-key limit.
type EntrezConfig struct {
	BaseURL       string
	APIKey        string
	Email         string
	RatePerSecond float64
	Timeout       time.Duration
	Retry         backoff.Policy
}

// EntrezClient implements Index against the NCBI E-utilities: esearch
// resolves the PMID list, esummary fetches the article metadata.  A shared
// limiter throttles both calls so concurrent candidates cannot overrun the
// upstream quota.
type EntrezClient struct {
	cfg     EntrezConfig
	http    *http.Client
	limiter *rate.Limiter
	logger  logging.Logger
}

var _ Index = (*EntrezClient)(nil)

// NewEntrezClient constructs the E-utilities client.
func NewEntrezClient(cfg EntrezConfig, logger logging.Logger) *EntrezClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 9
	}
	return &EntrezClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		logger:  logger.Named("entrez"),
	}
}

// buildTerm composes the search expression: name terms restricted to
// title/abstract, AND-ed with the indication context and the
// publication-type filter.
func buildTerm(q Query) string {
	names := fmt.Sprintf("%s[Title/Abstract]", q.INN)
	if q.BrandName != "" && !strings.EqualFold(q.BrandName, q.INN) {
		names = fmt.Sprintf("%s OR %q[Title/Abstract]", names, q.BrandName)
	}
	term := "(" + names + ")"
	if q.Context != "" {
		term = fmt.Sprintf("(%s AND %q[Title/Abstract])", term, q.Context)
	}
	return fmt.Sprintf("(%s) AND (%s)", term, publicationTypeFilter)
}

type esearchResponse struct {
	ESearchResult struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type esummaryDoc struct {
	UID      string   `json:"uid"`
	Title    string   `json:"title"`
	Source   string   `json:"source"`
	PubDate  string   `json:"pubdate"`
	PubTypes []string `json:"pubtype"`
}

// Search implements Index.
func (c *EntrezClient) Search(ctx context.Context, q Query) ([]candidate.Article, error) {
	var articles []candidate.Article
	err := backoff.Retry(ctx, c.cfg.Retry, func(ctx context.Context) error {
		found, err := c.searchOnce(ctx, q)
		if err != nil {
			return err
		}
		articles = found
		return nil
	})
	return articles, err
}

func (c *EntrezClient) searchOnce(ctx context.Context, q Query) ([]candidate.Article, error) {
	pmids, err := c.esearch(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(pmids) == 0 {
		return []candidate.Article{}, nil
	}
	return c.esummary(ctx, pmids)
}

func (c *EntrezClient) esearch(ctx context.Context, q Query) ([]string, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", buildTerm(q))
	params.Set("retmax", fmt.Sprintf("%d", q.MaxResults))
	params.Set("sort", "relevance")
	params.Set("retmode", "json")
	c.addCredentials(params)

	var parsed esearchResponse
	if err := c.getJSON(ctx, "/esearch.fcgi", params, &parsed); err != nil {
		return nil, err
	}
	return parsed.ESearchResult.IDList, nil
}

func (c *EntrezClient) esummary(ctx context.Context, pmids []string) ([]candidate.Article, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("retmode", "json")
	c.addCredentials(params)

	var parsed esummaryResponse
	if err := c.getJSON(ctx, "/esummary.fcgi", params, &parsed); err != nil {
		return nil, err
	}

	// Preserve esearch relevance order, not the map's iteration order.
	articles := make([]candidate.Article, 0, len(pmids))
	for _, pmid := range pmids {
		raw, ok := parsed.Result[pmid]
		if !ok {
			continue
		}
		var doc esummaryDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		studyType := ""
		if len(doc.PubTypes) > 0 {
			studyType = doc.PubTypes[0]
		}
		articles = append(articles, candidate.Article{
			ID:          pmid,
			Title:       doc.Title,
			Journal:     doc.Source,
			PublishedAt: doc.PubDate,
			StudyType:   studyType,
			Link:        articleLinkBase + pmid + "/",
		})
	}
	return articles, nil
}

func (c *EntrezClient) addCredentials(params url.Values) {
	if c.cfg.APIKey != "" {
		params.Set("api_key", c.cfg.APIKey)
	}
	if c.cfg.Email != "" {
		params.Set("email", c.cfg.Email)
	}
}

func (c *EntrezClient) getJSON(ctx context.Context, path string, params url.Values, dest interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeCancelled, "rate limiter wait aborted")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeLiteratureUnavailable, "failed to build E-utilities request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeLiteratureUnavailable, "E-utilities request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return errors.New(errors.ErrCodeLiteratureRateLimited, "E-utilities rate limit exceeded")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Newf(errors.ErrCodeLiteratureUnavailable, "E-utilities returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeLiteratureParseError, "failed to decode E-utilities response")
	}
	return nil
}
