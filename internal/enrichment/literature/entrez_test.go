package literature

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/pkg/backoff"
	"github.com/turtacn/RxDossier/pkg/errors"
)

func fastRetry() backoff.Policy {
	return backoff.Policy{MaxRetries: 2, Initial: time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 2.0}
}

func entrezServer(t *testing.T, handler http.HandlerFunc) *EntrezClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewEntrezClient(EntrezConfig{
		BaseURL:       srv.URL,
		APIKey:        "key",
		Email:         "dev@example.org",
		RatePerSecond: 1000, // keep tests fast
		Retry:         fastRetry(),
	}, logging.NewNopLogger())
}

func TestBuildTerm(t *testing.T) {
	term := buildTerm(Query{INN: "paracetamol", BrandName: "Dafalgan", Context: "migraine"})
	assert.Contains(t, term, "paracetamol[Title/Abstract]")
	assert.Contains(t, term, `"Dafalgan"[Title/Abstract]`)
	assert.Contains(t, term, `"migraine"[Title/Abstract]`)
	assert.Contains(t, term, "randomized controlled trial")

	// Brand equal to INN is not repeated.
	term = buildTerm(Query{INN: "aspirin", BrandName: "Aspirin"})
	assert.NotContains(t, term, `"Aspirin"`)
}

func TestSearch_ResolvesAndPreservesRelevanceOrder(t *testing.T) {
	client := entrezServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/esearch.fcgi":
			assert.Equal(t, "pubmed", r.URL.Query().Get("db"))
			assert.Equal(t, "relevance", r.URL.Query().Get("sort"))
			assert.Equal(t, "key", r.URL.Query().Get("api_key"))
			_, _ = w.Write([]byte(`{"esearchresult":{"idlist":["222","111"]}}`))
		case "/esummary.fcgi":
			assert.Equal(t, "222,111", r.URL.Query().Get("id"))
			_, _ = w.Write([]byte(`{"result":{
				"111":{"uid":"111","title":"Older trial","source":"Lancet","pubdate":"2019","pubtype":["Randomized Controlled Trial"]},
				"222":{"uid":"222","title":"Newer meta-analysis","source":"BMJ","pubdate":"2023","pubtype":["Meta-Analysis"]}
			}}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	articles, err := client.Search(context.Background(), Query{INN: "aspirin", MaxResults: 5})
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "222", articles[0].ID)
	assert.Equal(t, "Newer meta-analysis", articles[0].Title)
	assert.Equal(t, "Meta-Analysis", articles[0].StudyType)
	assert.Equal(t, articleLinkBase+"222/", articles[0].Link)
	assert.Equal(t, "111", articles[1].ID)
}

func TestSearch_NoHitsIsEmptyNotError(t *testing.T) {
	client := entrezServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"esearchresult":{"idlist":[]}}`))
	})

	articles, err := client.Search(context.Background(), Query{INN: "zzz", MaxResults: 5})
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestSearch_RetriesThenFailsWithTransientCode(t *testing.T) {
	var calls atomic.Int32
	client := entrezServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Search(context.Background(), Query{INN: "x", MaxResults: 5})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeLiteratureUnavailable))
	assert.True(t, errors.IsTransient(err))
	assert.EqualValues(t, 3, calls.Load())
}

func TestSearch_RateLimitedSurfacesDedicatedCode(t *testing.T) {
	client := entrezServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Search(context.Background(), Query{INN: "x", MaxResults: 5})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeLiteratureRateLimited))
}
