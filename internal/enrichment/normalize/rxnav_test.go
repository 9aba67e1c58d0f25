package normalize

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

func rxnavServer(t *testing.T, handler http.HandlerFunc) *RxNavClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRxNavClient(RxNavConfig{BaseURL: srv.URL, Retry: fastRetry()}, logging.NewNopLogger())
}

func TestLookup_ResolvesIngredient(t *testing.T) {
	client := rxnavServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rxcui.json":
			assert.Equal(t, "Lipitor", r.URL.Query().Get("name"))
			assert.Equal(t, "2", r.URL.Query().Get("search"))
			_, _ = w.Write([]byte(`{"idGroup":{"rxnormId":["153165"]}}`))
		case "/rxcui/153165/allrelated.json":
			_, _ = w.Write([]byte(`{"allRelatedGroup":{"conceptGroup":[
				{"tty":"BN","conceptProperties":[{"name":"Lipitor"}]},
				{"tty":"IN","conceptProperties":[{"name":"atorvastatin"}]}
			]}}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	inn, found, err := client.Lookup(context.Background(), "Lipitor")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "atorvastatin", inn)
}

func TestLookup_NoRxCUIIsDefinedNoMatch(t *testing.T) {
	client := rxnavServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"idGroup":{}}`))
	})

	_, found, err := client.Lookup(context.Background(), "notadrug")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLookup_NoIngredientConceptIsNoMatch(t *testing.T) {
	client := rxnavServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rxcui.json" {
			_, _ = w.Write([]byte(`{"idGroup":{"rxnormId":["42"]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"allRelatedGroup":{"conceptGroup":[{"tty":"BN","conceptProperties":[]}]}}`))
	})

	_, found, err := client.Lookup(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLookup_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := rxnavServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Path == "/rxcui.json" {
			_, _ = w.Write([]byte(`{"idGroup":{"rxnormId":["1"]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"allRelatedGroup":{"conceptGroup":[{"tty":"IN","conceptProperties":[{"name":"aspirin"}]}]}}`))
	})

	inn, found, err := client.Lookup(context.Background(), "Aspirin 500mg")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "aspirin", inn)
}

func TestLookup_ExhaustedRetriesSurfaceUnavailable(t *testing.T) {
	var calls atomic.Int32
	client := rxnavServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, _, err := client.Lookup(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNameIndexUnavailable))
	assert.EqualValues(t, 3, calls.Load())
}
