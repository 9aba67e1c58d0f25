package llm

import (
	"context"
	"encoding/json"
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

func chatServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "test-model",
		Retry:   fastRetry(),
	}, logging.NewNopLogger())
	require.NoError(t, err)
	return srv, client
}

func respondWith(w http.ResponseWriter, content string) {
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
}

func TestNewClient_RequiresBaseURLAndModel(t *testing.T) {
	_, err := NewClient(Config{Model: "m"}, logging.NewNopLogger())
	assert.Error(t, err)

	_, err = NewClient(Config{BaseURL: "http://x"}, logging.NewNopLogger())
	assert.Error(t, err)
}

func TestComplete_SendsAuthAndMessages(t *testing.T) {
	var got chatRequest
	_, client := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		respondWith(w, "Atorvastatin")
	})

	out, err := client.Complete(context.Background(), Request{
		System: "You are a pharmacologist.",
		Prompt: "INN for Lipitor?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Atorvastatin", out)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Nil(t, got.ResponseFormat)
}

func TestComplete_ForceJSONSetsResponseFormat(t *testing.T) {
	var got chatRequest
	_, client := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		respondWith(w, `{"grade":"High"}`)
	})

	_, err := client.Complete(context.Background(), Request{Prompt: "grade it", ForceJSON: true})
	require.NoError(t, err)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestComplete_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	_, client := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		respondWith(w, "ok")
	})

	out, err := client.Complete(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.EqualValues(t, 3, calls.Load())
}

func TestComplete_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	_, client := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.Complete(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
	assert.True(t, errors.IsCode(err, errors.ErrCodeAIInferenceFailed))
}

func TestComplete_EmptyChoicesIsMalformed(t *testing.T) {
	_, client := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := client.Complete(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAIMalformedOutput))
}

func TestParseJSONOutput(t *testing.T) {
	type out struct {
		Grade string `json:"grade"`
	}

	var v out
	require.NoError(t, ParseJSONOutput(`{"grade":"High"}`, &v))
	assert.Equal(t, "High", v.Grade)

	v = out{}
	require.NoError(t, ParseJSONOutput("```json\n{\"grade\":\"Low\"}\n```", &v))
	assert.Equal(t, "Low", v.Grade)

	err := ParseJSONOutput("the grade is High", &v)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAIMalformedOutput))
}
