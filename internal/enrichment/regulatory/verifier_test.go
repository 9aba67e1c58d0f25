package regulatory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/RxDossier/internal/domain/candidate"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/pkg/backoff"
	"github.com/turtacn/RxDossier/pkg/errors"
)

type mockChecker struct {
	authority string
	checkFunc func(ctx context.Context, inn string) (candidate.RegulatoryCheckResult, error)
}

func (m *mockChecker) Authority() string { return m.authority }

func (m *mockChecker) Check(ctx context.Context, inn string) (candidate.RegulatoryCheckResult, error) {
	return m.checkFunc(ctx, inn)
}

func approving(authority string) *mockChecker {
	return &mockChecker{
		authority: authority,
		checkFunc: func(_ context.Context, _ string) (candidate.RegulatoryCheckResult, error) {
			return candidate.RegulatoryCheckResult{
				Authority: authority,
				Status:    candidate.RegulatoryApproved,
			}, nil
		},
	}
}

func testRetry() backoff.Policy {
	return backoff.Policy{MaxRetries: 1, Initial: time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 2.0}
}

func TestVerifyAll_OneResultPerAuthority(t *testing.T) {
	v := NewVerifier([]Checker{
		approving("FDA"), approving("EMA"), approving("BNF"), approving("WHO_EML"),
	}, time.Second, testRetry(), logging.NewNopLogger())

	results := v.VerifyAll(context.Background(), "aspirin")
	require.Len(t, results, 4)
	for _, authority := range []string{"FDA", "EMA", "BNF", "WHO_EML"} {
		r, ok := results[authority]
		require.True(t, ok, "missing %s", authority)
		assert.Equal(t, candidate.RegulatoryApproved, r.Status)
		assert.False(t, r.CheckedAt.IsZero())
	}
}

func TestVerifyAll_FailingAuthorityIsIsolated(t *testing.T) {
	var calls atomic.Int32
	failing := &mockChecker{
		authority: "EMA",
		checkFunc: func(_ context.Context, _ string) (candidate.RegulatoryCheckResult, error) {
			calls.Add(1)
			return candidate.RegulatoryCheckResult{}, errors.New(errors.ErrCodeAuthorityUnavailable, "connection refused")
		},
	}

	v := NewVerifier([]Checker{approving("FDA"), failing}, time.Second, testRetry(), logging.NewNopLogger())
	results := v.VerifyAll(context.Background(), "aspirin")

	assert.Equal(t, candidate.RegulatoryApproved, results["FDA"].Status)
	assert.Equal(t, candidate.RegulatoryError, results["EMA"].Status)
	assert.Contains(t, results["EMA"].Detail, "connection refused")
	// retry budget: 1 retry means 2 attempts.
	assert.EqualValues(t, 2, calls.Load())
}

func TestVerifyAll_SemanticErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	parseFail := &mockChecker{
		authority: "FDA",
		checkFunc: func(_ context.Context, _ string) (candidate.RegulatoryCheckResult, error) {
			calls.Add(1)
			return candidate.RegulatoryCheckResult{}, errors.New(errors.ErrCodeAuthorityParseError, "bad payload")
		},
	}

	v := NewVerifier([]Checker{parseFail}, time.Second, testRetry(), logging.NewNopLogger())
	results := v.VerifyAll(context.Background(), "x")

	assert.Equal(t, candidate.RegulatoryError, results["FDA"].Status)
	assert.EqualValues(t, 1, calls.Load())
}

func TestVerifyAll_SlowAuthorityTimesOutAlone(t *testing.T) {
	stuck := &mockChecker{
		authority: "EMA",
		checkFunc: func(ctx context.Context, _ string) (candidate.RegulatoryCheckResult, error) {
			<-ctx.Done()
			return candidate.RegulatoryCheckResult{}, ctx.Err()
		},
	}

	v := NewVerifier([]Checker{approving("FDA"), stuck},
		20*time.Millisecond, backoff.Policy{MaxRetries: 0, Initial: time.Millisecond, Max: time.Millisecond, Multiplier: 1.0},
		logging.NewNopLogger())

	start := time.Now()
	results := v.VerifyAll(context.Background(), "aspirin")
	elapsed := time.Since(start)

	assert.Equal(t, candidate.RegulatoryApproved, results["FDA"].Status)
	assert.Equal(t, candidate.RegulatoryError, results["EMA"].Status)
	assert.Less(t, elapsed, 500*time.Millisecond)
}
