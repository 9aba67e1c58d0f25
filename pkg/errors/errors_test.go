package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CapturesCodeAndStack(t *testing.T) {
	err := New(ErrCodeNameNotFound, "no concept for name")

	assert.Equal(t, ErrCodeNameNotFound, err.Code)
	assert.Equal(t, "no concept for name", err.Message)
	assert.NotEmpty(t, err.Stack)
	assert.Equal(t, "[NRM_002] no concept for name", err.Error())
}

func TestError_IncludesDetail(t *testing.T) {
	err := New(ErrCodeAuthorityNotFound, "not listed").WithDetail("authority=EMA")
	assert.Equal(t, "[REG_002] not listed: authority=EMA", err.Error())
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeDatabaseError, "query failed"))
}

func TestWrap_PreservesCodeOnInternal(t *testing.T) {
	inner := New(ErrCodeAuthorityRateLimited, "slow down")
	outer := Wrap(inner, ErrCodeInternal, "FDA lookup failed")

	assert.Equal(t, ErrCodeAuthorityRateLimited, outer.Code)
	assert.True(t, errors.Is(outer, inner))
	assert.True(t, IsCode(outer, ErrCodeAuthorityRateLimited))
}

func TestWrap_ExplicitCodeWins(t *testing.T) {
	inner := New(ErrCodeTimeout, "deadline exceeded")
	outer := Wrap(inner, ErrCodeLiteratureUnavailable, "esearch failed")

	assert.Equal(t, ErrCodeLiteratureUnavailable, outer.Code)
	// The original code remains reachable through the chain.
	assert.True(t, IsCode(outer, ErrCodeTimeout))
}

func TestIsNotFound(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want bool
	}{
		{ErrCodeNotFound, true},
		{ErrCodeNameNotFound, true},
		{ErrCodeAuthorityNotFound, true},
		{ErrCodeReportNotFound, true},
		{ErrCodeTimeout, false},
		{ErrCodeInternal, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsNotFound(New(tc.code, "x")), "code %s", tc.code)
	}
}

func TestIsNotFound_WrappedChain(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(ErrCodeNameNotFound, "gone"))
	assert.True(t, IsNotFound(err))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(context.Canceled))
	assert.True(t, IsTransient(context.DeadlineExceeded))

	// Transient codes get retries.
	assert.True(t, IsTransient(New(ErrCodeAuthorityUnavailable, "502")))
	assert.True(t, IsTransient(New(ErrCodeLiteratureRateLimited, "429")))

	// Semantic failures never retry.
	assert.False(t, IsTransient(New(ErrCodeAuthorityNotFound, "not listed")))
	assert.False(t, IsTransient(New(ErrCodeDosageUnparsable, "garbage")))
	assert.False(t, IsTransient(New(ErrCodeAIMalformedOutput, "bad json")))

	// Unclassified errors are assumed transient (raw network errors).
	assert.True(t, IsTransient(errors.New("connection reset by peer")))
}

func TestGetCode(t *testing.T) {
	require.Equal(t, ErrorCode("OK"), GetCode(nil))
	assert.Equal(t, ErrCodeCacheError, GetCode(New(ErrCodeCacheError, "x")))
	assert.Equal(t, ErrCodeInternal, GetCode(errors.New("plain")))

	wrapped := fmt.Errorf("ctx: %w", New(ErrCodeExportFailed, "x"))
	assert.Equal(t, ErrCodeExportFailed, GetCode(wrapped))
}

func TestHTTPStatusForCode(t *testing.T) {
	assert.Equal(t, 404, HTTPStatusForCode(ErrCodeReportNotFound))
	assert.Equal(t, 422, HTTPStatusForCode(ErrCodeDosageUnparsable))
	assert.Equal(t, 500, HTTPStatusForCode(ErrorCode("UNKNOWN_999")))
}

func TestModuleForCode(t *testing.T) {
	assert.Equal(t, "REG", ModuleForCode(ErrCodeAuthorityNotFound))
	assert.Equal(t, "COMMON", ModuleForCode(ErrCodeInternal))
	assert.Equal(t, "UNKNOWN", ModuleForCode(ErrorCode("")))
}
