package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_005"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_006"
	ErrCodeTimeout            ErrorCode = "COMMON_007"
	ErrCodeValidation         ErrorCode = "COMMON_008"
	ErrCodeSerialization      ErrorCode = "COMMON_009"
	ErrCodeDatabaseError      ErrorCode = "COMMON_010"
	ErrCodeCacheError         ErrorCode = "COMMON_011"
	ErrCodeExternalService    ErrorCode = "COMMON_012"
	ErrCodeCancelled          ErrorCode = "COMMON_013"
)

// Normalization module error codes
const (
	ErrCodeNameIndexUnavailable ErrorCode = "NRM_001"
	ErrCodeNameNotFound         ErrorCode = "NRM_002"
	ErrCodeNameUnresolved       ErrorCode = "NRM_003"
)

// Regulatory module error codes
const (
	ErrCodeAuthorityUnavailable ErrorCode = "REG_001"
	ErrCodeAuthorityNotFound    ErrorCode = "REG_002"
	ErrCodeAuthorityRateLimited ErrorCode = "REG_003"
	ErrCodeAuthorityParseError  ErrorCode = "REG_004"
)

// Literature module error codes
const (
	ErrCodeLiteratureUnavailable ErrorCode = "LIT_001"
	ErrCodeLiteratureParseError  ErrorCode = "LIT_002"
	ErrCodeLiteratureRateLimited ErrorCode = "LIT_003"
)

// Dosage module error codes
const (
	ErrCodeDosageUnparsable       ErrorCode = "DOS_001"
	ErrCodeDosageUnitIncompatible ErrorCode = "DOS_002"
)

// AI capability error codes
const (
	ErrCodeAIUnavailable     ErrorCode = "AI_001"
	ErrCodeAIInferenceFailed ErrorCode = "AI_002"
	ErrCodeAIMalformedOutput ErrorCode = "AI_003"
	ErrCodeAIInputInvalid    ErrorCode = "AI_004"
)

// Report / run error codes
const (
	ErrCodeReportNotFound   ErrorCode = "RPT_001"
	ErrCodeRunInputInvalid  ErrorCode = "RPT_002"
	ErrCodeExportFailed     ErrorCode = "RPT_003"
	ErrCodeReportStoreError ErrorCode = "RPT_004"
)

// transientCodes is the set of codes that may be retried with backoff.
// Semantic failures (not-found, unparsable, malformed) are deliberately
// absent: retrying them cannot change the outcome.
var transientCodes = map[ErrorCode]struct{}{
	ErrCodeTimeout:               {},
	ErrCodeTooManyRequests:       {},
	ErrCodeServiceUnavailable:    {},
	ErrCodeExternalService:       {},
	ErrCodeNameIndexUnavailable:  {},
	ErrCodeAuthorityUnavailable:  {},
	ErrCodeAuthorityRateLimited:  {},
	ErrCodeLiteratureUnavailable: {},
	ErrCodeLiteratureRateLimited: {},
	ErrCodeAIUnavailable:         {},
}

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeCancelled:          http.StatusInternalServerError,

	ErrCodeNameIndexUnavailable: http.StatusBadGateway,
	ErrCodeNameNotFound:         http.StatusNotFound,
	ErrCodeNameUnresolved:       http.StatusNotFound,

	ErrCodeAuthorityUnavailable: http.StatusBadGateway,
	ErrCodeAuthorityNotFound:    http.StatusNotFound,
	ErrCodeAuthorityRateLimited: http.StatusTooManyRequests,
	ErrCodeAuthorityParseError:  http.StatusBadGateway,

	ErrCodeLiteratureUnavailable: http.StatusBadGateway,
	ErrCodeLiteratureParseError:  http.StatusBadGateway,
	ErrCodeLiteratureRateLimited: http.StatusTooManyRequests,

	ErrCodeDosageUnparsable:       http.StatusUnprocessableEntity,
	ErrCodeDosageUnitIncompatible: http.StatusUnprocessableEntity,

	ErrCodeAIUnavailable:     http.StatusServiceUnavailable,
	ErrCodeAIInferenceFailed: http.StatusInternalServerError,
	ErrCodeAIMalformedOutput: http.StatusInternalServerError,
	ErrCodeAIInputInvalid:    http.StatusBadRequest,

	ErrCodeReportNotFound:   http.StatusNotFound,
	ErrCodeRunInputInvalid:  http.StatusBadRequest,
	ErrCodeExportFailed:     http.StatusInternalServerError,
	ErrCodeReportStoreError: http.StatusInternalServerError,
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// IsClientError reports whether the code corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError reports whether the code corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode
// (e.g. "REG" for REG_001).
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
