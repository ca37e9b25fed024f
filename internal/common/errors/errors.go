// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Configuration errors: fatal, rejected at construction.
	ErrCodeInvalidWeightConfig ErrorCode = "INVALID_WEIGHT_CONFIG"
	ErrCodeInvalidEngineConfig ErrorCode = "INVALID_ENGINE_CONFIG"

	// Input data errors: the offending record is rejected, never crashes
	// the ranking.
	ErrCodeInvalidJobData    ErrorCode = "INVALID_JOB_DATA"
	ErrCodeInvalidVendorData ErrorCode = "INVALID_VENDOR_DATA"

	// Dependency errors: recovered locally by degraded mode or retry.
	ErrCodeMLServiceTimeout    ErrorCode = "ML_SERVICE_TIMEOUT"
	ErrCodeMLServiceFailed     ErrorCode = "ML_SERVICE_FAILED"
	ErrCodeMLCircuitOpen       ErrorCode = "ML_CIRCUIT_OPEN"
	ErrCodeVendorLoadFailed    ErrorCode = "VENDOR_LOAD_FAILED"
	ErrCodeMetricsLoadFailed   ErrorCode = "METRICS_LOAD_FAILED"
	ErrCodeDatabaseUnavailable ErrorCode = "DATABASE_UNAVAILABLE"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// BPMNError represents an error that can be thrown to the workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// Only errors that escalate to the workflow engine have constructors;
// failures recovered by degraded mode or local fallback stay plain
// errors at their source.

// NewInvalidJobDataError creates a non-retryable job input error.
func NewInvalidJobDataError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidJobData,
		Message:   "Job request failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewVendorLoadFailedError creates a retryable repository error.
func NewVendorLoadFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeVendorLoadFailed,
		Message:   "Vendor profile load failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeVendorLoadFailed,
		ErrCodeMetricsLoadFailed,
		ErrCodeDatabaseUnavailable,
		ErrCodeNotificationSendFailed,
		ErrCodeMLServiceFailed:
		return 3

	case ErrCodeMLServiceTimeout:
		return 2

	default:
		return 0 // configuration and input errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CONFIG") || strings.Contains(codeStr, "WEIGHT"):
		return "CONFIGURATION"
	case strings.Contains(codeStr, "INVALID"):
		return "INPUT"
	case strings.Contains(codeStr, "ML_"):
		return "ML_DEPENDENCY"
	case strings.Contains(codeStr, "LOAD") || strings.Contains(codeStr, "DATABASE"):
		return "STORAGE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	default:
		return "OTHER"
	}
}
