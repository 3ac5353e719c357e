// Package errors provides standardized error handling for the document
// pipeline and its BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidRequest  ErrorCode = "INVALID_REQUEST"
	ErrCodeUnknownCategory ErrorCode = "UNKNOWN_CATEGORY"

	ErrCodeTemplateNotFound         ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeTemplateUnavailable      ErrorCode = "TEMPLATE_UNAVAILABLE"
	ErrCodeTemplateValidationFailed ErrorCode = "TEMPLATE_VALIDATION_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"

	ErrCodeCompletionTimeout ErrorCode = "COMPLETION_TIMEOUT"
	ErrCodeCompletionFailed  ErrorCode = "COMPLETION_FAILED"
	ErrCodeGenerationFailed  ErrorCode = "GENERATION_FAILED"

	ErrCodeMetricsFlushFailed    ErrorCode = "METRICS_FLUSH_FAILED"
	ErrCodeAnalyticsQueryFailed  ErrorCode = "ANALYTICS_QUERY_FAILED"
	ErrCodeInvalidTimeRange      ErrorCode = "INVALID_TIME_RANGE"
	ErrCodeExternalServiceFailed ErrorCode = "EXTERNAL_SERVICE_FAILED"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Cause
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// As extracts a StandardError from an error chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first StandardError in the chain, or
// INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := As(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
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

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
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

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		Cause:     cause,
	}
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// NewInvalidRequestError creates a non-retryable input error.
func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Invalid request", details, false, nil)
}

// NewUnknownCategoryError reports a caller passing a category outside the
// known set.
func NewUnknownCategoryError(category string) *StandardError {
	return newError(ErrCodeUnknownCategory, "Unknown document category",
		fmt.Sprintf("category: %s", category), false, nil)
}

// NewTemplateNotFoundError creates a non-retryable template error.
func NewTemplateNotFoundError(templateID string) *StandardError {
	return newError(ErrCodeTemplateNotFound, "Template not found in any source",
		fmt.Sprintf("templateId: %s", templateID), false, nil).
		WithMetadata("templateId", templateID)
}

// NewTemplateUnavailableError wraps a template store read failure.
func NewTemplateUnavailableError(templateID string, err error) *StandardError {
	return newError(ErrCodeTemplateUnavailable, "Template store unavailable",
		fmt.Sprintf("templateId: %s, error: %s", templateID, errDetails(err)), true, err).
		WithMetadata("templateId", templateID)
}

// NewTemplateValidationFailedError creates a non-retryable template validation error.
func NewTemplateValidationFailedError(details string) *StandardError {
	return newError(ErrCodeTemplateValidationFailed, "Template data failed validation", details, false, nil)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", errDetails(err), true, err)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, errDetails(err)), true, err)
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert error", errDetails(err), true, err)
}

// NewSearchQueryFailedError creates a retryable search query error.
func NewSearchQueryFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Search query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, errDetails(err)), true, err)
}

// NewCompletionTimeoutError creates a retryable completion timeout error.
func NewCompletionTimeoutError(err error) *StandardError {
	return newError(ErrCodeCompletionTimeout, "Completion service timed out", errDetails(err), true, err)
}

// NewCompletionFailedError creates a retryable completion error.
func NewCompletionFailedError(provider string, err error) *StandardError {
	return newError(ErrCodeCompletionFailed, "Completion service call failed",
		fmt.Sprintf("provider: %s, error: %s", provider, errDetails(err)), true, err).
		WithMetadata("provider", provider)
}

// NewGenerationFailedError is the user-facing failure of a generation
// request. stage names the pipeline step that failed.
func NewGenerationFailedError(stage, templateID string, err error) *StandardError {
	retryable := true
	if stdErr, ok := As(err); ok {
		retryable = stdErr.Retryable
	}
	return newError(ErrCodeGenerationFailed, "Could not generate document, please retry",
		errDetails(err), retryable, err).
		WithMetadata("stage", stage).
		WithMetadata("templateId", templateID)
}

// NewMetricsFlushFailedError is logged by the collector only.
func NewMetricsFlushFailedError(batchSize int, err error) *StandardError {
	return newError(ErrCodeMetricsFlushFailed, "Metrics batch write failed",
		fmt.Sprintf("batchSize: %d, error: %s", batchSize, errDetails(err)), true, err)
}

// NewAnalyticsQueryFailedError wraps a metrics history read failure.
func NewAnalyticsQueryFailedError(err error) *StandardError {
	return newError(ErrCodeAnalyticsQueryFailed, "Analytics query failed", errDetails(err), true, err)
}

// NewInvalidTimeRangeError creates a non-retryable range error.
func NewInvalidTimeRangeError(details string) *StandardError {
	return newError(ErrCodeInvalidTimeRange, "Invalid analytics time range", details, false, nil)
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalServiceFailed, fmt.Sprintf("%s service error", service), errDetails(err), true, err)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", errDetails(err), false, err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidRequest:           "INVALID_REQUEST",
	ErrCodeUnknownCategory:          "INVALID_REQUEST",
	ErrCodeTemplateNotFound:         "TEMPLATE_NOT_FOUND",
	ErrCodeTemplateUnavailable:      "TEMPLATE_UNAVAILABLE",
	ErrCodeTemplateValidationFailed: "TEMPLATE_VALIDATION_FAILED",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:     "QUERY_EXECUTION_FAILED",
	ErrCodeDatabaseInsertFailed:     "DATABASE_INSERT_FAILED",
	ErrCodeSearchQueryFailed:        "SEARCH_QUERY_FAILED",
	ErrCodeCompletionTimeout:        "COMPLETION_TIMEOUT",
	ErrCodeCompletionFailed:         "COMPLETION_FAILED",
	ErrCodeGenerationFailed:         "GENERATION_FAILED",
	ErrCodeMetricsFlushFailed:       "METRICS_FLUSH_FAILED",
	ErrCodeAnalyticsQueryFailed:     "ANALYTICS_QUERY_FAILED",
	ErrCodeInvalidTimeRange:         "INVALID_TIME_RANGE",
	ErrCodeExternalServiceFailed:    "EXTERNAL_SERVICE_FAILED",
	ErrCodeInternal:                 "INTERNAL_ERROR",
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed, ErrCodeTemplateUnavailable:
		return 3
	case ErrCodeQueryExecutionFailed, ErrCodeDatabaseInsertFailed, ErrCodeSearchQueryFailed:
		return 2
	case ErrCodeCompletionTimeout, ErrCodeCompletionFailed, ErrCodeGenerationFailed,
		ErrCodeExternalServiceFailed, ErrCodeAnalyticsQueryFailed:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	if stdErr == nil {
		return nil
	}
	code, ok := BPMNErrorMapping[stdErr.Code]
	if !ok {
		code = string(stdErr.Code)
	}
	return &BPMNError{
		Code:           code,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        GetRetryCount(stdErr.Code),
		ErrorVariables: stdErr.Metadata,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	c := string(code)
	switch {
	case strings.HasPrefix(c, "TEMPLATE_"):
		return "template"
	case strings.HasPrefix(c, "DATABASE_") || strings.HasPrefix(c, "QUERY_"):
		return "database"
	case strings.HasPrefix(c, "SEARCH_"):
		return "search"
	case strings.HasPrefix(c, "COMPLETION_") || code == ErrCodeGenerationFailed:
		return "generation"
	case strings.HasPrefix(c, "METRICS_") || strings.HasPrefix(c, "ANALYTICS_") || code == ErrCodeInvalidTimeRange:
		return "analytics"
	case code == ErrCodeInvalidRequest || code == ErrCodeUnknownCategory:
		return "validation"
	case code == ErrCodeExternalServiceFailed:
		return "external"
	default:
		return "internal"
	}
}
