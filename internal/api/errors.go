package api

import (
	"net/http"

	apperrors "docgen-workers/internal/common/errors"

	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Code      apperrors.ErrorCode    `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

var statusByCode = map[apperrors.ErrorCode]int{
	apperrors.ErrCodeInvalidRequest:           http.StatusBadRequest,
	apperrors.ErrCodeInvalidTimeRange:         http.StatusBadRequest,
	apperrors.ErrCodeTemplateValidationFailed: http.StatusBadRequest,
	apperrors.ErrCodeUnknownCategory:          http.StatusUnprocessableEntity,
	apperrors.ErrCodeTemplateNotFound:         http.StatusNotFound,
	apperrors.ErrCodeCompletionTimeout:        http.StatusGatewayTimeout,
	apperrors.ErrCodeCompletionFailed:         http.StatusBadGateway,
	apperrors.ErrCodeGenerationFailed:         http.StatusBadGateway,
	apperrors.ErrCodeExternalServiceFailed:    http.StatusBadGateway,
	apperrors.ErrCodeTemplateUnavailable:      http.StatusServiceUnavailable,
	apperrors.ErrCodeDatabaseConnectionFailed: http.StatusServiceUnavailable,
	apperrors.ErrCodeQueryExecutionFailed:     http.StatusServiceUnavailable,
	apperrors.ErrCodeDatabaseInsertFailed:     http.StatusServiceUnavailable,
	apperrors.ErrCodeSearchQueryFailed:        http.StatusServiceUnavailable,
	apperrors.ErrCodeAnalyticsQueryFailed:     http.StatusServiceUnavailable,
}

func statusFor(code apperrors.ErrorCode) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// writeError renders err in the common error envelope. Internal errors
// never expose their details.
func (h *handler) writeError(c *gin.Context, err error) {
	stdErr := apperrors.Normalize(err)
	body := errorBody{
		Code:      stdErr.Code,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Metadata:  stdErr.Metadata,
	}
	if stdErr.Code == apperrors.ErrCodeInternal {
		body.Details = ""
		h.log.Error("Unhandled request error", map[string]interface{}{
			"path":  c.FullPath(),
			"error": err.Error(),
		})
	}
	c.AbortWithStatusJSON(statusFor(stdErr.Code), gin.H{"error": body})
}
