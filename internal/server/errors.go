package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	clientdomain "github.com/invoro/invoro/internal/client/domain"
	invoicedomain "github.com/invoro/invoro/internal/invoice/domain"
	"github.com/invoro/invoro/internal/observability/logger"
	"go.uber.org/zap"
)

type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *apiError) Error() string { return e.Code }

var (
	ErrNotFound           = &apiError{Status: http.StatusNotFound, Code: "not_found", Message: "resource not found"}
	ErrServiceUnavailable = &apiError{Status: http.StatusServiceUnavailable, Code: "service_unavailable", Message: "service unavailable"}
)

func invalidRequestError() *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "invalid request payload"}
}

func newValidationError(field, code, message string) *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: code, Message: message, Field: field}
}

// AbortWithError maps domain errors onto HTTP responses: missing resources
// to 404, business-rule conflicts to 409, bad input to 400, everything else
// to 500.
func AbortWithError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
		return
	}

	status := http.StatusInternalServerError
	code := "internal_error"

	switch {
	case errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, invoicedomain.ErrClientNotFound),
		errors.Is(err, clientdomain.ErrClientNotFound):
		status = http.StatusNotFound
		code = err.Error()
	case errors.Is(err, invoicedomain.ErrInvalidTransition),
		errors.Is(err, invoicedomain.ErrInvoiceNotDraft),
		errors.Is(err, invoicedomain.ErrInvoiceFinalized),
		errors.Is(err, clientdomain.ErrClientHasInvoices):
		status = http.StatusConflict
		code = err.Error()
	case errors.Is(err, invoicedomain.ErrInvalidStatus),
		errors.Is(err, invoicedomain.ErrInvalidItem),
		errors.Is(err, invoicedomain.ErrInvalidDates),
		errors.Is(err, clientdomain.ErrClientInvalidName):
		status = http.StatusBadRequest
		code = err.Error()
	default:
		logger.FromContext(c.Request.Context()).Error("request failed", zap.Error(err))
	}

	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code}})
}
