package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/parleylabs/parley/internal/account/domain"
	chatdomain "github.com/parleylabs/parley/internal/chat/domain"
	orderdomain "github.com/parleylabs/parley/internal/order/domain"
	paymentdomain "github.com/parleylabs/parley/internal/payment/domain"
	providerdomain "github.com/parleylabs/parley/internal/providers/payment/domain"
	"github.com/parleylabs/parley/internal/providers/completion"
	"github.com/parleylabs/parley/internal/providers/imagegen"
	"github.com/parleylabs/parley/pkg/db"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
	ErrInternal       = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "invalid request",
		}
	case errors.Is(err, accountdomain.ErrQuotaExceeded):
		return http.StatusForbidden, errorPayload{
			Type:    "quota_exceeded",
			Message: "free message limit reached, upgrade to continue",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isVerificationError(err):
		// One generic message for every verification rejection so callers
		// cannot distinguish a bad signature from an identity mismatch.
		return http.StatusBadRequest, errorPayload{
			Type:    "verification_failed",
			Message: "payment verification failed",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case db.IsDuplicateKeyErr(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "resource already exists",
		}
	case isProviderError(err):
		return http.StatusBadGateway, errorPayload{
			Type:    "provider_error",
			Message: "upstream provider error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, accountdomain.ErrInvalidExternalID),
		errors.Is(err, chatdomain.ErrInvalidContent),
		errors.Is(err, chatdomain.ErrInvalidPrompt),
		errors.Is(err, orderdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrMissingFields):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, accountdomain.ErrNotFound),
		errors.Is(err, providerdomain.ErrOrderNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isVerificationError(err error) bool {
	switch {
	case errors.Is(err, paymentdomain.ErrInvalidSignature),
		errors.Is(err, paymentdomain.ErrIdentityMismatch),
		errors.Is(err, paymentdomain.ErrAccountNotFound):
		return true
	default:
		return false
	}
}

func isProviderError(err error) bool {
	switch {
	case errors.Is(err, providerdomain.ErrProvider),
		errors.Is(err, completion.ErrProvider),
		errors.Is(err, imagegen.ErrProvider):
		return true
	default:
		return false
	}
}

// classifyErrorForLog maps an error to (type, code) fields for the request
// log line.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	return payload.Type, err.Error()
}
