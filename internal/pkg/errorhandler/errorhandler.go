package errorhandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
	"github.com/campuspay/campuspay-api/internal/pkg/logger"
	"github.com/campuspay/campuspay-api/internal/pkg/response"
)

// Write maps err onto the response envelope and logs it with the request id.
// Business rejections are logged at warn, infrastructure failures at error.
func Write(ctx context.Context, w http.ResponseWriter, err error) {
	l := logger.FromContext(ctx)

	switch {
	case errors.Is(err, apperror.ErrValidation):
		l.Warn().Err(err).Msg("Request rejected")
		if details := apperror.Details(err); details != nil {
			response.ValidationError(w, details)
			return
		}
		response.ErrorWithDetails(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)

	case errors.Is(err, apperror.ErrInsufficientFunds):
		l.Warn().Err(err).Msg("Request rejected")
		response.Error(w, http.StatusConflict, "INSUFFICIENT_FUNDS", "Insufficient wallet balance")

	case errors.Is(err, apperror.ErrWalletFrozen):
		l.Warn().Err(err).Msg("Request rejected")
		response.Locked(w, "WALLET_FROZEN", "Wallet is frozen")

	case errors.Is(err, apperror.ErrLimitExceeded):
		l.Warn().Err(err).Msg("Request rejected")
		response.Error(w, http.StatusUnprocessableEntity, "LIMIT_EXCEEDED", err.Error())

	case errors.Is(err, apperror.ErrNotFound):
		response.NotFound(w, err.Error())

	case errors.Is(err, apperror.ErrConflict):
		l.Warn().Err(err).Msg("Request conflict")
		response.Conflict(w, err.Error())

	case errors.Is(err, apperror.ErrGateway):
		l.Error().Err(err).Msg("Gateway error")
		response.BadGateway(w, "Payment provider is unavailable, please try again")

	case errors.Is(err, apperror.ErrPersistence):
		l.Error().Err(err).Msg("Persistence error")
		response.ServiceUnavailable(w, "PERSISTENCE_ERROR", "Service temporarily unavailable, please retry")

	case errors.Is(err, context.Canceled):
		l.Debug().Msg("Request canceled by client")

	default:
		l.Error().Err(err).Msg("Unhandled error")
		response.InternalError(w)
	}
}

// LogExternalServiceError logs errors from external service calls
func LogExternalServiceError(ctx context.Context, service, endpoint string, statusCode int, err error, body string) {
	logger.FromContext(ctx).Error().
		Str("external_service", service).
		Str("endpoint", endpoint).
		Int("status_code", statusCode).
		Err(err).
		Str("response_body", truncateString(body, 1000)).
		Msg("External service error")
}

func truncateString(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "...<truncated>"
	}
	return s
}
