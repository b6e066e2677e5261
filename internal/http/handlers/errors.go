package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/estategate/internal/service"
	"github.com/gin-gonic/gin"
)

// respondServiceError maps the service taxonomy onto status codes. Verify-specific
// claim errors are handled by the auth handler before reaching here.
func respondServiceError(ctx *gin.Context, log *slog.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		RespondBadRequest(ctx, reasonOf(err), nil)
	case errors.Is(err, service.ErrAuth):
		RespondUnAuthorized(ctx, "invalid_credentials", "Invalid credentials")
	case errors.Is(err, service.ErrUnauthenticated):
		RespondUnAuthorized(ctx, "unauthorized", "Invalid or expired access token")
	case errors.Is(err, service.ErrForbidden):
		RespondForbidden(ctx, "Unauthorized")
	case errors.Is(err, service.ErrNotFound):
		RespondNotFound(ctx, "Token not found or already invalidated")
	case errors.Is(err, service.ErrExpired):
		RespondGone(ctx, "Token has expired")
	case errors.Is(err, service.ErrDelivery):
		RespondError(ctx, http.StatusInternalServerError, "delivery_failed", "Failed to send email", nil)
	default:
		log.ErrorContext(ctx.Request.Context(), fallback, "err", err)
		RespondInternal(ctx, fallback)
	}
}

// reasonOf strips the sentinel prefix so callers see only the specific reason.
func reasonOf(err error) string {
	msg := err.Error()
	prefix := service.ErrValidation.Error() + ": "

	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
