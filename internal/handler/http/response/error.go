package response

import (
	"errors"
	"net/http"

	"github.com/vecinapp/feed-backend-go/internal/domain/auth"
	"github.com/vecinapp/feed-backend-go/internal/domain/feed"
	"github.com/vecinapp/feed-backend-go/internal/domain/notification"
	"github.com/vecinapp/feed-backend-go/internal/domain/subscription"
	"github.com/vecinapp/feed-backend-go/internal/domain/user"
	"github.com/vecinapp/feed-backend-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth domain errors
	case errors.Is(err, auth.ErrInvalidCredentials):
		Unauthorized(w, err.Error())
	case errors.Is(err, auth.ErrTokenExpired):
		Unauthorized(w, "Token expired")
	case errors.Is(err, auth.ErrInvalidToken):
		Unauthorized(w, "Invalid token")

	// User domain errors
	case errors.Is(err, user.ErrUserNotFound):
		NotFound(w, "User not found")
	case errors.Is(err, user.ErrEmailExists):
		Conflict(w, "Email already registered")

	// Feed domain errors
	case errors.Is(err, feed.ErrItemNotFound):
		NotFound(w, "Content not found")
	case errors.Is(err, feed.ErrInvalidContentType):
		BadRequest(w, "Unknown content type", nil)
	case errors.Is(err, feed.ErrEmptyTitle):
		BadRequest(w, "Content title is required", nil)
	case errors.Is(err, feed.ErrEmptyComment):
		BadRequest(w, "Comment body is required", nil)

	// Notification domain errors
	case errors.Is(err, notification.ErrRecordNotFound):
		NotFound(w, "Notification not found")
	case errors.Is(err, notification.ErrInvalidRecordType):
		BadRequest(w, "Unknown notification type", nil)
	case errors.Is(err, notification.ErrUnauthorized):
		Forbidden(w, "Not allowed to access this notification")

	// Subscription domain errors
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		NotFound(w, "Push subscription not found")
	case errors.Is(err, subscription.ErrInvalidSubscription):
		BadRequest(w, "Invalid push subscription", nil)

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
