package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vecinapp/feed-backend-go/internal/domain/feed"
	"github.com/vecinapp/feed-backend-go/internal/domain/notification"
	"github.com/vecinapp/feed-backend-go/internal/handler/http/response"
)

// NotificationHandler defines the notification handler interface
type NotificationHandler interface {
	List(w http.ResponseWriter, r *http.Request)
	UnreadCount(w http.ResponseWriter, r *http.Request)
	MarkRead(w http.ResponseWriter, r *http.Request)
	MarkAllRead(w http.ResponseWriter, r *http.Request)

	// Preferences
	GetPreferences(w http.ResponseWriter, r *http.Request)
	UpdatePreferences(w http.ResponseWriter, r *http.Request)

	// Poll delta
	NewContent(w http.ResponseWriter, r *http.Request)
}

type notificationHandlerImpl struct {
	notifService notification.Service
	feedService  feed.Service
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifService notification.Service, feedService feed.Service) NotificationHandler {
	return &notificationHandlerImpl{
		notifService: notifService,
		feedService:  feedService,
	}
}

// List returns the authenticated user's notification records
func (h *notificationHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	records, err := h.notifService.List(r.Context(), userID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, records)
}

// UnreadCount returns the count of unread notifications
func (h *notificationHandlerImpl) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	count, err := h.notifService.UnreadCount(r.Context(), userID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, notification.UnreadCountResponse{UnreadCount: count})
}

// MarkRead marks one notification as read
func (h *notificationHandlerImpl) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	notifID := chi.URLParam(r, "id")
	if notifID == "" {
		response.BadRequest(w, "Notification ID is required", nil)
		return
	}

	if err := h.notifService.MarkRead(r.Context(), userID, notifID); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Notification marked as read", nil)
}

// MarkAllRead marks every notification for the user as read
func (h *notificationHandlerImpl) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	if err := h.notifService.MarkAllRead(r.Context(), userID); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "All notifications marked as read", nil)
}

// GetPreferences retrieves notification preferences
func (h *notificationHandlerImpl) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	prefs, err := h.notifService.GetPreferences(r.Context(), userID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, prefs)
}

// UpdatePreferences replaces the preference set. The recognized keys are
// fixed; payloads carrying unknown keys are rejected rather than silently
// dropped.
func (h *notificationHandlerImpl) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	prefs := notification.DefaultPreferences()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&prefs); err != nil {
		response.BadRequest(w, "Invalid preference payload", nil)
		return
	}

	if err := h.notifService.UpdatePreferences(r.Context(), userID, prefs); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Preferences updated", nil)
}

// NewContent returns per-type aggregates of content created after the
// caller's checkpoint. The checkpoint only advances client-side once the
// user acknowledges, so repeated polls with the same value are expected.
func (h *notificationHandlerImpl) NewContent(w http.ResponseWriter, r *http.Request) {
	sinceParam := r.URL.Query().Get("since")
	if sinceParam == "" {
		response.BadRequest(w, "since is required", nil)
		return
	}

	since, err := time.Parse(time.RFC3339, sinceParam)
	if err != nil {
		response.BadRequest(w, "since must be an RFC3339 timestamp", nil)
		return
	}

	deltas, err := h.feedService.NewContent(r.Context(), since)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, deltas)
}
