package http

import (
	"encoding/json"
	"net/http"

	"github.com/vecinapp/feed-backend-go/internal/domain/subscription"
	"github.com/vecinapp/feed-backend-go/internal/handler/http/response"
)

// SubscriptionHandler defines the push subscription handler interface
type SubscriptionHandler interface {
	SubscribePush(w http.ResponseWriter, r *http.Request)
	UnsubscribePush(w http.ResponseWriter, r *http.Request)
	VAPIDPublicKey(w http.ResponseWriter, r *http.Request)
}

type subscriptionHandlerImpl struct {
	subService     subscription.Service
	vapidPublicKey string
}

// NewSubscriptionHandler creates a new push subscription handler
func NewSubscriptionHandler(subService subscription.Service, vapidPublicKey string) SubscriptionHandler {
	return &subscriptionHandlerImpl{
		subService:     subService,
		vapidPublicKey: vapidPublicKey,
	}
}

// SubscribePush registers a device's push endpoint for the authenticated user
func (h *subscriptionHandlerImpl) SubscribePush(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req subscription.SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	if err := h.subService.Subscribe(r.Context(), userID, req); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Subscribed", nil)
}

// UnsubscribePush removes a device's push endpoint
func (h *subscriptionHandlerImpl) UnsubscribePush(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req subscription.UnsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	if err := h.subService.Unsubscribe(r.Context(), userID, req); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Unsubscribed", nil)
}

// VAPIDPublicKey hands clients the application server key they pass to their
// push service when subscribing.
func (h *subscriptionHandlerImpl) VAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]string{"key": h.vapidPublicKey})
}
