package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vecinapp/feed-backend-go/internal/domain/feed"
	"github.com/vecinapp/feed-backend-go/internal/handler/http/response"
)

// FeedHandler defines the content feed handler interface
type FeedHandler interface {
	Create(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Comment(w http.ResponseWriter, r *http.Request)
	ListComments(w http.ResponseWriter, r *http.Request)
}

type feedHandlerImpl struct {
	feedService feed.Service
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(feedService feed.Service) FeedHandler {
	return &feedHandlerImpl{feedService: feedService}
}

// Create publishes a content item under the type named in the path
func (h *feedHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req feed.CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	// The path segment is authoritative over whatever the body claims
	req.Type = feed.ContentType(chi.URLParam(r, "type"))

	item, err := h.feedService.Publish(r.Context(), userID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Content published", item)
}

// Comment replies to a content item. Commenting on someone else's item
// produces an interaction record for its author.
func (h *feedHandlerImpl) Comment(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req feed.CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	comment, err := h.feedService.Comment(r.Context(), userID, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Comment posted", comment)
}

// ListComments returns an item's comments, oldest first
func (h *feedHandlerImpl) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.feedService.ListComments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, comments)
}

// List returns items of one content type, newest first
func (h *feedHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.feedService.List(r.Context(), feed.ContentType(chi.URLParam(r, "type")))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, items)
}
