package feed

import (
	"context"
	"time"

	"github.com/vecinapp/feed-backend-go/internal/domain/feed"
	"github.com/vecinapp/feed-backend-go/internal/domain/notification"
	"github.com/vecinapp/feed-backend-go/internal/pkg/validator"
)

// Publisher is notified after content is stored. Implementations must not
// block: the broadcaster runs its fan-out detached from the request.
type Publisher interface {
	ContentPublished(item *feed.Item)
}

// Recorder creates interaction records for users affected by feed activity,
// honoring their per-type preferences.
type Recorder interface {
	Notify(ctx context.Context, req notification.CreateRecordRequest) error
}

type service struct {
	repo      feed.Repository
	publisher Publisher
	recorder  Recorder
}

// NewFeedService creates a new feed service. publisher and recorder may be
// nil.
func NewFeedService(repo feed.Repository, publisher Publisher, recorder Recorder) feed.Service {
	return &service{repo: repo, publisher: publisher, recorder: recorder}
}

func (s *service) Publish(ctx context.Context, authorID string, req feed.CreateItemRequest) (*feed.ItemResponse, error) {
	if !feed.IsValidContentType(req.Type) {
		return nil, feed.ErrInvalidContentType
	}
	if validator.IsEmpty(req.Title) {
		return nil, feed.ErrEmptyTitle
	}

	item := &feed.Item{
		Type:      req.Type,
		Title:     req.Title,
		Body:      req.Body,
		AuthorID:  authorID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}

	// Fan-out happens after the item is durably stored; the broadcaster
	// detaches so the triggering request returns immediately.
	if s.publisher != nil {
		s.publisher.ContentPublished(item)
	}

	return toResponse(item), nil
}

func (s *service) List(ctx context.Context, contentType feed.ContentType) ([]feed.ItemResponse, error) {
	if !feed.IsValidContentType(contentType) {
		return nil, feed.ErrInvalidContentType
	}

	items, err := s.repo.ListByType(ctx, contentType)
	if err != nil {
		return nil, err
	}

	responses := make([]feed.ItemResponse, len(items))
	for i, item := range items {
		responses[i] = *toResponse(item)
	}
	return responses, nil
}

func (s *service) NewContent(ctx context.Context, since time.Time) ([]feed.ContentDelta, error) {
	return s.repo.DeltasSince(ctx, since)
}

func (s *service) Comment(ctx context.Context, authorID, itemID string, req feed.CreateCommentRequest) (*feed.CommentResponse, error) {
	if validator.IsEmpty(req.Body) {
		return nil, feed.ErrEmptyComment
	}

	item, err := s.repo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	c := &feed.Comment{
		ItemID:    item.ID,
		AuthorID:  authorID,
		Body:      req.Body,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateComment(ctx, c); err != nil {
		return nil, err
	}

	// The item's author hears about replies from everyone but themselves
	if s.recorder != nil && item.AuthorID != authorID {
		err := s.recorder.Notify(ctx, notification.CreateRecordRequest{
			UserID: item.AuthorID,
			Type:   notification.TypeComment,
			Payload: map[string]interface{}{
				"content_id":   item.ID,
				"content_type": string(item.Type),
				"comment_id":   c.ID,
				"comment_by":   authorID,
			},
		})
		if err != nil {
			return nil, err
		}
	}

	return commentToResponse(c), nil
}

func (s *service) ListComments(ctx context.Context, itemID string) ([]feed.CommentResponse, error) {
	if _, err := s.repo.GetByID(ctx, itemID); err != nil {
		return nil, err
	}

	comments, err := s.repo.ListCommentsByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	responses := make([]feed.CommentResponse, len(comments))
	for i, c := range comments {
		responses[i] = *commentToResponse(c)
	}
	return responses, nil
}

func commentToResponse(c *feed.Comment) *feed.CommentResponse {
	return &feed.CommentResponse{
		ID:        c.ID,
		ItemID:    c.ItemID,
		AuthorID:  c.AuthorID,
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
	}
}

func toResponse(item *feed.Item) *feed.ItemResponse {
	return &feed.ItemResponse{
		ID:        item.ID,
		Type:      item.Type,
		Title:     item.Title,
		Body:      item.Body,
		AuthorID:  item.AuthorID,
		CreatedAt: item.CreatedAt,
	}
}
