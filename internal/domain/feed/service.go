package feed

import (
	"context"
	"time"
)

// Service defines the feed service interface
type Service interface {
	Publish(ctx context.Context, authorID string, req CreateItemRequest) (*ItemResponse, error)
	List(ctx context.Context, contentType ContentType) ([]ItemResponse, error)
	NewContent(ctx context.Context, since time.Time) ([]ContentDelta, error)
	Comment(ctx context.Context, authorID, itemID string, req CreateCommentRequest) (*CommentResponse, error)
	ListComments(ctx context.Context, itemID string) ([]CommentResponse, error)
}
