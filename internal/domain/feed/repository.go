package feed

import (
	"context"
	"time"
)

// Repository defines the content repository interface
type Repository interface {
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id string) (*Item, error)
	ListByType(ctx context.Context, contentType ContentType) ([]*Item, error)
	// DeltasSince aggregates content created strictly after the given time,
	// one entry per content type with a positive count.
	DeltasSince(ctx context.Context, since time.Time) ([]ContentDelta, error)

	CreateComment(ctx context.Context, c *Comment) error
	ListCommentsByItem(ctx context.Context, itemID string) ([]*Comment, error)
}
