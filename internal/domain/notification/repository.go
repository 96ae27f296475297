package notification

import (
	"context"
)

// Repository defines the notification repository interface
type Repository interface {
	Create(ctx context.Context, record *Record) error
	GetByID(ctx context.Context, userID, id string) (*Record, error)
	ListByUser(ctx context.Context, userID string) ([]*Record, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string) error
	// MarkAllRead flips every unread record for the user. Callers must not
	// observe a partially flipped set; the service serializes this against
	// reads for the same user.
	MarkAllRead(ctx context.Context, userID string) error

	GetPreferences(ctx context.Context, userID string) (*Preferences, error)
	PutPreferences(ctx context.Context, userID string, prefs Preferences) error
}
