package notification

import (
	"context"
)

// Service defines the notification service interface
type Service interface {
	// Notify records an interaction event targeting a user, honoring the
	// recipient's per-type preference.
	Notify(ctx context.Context, req CreateRecordRequest) error

	List(ctx context.Context, userID string) ([]RecordResponse, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) error

	GetPreferences(ctx context.Context, userID string) (Preferences, error)
	UpdatePreferences(ctx context.Context, userID string, prefs Preferences) error
}
