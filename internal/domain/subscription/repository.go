package subscription

import (
	"context"
)

// Repository defines the push subscription repository interface
type Repository interface {
	Save(ctx context.Context, sub *PushSubscription) error
	Delete(ctx context.Context, userID, endpointID string) error
	ListByUser(ctx context.Context, userID string) ([]*PushSubscription, error)
	// ListActive returns every live (non-dead) subscription across all users.
	ListActive(ctx context.Context) ([]*PushSubscription, error)
	// MarkDead flags an endpoint the transport reported gone. Flagged
	// subscriptions are skipped by broadcasts and removed by PruneDead.
	MarkDead(ctx context.Context, userID, endpointID string) error
	PruneDead(ctx context.Context) (int, error)
}
