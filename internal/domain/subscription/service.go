package subscription

import (
	"context"
)

// Service defines the push subscription service interface
type Service interface {
	// Subscribe registers or refreshes a device endpoint. Re-subscribing the
	// same endpoint is idempotent.
	Subscribe(ctx context.Context, userID string, req SubscribeRequest) error
	// Unsubscribe removes an endpoint. Unknown endpoints are not an error:
	// the client has already cancelled locally.
	Unsubscribe(ctx context.Context, userID string, req UnsubscribeRequest) error
}
