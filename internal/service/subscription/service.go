package subscription

import (
	"context"

	"github.com/vecinapp/feed-backend-go/internal/domain/subscription"
)

type service struct {
	repo subscription.Repository
}

// NewSubscriptionService creates a new push subscription service
func NewSubscriptionService(repo subscription.Repository) subscription.Service {
	return &service{repo: repo}
}

func (s *service) Subscribe(ctx context.Context, userID string, req subscription.SubscribeRequest) error {
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		return subscription.ErrInvalidSubscription
	}

	return s.repo.Save(ctx, &subscription.PushSubscription{
		UserID:   userID,
		Endpoint: req.Endpoint,
		Keys:     req.Keys,
	})
}

func (s *service) Unsubscribe(ctx context.Context, userID string, req subscription.UnsubscribeRequest) error {
	if req.Endpoint == "" {
		return subscription.ErrInvalidSubscription
	}

	// The client already dropped its local subscription; the server copy is
	// best-effort and a missing record is success.
	return s.repo.Delete(ctx, userID, subscription.EndpointID(req.Endpoint))
}
