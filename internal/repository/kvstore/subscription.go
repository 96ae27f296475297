package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vecinapp/feed-backend-go/internal/domain/subscription"
	"github.com/vecinapp/feed-backend-go/internal/pkg/kv"
)

type subscriptionRepository struct {
	store kv.Store
}

// NewSubscriptionRepository creates a KV-backed push subscription repository
func NewSubscriptionRepository(store kv.Store) subscription.Repository {
	return &subscriptionRepository{store: store}
}

func subKey(userID, endpointID string) string {
	return fmt.Sprintf("%s%s:%s", prefixSub, userID, endpointID)
}

func (r *subscriptionRepository) Save(ctx context.Context, sub *subscription.PushSubscription) error {
	if sub.Endpoint == "" || sub.UserID == "" {
		return subscription.ErrInvalidSubscription
	}
	if sub.EndpointID == "" {
		sub.EndpointID = subscription.EndpointID(sub.Endpoint)
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}
	if err := r.store.Set(ctx, subKey(sub.UserID, sub.EndpointID), data); err != nil {
		return fmt.Errorf("failed to store subscription: %w", err)
	}
	return nil
}

func (r *subscriptionRepository) Delete(ctx context.Context, userID, endpointID string) error {
	if err := r.store.Delete(ctx, subKey(userID, endpointID)); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

func (r *subscriptionRepository) ListByUser(ctx context.Context, userID string) ([]*subscription.PushSubscription, error) {
	return r.scan(ctx, prefixSub+userID+":", false)
}

func (r *subscriptionRepository) ListActive(ctx context.Context) ([]*subscription.PushSubscription, error) {
	return r.scan(ctx, prefixSub, true)
}

func (r *subscriptionRepository) scan(ctx context.Context, prefix string, skipDead bool) ([]*subscription.PushSubscription, error) {
	entries, err := r.store.ScanByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscriptions: %w", err)
	}

	subs := make([]*subscription.PushSubscription, 0, len(entries))
	for _, e := range entries {
		var sub subscription.PushSubscription
		if err := json.Unmarshal(e.Value, &sub); err != nil {
			continue
		}
		if skipDead && sub.Dead {
			continue
		}
		subs = append(subs, &sub)
	}
	return subs, nil
}

func (r *subscriptionRepository) MarkDead(ctx context.Context, userID, endpointID string) error {
	data, err := r.store.Get(ctx, subKey(userID, endpointID))
	if errors.Is(err, kv.ErrNotFound) {
		return subscription.ErrSubscriptionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get subscription: %w", err)
	}

	var sub subscription.PushSubscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}
	if sub.Dead {
		return nil
	}
	sub.Dead = true

	updated, err := json.Marshal(&sub)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}
	if err := r.store.Set(ctx, subKey(userID, endpointID), updated); err != nil {
		return fmt.Errorf("failed to store subscription: %w", err)
	}
	return nil
}

func (r *subscriptionRepository) PruneDead(ctx context.Context) (int, error) {
	entries, err := r.store.ScanByPrefix(ctx, prefixSub)
	if err != nil {
		return 0, fmt.Errorf("failed to scan subscriptions: %w", err)
	}

	pruned := 0
	for _, e := range entries {
		var sub subscription.PushSubscription
		if err := json.Unmarshal(e.Value, &sub); err != nil {
			continue
		}
		if !sub.Dead {
			continue
		}
		if err := r.store.Delete(ctx, e.Key); err != nil {
			return pruned, fmt.Errorf("failed to prune subscription: %w", err)
		}
		pruned++
	}
	return pruned, nil
}
