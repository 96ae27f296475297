package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vecinapp/feed-backend-go/internal/domain/notification"
	"github.com/vecinapp/feed-backend-go/internal/pkg/kv"
)

type notificationRepository struct {
	store kv.Store
}

// NewNotificationRepository creates a KV-backed notification repository
func NewNotificationRepository(store kv.Store) notification.Repository {
	return &notificationRepository{store: store}
}

func notifKey(userID, id string) string {
	return fmt.Sprintf("%s%s:%s", prefixNotif, userID, id)
}

func (r *notificationRepository) Create(ctx context.Context, record *notification.Record) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := r.store.Set(ctx, notifKey(record.UserID, record.ID), data); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) GetByID(ctx context.Context, userID, id string) (*notification.Record, error) {
	data, err := r.store.Get(ctx, notifKey(userID, id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, notification.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}

	var record notification.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
	}
	return &record, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string) ([]*notification.Record, error) {
	entries, err := r.store.ScanByPrefix(ctx, prefixNotif+userID+":")
	if err != nil {
		return nil, fmt.Errorf("failed to scan notifications: %w", err)
	}

	records := make([]*notification.Record, 0, len(entries))
	for _, e := range entries {
		var record notification.Record
		if err := json.Unmarshal(e.Value, &record); err != nil {
			continue
		}
		records = append(records, &record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.After(records[j].CreatedAt) })
	return records, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	records, err := r.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, record := range records {
		if !record.Read {
			count++
		}
	}
	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	record, err := r.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if record.Read {
		return nil
	}
	record.Read = true

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := r.store.Set(ctx, notifKey(userID, id), data); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	return nil
}

// MarkAllRead loads the full set first, then writes the flipped records.
// The notification service serializes this against ListByUser per user, so a
// caller in the same request cycle never observes a partially flipped set.
func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	records, err := r.ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	for _, record := range records {
		if record.Read {
			continue
		}
		record.Read = true
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal notification: %w", err)
		}
		if err := r.store.Set(ctx, notifKey(userID, record.ID), data); err != nil {
			return fmt.Errorf("failed to store notification: %w", err)
		}
	}
	return nil
}

func (r *notificationRepository) GetPreferences(ctx context.Context, userID string) (*notification.Preferences, error) {
	data, err := r.store.Get(ctx, prefixPref+userID)
	if errors.Is(err, kv.ErrNotFound) {
		prefs := notification.DefaultPreferences()
		return &prefs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	var prefs notification.Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
	}
	return &prefs, nil
}

func (r *notificationRepository) PutPreferences(ctx context.Context, userID string, prefs notification.Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	if err := r.store.Set(ctx, prefixPref+userID, data); err != nil {
		return fmt.Errorf("failed to store preferences: %w", err)
	}
	return nil
}
