package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vecinapp/feed-backend-go/internal/domain/feed"
	"github.com/vecinapp/feed-backend-go/internal/pkg/kv"
)

type contentRepository struct {
	store kv.Store
}

// NewContentRepository creates a KV-backed content repository
func NewContentRepository(store kv.Store) feed.Repository {
	return &contentRepository{store: store}
}

func contentKey(t feed.ContentType, id string) string {
	return fmt.Sprintf("%s%s:%s", prefixContent, t, id)
}

func (r *contentRepository) Create(ctx context.Context, item *feed.Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal content item: %w", err)
	}
	if err := r.store.Set(ctx, contentKey(item.Type, item.ID), data); err != nil {
		return fmt.Errorf("failed to store content item: %w", err)
	}
	return nil
}

func (r *contentRepository) GetByID(ctx context.Context, id string) (*feed.Item, error) {
	// The id alone does not name the type; probe each section prefix.
	for _, t := range feed.AllContentTypes() {
		data, err := r.store.Get(ctx, contentKey(t, id))
		if errors.Is(err, kv.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get content item: %w", err)
		}
		var item feed.Item
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal content item: %w", err)
		}
		return &item, nil
	}
	return nil, feed.ErrItemNotFound
}

func (r *contentRepository) ListByType(ctx context.Context, contentType feed.ContentType) ([]*feed.Item, error) {
	entries, err := r.store.ScanByPrefix(ctx, prefixContent+string(contentType)+":")
	if err != nil {
		return nil, fmt.Errorf("failed to scan content: %w", err)
	}

	items := make([]*feed.Item, 0, len(entries))
	for _, e := range entries {
		var item feed.Item
		if err := json.Unmarshal(e.Value, &item); err != nil {
			continue
		}
		items = append(items, &item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func commentKey(itemID, id string) string {
	return fmt.Sprintf("%s%s:%s", prefixComment, itemID, id)
}

func (r *contentRepository) CreateComment(ctx context.Context, c *feed.Comment) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal comment: %w", err)
	}
	if err := r.store.Set(ctx, commentKey(c.ItemID, c.ID), data); err != nil {
		return fmt.Errorf("failed to store comment: %w", err)
	}
	return nil
}

func (r *contentRepository) ListCommentsByItem(ctx context.Context, itemID string) ([]*feed.Comment, error) {
	entries, err := r.store.ScanByPrefix(ctx, prefixComment+itemID+":")
	if err != nil {
		return nil, fmt.Errorf("failed to scan comments: %w", err)
	}

	comments := make([]*feed.Comment, 0, len(entries))
	for _, e := range entries {
		var c feed.Comment
		if err := json.Unmarshal(e.Value, &c); err != nil {
			continue
		}
		comments = append(comments, &c)
	}
	// Oldest first, the reading order of a thread
	sort.Slice(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	return comments, nil
}

func (r *contentRepository) DeltasSince(ctx context.Context, since time.Time) ([]feed.ContentDelta, error) {
	entries, err := r.store.ScanByPrefix(ctx, prefixContent)
	if err != nil {
		return nil, fmt.Errorf("failed to scan content: %w", err)
	}

	type agg struct {
		count    int
		latest   time.Time
		latestID string
		title    string
	}
	byType := make(map[feed.ContentType]*agg)

	for _, e := range entries {
		var item feed.Item
		if err := json.Unmarshal(e.Value, &item); err != nil {
			continue
		}
		// since is an exclusive lower bound
		if !item.CreatedAt.After(since) {
			continue
		}
		a := byType[item.Type]
		if a == nil {
			a = &agg{}
			byType[item.Type] = a
		}
		a.count++
		if item.CreatedAt.After(a.latest) {
			a.latest = item.CreatedAt
			a.latestID = item.ID
			a.title = item.Title
		}
	}

	deltas := make([]feed.ContentDelta, 0, len(byType))
	for _, t := range feed.AllContentTypes() {
		if a, ok := byType[t]; ok {
			deltas = append(deltas, feed.ContentDelta{
				Type:        t,
				Count:       a.count,
				LatestTitle: a.title,
				LatestID:    a.latestID,
			})
		}
	}
	return deltas, nil
}
