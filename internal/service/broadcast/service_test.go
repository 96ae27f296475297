package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecinapp/feed-backend-go/internal/domain/feed"
	"github.com/vecinapp/feed-backend-go/internal/domain/notification"
	"github.com/vecinapp/feed-backend-go/internal/domain/subscription"
	"github.com/vecinapp/feed-backend-go/internal/pkg/kv"
	"github.com/vecinapp/feed-backend-go/internal/pkg/webpush"
	"github.com/vecinapp/feed-backend-go/internal/repository/kvstore"
)

// fakeSender records dispatches and fails configured endpoints.
type fakeSender struct {
	mu       sync.Mutex
	sent     []string
	failWith map[string]error
}

func (f *fakeSender) Send(ctx context.Context, endpoint, p256dh, auth string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failWith[endpoint]; ok {
		return err
	}
	f.sent = append(f.sent, endpoint)
	return nil
}

func (f *fakeSender) endpoints() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func setup(t *testing.T, sender Sender) (*Service, subscription.Repository, notification.Repository) {
	t.Helper()
	store := kv.NewMemory()
	subs := kvstore.NewSubscriptionRepository(store)
	notifs := kvstore.NewNotificationRepository(store)
	return NewBroadcastService(subs, notifs, sender, slog.Default()), subs, notifs
}

func addSub(t *testing.T, subs subscription.Repository, userID, endpoint string) *subscription.PushSubscription {
	t.Helper()
	sub := &subscription.PushSubscription{
		UserID:   userID,
		Endpoint: endpoint,
		Keys:     subscription.Keys{P256dh: "k", Auth: "a"},
	}
	require.NoError(t, subs.Save(context.Background(), sub))
	return sub
}

func TestBroadcast_SkipsNonPriorityContent(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	svc, subs, _ := setup(t, sender)
	addSub(t, subs, "u1", "https://push.example/u1")

	svc.ContentPublished(&feed.Item{ID: "c1", Type: feed.TypeForum, AuthorID: "author"})
	svc.Wait()

	assert.Empty(t, sender.endpoints())
}

func TestBroadcast_ExcludesAuthor(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	svc, subs, _ := setup(t, sender)
	addSub(t, subs, "author", "https://push.example/author")
	addSub(t, subs, "u2", "https://push.example/u2")

	svc.ContentPublished(&feed.Item{ID: "c1", Type: feed.TypeAlert, AuthorID: "author", CreatedAt: time.Now()})
	svc.Wait()

	assert.Equal(t, []string{"https://push.example/u2"}, sender.endpoints())
}

func TestBroadcast_PartialFailureDoesNotAbort(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{failWith: map[string]error{
		"https://push.example/u2": errors.New("boom"),
	}}
	svc, subs, _ := setup(t, sender)
	addSub(t, subs, "u1", "https://push.example/u1")
	addSub(t, subs, "u2", "https://push.example/u2")
	addSub(t, subs, "u3", "https://push.example/u3")

	svc.ContentPublished(&feed.Item{ID: "c1", Type: feed.TypeNews, AuthorID: "author"})
	svc.Wait()

	assert.ElementsMatch(t, []string{"https://push.example/u1", "https://push.example/u3"}, sender.endpoints())
}

func TestBroadcast_GoneEndpointMarkedDead(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{failWith: map[string]error{
		"https://push.example/dead": webpush.ErrEndpointGone,
	}}
	svc, subs, _ := setup(t, sender)
	addSub(t, subs, "u1", "https://push.example/dead")
	addSub(t, subs, "u2", "https://push.example/alive")

	svc.ContentPublished(&feed.Item{ID: "c1", Type: feed.TypeAlert, AuthorID: "author"})
	svc.Wait()

	active, err := subs.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "u2", active[0].UserID)

	// The sweep removes the flagged record
	require.NoError(t, svc.PruneDeadSubscriptions(context.Background()))
	remaining, err := subs.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestBroadcast_RespectsPreferences(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	svc, subs, notifs := setup(t, sender)
	addSub(t, subs, "muted", "https://push.example/muted")
	addSub(t, subs, "nonews", "https://push.example/nonews")
	addSub(t, subs, "open", "https://push.example/open")

	ctx := context.Background()
	muted := notification.DefaultPreferences()
	muted.PushEnabled = false
	require.NoError(t, notifs.PutPreferences(ctx, "muted", muted))

	noNews := notification.DefaultPreferences()
	noNews.NewNews = false
	require.NoError(t, notifs.PutPreferences(ctx, "nonews", noNews))

	svc.ContentPublished(&feed.Item{ID: "c1", Type: feed.TypeNews, AuthorID: "author"})
	svc.Wait()

	assert.Equal(t, []string{"https://push.example/open"}, sender.endpoints())
}
