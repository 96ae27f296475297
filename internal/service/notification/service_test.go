package notification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecinapp/feed-backend-go/internal/domain/notification"
	"github.com/vecinapp/feed-backend-go/internal/pkg/kv"
	"github.com/vecinapp/feed-backend-go/internal/repository/kvstore"
)

func newService(t *testing.T) notification.Service {
	t.Helper()
	return NewNotificationService(kvstore.NewNotificationRepository(kv.NewMemory()))
}

func TestNotify_CreatesRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t)

	err := svc.Notify(ctx, notification.CreateRecordRequest{
		UserID:  "u1",
		Type:    notification.TypeComment,
		Payload: map[string]interface{}{"content_id": "c1"},
	})
	require.NoError(t, err)

	records, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, notification.TypeComment, records[0].Type)
	assert.False(t, records[0].Read)
}

func TestNotify_RejectsUnknownType(t *testing.T) {
	t.Parallel()
	svc := newService(t)

	err := svc.Notify(context.Background(), notification.CreateRecordRequest{
		UserID: "u1",
		Type:   notification.RecordType("telegram"),
	})
	assert.ErrorIs(t, err, notification.ErrInvalidRecordType)
}

func TestNotify_HonorsPreference(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t)

	prefs := notification.DefaultPreferences()
	prefs.Reactions = false
	require.NoError(t, svc.UpdatePreferences(ctx, "u1", prefs))

	require.NoError(t, svc.Notify(ctx, notification.CreateRecordRequest{
		UserID: "u1", Type: notification.TypeReaction,
	}))
	require.NoError(t, svc.Notify(ctx, notification.CreateRecordRequest{
		UserID: "u1", Type: notification.TypeMessage,
	}))

	records, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, notification.TypeMessage, records[0].Type)
}

func TestMarkAllRead_FlipsEverything(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Notify(ctx, notification.CreateRecordRequest{
			UserID: "u1", Type: notification.TypeComment,
		}))
	}

	count, err := svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 5, count)

	require.NoError(t, svc.MarkAllRead(ctx, "u1"))

	count, err = svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	records, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	for _, record := range records {
		assert.True(t, record.Read)
	}
}

func TestMarkRead_IsIndependentOfMarkAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t)

	require.NoError(t, svc.Notify(ctx, notification.CreateRecordRequest{UserID: "u1", Type: notification.TypeFollow}))
	require.NoError(t, svc.Notify(ctx, notification.CreateRecordRequest{UserID: "u1", Type: notification.TypeShare}))

	records, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.NoError(t, svc.MarkRead(ctx, "u1", records[0].ID))

	count, err := svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMarkAllRead_ConcurrentReadersSeeAllOrNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t)

	const n = 20
	for i := 0; i < n; i++ {
		require.NoError(t, svc.Notify(ctx, notification.CreateRecordRequest{
			UserID: "u1", Type: notification.TypeComment,
		}))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.MarkAllRead(ctx, "u1")
	}()

	// Every concurrent observation must be 0 or n unread, never in between.
	for i := 0; i < 50; i++ {
		count, err := svc.UnreadCount(ctx, "u1")
		require.NoError(t, err)
		assert.Contains(t, []int{0, n}, count)
	}
	<-done

	count, err := svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
