package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vecinapp/feed-backend-go/internal/domain/feed"
	"github.com/vecinapp/feed-backend-go/internal/domain/notification"
	"github.com/vecinapp/feed-backend-go/internal/domain/subscription"
	"github.com/vecinapp/feed-backend-go/internal/pkg/webpush"
)

// Sender dispatches one encrypted push message. *webpush.Client implements it.
type Sender interface {
	Send(ctx context.Context, endpoint, p256dh, auth string, payload []byte) error
}

// PushPayload is the message body delivered to subscribed devices. Tag is the
// stable identifier clients use to replace, not duplicate, an OS notification
// for the same logical event.
type PushPayload struct {
	Type        feed.ContentType `json:"type"`
	Title       string           `json:"title"`
	ContentID   string           `json:"contentId"`
	Tag         string           `json:"tag"`
	PublishedAt time.Time        `json:"publishedAt"`
}

// Service fans a qualifying content mutation out to every active push
// subscription. Dispatch runs detached from the triggering request.
type Service struct {
	subs    subscription.Repository
	notifs  notification.Repository
	sender  Sender
	log     *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewBroadcastService creates a fan-out broadcaster
func NewBroadcastService(subs subscription.Repository, notifs notification.Repository, sender Sender, log *slog.Logger) *Service {
	return &Service{
		subs:    subs,
		notifs:  notifs,
		sender:  sender,
		log:     log,
		timeout: 60 * time.Second,
	}
}

// ContentPublished implements feed.Publisher. Only priority-worthy categories
// reach subscribers; everything else is picked up by polling clients. The
// broadcast detaches so the caller's request returns immediately.
func (s *Service) ContentPublished(item *feed.Item) {
	if !feed.PriorityWorthy(item.Type) {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.broadcast(ctx, item)
	}()
}

// Wait blocks until all in-flight broadcasts finish. Used on shutdown and in
// tests.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) broadcast(ctx context.Context, item *feed.Item) {
	subs, err := s.subs.ListActive(ctx)
	if err != nil {
		s.log.Error("failed to enumerate subscriptions", "error", err)
		return
	}

	payload, err := json.Marshal(PushPayload{
		Type:        item.Type,
		Title:       item.Title,
		ContentID:   item.ID,
		Tag:         "content:" + item.ID,
		PublishedAt: item.CreatedAt,
	})
	if err != nil {
		s.log.Error("failed to marshal push payload", "error", err)
		return
	}

	delivered, failed := 0, 0
	for _, sub := range subs {
		// All-except-author audience
		if sub.UserID == item.AuthorID {
			continue
		}
		if !s.wantsPush(ctx, sub.UserID, item.Type) {
			continue
		}

		err := s.sender.Send(ctx, sub.Endpoint, sub.Keys.P256dh, sub.Keys.Auth, payload)
		switch {
		case errors.Is(err, webpush.ErrEndpointGone):
			// Lazy cleanup: flag now, the sweep job prunes later. A failure
			// to flag must not abort the remaining dispatches either.
			if markErr := s.subs.MarkDead(ctx, sub.UserID, sub.EndpointID); markErr != nil {
				s.log.Warn("failed to mark dead subscription", "endpoint_id", sub.EndpointID, "error", markErr)
			}
			failed++
		case err != nil:
			s.log.Warn("push dispatch failed", "endpoint_id", sub.EndpointID, "user_id", sub.UserID, "error", err)
			failed++
		default:
			delivered++
		}
	}

	s.log.Info("broadcast completed",
		"content_id", item.ID, "type", item.Type,
		"delivered", delivered, "failed", failed)
}

func (s *Service) wantsPush(ctx context.Context, userID string, t feed.ContentType) bool {
	prefs, err := s.notifs.GetPreferences(ctx, userID)
	if err != nil {
		// Preference lookup failure should not silence the broadcast
		s.log.Warn("failed to load preferences", "user_id", userID, "error", err)
		return true
	}
	return prefs.PushEnabled && prefs.AllowsContent(t)
}

// PruneDeadSubscriptions removes subscriptions flagged dead by failed
// dispatches. Registered as a scheduler job.
func (s *Service) PruneDeadSubscriptions(ctx context.Context) error {
	pruned, err := s.subs.PruneDead(ctx)
	if err != nil {
		return err
	}
	if pruned > 0 {
		s.log.Info("pruned dead subscriptions", "count", pruned)
	}
	return nil
}
