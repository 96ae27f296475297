package notification

import (
	"context"
	"sync"

	"github.com/vecinapp/feed-backend-go/internal/domain/notification"
)

type service struct {
	repo notification.Repository

	// Per-user lock serializing mark-all-read against reads, so a caller in
	// the same request cycle never sees a partially flipped set.
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// NewNotificationService creates a new notification service
func NewNotificationService(repo notification.Repository) notification.Service {
	return &service{
		repo:  repo,
		locks: make(map[string]*sync.RWMutex),
	}
}

func (s *service) lockFor(userID string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[userID] = l
	}
	return l
}

// Notify records an interaction event, honoring the recipient's preference
// for that interaction type.
func (s *service) Notify(ctx context.Context, req notification.CreateRecordRequest) error {
	if !notification.IsValidRecordType(req.Type) {
		return notification.ErrInvalidRecordType
	}

	prefs, err := s.repo.GetPreferences(ctx, req.UserID)
	if err != nil {
		return err
	}
	if !prefs.AllowsRecord(req.Type) {
		return nil
	}

	return s.repo.Create(ctx, &notification.Record{
		UserID:  req.UserID,
		Type:    req.Type,
		Payload: req.Payload,
	})
}

func (s *service) List(ctx context.Context, userID string) ([]notification.RecordResponse, error) {
	l := s.lockFor(userID)
	l.RLock()
	defer l.RUnlock()

	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	responses := make([]notification.RecordResponse, len(records))
	for i, record := range records {
		responses[i] = notification.RecordResponse{
			ID:        record.ID,
			Type:      record.Type,
			Payload:   record.Payload,
			Read:      record.Read,
			CreatedAt: record.CreatedAt,
		}
	}
	return responses, nil
}

func (s *service) UnreadCount(ctx context.Context, userID string) (int, error) {
	l := s.lockFor(userID)
	l.RLock()
	defer l.RUnlock()

	return s.repo.UnreadCount(ctx, userID)
}

func (s *service) MarkRead(ctx context.Context, userID, id string) error {
	l := s.lockFor(userID)
	l.Lock()
	defer l.Unlock()

	return s.repo.MarkRead(ctx, userID, id)
}

func (s *service) MarkAllRead(ctx context.Context, userID string) error {
	l := s.lockFor(userID)
	l.Lock()
	defer l.Unlock()

	return s.repo.MarkAllRead(ctx, userID)
}

func (s *service) GetPreferences(ctx context.Context, userID string) (notification.Preferences, error) {
	prefs, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return notification.Preferences{}, err
	}
	return *prefs, nil
}

func (s *service) UpdatePreferences(ctx context.Context, userID string, prefs notification.Preferences) error {
	return s.repo.PutPreferences(ctx, userID, prefs)
}
