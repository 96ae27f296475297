// Package state persists the handful of client flags that must survive a
// process restart: the change checkpoint, the push-permission "asked" flag,
// the install-banner dismissal, and the pending/active push subscription.
// Everything is read at startup and written on the relevant transitions.
package state

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/vecinapp/feed-backend-go/internal/domain/subscription"
)

const bucket = "client-state"

const (
	keyCheckpoint      = "last-check"
	keyPermissionAsked = "push-permission-asked"
	keyBannerDismissed = "install-banner-dismissed"
	keyActiveSub       = "push-subscription"
	keyPendingSub      = "push-subscription-pending"
)

// Store is the durable client-state file.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the state file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) put(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put([]byte(key), value)
	})
}

func (s *Store) get(key string) []byte {
	var value []byte
	_ = s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(bucket)).Get([]byte(key)); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	return value
}

func (s *Store) delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Delete([]byte(key))
	})
}

func (s *Store) putTime(key string, t time.Time) error {
	return s.put(key, []byte(t.UTC().Format(time.RFC3339Nano)))
}

func (s *Store) getTime(key string) (time.Time, bool) {
	value := s.get(key)
	if value == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, string(value))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Checkpoint returns the last acknowledged change checkpoint, or the zero
// time when the device has never acknowledged anything.
func (s *Store) Checkpoint() time.Time {
	t, _ := s.getTime(keyCheckpoint)
	return t
}

func (s *Store) SetCheckpoint(t time.Time) error {
	return s.putTime(keyCheckpoint, t)
}

// PermissionAsked reports when the permission prompt was last shown.
func (s *Store) PermissionAsked() (time.Time, bool) {
	return s.getTime(keyPermissionAsked)
}

func (s *Store) SetPermissionAsked(t time.Time) error {
	return s.putTime(keyPermissionAsked, t)
}

// BannerDismissed reports when the install banner was last dismissed.
func (s *Store) BannerDismissed() (time.Time, bool) {
	return s.getTime(keyBannerDismissed)
}

func (s *Store) SetBannerDismissed(t time.Time) error {
	return s.putTime(keyBannerDismissed, t)
}

// ActiveSubscription returns the device's registered push subscription.
func (s *Store) ActiveSubscription() (*subscription.SubscribeRequest, bool) {
	return s.getSub(keyActiveSub)
}

func (s *Store) SetActiveSubscription(sub *subscription.SubscribeRequest) error {
	return s.putSub(keyActiveSub, sub)
}

func (s *Store) ClearActiveSubscription() error {
	return s.delete(keyActiveSub)
}

// PendingSubscription returns a subscription the runtime issued but the
// server has not confirmed yet. Retried on the next launch.
func (s *Store) PendingSubscription() (*subscription.SubscribeRequest, bool) {
	return s.getSub(keyPendingSub)
}

func (s *Store) SetPendingSubscription(sub *subscription.SubscribeRequest) error {
	return s.putSub(keyPendingSub, sub)
}

func (s *Store) ClearPendingSubscription() error {
	return s.delete(keyPendingSub)
}

func (s *Store) putSub(key string, sub *subscription.SubscribeRequest) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}
	return s.put(key, data)
}

func (s *Store) getSub(key string) (*subscription.SubscribeRequest, bool) {
	value := s.get(key)
	if value == nil {
		return nil, false
	}
	var sub subscription.SubscribeRequest
	if err := json.Unmarshal(value, &sub); err != nil {
		return nil, false
	}
	return &sub, true
}
