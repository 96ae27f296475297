package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vecinapp/feed-backend-go/internal/domain/user"
	"github.com/vecinapp/feed-backend-go/internal/pkg/kv"
)

type userRepository struct {
	store kv.Store
}

// NewUserRepository creates a KV-backed user repository
func NewUserRepository(store kv.Store) user.Repository {
	return &userRepository{store: store}
}

func (r *userRepository) Create(ctx context.Context, u *user.User) error {
	email := strings.ToLower(u.Email)

	_, err := r.store.Get(ctx, prefixUserEmail+email)
	if err == nil {
		return user.ErrEmailExists
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("failed to check email: %w", err)
	}

	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := r.store.Set(ctx, prefixUserID+u.ID, data); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}
	if err := r.store.Set(ctx, prefixUserEmail+email, []byte(u.ID)); err != nil {
		return fmt.Errorf("failed to store email index: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	data, err := r.store.Get(ctx, prefixUserID+id)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var u user.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	id, err := r.store.Get(ctx, prefixUserEmail+strings.ToLower(email))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get email index: %w", err)
	}
	return r.GetByID(ctx, string(id))
}
