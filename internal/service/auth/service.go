package auth

import (
	"context"
	"errors"

	"github.com/go-chi/jwtauth/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/vecinapp/feed-backend-go/internal/domain/auth"
	"github.com/vecinapp/feed-backend-go/internal/domain/user"
	"github.com/vecinapp/feed-backend-go/internal/pkg/jwt"
	"github.com/vecinapp/feed-backend-go/internal/pkg/validator"
)

type service struct {
	userRepo   user.Repository
	jwtService jwt.Service
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo user.Repository, jwtService jwt.Service) auth.Service {
	return &service{userRepo: userRepo, jwtService: jwtService}
}

func (s *service) Register(ctx context.Context, req auth.RegisterRequest) (*auth.TokenResponse, error) {
	var errs validator.ValidationErrors
	if !validator.IsValidEmail(req.Email) {
		errs = append(errs, validator.ValidationError{Field: "email", Message: "must be a valid email"})
	}
	if len(req.Password) < 8 {
		errs = append(errs, validator.ValidationError{Field: "password", Message: "must be at least 8 characters"})
	}
	if len(errs) > 0 {
		return nil, errs
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &user.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		DisplayName:  req.DisplayName,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, err
	}

	return s.issueToken(u)
}

func (s *service) Login(ctx context.Context, req auth.LoginRequest) (*auth.TokenResponse, error) {
	u, err := s.userRepo.GetByEmail(ctx, req.Email)
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return nil, auth.ErrInvalidCredentials
	}

	return s.issueToken(u)
}

// Refresh exchanges a valid refresh token for a new pair. Rotation: the
// presented token is revoked, so it cannot be replayed.
func (s *service) Refresh(ctx context.Context, req auth.RefreshRequest) (*auth.TokenResponse, error) {
	if s.jwtService.IsTokenRevoked(req.RefreshToken) {
		return nil, auth.ErrInvalidToken
	}

	claims, err := s.jwtService.ParseToken(req.RefreshToken)
	if err != nil {
		if errors.Is(err, jwtauth.ErrExpired) {
			return nil, auth.ErrTokenExpired
		}
		return nil, auth.ErrInvalidToken
	}
	if t, _ := claims["type"].(string); t != "refresh" {
		return nil, auth.ErrInvalidToken
	}

	userID, _ := claims["user_id"].(string)
	u, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, auth.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	s.jwtService.RevokeToken(req.RefreshToken)
	return s.issueToken(u)
}

// Logout revokes the session's refresh token. The access token simply ages
// out of its short expiry.
func (s *service) Logout(ctx context.Context, req auth.LogoutRequest) error {
	if req.RefreshToken == "" {
		return auth.ErrInvalidToken
	}
	s.jwtService.RevokeToken(req.RefreshToken)
	return nil
}

func (s *service) issueToken(u *user.User) (*auth.TokenResponse, error) {
	access, expiresAt, err := s.jwtService.GenerateAccessToken(u.ID, u.Email)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.jwtService.GenerateRefreshToken(u.ID)
	if err != nil {
		return nil, err
	}
	return &auth.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		UserID:       u.ID,
	}, nil
}
