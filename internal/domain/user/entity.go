package user

import (
	"time"
)

// User represents a community member
type User struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
}
