package notification

import (
	"time"
)

// ============= Request DTOs =============

// CreateRecordRequest represents a request to create a notification record
type CreateRecordRequest struct {
	UserID  string
	Type    RecordType
	Payload map[string]interface{}
}

// ============= Response DTOs =============

// RecordResponse represents a notification record in API responses
type RecordResponse struct {
	ID        string                 `json:"id"`
	Type      RecordType             `json:"type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"created_at"`
}

// UnreadCountResponse represents the unread count
type UnreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}
