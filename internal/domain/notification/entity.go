package notification

import (
	"time"

	"github.com/vecinapp/feed-backend-go/internal/domain/feed"
)

// RecordType represents the interaction that produced a notification record
type RecordType string

const (
	TypeComment  RecordType = "comment"
	TypeReaction RecordType = "reaction"
	TypeMention  RecordType = "mention"
	TypeFollow   RecordType = "follow"
	TypeMessage  RecordType = "message"
	TypeShare    RecordType = "share"
)

// AllRecordTypes returns all interaction record types
func AllRecordTypes() []RecordType {
	return []RecordType{
		TypeComment,
		TypeReaction,
		TypeMention,
		TypeFollow,
		TypeMessage,
		TypeShare,
	}
}

// IsValidRecordType reports whether t names a known interaction type
func IsValidRecordType(t RecordType) bool {
	switch t {
	case TypeComment, TypeReaction, TypeMention, TypeFollow, TypeMessage, TypeShare:
		return true
	}
	return false
}

// Record is a per-user notification entry. Append-only except for the Read
// flag, which only the owning user's mark-read action flips.
type Record struct {
	ID        string
	UserID    string
	Type      RecordType
	Payload   map[string]interface{}
	Read      bool
	CreatedAt time.Time
}

// Preferences is the fixed recognized-option set consumed by the delivery
// coordinator. Every field is a plain toggle; unknown keys in an update are
// rejected at the handler.
type Preferences struct {
	NewNews        bool `json:"newNews"`
	NewAlerts      bool `json:"newAlerts"`
	NewClassifieds bool `json:"newClassifieds"`
	NewForums      bool `json:"newForums"`
	Comments       bool `json:"comments"`
	Reactions      bool `json:"reactions"`
	Mentions       bool `json:"mentions"`
	Follows        bool `json:"follows"`
	Messages       bool `json:"messages"`
	Shares         bool `json:"shares"`
	PushEnabled    bool `json:"pushEnabled"`
	EmailEnabled   bool `json:"emailEnabled"`
	DigestMode     bool `json:"digestMode"`
	QuietHours     bool `json:"quietHours"`
}

// DefaultPreferences returns the preferences applied to users who never
// saved any: every channel on, digest and quiet hours off.
func DefaultPreferences() Preferences {
	return Preferences{
		NewNews:        true,
		NewAlerts:      true,
		NewClassifieds: true,
		NewForums:      true,
		Comments:       true,
		Reactions:      true,
		Mentions:       true,
		Follows:        true,
		Messages:       true,
		Shares:         true,
		PushEnabled:    true,
		EmailEnabled:   true,
	}
}

// AllowsContent reports whether new-content notifications for the given feed
// section are enabled.
func (p Preferences) AllowsContent(t feed.ContentType) bool {
	switch t {
	case feed.TypeNews:
		return p.NewNews
	case feed.TypeAlert:
		return p.NewAlerts
	case feed.TypeClassified:
		return p.NewClassifieds
	case feed.TypeForum:
		return p.NewForums
	default:
		return true
	}
}

// AllowsRecord reports whether notifications for the given interaction type
// are enabled.
func (p Preferences) AllowsRecord(t RecordType) bool {
	switch t {
	case TypeComment:
		return p.Comments
	case TypeReaction:
		return p.Reactions
	case TypeMention:
		return p.Mentions
	case TypeFollow:
		return p.Follows
	case TypeMessage:
		return p.Messages
	case TypeShare:
		return p.Shares
	default:
		return true
	}
}
