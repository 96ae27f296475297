package feed

import (
	"time"
)

// ContentType identifies a feed section
type ContentType string

const (
	TypeAlert      ContentType = "alert"
	TypeNews       ContentType = "news"
	TypeClassified ContentType = "classified"
	TypeForum      ContentType = "forum"
	TypeEvent      ContentType = "event"
)

// AllContentTypes returns all feed sections
func AllContentTypes() []ContentType {
	return []ContentType{
		TypeAlert,
		TypeNews,
		TypeClassified,
		TypeForum,
		TypeEvent,
	}
}

// IsValidContentType reports whether t names a known feed section
func IsValidContentType(t ContentType) bool {
	switch t {
	case TypeAlert, TypeNews, TypeClassified, TypeForum, TypeEvent:
		return true
	}
	return false
}

// Priority returns the delivery priority of a content type. Lower is more
// urgent: emergency alerts outrank news, news outrank classifieds, and so on.
// Unknown types sort last (generic).
func Priority(t ContentType) int {
	switch t {
	case TypeAlert:
		return 0
	case TypeNews:
		return 1
	case TypeClassified:
		return 2
	case TypeForum:
		return 3
	default:
		return 4
	}
}

// PriorityWorthy reports whether creating content of this type warrants an
// OS-level push to subscribers. Classifieds, forum posts and events only show
// up through polling and the in-app surfaces.
func PriorityWorthy(t ContentType) bool {
	return t == TypeAlert || t == TypeNews
}

// Item is a single piece of community content
type Item struct {
	ID        string
	Type      ContentType
	Title     string
	Body      string
	AuthorID  string
	CreatedAt time.Time
}

// Comment is a reply attached to a content item
type Comment struct {
	ID        string
	ItemID    string
	AuthorID  string
	Body      string
	CreatedAt time.Time
}
