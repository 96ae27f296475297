package feed

import (
	"encoding/json"
	"time"
)

// ============= Request DTOs =============

// CreateItemRequest represents a request to publish content
type CreateItemRequest struct {
	Type  ContentType `json:"type"`
	Title string      `json:"title"`
	Body  string      `json:"body"`
}

// CreateCommentRequest represents a request to reply to a content item
type CreateCommentRequest struct {
	Body string `json:"body"`
}

// ============= Response DTOs =============

// ItemResponse represents content in API responses
type ItemResponse struct {
	ID        string      `json:"id"`
	Type      ContentType `json:"type"`
	Title     string      `json:"title"`
	Body      string      `json:"body"`
	AuthorID  string      `json:"author_id"`
	CreatedAt time.Time   `json:"created_at"`
}

// CommentResponse represents a comment in API responses
type CommentResponse struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ContentDelta is the per-type aggregate of content created since a
// checkpoint. Derived per query, never persisted.
type ContentDelta struct {
	Type        ContentType `json:"type"`
	Count       int         `json:"count"`
	LatestTitle string      `json:"latestTitle"`
	LatestID    string      `json:"latestId"`
}

// DecodeDeltas parses a delta payload defensively: malformed input yields an
// empty list and entries with missing fields default to zero values rather
// than failing the poll.
func DecodeDeltas(data []byte) []ContentDelta {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	deltas := make([]ContentDelta, 0, len(raw))
	for _, entry := range raw {
		var d ContentDelta
		if v, ok := entry["type"]; ok {
			_ = json.Unmarshal(v, &d.Type)
		}
		if v, ok := entry["count"]; ok {
			_ = json.Unmarshal(v, &d.Count)
		}
		if v, ok := entry["latestTitle"]; ok {
			_ = json.Unmarshal(v, &d.LatestTitle)
		}
		if v, ok := entry["latestId"]; ok {
			_ = json.Unmarshal(v, &d.LatestID)
		}
		if d.Type == "" || d.Count < 0 {
			continue
		}
		deltas = append(deltas, d)
	}
	return deltas
}

// MergeDeltas unions two delta sets per type. Concurrent sources (poll tick
// vs inbound push) must not erase each other, so for a type present in both
// the entry with the higher count wins and a zero-count entry never shadows a
// non-zero one.
func MergeDeltas(a, b []ContentDelta) []ContentDelta {
	byType := make(map[ContentType]ContentDelta, len(a)+len(b))
	for _, d := range a {
		byType[d.Type] = d
	}
	for _, d := range b {
		if prev, ok := byType[d.Type]; ok && prev.Count >= d.Count {
			continue
		}
		byType[d.Type] = d
	}

	merged := make([]ContentDelta, 0, len(byType))
	for _, t := range AllContentTypes() {
		if d, ok := byType[t]; ok {
			merged = append(merged, d)
		}
	}
	// Preserve entries with unknown types at the end
	for t, d := range byType {
		if !IsValidContentType(t) {
			merged = append(merged, d)
		}
	}
	return merged
}

// HighestPriority returns the most urgent delta, or false when the list has
// no entries with a positive count.
func HighestPriority(deltas []ContentDelta) (ContentDelta, bool) {
	var best ContentDelta
	found := false
	for _, d := range deltas {
		if d.Count <= 0 {
			continue
		}
		if !found || Priority(d.Type) < Priority(best.Type) {
			best = d
			found = true
		}
	}
	return best, found
}
