// Package notify decides which channels a detected change reaches: in-app
// toast, banner rows, OS-level notification. Channels are independent; a
// failure in one never blocks the others, and OS notifications are keyed by
// a stable tag so re-issuing the same logical event replaces the displayed
// notification instead of duplicating it.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vecinapp/feed-backend-go/internal/domain/feed"
	"github.com/vecinapp/feed-backend-go/internal/domain/notification"
)

// Toast is one in-app toast with a navigation action.
type Toast struct {
	Title  string
	Body   string
	Target string
}

// BannerRow is one banner entry, one per content type with a non-zero count.
type BannerRow struct {
	Type   feed.ContentType
	Count  int
	Latest string
	Target string
}

// OSNotification is an OS-level notification. Tag is the replacement key:
// notifying twice with the same tag must yield one visible notification.
type OSNotification struct {
	Tag    string
	Title  string
	Body   string
	Target string
}

// Toaster shows in-app toasts.
type Toaster interface {
	Show(toast Toast) error
}

// Banner maintains the in-app banner entry set.
type Banner interface {
	Update(rows []BannerRow) error
}

// OSNotifier dispatches OS-level notifications with tag-replacement
// semantics.
type OSNotifier interface {
	Notify(n OSNotification) error
}

// PreferenceSource supplies the user's notification preferences.
type PreferenceSource interface {
	Preferences(ctx context.Context) (notification.Preferences, error)
}

// ReadState is the slice of the server API that tracks read/unread records.
type ReadState interface {
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
}

// PushPayload mirrors the body the broadcaster sends over the push
// transport.
type PushPayload struct {
	Type        feed.ContentType `json:"type"`
	Title       string           `json:"title"`
	ContentID   string           `json:"contentId"`
	Tag         string           `json:"tag"`
	PublishedAt time.Time        `json:"publishedAt"`
}

// DecodePushPayload parses an inbound push message defensively; malformed
// input yields an empty payload, never an error.
func DecodePushPayload(data []byte) PushPayload {
	var p PushPayload
	_ = json.Unmarshal(data, &p)
	if p.Tag == "" && p.ContentID != "" {
		p.Tag = "content:" + p.ContentID
	}
	return p
}

// Coordinator routes detected changes to the delivery channels.
type Coordinator struct {
	toaster Toaster
	banner  Banner
	os      OSNotifier
	prefs   PreferenceSource
	reads   ReadState
	log     *slog.Logger

	// Cached preferences: refreshed opportunistically, stale values are
	// acceptable since preferences change rarely.
	mu       sync.Mutex
	cached   *notification.Preferences
	fetched  time.Time
	cacheTTL time.Duration
}

// NewCoordinator creates a delivery coordinator. Any channel may be nil, in
// which case it is skipped.
func NewCoordinator(toaster Toaster, banner Banner, os OSNotifier, prefs PreferenceSource, reads ReadState, log *slog.Logger) *Coordinator {
	return &Coordinator{
		toaster:  toaster,
		banner:   banner,
		os:       os,
		prefs:    prefs,
		reads:    reads,
		log:      log,
		cacheTTL: 5 * time.Minute,
	}
}

func (c *Coordinator) preferences(ctx context.Context) notification.Preferences {
	c.mu.Lock()
	if c.cached != nil && time.Since(c.fetched) < c.cacheTTL {
		p := *c.cached
		c.mu.Unlock()
		return p
	}
	c.mu.Unlock()

	p, err := c.prefs.Preferences(ctx)
	if err != nil {
		// Degraded: fall back to the last known value, or defaults
		c.log.Warn("failed to fetch preferences", "error", err)
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.cached != nil {
			return *c.cached
		}
		return notification.DefaultPreferences()
	}

	c.mu.Lock()
	c.cached = &p
	c.fetched = time.Now()
	c.mu.Unlock()
	return p
}

// allowed filters deltas down to the types the user wants to hear about.
func allowed(prefs notification.Preferences, deltas []feed.ContentDelta) []feed.ContentDelta {
	kept := make([]feed.ContentDelta, 0, len(deltas))
	for _, d := range deltas {
		if d.Count > 0 && prefs.AllowsContent(d.Type) {
			kept = append(kept, d)
		}
	}
	return kept
}

// Announce shows the one-per-acknowledgment in-app surfaces: a single
// summarizing toast for the highest-priority type plus one banner row per
// non-zero type. The caller gates re-announcement; this method always fires.
func (c *Coordinator) Announce(ctx context.Context, deltas []feed.ContentDelta) {
	deltas = allowed(c.preferences(ctx), deltas)
	best, ok := feed.HighestPriority(deltas)
	if !ok {
		return
	}

	if c.toaster != nil {
		toast := Toast{
			Title:  toastTitle(best),
			Body:   best.LatestTitle,
			Target: sectionTarget(best.Type),
		}
		if err := c.toaster.Show(toast); err != nil {
			c.log.Warn("toast dispatch failed", "error", err)
		}
	}

	if c.banner != nil {
		rows := make([]BannerRow, 0, len(deltas))
		for _, d := range deltas {
			rows = append(rows, BannerRow{
				Type:   d.Type,
				Count:  d.Count,
				Latest: d.LatestTitle,
				Target: sectionTarget(d.Type),
			})
		}
		if err := c.banner.Update(rows); err != nil {
			c.log.Warn("banner update failed", "error", err)
		}
	}
}

// NotifyOS issues OS-level notifications for the deltas. Tags are stable per
// latest content id, so a delta re-delivered on a later tick replaces the
// visible notification rather than stacking a duplicate. Quiet hours
// suppress this channel entirely; digest mode collapses everything into one
// summary notification.
func (c *Coordinator) NotifyOS(ctx context.Context, deltas []feed.ContentDelta) {
	if c.os == nil {
		return
	}
	prefs := c.preferences(ctx)
	if !prefs.PushEnabled || prefs.QuietHours {
		return
	}
	deltas = allowed(prefs, deltas)
	if len(deltas) == 0 {
		return
	}

	if prefs.DigestMode {
		best, _ := feed.HighestPriority(deltas)
		total := 0
		for _, d := range deltas {
			total += d.Count
		}
		c.dispatchOS(OSNotification{
			Tag:    "digest",
			Title:  fmt.Sprintf("%d novedades en tu comunidad", total),
			Body:   best.LatestTitle,
			Target: sectionTarget(best.Type),
		})
		return
	}

	for _, d := range deltas {
		c.dispatchOS(OSNotification{
			Tag:    "content:" + d.LatestID,
			Title:  toastTitle(d),
			Body:   d.LatestTitle,
			Target: sectionTarget(d.Type),
		})
	}
}

// DeliverPush handles one inbound push event: same channel fan-out as a
// poll-detected change, but for a single item with the broadcaster's tag.
func (c *Coordinator) DeliverPush(ctx context.Context, payload PushPayload) {
	if payload.ContentID == "" && payload.Title == "" {
		return
	}

	delta := feed.ContentDelta{
		Type:        payload.Type,
		Count:       1,
		LatestTitle: payload.Title,
		LatestID:    payload.ContentID,
	}

	prefs := c.preferences(ctx)
	if len(allowed(prefs, []feed.ContentDelta{delta})) == 0 {
		return
	}

	c.Announce(ctx, []feed.ContentDelta{delta})

	if c.os == nil || !prefs.PushEnabled || prefs.QuietHours {
		return
	}
	c.dispatchOS(OSNotification{
		Tag:    payload.Tag,
		Title:  toastTitle(delta),
		Body:   payload.Title,
		Target: sectionTarget(payload.Type),
	})
}

// dispatchOS isolates OS channel failures from the rest of the pipeline.
func (c *Coordinator) dispatchOS(n OSNotification) {
	if err := c.os.Notify(n); err != nil {
		c.log.Warn("os notification dispatch failed", "tag", n.Tag, "error", err)
	}
}

// MarkRead flips one record, independent of MarkAllRead.
func (c *Coordinator) MarkRead(ctx context.Context, id string) error {
	return c.reads.MarkRead(ctx, id)
}

// MarkAllRead flips every record in one server call, atomic from this
// caller's perspective.
func (c *Coordinator) MarkAllRead(ctx context.Context) error {
	return c.reads.MarkAllRead(ctx)
}

func toastTitle(d feed.ContentDelta) string {
	switch d.Type {
	case feed.TypeAlert:
		if d.Count == 1 {
			return "Nueva alerta en tu comunidad"
		}
		return fmt.Sprintf("%d alertas nuevas", d.Count)
	case feed.TypeNews:
		if d.Count == 1 {
			return "Nueva noticia"
		}
		return fmt.Sprintf("%d noticias nuevas", d.Count)
	case feed.TypeClassified:
		if d.Count == 1 {
			return "Nuevo clasificado"
		}
		return fmt.Sprintf("%d clasificados nuevos", d.Count)
	case feed.TypeForum:
		if d.Count == 1 {
			return "Nuevo tema en el foro"
		}
		return fmt.Sprintf("%d temas nuevos en el foro", d.Count)
	case feed.TypeEvent:
		if d.Count == 1 {
			return "Nuevo evento"
		}
		return fmt.Sprintf("%d eventos nuevos", d.Count)
	default:
		return "Hay contenido nuevo"
	}
}

func sectionTarget(t feed.ContentType) string {
	switch t {
	case feed.TypeAlert:
		return "/alertas"
	case feed.TypeNews:
		return "/noticias"
	case feed.TypeClassified:
		return "/clasificados"
	case feed.TypeForum:
		return "/foros"
	case feed.TypeEvent:
		return "/eventos"
	default:
		return "/"
	}
}
