package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecinapp/feed-backend-go/internal/domain/feed"
	"github.com/vecinapp/feed-backend-go/internal/domain/notification"
)

type fakeToaster struct {
	toasts []Toast
	fail   bool
}

func (f *fakeToaster) Show(toast Toast) error {
	if f.fail {
		return errors.New("toast broken")
	}
	f.toasts = append(f.toasts, toast)
	return nil
}

type fakeBanner struct {
	rows [][]BannerRow
}

func (f *fakeBanner) Update(rows []BannerRow) error {
	f.rows = append(f.rows, rows)
	return nil
}

// fakeOS models tag-replacement: same tag overwrites, never duplicates.
type fakeOS struct {
	mu      sync.Mutex
	visible map[string]OSNotification
	fail    bool
}

func newFakeOS() *fakeOS {
	return &fakeOS{visible: make(map[string]OSNotification)}
}

func (f *fakeOS) Notify(n OSNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("permission revoked")
	}
	f.visible[n.Tag] = n
	return nil
}

func (f *fakeOS) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visible)
}

type fakePrefs struct {
	prefs notification.Preferences
	err   error
}

func (f *fakePrefs) Preferences(ctx context.Context) (notification.Preferences, error) {
	return f.prefs, f.err
}

type fakeReads struct {
	marked []string
	all    int
}

func (f *fakeReads) MarkRead(ctx context.Context, id string) error {
	f.marked = append(f.marked, id)
	return nil
}

func (f *fakeReads) MarkAllRead(ctx context.Context) error {
	f.all++
	return nil
}

func defaultPrefs() *fakePrefs {
	return &fakePrefs{prefs: notification.DefaultPreferences()}
}

func TestAnnounce_HighestPriorityWinsToastBannerListsAll(t *testing.T) {
	toaster := &fakeToaster{}
	banner := &fakeBanner{}
	c := NewCoordinator(toaster, banner, nil, defaultPrefs(), &fakeReads{}, slog.Default())

	// news and alert together: the alert is the primary toast, the banner
	// lists both
	c.Announce(context.Background(), []feed.ContentDelta{
		{Type: feed.TypeNews, Count: 1, LatestTitle: "Presupuesto aprobado", LatestID: "n1"},
		{Type: feed.TypeAlert, Count: 1, LatestTitle: "Corte de agua", LatestID: "a1"},
	})

	require.Len(t, toaster.toasts, 1)
	assert.Equal(t, "Nueva alerta en tu comunidad", toaster.toasts[0].Title)
	assert.Equal(t, "Corte de agua", toaster.toasts[0].Body)
	assert.Equal(t, "/alertas", toaster.toasts[0].Target)

	require.Len(t, banner.rows, 1)
	assert.Len(t, banner.rows[0], 2)
}

func TestAnnounce_EmptyDeltasNoSurfaces(t *testing.T) {
	toaster := &fakeToaster{}
	banner := &fakeBanner{}
	c := NewCoordinator(toaster, banner, nil, defaultPrefs(), &fakeReads{}, slog.Default())

	c.Announce(context.Background(), nil)
	c.Announce(context.Background(), []feed.ContentDelta{{Type: feed.TypeNews, Count: 0}})

	assert.Empty(t, toaster.toasts)
	assert.Empty(t, banner.rows)
}

func TestNotifyOS_SameTagReplaces(t *testing.T) {
	osn := newFakeOS()
	c := NewCoordinator(nil, nil, osn, defaultPrefs(), &fakeReads{}, slog.Default())
	ctx := context.Background()

	deltas := []feed.ContentDelta{{Type: feed.TypeAlert, Count: 1, LatestTitle: "Corte de agua", LatestID: "a1"}}
	c.NotifyOS(ctx, deltas)
	c.NotifyOS(ctx, deltas)

	// Exactly one visible notification
	assert.Equal(t, 1, osn.count())
}

func TestNotifyOS_QuietHoursSuppressOSOnly(t *testing.T) {
	prefs := notification.DefaultPreferences()
	prefs.QuietHours = true

	toaster := &fakeToaster{}
	osn := newFakeOS()
	c := NewCoordinator(toaster, &fakeBanner{}, osn, &fakePrefs{prefs: prefs}, &fakeReads{}, slog.Default())
	ctx := context.Background()

	deltas := []feed.ContentDelta{{Type: feed.TypeAlert, Count: 1, LatestID: "a1"}}
	c.NotifyOS(ctx, deltas)
	c.Announce(ctx, deltas)

	assert.Equal(t, 0, osn.count())
	assert.Len(t, toaster.toasts, 1)
}

func TestNotifyOS_DigestModeCollapses(t *testing.T) {
	prefs := notification.DefaultPreferences()
	prefs.DigestMode = true

	osn := newFakeOS()
	c := NewCoordinator(nil, nil, osn, &fakePrefs{prefs: prefs}, &fakeReads{}, slog.Default())

	c.NotifyOS(context.Background(), []feed.ContentDelta{
		{Type: feed.TypeNews, Count: 2, LatestTitle: "Noticia", LatestID: "n1"},
		{Type: feed.TypeAlert, Count: 1, LatestTitle: "Alerta", LatestID: "a1"},
	})

	require.Equal(t, 1, osn.count())
	osn.mu.Lock()
	digest := osn.visible["digest"]
	osn.mu.Unlock()
	assert.Equal(t, "3 novedades en tu comunidad", digest.Title)
	assert.Equal(t, "Alerta", digest.Body)
}

func TestNotifyOS_PreferenceGatesPerType(t *testing.T) {
	prefs := notification.DefaultPreferences()
	prefs.NewForums = false

	osn := newFakeOS()
	c := NewCoordinator(nil, nil, osn, &fakePrefs{prefs: prefs}, &fakeReads{}, slog.Default())

	c.NotifyOS(context.Background(), []feed.ContentDelta{
		{Type: feed.TypeForum, Count: 3, LatestID: "f1"},
		{Type: feed.TypeNews, Count: 1, LatestID: "n1"},
	})

	assert.Equal(t, 1, osn.count())
}

func TestChannelFailuresAreIsolated(t *testing.T) {
	toaster := &fakeToaster{fail: true}
	banner := &fakeBanner{}
	osn := newFakeOS()
	osn.fail = true
	c := NewCoordinator(toaster, banner, osn, defaultPrefs(), &fakeReads{}, slog.Default())
	ctx := context.Background()

	deltas := []feed.ContentDelta{{Type: feed.TypeAlert, Count: 1, LatestID: "a1"}}
	c.Announce(ctx, deltas)
	c.NotifyOS(ctx, deltas)

	// Toast and OS dispatch both failed, the banner still updated
	require.Len(t, banner.rows, 1)
}

func TestDeliverPush_FullChannelFanout(t *testing.T) {
	toaster := &fakeToaster{}
	banner := &fakeBanner{}
	osn := newFakeOS()
	c := NewCoordinator(toaster, banner, osn, defaultPrefs(), &fakeReads{}, slog.Default())

	payload := DecodePushPayload([]byte(`{"type":"alert","title":"Corte de agua","contentId":"a1","tag":"content:a1"}`))
	c.DeliverPush(context.Background(), payload)

	require.Len(t, toaster.toasts, 1)
	require.Len(t, banner.rows, 1)
	require.Equal(t, 1, osn.count())

	// Redelivery of the same push replaces, never duplicates
	c.DeliverPush(context.Background(), payload)
	assert.Equal(t, 1, osn.count())
}

func TestDecodePushPayload_Defensive(t *testing.T) {
	p := DecodePushPayload([]byte(`not json`))
	assert.Empty(t, p.ContentID)

	p = DecodePushPayload([]byte(`{"type":"news","contentId":"n1"}`))
	assert.Equal(t, "content:n1", p.Tag)
}

func TestDeliverPush_MutedTypeDropsAllChannels(t *testing.T) {
	prefs := notification.DefaultPreferences()
	prefs.NewNews = false

	toaster := &fakeToaster{}
	osn := newFakeOS()
	c := NewCoordinator(toaster, &fakeBanner{}, osn, &fakePrefs{prefs: prefs}, &fakeReads{}, slog.Default())

	c.DeliverPush(context.Background(), PushPayload{Type: feed.TypeNews, Title: "Noticia", ContentID: "n1", Tag: "content:n1"})

	assert.Empty(t, toaster.toasts)
	assert.Equal(t, 0, osn.count())
}

func TestMarkReadDelegation(t *testing.T) {
	reads := &fakeReads{}
	c := NewCoordinator(nil, nil, nil, defaultPrefs(), reads, slog.Default())
	ctx := context.Background()

	require.NoError(t, c.MarkRead(ctx, "r1"))
	require.NoError(t, c.MarkAllRead(ctx))

	assert.Equal(t, []string{"r1"}, reads.marked)
	assert.Equal(t, 1, reads.all)
}

func TestPreferenceFetchFailureFallsBackToDefaults(t *testing.T) {
	toaster := &fakeToaster{}
	c := NewCoordinator(toaster, nil, nil, &fakePrefs{err: errors.New("offline")}, &fakeReads{}, slog.Default())

	c.Announce(context.Background(), []feed.ContentDelta{{Type: feed.TypeNews, Count: 1, LatestID: "n1"}})
	assert.Len(t, toaster.toasts, 1)
}
