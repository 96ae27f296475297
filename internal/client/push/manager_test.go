package push

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecinapp/feed-backend-go/internal/client/state"
	"github.com/vecinapp/feed-backend-go/internal/domain/subscription"
)

type fakeRuntime struct {
	supported     bool
	grant         bool
	prompts       int
	registrations int
	subscribed    bool
	endpoint      string
	events        chan Event
}

func (f *fakeRuntime) Events() <-chan Event { return f.events }

func (f *fakeRuntime) Supported() bool { return f.supported }

func (f *fakeRuntime) Register(ctx context.Context) error {
	f.registrations++
	return nil
}

func (f *fakeRuntime) RequestPermission(ctx context.Context) (bool, error) {
	f.prompts++
	return f.grant, nil
}

func (f *fakeRuntime) Subscribe(ctx context.Context, serverKey string) (*subscription.SubscribeRequest, error) {
	f.subscribed = true
	return &subscription.SubscribeRequest{
		Endpoint: f.endpoint,
		Keys:     subscription.Keys{P256dh: "pk", Auth: "ak"},
	}, nil
}

func (f *fakeRuntime) Unsubscribe(ctx context.Context) error {
	f.subscribed = false
	return nil
}

type fakeServer struct {
	registered   []string
	unregistered []string
	failRegister bool
}

func (f *fakeServer) RegisterSubscription(ctx context.Context, sub subscription.SubscribeRequest) error {
	if f.failRegister {
		return errors.New("server down")
	}
	f.registered = append(f.registered, sub.Endpoint)
	return nil
}

func (f *fakeServer) UnregisterSubscription(ctx context.Context, endpoint string) error {
	f.unregistered = append(f.unregistered, endpoint)
	return nil
}

func openState(t *testing.T) *state.Store {
	t.Helper()
	st, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestCheckSupport(t *testing.T) {
	st := openState(t)
	m := NewManager(&fakeRuntime{supported: true}, &fakeServer{}, st, slog.Default(), 0)
	assert.True(t, m.CheckSupport())

	m = NewManager(&fakeRuntime{supported: false}, &fakeServer{}, st, slog.Default(), 0)
	assert.False(t, m.CheckSupport())
}

func TestRequestPermission_DenialIsTerminalForSession(t *testing.T) {
	rt := &fakeRuntime{grant: false}
	m := NewManager(rt, &fakeServer{}, openState(t), slog.Default(), 0)
	ctx := context.Background()

	granted, err := m.RequestPermission(ctx)
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, 1, rt.prompts)

	// Same session never prompts again
	granted, err = m.RequestPermission(ctx)
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, 1, rt.prompts)
}

func TestRequestPermission_CooldownSpansSessions(t *testing.T) {
	st := openState(t)
	rt := &fakeRuntime{grant: true}
	m := NewManager(rt, &fakeServer{}, st, slog.Default(), time.Hour)
	ctx := context.Background()

	granted, err := m.RequestPermission(ctx)
	require.NoError(t, err)
	assert.True(t, granted)

	// A fresh manager over the same durable state models a new session; the
	// persisted asked flag is inside the cool-down so no prompt happens.
	m2 := NewManager(rt, &fakeServer{}, st, slog.Default(), time.Hour)
	granted, err = m2.RequestPermission(ctx)
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, 1, rt.prompts)
}

func TestRequestPermission_PromptsAgainAfterCooldown(t *testing.T) {
	st := openState(t)
	require.NoError(t, st.SetPermissionAsked(time.Now().Add(-2*time.Hour)))

	rt := &fakeRuntime{grant: true}
	m := NewManager(rt, &fakeServer{}, st, slog.Default(), time.Hour)

	granted, err := m.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Equal(t, 1, rt.prompts)
}

func TestSubscribe_RegistersWithServer(t *testing.T) {
	st := openState(t)
	rt := &fakeRuntime{endpoint: "https://push.example/dev1"}
	srv := &fakeServer{}
	m := NewManager(rt, srv, st, slog.Default(), 0)

	require.NoError(t, m.Subscribe(context.Background(), "server-key"))

	assert.Equal(t, 1, rt.registrations)
	assert.Equal(t, []string{"https://push.example/dev1"}, srv.registered)

	active, ok := st.ActiveSubscription()
	require.True(t, ok)
	assert.Equal(t, "https://push.example/dev1", active.Endpoint)
	_, pending := st.PendingSubscription()
	assert.False(t, pending)
}

func TestSubscribe_ServerFailureKeepsPending(t *testing.T) {
	st := openState(t)
	rt := &fakeRuntime{endpoint: "https://push.example/dev1"}
	srv := &fakeServer{failRegister: true}
	m := NewManager(rt, srv, st, slog.Default(), 0)

	require.NoError(t, m.Subscribe(context.Background(), "server-key"))

	// Local subscription kept, not torn down
	assert.True(t, rt.subscribed)
	pending, ok := st.PendingSubscription()
	require.True(t, ok)
	assert.Equal(t, "https://push.example/dev1", pending.Endpoint)
}

func TestResume_RetriesPendingRegistration(t *testing.T) {
	st := openState(t)
	require.NoError(t, st.SetPendingSubscription(&subscription.SubscribeRequest{
		Endpoint: "https://push.example/dev1",
		Keys:     subscription.Keys{P256dh: "pk", Auth: "ak"},
	}))

	srv := &fakeServer{}
	m := NewManager(&fakeRuntime{}, srv, st, slog.Default(), 0)

	require.NoError(t, m.Resume(context.Background()))

	assert.Equal(t, []string{"https://push.example/dev1"}, srv.registered)
	_, pending := st.PendingSubscription()
	assert.False(t, pending)
	active, ok := st.ActiveSubscription()
	require.True(t, ok)
	assert.Equal(t, "https://push.example/dev1", active.Endpoint)
}

func TestResume_NoPendingIsNoop(t *testing.T) {
	srv := &fakeServer{}
	m := NewManager(&fakeRuntime{}, srv, openState(t), slog.Default(), 0)

	require.NoError(t, m.Resume(context.Background()))
	assert.Empty(t, srv.registered)
}

func TestUnsubscribe_LocalCancelWins(t *testing.T) {
	st := openState(t)
	rt := &fakeRuntime{endpoint: "https://push.example/dev1"}
	srv := &fakeServer{}
	m := NewManager(rt, srv, st, slog.Default(), 0)

	require.NoError(t, m.Subscribe(context.Background(), "server-key"))
	require.NoError(t, m.Unsubscribe(context.Background()))

	assert.False(t, rt.subscribed)
	assert.Equal(t, []string{"https://push.example/dev1"}, srv.unregistered)
	_, ok := st.ActiveSubscription()
	assert.False(t, ok)
}

type captureEvents struct {
	pushes [][]byte
	clicks []string
}

func (c *captureEvents) HandlePush(ctx context.Context, payload []byte) {
	c.pushes = append(c.pushes, payload)
}

func (c *captureEvents) HandleClick(ctx context.Context, tag, target string) {
	c.clicks = append(c.clicks, tag+" "+target)
}

func TestListen_DispatchesPushAndClick(t *testing.T) {
	rt := &fakeRuntime{events: make(chan Event, 2)}
	m := NewManager(rt, &fakeServer{}, openState(t), slog.Default(), 0)
	h := &captureEvents{}

	rt.events <- Event{Kind: EventPush, Payload: []byte(`{"type":"alert","contentId":"c1"}`)}
	rt.events <- Event{Kind: EventNotificationClick, Tag: "content:c1", Target: "/alertas"}
	close(rt.events)

	m.Listen(context.Background(), h)

	require.Len(t, h.pushes, 1)
	assert.JSONEq(t, `{"type":"alert","contentId":"c1"}`, string(h.pushes[0]))
	assert.Equal(t, []string{"content:c1 /alertas"}, h.clicks)
}

func TestListen_ExpiredSubscriptionClearsEndpoint(t *testing.T) {
	st := openState(t)
	rt := &fakeRuntime{endpoint: "https://push.example/dev1", events: make(chan Event, 1)}
	m := NewManager(rt, &fakeServer{}, st, slog.Default(), 0)
	require.NoError(t, m.Subscribe(context.Background(), "server-key"))

	rt.events <- Event{
		Kind:       EventSubscriptionExpired,
		EndpointID: subscription.EndpointID("https://push.example/dev1"),
	}
	close(rt.events)

	m.Listen(context.Background(), &captureEvents{})

	assert.False(t, rt.subscribed)
	_, ok := st.ActiveSubscription()
	assert.False(t, ok)
}

func TestListen_StopsOnContextCancel(t *testing.T) {
	rt := &fakeRuntime{events: make(chan Event)}
	m := NewManager(rt, &fakeServer{}, openState(t), slog.Default(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Listen(ctx, &captureEvents{})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after cancellation")
	}
}

func TestHandleDead_RemovesMatchingEndpoint(t *testing.T) {
	st := openState(t)
	rt := &fakeRuntime{endpoint: "https://push.example/dev1"}
	m := NewManager(rt, &fakeServer{}, st, slog.Default(), 0)

	require.NoError(t, m.Subscribe(context.Background(), "server-key"))
	require.True(t, rt.subscribed)

	m.HandleDead(context.Background(), subscription.EndpointID("https://push.example/dev1"))

	assert.False(t, rt.subscribed)
	_, ok := st.ActiveSubscription()
	assert.False(t, ok)
}

func TestHandleDead_IgnoresForeignEndpoint(t *testing.T) {
	st := openState(t)
	rt := &fakeRuntime{endpoint: "https://push.example/dev1"}
	m := NewManager(rt, &fakeServer{}, st, slog.Default(), 0)

	require.NoError(t, m.Subscribe(context.Background(), "server-key"))
	m.HandleDead(context.Background(), subscription.EndpointID("https://push.example/other"))

	assert.True(t, rt.subscribed)
	_, ok := st.ActiveSubscription()
	assert.True(t, ok)
}
