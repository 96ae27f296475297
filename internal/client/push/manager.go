// Package push owns the lifecycle of the device's push endpoint: capability
// detection, permission, subscription creation and server registration,
// unsubscription, and removal of endpoints the transport reported dead.
//
// The Runtime interface abstracts the host shell's background-process and
// push capability, so any runtime with an equivalent install/activate/push/
// notification-click lifecycle can sit underneath the manager.
package push

import (
	"context"
	"log/slog"
	"time"

	"github.com/vecinapp/feed-backend-go/internal/client/state"
	"github.com/vecinapp/feed-backend-go/internal/domain/subscription"
)

// Runtime is the host shell's push capability.
type Runtime interface {
	// Supported probes for background-process registration, push and
	// notification-permission support. Any missing piece means false.
	Supported() bool
	// Register readies the background process. Registering an already
	// active process is a no-op, not an error.
	Register(ctx context.Context) error
	// RequestPermission shows the permission prompt once and reports the
	// user's decision.
	RequestPermission(ctx context.Context) (bool, error)
	// Subscribe derives a push subscription from the application server key.
	Subscribe(ctx context.Context, serverKey string) (*subscription.SubscribeRequest, error)
	// Unsubscribe cancels the local subscription, if any.
	Unsubscribe(ctx context.Context) error
	// Events surfaces the shell's push and notification-click callbacks.
	// The channel stays open for the life of the process.
	Events() <-chan Event
}

// EventKind discriminates runtime events.
type EventKind int

const (
	// EventPush carries an inbound push message body.
	EventPush EventKind = iota
	// EventNotificationClick reports the user activating a displayed
	// notification.
	EventNotificationClick
	// EventSubscriptionExpired reports the transport invalidating the
	// subscription out from under us.
	EventSubscriptionExpired
)

// Event is one callback from the host shell's push runtime.
type Event struct {
	Kind EventKind

	// Payload is the push message body (EventPush).
	Payload []byte

	// Tag and Target identify the clicked notification (EventNotificationClick).
	Tag    string
	Target string

	// EndpointID names the invalidated endpoint (EventSubscriptionExpired).
	EndpointID string
}

// Handler consumes the push and notification-click events Listen dispatches.
type Handler interface {
	HandlePush(ctx context.Context, payload []byte)
	HandleClick(ctx context.Context, tag, target string)
}

// Server is the slice of the feed server API the manager needs.
type Server interface {
	RegisterSubscription(ctx context.Context, sub subscription.SubscribeRequest) error
	UnregisterSubscription(ctx context.Context, endpoint string) error
}

// Manager drives the Runtime and keeps the durable subscription state in
// sync with the server.
type Manager struct {
	runtime  Runtime
	server   Server
	state    *state.Store
	log      *slog.Logger
	cooldown time.Duration

	deniedThisSession bool
}

// NewManager creates a push subscription manager. cooldown bounds how often
// a user who already saw the permission prompt is asked again across
// sessions; zero means the default of 7 days.
func NewManager(runtime Runtime, server Server, st *state.Store, log *slog.Logger, cooldown time.Duration) *Manager {
	if cooldown <= 0 {
		cooldown = 7 * 24 * time.Hour
	}
	return &Manager{
		runtime:  runtime,
		server:   server,
		state:    st,
		log:      log,
		cooldown: cooldown,
	}
}

// CheckSupport reports whether this device can receive push at all.
func (m *Manager) CheckSupport() bool {
	return m.runtime.Supported()
}

// RequestPermission prompts for notification permission. A denial is
// terminal for the session, and the prompt is suppressed entirely while the
// persisted "asked" flag is inside the cool-down window, so restarting the
// app does not nag the user.
func (m *Manager) RequestPermission(ctx context.Context) (bool, error) {
	if m.deniedThisSession {
		return false, nil
	}
	if asked, ok := m.state.PermissionAsked(); ok && time.Since(asked) < m.cooldown {
		return false, nil
	}

	if err := m.state.SetPermissionAsked(time.Now()); err != nil {
		m.log.Warn("failed to persist permission-asked flag", "error", err)
	}

	granted, err := m.runtime.RequestPermission(ctx)
	if err != nil {
		return false, err
	}
	if !granted {
		m.deniedThisSession = true
	}
	return granted, nil
}

// Subscribe registers the background process, derives a subscription from
// the server key, and uploads it. When the server registration fails the
// local subscription is kept as pending and retried by Resume on the next
// launch instead of being torn down.
func (m *Manager) Subscribe(ctx context.Context, serverKey string) error {
	if err := m.runtime.Register(ctx); err != nil {
		return err
	}

	sub, err := m.runtime.Subscribe(ctx, serverKey)
	if err != nil {
		return err
	}

	if err := m.server.RegisterSubscription(ctx, *sub); err != nil {
		m.log.Warn("server registration failed, keeping subscription pending", "error", err)
		if err := m.state.SetPendingSubscription(sub); err != nil {
			m.log.Warn("failed to persist pending subscription", "error", err)
		}
		return nil
	}

	return m.confirm(sub)
}

// Resume retries a pending server registration left over from an earlier
// session. Called once on launch.
func (m *Manager) Resume(ctx context.Context) error {
	sub, ok := m.state.PendingSubscription()
	if !ok {
		return nil
	}

	if err := m.server.RegisterSubscription(ctx, *sub); err != nil {
		m.log.Warn("pending subscription retry failed", "error", err)
		return nil
	}
	return m.confirm(sub)
}

func (m *Manager) confirm(sub *subscription.SubscribeRequest) error {
	if err := m.state.SetActiveSubscription(sub); err != nil {
		return err
	}
	if err := m.state.ClearPendingSubscription(); err != nil {
		m.log.Warn("failed to clear pending subscription", "error", err)
	}
	m.log.Info("push subscription registered", "endpoint_id", subscription.EndpointID(sub.Endpoint))
	return nil
}

// Unsubscribe cancels the local subscription and then notifies the server
// best-effort. Local cancellation wins: a failed server call still leaves
// the device unsubscribed, and the server self-heals by pruning the endpoint
// on its next failed dispatch.
func (m *Manager) Unsubscribe(ctx context.Context) error {
	if err := m.runtime.Unsubscribe(ctx); err != nil {
		return err
	}

	sub, ok := m.state.ActiveSubscription()
	if !ok {
		sub, ok = m.state.PendingSubscription()
	}

	if err := m.state.ClearActiveSubscription(); err != nil {
		m.log.Warn("failed to clear active subscription", "error", err)
	}
	if err := m.state.ClearPendingSubscription(); err != nil {
		m.log.Warn("failed to clear pending subscription", "error", err)
	}

	if ok {
		if err := m.server.UnregisterSubscription(ctx, sub.Endpoint); err != nil {
			m.log.Warn("server unsubscribe failed, relying on lazy pruning", "error", err)
		}
	}
	return nil
}

// Listen consumes runtime events until ctx is cancelled or the channel
// closes. Push and click events go to the handler; expired-subscription
// events are the manager's own concern and clear the dead endpoint.
func (m *Manager) Listen(ctx context.Context, h Handler) {
	events := m.runtime.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case EventPush:
				h.HandlePush(ctx, ev.Payload)
			case EventNotificationClick:
				h.HandleClick(ctx, ev.Tag, ev.Target)
			case EventSubscriptionExpired:
				m.HandleDead(ctx, ev.EndpointID)
			}
		}
	}
}

// HandleDead removes a subscription the transport reported gone during an
// unrelated dispatch. The endpoint is never resurrected silently; the user
// must subscribe again explicitly.
func (m *Manager) HandleDead(ctx context.Context, endpointID string) {
	sub, ok := m.state.ActiveSubscription()
	if !ok || subscription.EndpointID(sub.Endpoint) != endpointID {
		return
	}

	if err := m.runtime.Unsubscribe(ctx); err != nil {
		m.log.Warn("failed to cancel dead subscription locally", "error", err)
	}
	if err := m.state.ClearActiveSubscription(); err != nil {
		m.log.Warn("failed to clear dead subscription", "error", err)
	}
	m.log.Info("removed dead push subscription", "endpoint_id", endpointID)
}
