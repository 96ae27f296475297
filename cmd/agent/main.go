// The agent is the client runtime: it keeps a local response cache so the
// feed stays readable offline, polls the server for new content, and routes
// detected changes through the delivery coordinator to the console surfaces.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vecinapp/feed-backend-go/internal/client/api"
	"github.com/vecinapp/feed-backend-go/internal/client/cachestore"
	"github.com/vecinapp/feed-backend-go/internal/client/netcache"
	"github.com/vecinapp/feed-backend-go/internal/client/notify"
	"github.com/vecinapp/feed-backend-go/internal/client/poller"
	"github.com/vecinapp/feed-backend-go/internal/client/push"
	"github.com/vecinapp/feed-backend-go/internal/client/state"
	"github.com/vecinapp/feed-backend-go/internal/config"
	"github.com/vecinapp/feed-backend-go/internal/domain/feed"
	"github.com/vecinapp/feed-backend-go/internal/domain/subscription"
)

func main() {
	cfg, err := config.LoadAgent()
	if err != nil {
		fmt.Println("Error loading config:", err)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With(
		slog.String("app", "vecina-agent"),
	)

	if err := os.MkdirAll(cfg.CacheDir, 0o700); err != nil {
		fmt.Println("Error creating cache dir:", err)
		return
	}

	cache, err := cachestore.Open(filepath.Join(cfg.CacheDir, "cache.db"))
	if err != nil {
		fmt.Println("Error opening cache:", err)
		return
	}
	defer cache.Close()

	// Activation: drop cache namespaces from older layouts before serving
	if err := cache.CleanupObsolete(netcache.Namespaces()); err != nil {
		fmt.Println("Error cleaning obsolete caches:", err)
		return
	}

	transport, err := netcache.New(cache, nil, []string{cfg.APIPathPrefix}, "", logger)
	if err != nil {
		fmt.Println("Error building transport:", err)
		return
	}
	defer transport.Wait()

	client := api.New(cfg.ServerURL, &http.Client{
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
	})

	st, err := state.Open(filepath.Join(cfg.CacheDir, "state.db"))
	if err != nil {
		fmt.Println("Error opening state store:", err)
		return
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if email, password := os.Getenv("AGENT_EMAIL"), os.Getenv("AGENT_PASSWORD"); email != "" {
		if err := client.Login(ctx, email, password); err != nil {
			logger.Warn("login failed, polling stays suspended", "error", err)
		}
	}

	manager := push.NewManager(&consoleRuntime{log: logger}, client, st, logger, 0)
	if err := manager.Resume(ctx); err != nil {
		logger.Warn("pending subscription retry failed", "error", err)
	}

	if manager.CheckSupport() && client.Authenticated() {
		if granted, err := manager.RequestPermission(ctx); err != nil {
			logger.Warn("permission request failed", "error", err)
		} else if granted {
			if key, err := client.VAPIDPublicKey(ctx); err != nil {
				logger.Warn("failed to fetch server key", "error", err)
			} else if err := manager.Subscribe(ctx, key); err != nil {
				logger.Warn("subscribe failed", "error", err)
			}
		}
	}

	surfaces := &consoleSurfaces{log: logger}
	coordinator := notify.NewCoordinator(surfaces, surfaces, surfaces, client, client, logger)

	p := poller.New(client, &agentGate{client: client}, coordinator, st, cfg.PollInterval, logger)

	// Inbound push events reach the same pipeline the poller drives
	go manager.Listen(ctx, &pushBridge{coord: coordinator, poll: p, log: logger})

	logger.Info("agent running", "server", cfg.ServerURL, "interval", cfg.PollInterval)
	p.Run(ctx)
}

// pushBridge routes runtime push events into the delivery pipeline. Decoded
// payloads fan out through the coordinator and fold into the pending set, so
// whichever of push and poll arrives first is not erased by the other.
type pushBridge struct {
	coord *notify.Coordinator
	poll  *poller.Poller
	log   *slog.Logger
}

func (b *pushBridge) HandlePush(ctx context.Context, payload []byte) {
	p := notify.DecodePushPayload(payload)
	if p.ContentID == "" && p.Title == "" {
		return
	}
	b.poll.MergePush([]feed.ContentDelta{{
		Type:        p.Type,
		Count:       1,
		LatestTitle: p.Title,
		LatestID:    p.ContentID,
	}})
	b.coord.DeliverPush(ctx, p)
}

// HandleClick opens the notification's target. Viewing the change is the
// acknowledgment that advances the checkpoint.
func (b *pushBridge) HandleClick(ctx context.Context, tag, target string) {
	fmt.Printf("[open] %s\n", target)
	if err := b.poll.Acknowledge(time.Now()); err != nil {
		b.log.Warn("failed to advance checkpoint", "error", err)
	}
}

// agentGate suspends polling while unauthenticated. The headless agent is
// always "foregrounded".
type agentGate struct {
	client *api.Client
}

func (g *agentGate) Foreground() bool    { return true }
func (g *agentGate) Authenticated() bool { return g.client.Authenticated() }

// consoleRuntime is the push runtime of the headless shell: no real OS push
// transport, so the endpoint is a stable per-install identifier the server
// can address and the event channel never fires.
type consoleRuntime struct {
	log        *slog.Logger
	registered bool
	events     chan push.Event
}

func (r *consoleRuntime) Events() <-chan push.Event { return r.events }

func (r *consoleRuntime) Supported() bool { return true }

func (r *consoleRuntime) Register(ctx context.Context) error {
	r.registered = true
	return nil
}

func (r *consoleRuntime) RequestPermission(ctx context.Context) (bool, error) {
	// Headless shells have nobody to ask; permission is granted implicitly
	return true, nil
}

func (r *consoleRuntime) Subscribe(ctx context.Context, serverKey string) (*subscription.SubscribeRequest, error) {
	hostname, _ := os.Hostname()
	return &subscription.SubscribeRequest{
		Endpoint: "agent://" + hostname,
		Keys:     subscription.Keys{P256dh: serverKey, Auth: "agent"},
	}, nil
}

func (r *consoleRuntime) Unsubscribe(ctx context.Context) error {
	r.registered = false
	return nil
}

// consoleSurfaces renders every delivery channel to the terminal.
type consoleSurfaces struct {
	log *slog.Logger
}

func (s *consoleSurfaces) Show(toast notify.Toast) error {
	fmt.Printf("[toast] %s: %s (%s)\n", toast.Title, toast.Body, toast.Target)
	return nil
}

func (s *consoleSurfaces) Update(rows []notify.BannerRow) error {
	for _, row := range rows {
		fmt.Printf("[banner] %-12s %3d  %s\n", row.Type, row.Count, row.Latest)
	}
	return nil
}

func (s *consoleSurfaces) Notify(n notify.OSNotification) error {
	fmt.Printf("[notify:%s] %s: %s\n", n.Tag, n.Title, n.Body)
	return nil
}
