package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/vecinapp/feed-backend-go/internal/config"
	appHTTP "github.com/vecinapp/feed-backend-go/internal/handler/http"
	"github.com/vecinapp/feed-backend-go/internal/pkg/cron"
	"github.com/vecinapp/feed-backend-go/internal/pkg/database"
	"github.com/vecinapp/feed-backend-go/internal/pkg/jwt"
	"github.com/vecinapp/feed-backend-go/internal/pkg/kv"
	"github.com/vecinapp/feed-backend-go/internal/pkg/webpush"
	"github.com/vecinapp/feed-backend-go/internal/repository/kvstore"
	authService "github.com/vecinapp/feed-backend-go/internal/service/auth"
	broadcastService "github.com/vecinapp/feed-backend-go/internal/service/broadcast"
	feedService "github.com/vecinapp/feed-backend-go/internal/service/feed"
	notificationService "github.com/vecinapp/feed-backend-go/internal/service/notification"
	subscriptionService "github.com/vecinapp/feed-backend-go/internal/service/subscription"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(
		slog.String("app", "vecina-feed"),
	)

	db, err := database.NewPostgreSQLDB(cfg.DatabaseURL())
	if err != nil {
		fmt.Println("Error connecting to database:", err)
		return
	}

	store, err := kv.NewPostgres(context.Background(), db)
	if err != nil {
		fmt.Println("Error preparing key-value store:", err)
		return
	}

	userRepo := kvstore.NewUserRepository(store)
	contentRepo := kvstore.NewContentRepository(store)
	notifRepo := kvstore.NewNotificationRepository(store)
	subRepo := kvstore.NewSubscriptionRepository(store)

	jwtSvc := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration, cfg.JWT.RefreshExpiration)

	vapid, err := webpush.NewVAPID(cfg.Push.VAPIDPrivateKey, cfg.Push.Subject)
	if err != nil {
		fmt.Println("Error loading VAPID keys:", err)
		return
	}
	pushClient := webpush.NewClient(vapid, nil, cfg.Push.TTLSeconds, logger)

	authSvc := authService.NewAuthService(userRepo, jwtSvc)
	notifSvc := notificationService.NewNotificationService(notifRepo)
	broadcaster := broadcastService.NewBroadcastService(subRepo, notifRepo, pushClient, logger)
	feedSvc := feedService.NewFeedService(contentRepo, broadcaster, notifSvc)
	subSvc := subscriptionService.NewSubscriptionService(subRepo)

	authHandler := appHTTP.NewAuthHandler(authSvc)
	feedHandler := appHTTP.NewFeedHandler(feedSvc)
	notificationHandler := appHTTP.NewNotificationHandler(notifSvc, feedSvc)
	subscriptionHandler := appHTTP.NewSubscriptionHandler(subSvc, vapid.PublicKey())

	router := appHTTP.NewRouter(
		jwtSvc,
		authHandler,
		feedHandler,
		notificationHandler,
		subscriptionHandler,
	)

	// Dead push endpoints flagged during broadcasts are swept lazily
	scheduler := cron.NewScheduler(logger)
	scheduler.AddJob("prune-dead-subscriptions", 15*time.Minute, broadcaster.PruneDeadSubscriptions)
	scheduler.Start()
	defer scheduler.Stop()
	defer broadcaster.Wait()

	port := fmt.Sprintf(":%d", cfg.App.Port)
	fmt.Printf("Server running at http://localhost%s\n", port)
	if err := http.ListenAndServe(port, router); err != nil {
		fmt.Println("Server error:", err)
	}
}
