package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloghub/internal/config"
	"github.com/bloghub/internal/fanout"
	"github.com/bloghub/internal/handler"
	"github.com/bloghub/internal/logger"
	"github.com/bloghub/internal/middleware"
	"github.com/bloghub/internal/push"
	"github.com/bloghub/internal/repository"
	"github.com/bloghub/internal/startup"
	"github.com/bloghub/internal/storage"
	"github.com/bloghub/internal/storage/memory"
	"github.com/bloghub/internal/ws"
	"github.com/bloghub/migrations"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL and in-memory sessions (no external services required)")
	flag.Parse()

	logger.Info("starting API service")
	cfg := config.Load()

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 4

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second)
	defer pool.Close()

	runMigrations(pool)
	if *migrate && !*dev {
		return
	}
	logger.Info("database connected, migrations applied")

	var store storage.SessionStore
	var subStore storage.PushSubscriptionStore
	if *dev {
		mem := memory.New()
		store, subStore = mem, mem
		logger.Info("using in-memory session store (dev mode)")
	} else {
		rds := startup.ConnectRedisWithRetry(cfg.Redis.URL, 60*time.Second)
		store, subStore = rds, rds
		logger.Info("redis connected")
	}
	defer store.Close()

	if cfg.Push.VAPIDPublicKey == "" || cfg.Push.VAPIDPrivateKey == "" {
		if keys, err := push.EnsureVAPIDKeys(""); err == nil {
			cfg.Push.VAPIDPublicKey = keys.PublicKey
			cfg.Push.VAPIDPrivateKey = keys.PrivateKey
		} else {
			logger.Infof("VAPID keys unavailable (%v), web push disabled", err)
		}
	}
	sender := push.NewSender(subStore, cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subscriber)

	userRepo := repository.NewUserRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)
	notifRepo := repository.NewNotificationRepository(pool)
	postRepo := repository.NewPostRepository(pool)

	registry := ws.NewRegistry()
	hub := ws.NewHub(registry, cfg.MaxWSConnections)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	// push.Sender is nil when VAPID keys are missing; pass a nil interface
	// then so the coordinator skips the fallback entirely.
	var notifier fanout.PushNotifier
	if sender != nil {
		notifier = sender
	}
	coordinator := fanout.NewCoordinator(msgRepo, notifRepo, hub, notifier)

	msgH := handler.NewMessageHandler(msgRepo, userRepo, coordinator)
	notifH := handler.NewNotificationHandler(notifRepo)
	postH := handler.NewPostHandler(postRepo, userRepo, coordinator)
	userH := handler.NewUserHandler(userRepo, store)
	pushH := handler.NewPushHandler(subStore, cfg.Push.VAPIDPublicKey)
	wsH := handler.NewWSHandler(hub, cfg.CORSAllowedOrigins)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	// Do not compress WebSocket upgrades: the wrapped ResponseWriter loses
	// http.Hijacker and the upgrade fails with 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.RateLimitAPI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Get("/api/push/vapid-public", pushH.VAPIDPublic)

	if *dev {
		r.Post("/api/auth/dev-login", userH.DevLogin)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(store))

		r.Get("/api/users/me", userH.GetMe)
		r.Get("/api/users/{userId}", userH.GetUser)
		r.Post("/api/auth/logout", userH.Logout)

		r.Get("/api/messages/conversations", msgH.GetConversations)
		r.Get("/api/messages/unread/count", msgH.UnreadCount)
		r.Get("/api/messages/{peerId}", msgH.GetMessages)
		r.Post("/api/messages", msgH.CreateMessage)
		r.Put("/api/messages/read", msgH.MarkRead)

		r.Get("/api/notifications", notifH.List)
		r.Put("/api/notifications/read", notifH.MarkAllRead)
		r.Get("/api/notifications/unread/count", notifH.UnreadCount)

		r.Get("/api/posts", postH.List)
		r.Post("/api/posts", postH.Create)
		r.Get("/api/posts/{postId}", postH.Get)
		r.Post("/api/posts/{postId}/like", postH.Like)
		r.Post("/api/posts/{postId}/comments", postH.AddComment)

		r.Post("/api/follow/{userId}", postH.Follow)
		r.Delete("/api/follow/{userId}", postH.Unfollow)

		r.Post("/api/push/subscribe", pushH.Subscribe)
		r.Delete("/api/push/subscribe", pushH.Unsubscribe)

		r.Get("/ws", wsH.ServeWS)
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

// runMigrations applies the embedded SQL migrations in file order.
func runMigrations(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := migrations.Files.ReadDir(".")
	if err != nil {
		logger.Errorf("read migrations: %v", err)
		os.Exit(1)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := migrations.Files.ReadFile(name)
		if err != nil {
			logger.Errorf("read migration %s: %v", name, err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", name, err)
			os.Exit(1)
		}
	}
	logger.Info("migrations applied")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "bloghub"
		password = "bloghub_secret"
		database = "bloghub"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
