package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus-chat/internal/broadcast"
	"campus-chat/internal/config"
	"campus-chat/internal/database"
	"campus-chat/internal/handlers"
	"campus-chat/internal/metrics"
	"campus-chat/internal/presence"
	"campus-chat/internal/websocket"
	"campus-chat/pkg/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		logger.Fatal("Invalid LOG_LEVEL: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Presence core
	registry := presence.NewRegistry(cfg.Presence.RegistryShards)
	extractor := presence.NewIdentityExtractor(cfg.Presence.IdentityParam, cfg.Presence.IdentityHeader)
	m := metrics.New(registry.OnlineCount)

	hub := websocket.NewHub(extractor, websocket.Options{
		SendBuffer:   cfg.Transport.SendBuffer,
		PongWait:     cfg.Transport.PongWait,
		WriteWait:    cfg.Transport.WriteWait,
		MaxFrameSize: int64(cfg.Transport.MaxFrameSize),
	}, m)

	broadcasters := broadcast.Fanout{hub}
	if cfg.NATS.URL != "" {
		mirror, err := broadcast.NewNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			logger.Fatal("Failed to connect to NATS: %v", err)
		}
		defer mirror.Close()
		broadcasters = append(broadcasters, mirror)
	}

	coordinator := presence.NewCoordinator(registry, broadcasters, presence.Options{
		Channel:      cfg.Presence.Channel,
		SystemSender: cfg.Presence.SystemSender,
		CountRefresh: cfg.Presence.CountRefresh,
		Shards:       cfg.Presence.RegistryShards,
	})
	coordinator.AddObserver(m)
	hub.SetPresence(coordinator)

	// Optional presence journal
	var lastSeen database.PresenceRepository
	if cfg.Database.URL != "" {
		db, err := database.NewPostgresDB(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database: %v", err)
		}
		journal := database.NewJournal(db, 0)
		defer journal.Close()
		coordinator.AddObserver(journal)
		lastSeen = db
	}

	// Initialize handlers
	wsHandlers := handlers.NewWebSocketHandlers(hub, extractor, cfg.Server.AllowedOrigin)
	presenceHandlers := handlers.NewPresenceHandlers(registry, hub, lastSeen)

	// Setup routes
	mux := http.NewServeMux()
	setupRoutes(mux, cfg.Server.WSPath, wsHandlers, presenceHandlers, m)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(mux, cfg.Server.AllowedOrigin),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("🚀 Server started on http://localhost%s", cfg.Server.Port)
	logger.Info("📡 WebSocket endpoint: ws://localhost%s%s", cfg.Server.Port, cfg.Server.WSPath)
	logger.Info("📢 Presence channel: %s", cfg.Presence.Channel)
	printAPIEndpoints()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run()
		return nil
	})
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown error: %v", err)
		}
		return hub.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error: %v", err)
	}
}

func setupRoutes(mux *http.ServeMux, wsPath string, wsHandlers *handlers.WebSocketHandlers, presenceHandlers *handlers.PresenceHandlers, m *metrics.Metrics) {
	// WebSocket route
	mux.HandleFunc(wsPath, wsHandlers.HandleWebSocket)

	// Presence query routes
	mux.HandleFunc("/online", presenceHandlers.ListOnline)
	mux.HandleFunc("/online/", presenceHandlers.User)

	mux.HandleFunc("/healthz", presenceHandlers.Health)
	mux.Handle("/metrics", m.Handler())
}

func corsMiddleware(next http.Handler, allowedOrigin string) http.Handler {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func printAPIEndpoints() {
	logger.Info("🔗 API endpoints:")
	logger.Info("   GET    /online")
	logger.Info("   GET    /online/{identity}")
	logger.Info("   DELETE /online/{identity}")
	logger.Info("   GET    /healthz")
	logger.Info("   GET    /metrics")
}
