package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leafsii/post-api/internal/api"
	"github.com/leafsii/post-api/internal/config"
	"github.com/leafsii/post-api/internal/events"
	"github.com/leafsii/post-api/internal/log"
	"github.com/leafsii/post-api/internal/metrics"
	"github.com/leafsii/post-api/internal/posts"
	"github.com/leafsii/post-api/internal/session"
	"github.com/leafsii/post-api/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting post API server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"store", cfg.Store.Backend,
		"sessions", cfg.Session.Backend,
		"events", cfg.Events.Backend,
	)

	// Setup metrics
	metricsObj, metricsHandler, err := metrics.Setup("post-api")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	// Post store
	backend, err := store.NewBackend(cfg.Store, logger)
	if err != nil {
		logger.Fatalw("Failed to create post store", "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Store.ConnectTimeout+5*time.Second)
	defer cancel()
	if err := store.ConnectAndMigrate(ctx, backend, cfg.Store.AutoMigrate); err != nil {
		logger.Fatalw("Failed to initialize post store", "error", err)
	}
	defer backend.Disconnect(context.Background())
	logger.Infow("Post store initialized")

	// Sessions
	kvStore, err := session.NewStore(cfg.Session, logger)
	if err != nil {
		logger.Fatalw("Failed to setup session store", "error", err)
	}
	defer kvStore.Close()

	sessions := session.NewManager(kvStore, session.Options{
		CookieName: cfg.Session.CookieName,
		TTL:        cfg.Session.TTL,
		Secure:     cfg.Session.Secure,
	}, logger, metricsObj)

	users, err := cfg.Session.Credentials()
	if err != nil {
		logger.Fatalw("Invalid session users", "error", err)
	}
	if len(users) == 0 {
		logger.Warnw("No users configured; every write will be served as a list")
	}
	auth := session.NewAuthenticator(users)

	// Change feed
	broker, err := events.NewBroker(cfg.Events, cfg.Session.RedisURL)
	if err != nil {
		logger.Fatalw("Failed to setup events broker", "error", err)
	}
	defer broker.Close()

	hub := events.NewHub(broker, cfg.Events.Channel, cfg.Security.CORSAllowedOrigins, logger, metricsObj)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	postsSvc := posts.NewService(backend, hub, logger, metricsObj)

	// Setup API handler and middleware
	handler := api.NewHandler(postsSvc, sessions, auth, http.HandlerFunc(hub.HandleWebSocket), backend, logger, cfg.Security.MaxBodyBytes)
	middleware := api.NewMiddleware(logger, metricsObj)

	router := handler.Routes(middleware, metricsHandler, cfg.Security.CORSAllowedOrigins, cfg.Security.RateLimitRPM)

	// Log configured CORS origins for easier debugging in dev
	logger.Infow("CORS configured", "allowed_origins", cfg.Security.CORSAllowedOrigins)

	// Setup HTTP server
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatalw("Server startup failed", "error", err)
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}
		hubCancel()

		logger.Infow("Server stopped")
	}
}
