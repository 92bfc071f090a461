package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/cobra"

	"campus-gate-backend/internal/analytics"
	"campus-gate-backend/internal/api"
	"campus-gate-backend/internal/auth"
	"campus-gate-backend/internal/broadcast"
	"campus-gate-backend/internal/clock"
	"campus-gate-backend/internal/db"
	"campus-gate-backend/internal/notification"
	"campus-gate-backend/internal/occupancy"
	"campus-gate-backend/internal/store"
)

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, event stream and background workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts)
		},
	}
}

func runServe(opts *rootOptions) error {
	logger := log.New(os.Stdout, "campus-gate ", log.LstdFlags)

	cfg, err := loadConfig(logger, opts.ConfigPath)
	if err != nil {
		return err
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	clk := clock.Real()
	authority := auth.NewAuthority(cfg.Auth.JWTSecret, cfg.Auth.Issuer, clk)
	hub := broadcast.NewHub(authority, cfg.Broadcast.SubscriberBuffer)

	shifts, err := occupancy.NewShiftWindow(cfg.Shifts)
	if err != nil {
		return err
	}
	managerOpts := occupancy.Options{
		Gates:        cfg.Gates,
		Shifts:       shifts,
		StoreTimeout: cfg.Server.StoreTimeout,
		Clock:        clk,
	}

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions)
		pool.Start(ctx)
		managerOpts.Notifier = pool
	} else {
		logger.Println("VAPID keys not configured, push notifications disabled")
	}
	manager := occupancy.NewManager(appStore, hub, managerOpts)

	analyticsOpts, err := analytics.OptionsFromConfig(cfg.Analytics)
	if err != nil {
		return err
	}
	analyticsOpts.Clock = clk
	engine := analytics.NewEngine(gormDB, analyticsOpts)
	go analytics.NewRefresher(engine, hub, cfg.Analytics.RefreshInterval).Run(ctx)

	handler := api.NewHandler(api.Deps{
		Store:     appStore,
		Manager:   manager,
		Analytics: engine,
		Hub:       hub,
		WebPush:   webpushOptions,
		KeepAlive: time.Duration(cfg.Broadcast.KeepAliveSeconds) * time.Second,
	})
	router := api.NewRouter(handler, authority, cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Println("Shutdown signal received, stopping services...")
	case err := <-serveErr:
		return fmt.Errorf("HTTP server ListenAndServe: %w", err)
	}

	// Event streams only end when the hub closes, so close it before
	// waiting on in-flight requests.
	hub.Close()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server Shutdown: %w", err)
	}

	logger.Println("Server gracefully stopped")
	return nil
}
