package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"

	"github.com/meltforce/trainlog/internal/catalog"
	"github.com/meltforce/trainlog/internal/config"
	"github.com/meltforce/trainlog/internal/hooks"
	trainmcp "github.com/meltforce/trainlog/internal/mcp"
	"github.com/meltforce/trainlog/internal/server"
	"github.com/meltforce/trainlog/internal/storage"
	"github.com/meltforce/trainlog/internal/storage/sqlite"
	"github.com/meltforce/trainlog/internal/telemetry"
	"github.com/meltforce/trainlog/internal/training"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	log.Info("trainlog starting", "version", Version)

	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		log.Error("telemetry setup failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	store, closeStore, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		log.Error("failed to open storage", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	loc, err := cfg.Reporting.Location()
	if err != nil {
		log.Error("invalid reporting timezone", "error", err)
		os.Exit(1)
	}

	plans, reloadPlans, err := openCatalog(cfg.Catalog)
	if err != nil {
		log.Error("failed to open plan catalog", "error", err)
		os.Exit(1)
	}

	completionHooks := hooks.Multi{hooks.LogHook{Logger: log}}
	if cfg.Hooks.WebhookURL != "" {
		completionHooks = append(completionHooks, hooks.NewWebhook(cfg.Hooks.WebhookURL, cfg.Hooks.Timeout))
		log.Info("completion webhook enabled", "url", cfg.Hooks.WebhookURL)
	}

	manager := training.NewManager(store, plans, completionHooks, log)
	manager.SetHookTimeout(cfg.Hooks.Timeout)
	tracker := training.NewTracker(store, log)
	reports := training.NewAggregator(store, loc)

	// Start listener — tsnet or plain HTTP
	var listener net.Listener
	var identity []func(http.Handler) http.Handler

	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		if cfg.Auth.Identity == config.IdentityTailscale {
			lc, err := tsServer.LocalClient()
			if err != nil {
				log.Error("tsnet local client failed", "error", err)
				os.Exit(1)
			}
			identity = append(identity, server.TailscaleIdentity(lc))
		}

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr)
	}

	switch cfg.Auth.Identity {
	case config.IdentityHeader:
		identity = append(identity, server.APIKeyAuth(cfg.Auth.APIKey), server.HeaderIdentity)
	case config.IdentityJWT:
		identity = append(identity, server.JWTIdentity([]byte(cfg.Auth.JWTSecret)))
	}
	log.Info("identity configured", "mode", cfg.Auth.Identity)

	srv := server.New(manager, tracker, reports, log, identity...)

	mcpSrv := trainmcp.New(trainmcp.NewLocal(manager, reports), Version, log)
	srv.SetMCP(mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithStateLess(true),
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return trainmcp.WithUserID(ctx, server.UserIDFromContext(r.Context()))
		}),
	))

	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown; SIGHUP reloads a file-based plan catalog.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range quit {
		if sig == syscall.SIGHUP {
			if reloadPlans == nil {
				continue
			}
			if err := reloadPlans(); err != nil {
				log.Error("plan catalog reload failed", "error", err)
				continue
			}
			log.Info("plan catalog reloaded", "file", cfg.Catalog.File)
			continue
		}
		log.Info("shutting down", "signal", sig)
		break
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	manager.Wait()
	log.Info("server stopped")
}

// openStore connects the configured storage backend and applies migrations.
func openStore(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (training.SessionStore, func(), error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		log.Info("sqlite database opened", "path", cfg.Path)
		return store, func() { _ = store.Close() }, nil
	default:
		dsn := cfg.DSN()
		if err := storage.RunMigrations(dsn); err != nil {
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("migrations applied")

		db, err := storage.New(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		log.Info("database connected")
		return db, db.Close, nil
	}
}

// openCatalog returns the plan-day source and, for file catalogs, its reload function.
func openCatalog(cfg config.CatalogConfig) (training.PlanCatalog, func() error, error) {
	if cfg.File != "" {
		plans, err := catalog.LoadFile(cfg.File)
		if err != nil {
			return nil, nil, err
		}
		return plans, plans.Reload, nil
	}
	return catalog.NewHTTPClient(cfg.BaseURL, cfg.Timeout), nil, nil
}
