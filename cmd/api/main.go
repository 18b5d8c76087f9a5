package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"zonegate.org/internal/access"
	"zonegate.org/internal/auth"
	"zonegate.org/internal/config"
	"zonegate.org/internal/devices"
	"zonegate.org/internal/httpapi"
	"zonegate.org/internal/obs"
	"zonegate.org/internal/store/pg"
	redistore "zonegate.org/internal/store/redis"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Repositories: PostgreSQL when a DSN is configured, in-memory otherwise.
	var (
		zoneRepo    access.ZoneRepository
		userRepo    access.UserRepository
		permRepo    access.PermissionRepository
		alertRepo   access.AlertRepository
		historyRepo access.HistoryRepository
		ready       httpapi.ReadyProbe
		closers     []func() error
	)
	if cfg.Database.DSN != "" {
		store, err := pg.Open(cfg.Database.DSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store.DB().SetMaxOpenConns(cfg.Database.MaxOpenConns)
		store.DB().SetMaxIdleConns(cfg.Database.MaxIdleConns)
		closers = append(closers, store.Close)

		zoneRepo = store.Zones()
		userRepo = store.Users()
		permRepo = store.Permissions()
		alertRepo = store.Alerts()
		historyRepo = store.History()
		ready = httpapi.ReadyProbe{DB: store.DB()}
	} else {
		log.Println("no database DSN configured, using in-memory repositories")
		zoneRepo = access.NewMemoryZones()
		userRepo = access.NewMemoryUsers()
		permRepo = access.NewMemoryPermissions()
		alertRepo = access.NewMemoryAlerts()
		historyRepo = access.NewMemoryHistory()
	}

	// Redis takes over access history when configured, regardless of the
	// primary store.
	if cfg.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, rdb.Close)
		historyRepo = redistore.NewHistory(rdb)
	}

	// Device registry: remote client when configured, zero-count otherwise.
	var registry access.DeviceRegistry = devices.Static{}
	if cfg.Devices.BaseURL != "" {
		client, err := devices.NewClient(cfg.Devices.BaseURL, cfg.Devices.Timeout,
			devices.WithMaxAttempts(cfg.Devices.MaxAttempts))
		if err != nil {
			log.Fatalf("device registry client: %v", err)
		}
		registry = client
	}

	zones, err := access.NewZoneService(zoneRepo, registry)
	if err != nil {
		log.Fatalf("zone service: %v", err)
	}
	alerts, err := access.NewAlertService(alertRepo)
	if err != nil {
		log.Fatalf("alert service: %v", err)
	}
	history, err := access.NewHistoryTracker(historyRepo)
	if err != nil {
		log.Fatalf("history tracker: %v", err)
	}
	perms, err := access.NewPermissionService(permRepo)
	if err != nil {
		log.Fatalf("permission service: %v", err)
	}
	engine, err := access.NewEngine(zoneRepo, userRepo, alerts, history,
		access.WithEvaluateTimeout(cfg.Engine.EvaluateTimeout),
		access.WithTierThresholds(cfg.Engine.RestrictedMinLevel, cfg.Engine.HighSecurityMinLevel))
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	var verifier *auth.Verifier
	if len(cfg.Auth.PublicKey) > 0 {
		verifier, err = auth.NewVerifier(cfg.Auth.PublicKey, cfg.Auth.Issuer)
		if err != nil {
			log.Fatalf("auth verifier: %v", err)
		}
	} else {
		log.Println("no auth public key configured, API runs unauthenticated")
	}

	api := httpapi.New(httpapi.Options{
		Ready:    ready,
		Version:  version,
		Zones:    zones,
		Engine:   engine,
		Alerts:   alerts,
		History:  history,
		Perms:    perms,
		Verifier: verifier,
	})

	handler := httpapi.RequestID(
		httpapi.LoggingJSON(
			httpapi.SecurityHeaders(
				httpapi.CORS(
					httpapi.MaxBodyBytes(
						httpapi.RateLimit(api.Handler(), cfg.Server.RateBurst, cfg.Server.RatePerSec),
						cfg.Server.MaxBodyBytes)))))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	log.Printf("Starting zonegate-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	for _, closeFn := range closers {
		_ = closeFn()
	}
	log.Println("Stopped")
}
