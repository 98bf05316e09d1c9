package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"stayadmin.org/internal/audit"
	"stayadmin.org/internal/auth"
	"stayadmin.org/internal/config"
	"stayadmin.org/internal/httpapi"
	"stayadmin.org/internal/obs"
	"stayadmin.org/internal/resource"
	"stayadmin.org/internal/store"
	"stayadmin.org/internal/store/memory"
	"stayadmin.org/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	log, err := obs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Document backend: Postgres when a DSN is configured, memory otherwise.
	var (
		backend store.Backend
		ready   httpapi.ReadyProbe
	)
	if cfg.PostgresDSN != "" {
		pgBackend, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatal("open postgres", zap.Error(err))
		}
		defer func() { _ = pgBackend.DB().Close() }()
		backend = pgBackend
		ready = httpapi.ReadyProbe{DB: pgBackend.DB()}
		log.Info("document store", zap.String("backend", "postgres"))
	} else {
		backend = memory.New()
		log.Warn("document store", zap.String("backend", "memory"),
			zap.String("note", "data is lost on restart"))
	}

	dispatcher := store.NewDispatcher(backend, store.WithObserver(obs.ObserveStoreOp))

	// Session store: Redis when configured, else next to the documents.
	var sessions auth.SessionStore
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = client.Close() }()
		sessions = auth.NewRedisSessionStore(client)
		log.Info("session store", zap.String("backend", "redis"))
	} else if pgBackend, ok := backend.(*pg.Backend); ok {
		sessions = auth.NewPGSessionStore(pgBackend.DB())
		log.Info("session store", zap.String("backend", "postgres"))
	} else {
		sessions = auth.NewMemorySessionStore()
		log.Info("session store", zap.String("backend", "memory"))
	}

	identities := auth.NewDocIdentityStore(dispatcher)
	manager, err := auth.NewManager(identities, sessions,
		auth.WithTTL(cfg.SessionTTL),
		auth.WithSnapshotSecret(cfg.SnapshotSecret),
	)
	if err != nil {
		log.Fatal("session manager", zap.Error(err))
	}

	var auditOpts []audit.Option
	if pgBackend, ok := backend.(*pg.Backend); ok {
		auditOpts = append(auditOpts, audit.WithStore(pgBackend.DB()))
	}
	recorder := audit.NewRecorder(log.Named("audit"), auditOpts...)
	resources := resource.NewServices(dispatcher, recorder)

	api := httpapi.New(httpapi.Options{
		Sessions:   manager,
		Resources:  resources,
		Ready:      ready,
		Log:        log.Named("http"),
		Version:    version,
		RatePerSec: cfg.RateLimitPerSecond,
		RateBurst:  cfg.RateLimitBurst,
		MaxBody:    cfg.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("starting stayadmin-api",
		zap.String("version", version),
		zap.String("addr", srv.Addr),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info("stopped")
}
