package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/Siddarth2230/serial-tags/internal/config"
	"github.com/Siddarth2230/serial-tags/internal/handler"
	"github.com/Siddarth2230/serial-tags/internal/logging"
	"github.com/Siddarth2230/serial-tags/internal/middleware"
	"github.com/Siddarth2230/serial-tags/internal/repository"
	"github.com/Siddarth2230/serial-tags/internal/service"
	"github.com/Siddarth2230/serial-tags/pkg/cache"
	"github.com/Siddarth2230/serial-tags/pkg/idgen"
)

func main() {
	configDir := flag.String("config", "./config", "directory holding config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		l := logging.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	logging.Init(cfg.Log)
	logger := logging.L()

	// Connect to database
	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("db ping failed")
	}

	repo := repository.NewLinkRepository(db)
	if cfg.Postgres.Migrate {
		if err := repo.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
		ReadTimeout: cfg.Redis.ReadTimeout,
	})
	// fail fast if redis is down
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("redis ping failed")
	}
	defer func() {
		_ = redisClient.Close()
	}()

	gen, err := idgen.New(cfg.Generator.Kind, idgen.Options{
		Counter:   idgen.CounterOptions{Client: redisClient, Key: cfg.Generator.CounterKey},
		Snowflake: idgen.SnowflakeOptions{NodeID: cfg.Generator.NodeID, EpochMs: cfg.Generator.EpochMs},
		HashBytes: cfg.Generator.HashBytes,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create serial generator")
	}
	logger.Info().Str("kind", cfg.Generator.Kind).Msg("serial generator initialized")

	remote := cache.NewRedisCache(redisClient, cfg.Cache.Prefix, cfg.Cache.RedisTTL)
	svc := service.NewLinkService(repo, gen, remote, cfg.Server.BaseURL, cfg.Cache.Size)

	r := mux.NewRouter()
	r.Use(logging.HTTPMiddleware(logger))
	r.Use(middleware.MetricsMiddleware)
	// before the handler routes, which end in a catch-all /{tag}
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	handler.NewLinkHandler(svc).Register(r)

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: r}
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("stopped")
}
