// Command server runs the draft HTTP/WebSocket API: REST mutations,
// state polling, and the subscription channel, backed by Postgres (or
// an in-memory Store for local/demo runs with no database configured).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/harlowbrent/boosterdraft/go/internal/botbehavior"
	"github.com/harlowbrent/boosterdraft/go/internal/botrunner"
	"github.com/harlowbrent/boosterdraft/go/internal/broadcast"
	"github.com/harlowbrent/boosterdraft/go/internal/dbconfig"
	"github.com/harlowbrent/boosterdraft/go/internal/draftservice"
	"github.com/harlowbrent/boosterdraft/go/internal/eventbus"
	"github.com/harlowbrent/boosterdraft/go/internal/httpapi"
	"github.com/harlowbrent/boosterdraft/go/internal/packgen"
	"github.com/harlowbrent/boosterdraft/go/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	addr := ":" + getEnv("PORT", "8080")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend := store.Store(store.NewMemory())
	var events *eventbus.Repository
	if os.Getenv("DB_HOST") != "" || os.Getenv("DATABASE_URL") != "" {
		dbCfg := dbconfig.NewConfigFromEnv()
		pool, err := pgxpool.New(ctx, dbCfg.DSN())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ping database")
		}
		backend = store.NewPostgres(pool)
		events = eventbus.NewRepository(pool)
		log.Info().Str("database", dbCfg.Database).Msg("connected to database")
	} else {
		log.Warn().Msg("DB_HOST not set, running against an in-memory store")
	}

	var powerTable map[string]int
	if path := os.Getenv("BOT_POWER_TABLE_PATH"); path != "" {
		cfg, err := botbehavior.LoadWeightConfig(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("failed to load bot power table")
		}
		powerTable = cfg.Power
		log.Info().Str("path", path).Int("cards", len(powerTable)).Msg("loaded bot power table")
	}

	hub := broadcast.NewHub()
	behaviors := botbehavior.NewRegistry(func() botbehavior.Behavior {
		return botbehavior.NewPowerTable(time.Now().UnixNano(), powerTable)
	})
	bots := botrunner.New(backend, hub, behaviors, clockwork.NewRealClock())
	if events != nil {
		bots = bots.WithEventRecorder(events)
	}

	svc := draftservice.New(backend, packgen.NewPoolGenerator(), behaviors, hub, bots, clockwork.NewRealClock())
	if events != nil {
		svc = svc.WithEventRecorder(events)
	}

	handler := httpapi.NewHandler(svc, hub)

	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("draft server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("draft server shutdown complete")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
