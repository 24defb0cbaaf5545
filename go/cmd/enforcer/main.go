// Command enforcer runs the periodic sweep that forces random picks
// once a draft's round or last-picker timer has elapsed. It runs as a
// separate process from the server so a slow sweep never blocks the
// request path; state changes it commits are picked up by clients on
// their next poll or WebSocket push from the server process.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
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
	"github.com/harlowbrent/boosterdraft/go/internal/enforcer"
	"github.com/harlowbrent/boosterdraft/go/internal/eventbus"
	"github.com/harlowbrent/boosterdraft/go/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbCfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, dbCfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}

	backend := store.NewPostgres(pool)
	events := eventbus.NewRepository(pool)

	hub := broadcast.NewHub()
	behaviors := botbehavior.NewRegistry(func() botbehavior.Behavior {
		return botbehavior.NewPowerTable(time.Now().UnixNano(), nil)
	})
	clock := clockwork.NewRealClock()
	bots := botrunner.New(backend, hub, behaviors, clock).WithEventRecorder(events)

	workers := 8
	if v := os.Getenv("ENFORCER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			workers = n
		}
	}

	e := enforcer.New(backend, hub, bots.Process, clock, workers).WithEventRecorder(events)

	period := 2 * time.Second
	if v := os.Getenv("ENFORCER_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			period = d
		}
	}

	log.Info().Str("database", dbCfg.Database).Dur("period", period).Int("workers", workers).Msg("starting draft enforcer")

	if err := e.Run(ctx, period); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("enforcer exited unexpectedly")
	}

	log.Info().Msg("draft enforcer shutdown complete")
}
