// Command relay runs the EventBus outbox relay: it listens for newly
// inserted draft_outbox rows (via LISTEN/NOTIFY, with a polling
// fallback) and publishes each one to NATS JetStream. A crashed or
// lagging relay never blocks drafting — rows simply wait to be
// delivered at the next fallback sweep.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/harlowbrent/boosterdraft/go/internal/dbconfig"
	"github.com/harlowbrent/boosterdraft/go/internal/eventbus"
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
	dsn := dbCfg.DSN()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}

	repo := eventbus.NewRepository(pool)

	jsCfg := eventbus.DefaultJetStreamConfig()
	if url := os.Getenv("NATS_URL"); url != "" {
		jsCfg.URL = url
	}
	publisher, err := eventbus.NewJetStreamPublisher(jsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create JetStream publisher")
	}
	defer publisher.Close()

	relayCfg := eventbus.DefaultRelayConfig()
	if v := os.Getenv("RELAY_FALLBACK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			relayCfg.FallbackInterval = d
		}
	}

	relay, err := eventbus.NewRelay(dsn, repo, publisher, relayCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create outbox relay")
	}

	log.Info().Str("database", dbCfg.Database).Msg("starting draft outbox relay")

	if err := relay.Run(ctx); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("relay exited unexpectedly")
	}

	log.Info().Msg("draft outbox relay shutdown complete")
}
