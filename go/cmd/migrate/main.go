// Command migrate applies or rolls back the drafts schema.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/harlowbrent/boosterdraft/go/internal/dbconfig"
	"github.com/harlowbrent/boosterdraft/go/internal/pgmigrate"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	dir := getEnv("MIGRATIONS_DIR", "migrations")
	dsn := dbconfig.NewConfigFromEnv().DSN()

	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}

	var err error
	switch direction {
	case "up":
		err = pgmigrate.Up(dsn, dir)
	case "down":
		err = pgmigrate.Down(dsn, dir)
	default:
		log.Fatal().Str("direction", direction).Msg("unknown migrate direction, want up|down")
	}
	if err != nil {
		log.Fatal().Err(err).Str("direction", direction).Msg("migration failed")
	}

	log.Info().Str("direction", direction).Msg("migration complete")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
