package main

import (
	"flag"
	"os"

	"github.com/joho/godotenv"

	"github.com/noah-isme/toko-bundles/internal/catalog"
	"github.com/noah-isme/toko-bundles/internal/obs"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	steps := flag.Int("steps", 1, "number of migrations to roll back when direction=down")
	flag.Parse()

	logger := obs.NewLogger("console", "info").With().Str("component", "migrate").Logger()
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	m, err := catalog.NewMigrator(dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open migrator")
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			logger.Error().AnErr("source", srcErr).AnErr("database", dbErr).Msg("close migrator")
		}
	}()

	switch *direction {
	case "up":
		err = catalog.MigrateUp(m)
	case "down":
		err = catalog.MigrateDown(m, *steps)
	default:
		logger.Fatal().Str("direction", *direction).Msg("unknown direction")
	}
	if err != nil {
		logger.Fatal().Err(err).Str("direction", *direction).Msg("migrate")
	}

	version, dirty, verr := m.Version()
	logger.Info().Str("direction", *direction).Uint("version", version).Bool("dirty", dirty).AnErr("version_err", verr).Msg("migrations applied")
}
