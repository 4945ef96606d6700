package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/noah-isme/toko-bundles/internal/catalog"
	"github.com/noah-isme/toko-bundles/internal/obs"
)

func main() {
	path := flag.String("file", "config/bundles.json", "catalog JSON file to load into Postgres")
	flag.Parse()

	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()
	if err := godotenv.Load(); err != nil {
		logger.Info().Msg("no .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	defs, err := catalog.FileSource{Path: *path}.Load(ctx)
	if err != nil {
		logger.Fatal().Err(err).Str("file", *path).Msg("read catalog")
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := (catalog.PGSource{DB: pool}).Replace(ctx, defs); err != nil {
		logger.Fatal().Err(err).Msg("replace catalog")
	}
	logger.Info().Int("definitions", len(defs)).Str("file", *path).Msg("seeding completed")
}
