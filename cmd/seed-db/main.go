package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"

	"github.com/xenking/market/db"
	"github.com/xenking/market/internal/repository"
)

func main() {
	var (
		databaseURL string
		seedFile    string
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedFile, "file", "", "catalogue JSON file, gzipped when it ends in .gz (default: embedded demo catalogue)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		if databaseURL == "" {
			return errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
		if err := run(ctx, lg, databaseURL, seedFile); err != nil {
			return errors.Wrap(err, "seed")
		}
		lg.Info("Seed completed")
		return nil
	})
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, seedFile string) error {
	seed, err := readSeed(lg, seedFile)
	if err != nil {
		return err
	}

	lg.Info("Connecting to database")
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := repository.ApplySeed(ctx, pool, seed); err != nil {
		return errors.Wrap(err, "apply seed")
	}
	lg.Info("Upserted catalogue",
		zap.Int("categories", len(seed.Categories)),
		zap.Int("products", len(seed.Products)),
		zap.Int("shops", len(seed.Shops)),
		zap.Int("offers", len(seed.Offers)),
		zap.Int("discounts", len(seed.ProductDiscounts)+len(seed.SetDiscounts)+len(seed.CartDiscounts)),
	)
	return nil
}

func readSeed(lg *zap.Logger, path string) (*repository.Seed, error) {
	if path == "" {
		lg.Info("Using embedded catalogue")
		return repository.DecodeSeed(bytes.NewReader(db.Catalog))
	}

	lg.Info("Reading catalogue", zap.String("path", path))
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open seed file")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip")
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	return repository.DecodeSeed(r)
}
