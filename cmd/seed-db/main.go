package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/tortilla-storefront/db"
	"github.com/xenking/tortilla-storefront/internal/domain/auth"
	"github.com/xenking/tortilla-storefront/internal/domain/product"
	"github.com/xenking/tortilla-storefront/internal/storage/cache"
	"github.com/xenking/tortilla-storefront/internal/storage/postgres"
)

type options struct {
	databaseURL  string
	productsFile string
	apiKey       string
	apiKeyPepper string
	redisAddr    string
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "", "path to a products JSON file (defaults to the embedded catalog)")
	flag.StringVar(&opts.apiKey, "api-key", "", "admin API key to seed (or TORTILLA_SEED_API_KEY env)")
	flag.StringVar(&opts.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or TORTILLA_API_KEY_PEPPER env)")
	flag.StringVar(&opts.redisAddr, "redis-addr", "", "redis address whose catalog cache is dropped after seeding (or TORTILLA_REDIS_ADDR env)")
	flag.Parse()

	opts.databaseURL = orEnv(opts.databaseURL, "DATABASE_URL")
	opts.apiKey = orEnv(opts.apiKey, "TORTILLA_SEED_API_KEY")
	opts.apiKeyPepper = orEnv(opts.apiKeyPepper, "TORTILLA_API_KEY_PEPPER")
	opts.redisAddr = orEnv(opts.redisAddr, "TORTILLA_REDIS_ADDR")

	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.apiKey == "" {
		slog.Error("API key is required: set --api-key or TORTILLA_SEED_API_KEY")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func orEnv(v, key string) string {
	if v != "" {
		return v
	}
	return os.Getenv(key)
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	products, err := readProducts(opts.productsFile)
	if err != nil {
		return errors.Wrap(err, "read products")
	}

	repo := postgres.NewProductRepository(pool)
	if err := seedProducts(ctx, repo, products); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), opts.apiKey, opts.apiKeyPepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	if opts.redisAddr != "" {
		if err := invalidateCatalog(ctx, repo, opts.redisAddr); err != nil {
			return errors.Wrap(err, "invalidate catalog cache")
		}
	}

	return nil
}

func readProducts(path string) ([]product.Product, error) {
	data := db.Products
	if path != "" {
		slog.Info("reading products file", slog.String("path", path))

		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read products file")
		}
		data = b
	}

	var products []product.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}
	for _, p := range products {
		if p.ID <= 0 || p.Color == "" || !p.Price.IsPositive() {
			return nil, errors.Errorf("invalid product %+v", p)
		}
	}
	return products, nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, products []product.Product) error {
	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if err := repo.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %d", p.ID)
		}

		slog.Info("upserted product", slog.Int64("id", p.ID), slog.String("name", p.Name()))
	}

	return nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	info := auth.APIKeyInfo{
		ID:      "admin",
		KeyHash: auth.HashKey([]byte(pepper), apiKey),
		Name:    "Default admin key",
		Scopes:  []string{auth.ScopeAdmin},
	}
	if err := repo.Upsert(ctx, info); err != nil {
		return errors.Wrap(err, "upsert admin API key")
	}

	slog.Info("upserted API key", slog.String("id", info.ID), slog.String("name", info.Name))

	return nil
}

func invalidateCatalog(ctx context.Context, repo product.Repository, addr string) error {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = rdb.Close() }()

	if err := cache.NewCatalog(repo, rdb, 0).Invalidate(ctx); err != nil {
		return err
	}

	slog.Info("dropped catalog cache", slog.String("key", cache.CatalogKey))
	return nil
}
