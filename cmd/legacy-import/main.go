// Command legacy-import loads the data of the previous storefront, exported
// as gzip-compressed JSON lines per table, into the PostgreSQL schema.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/tortilla-storefront/internal/domain/order"
	"github.com/xenking/tortilla-storefront/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		databaseURL string
		force       bool
	)

	flag.StringVar(&dataDir, "data-dir", "legacy", "directory containing products, customers, orders and order_items .jsonl.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&force, "force", false, "import even if the database already has orders")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, force); err != nil {
		slog.Error("legacy import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("legacy import completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, force bool) error {
	slog.Info("reading legacy export", slog.String("dir", dataDir))

	data, err := readLegacy(ctx, dataDir)
	if err != nil {
		return errors.Wrap(err, "read legacy export")
	}

	plan, err := buildPlan(data)
	if err != nil {
		return errors.Wrap(err, "build import plan")
	}
	slog.Info("import plan ready",
		slog.Int("products", len(plan.Products)),
		slog.Int("customers", len(plan.Customers)),
		slog.Int("orders", len(plan.Orders)),
		slog.Int("skipped_orders", plan.Skipped),
	)

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	store := postgres.NewOrderStore(pool)
	if !force {
		existing, err := store.ListOrders(ctx, order.Filter{})
		if err != nil {
			return errors.Wrap(err, "check existing orders")
		}
		if len(existing) > 0 {
			return errors.Errorf("database already has %d orders, rerun with --force to import anyway", len(existing))
		}
	}

	products := postgres.NewProductRepository(pool)
	for _, p := range plan.Products {
		if err := products.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %d", p.ID)
		}
	}

	rekeyed, err := apply(ctx, store, plan)
	if err != nil {
		return errors.Wrap(err, "import orders")
	}
	for legacyID, id := range rekeyed {
		if legacyID != id {
			slog.Debug("order re-keyed", slog.Int64("legacy_id", legacyID), slog.Int64("id", id))
		}
	}
	slog.Info("orders imported", slog.Int("count", len(rekeyed)))

	return nil
}

// readLegacy decodes the four table files concurrently.
func readLegacy(ctx context.Context, dir string) (legacyData, error) {
	var data legacyData
	path := func(table string) string { return filepath.Join(dir, table+".jsonl.gz") }

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return readGzipLines(ctx, path("products"), func(d *jx.Decoder) error {
			p, err := decodeProduct(d)
			data.Products = append(data.Products, p)
			return errors.Wrap(err, "product")
		})
	})
	g.Go(func() error {
		return readGzipLines(ctx, path("customers"), func(d *jx.Decoder) error {
			c, err := decodeCustomer(d)
			data.Customers = append(data.Customers, c)
			return errors.Wrap(err, "customer")
		})
	})
	g.Go(func() error {
		return readGzipLines(ctx, path("orders"), func(d *jx.Decoder) error {
			o, err := decodeOrder(d)
			data.Orders = append(data.Orders, o)
			return errors.Wrap(err, "order")
		})
	})
	g.Go(func() error {
		return readGzipLines(ctx, path("order_items"), func(d *jx.Decoder) error {
			it, err := decodeItem(d)
			data.Items = append(data.Items, it)
			return errors.Wrap(err, "order item")
		})
	})
	if err := g.Wait(); err != nil {
		return legacyData{}, err
	}

	slog.Info("legacy export decoded",
		slog.Int("products", len(data.Products)),
		slog.Int("customers", len(data.Customers)),
		slog.Int("orders", len(data.Orders)),
		slog.Int("order_items", len(data.Items)),
	)
	return data, nil
}
