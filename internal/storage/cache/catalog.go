// Package cache provides a redis read-through cache for the product catalog.
package cache

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/tortilla-storefront/internal/domain/product"
)

// CatalogKey is the redis key holding the encoded catalog.
const CatalogKey = "tortilla:catalog:v1"

var _ product.Repository = (*Catalog)(nil)

// Catalog caches the full product list in redis. Price lookups for order
// placement always go to the underlying repository. Redis failures are
// logged and fall back to the repository.
type Catalog struct {
	next product.Repository
	rdb  redis.Cmdable
	ttl  time.Duration
}

// NewCatalog wraps next with a cache stored in rdb for ttl.
func NewCatalog(next product.Repository, rdb redis.Cmdable, ttl time.Duration) *Catalog {
	return &Catalog{next: next, rdb: rdb, ttl: ttl}
}

// List returns the cached catalog, loading and storing it on a miss.
func (c *Catalog) List(ctx context.Context) ([]product.Product, error) {
	lg := zctx.From(ctx)

	data, err := c.rdb.Get(ctx, CatalogKey).Bytes()
	switch {
	case err == nil:
		products, derr := decodeProducts(data)
		if derr == nil {
			return products, nil
		}
		lg.Warn("Discarding malformed catalog cache entry", zap.Error(derr))
	case errors.Is(err, redis.Nil):
	default:
		lg.Warn("Catalog cache unavailable", zap.Error(err))
	}

	products, err := c.next.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.rdb.Set(ctx, CatalogKey, encodeProducts(products), c.ttl).Err(); err != nil {
		lg.Warn("Failed to store catalog cache", zap.Error(err))
	}
	return products, nil
}

// GetByIDs delegates to the underlying repository.
func (c *Catalog) GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	return c.next.GetByIDs(ctx, ids)
}

// Invalidate drops the cached catalog.
func (c *Catalog) Invalidate(ctx context.Context) error {
	if err := c.rdb.Del(ctx, CatalogKey).Err(); err != nil {
		return errors.Wrap(err, "delete catalog cache")
	}
	return nil
}

func encodeProducts(products []product.Product) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, p := range products {
		e.ObjStart()
		e.FieldStart("id")
		e.Int64(p.ID)
		e.FieldStart("color")
		e.Str(p.Color)
		e.FieldStart("variant")
		e.Str(p.Variant)
		e.FieldStart("price")
		e.Str(p.Price.String())
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}

func decodeProducts(data []byte) ([]product.Product, error) {
	var products []product.Product
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var p product.Product
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				p.ID, err = d.Int64()
			case "color":
				p.Color, err = d.Str()
			case "variant":
				p.Variant, err = d.Str()
			case "price":
				var s string
				if s, err = d.Str(); err == nil {
					p.Price, err = decimal.NewFromString(s)
				}
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	return products, nil
}
