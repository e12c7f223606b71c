package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
)

const maxLine = 1 << 20

// Legacy rows as exported from the old SQLite database, one JSON object per
// line. The stored balance column of orders is ignored.
type (
	legacyProduct struct {
		ID      int64
		Color   string
		Variant string
		Price   decimal.Decimal
	}
	legacyCustomer struct {
		ID      int64
		Name    string
		Address string
		Phone   string
		Email   string
	}
	legacyOrder struct {
		ID          int64
		CustomerID  int64
		OrderDate   time.Time
		DeliveryFee decimal.Decimal
		TotalPrice  decimal.Decimal
		Payments    decimal.Decimal
		Status      string
	}
	legacyItem struct {
		OrderID   int64
		ProductID int64
		Quantity  int
		Subtotal  decimal.Decimal
	}
)

// legacyData holds every exported table.
type legacyData struct {
	Products  []legacyProduct
	Customers []legacyCustomer
	Orders    []legacyOrder
	Items     []legacyItem
}

// readGzipLines opens a gzip-compressed file and decodes each non-empty line
// with fn.
func readGzipLines(ctx context.Context, path string, fn func(d *jx.Decoder) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	return decodeLines(ctx, gz, fn)
}

func decodeLines(ctx context.Context, r io.Reader, fn func(d *jx.Decoder) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		b := scanner.Bytes()
		if len(strings.TrimSpace(string(b))) == 0 {
			continue
		}
		if err := fn(jx.DecodeBytes(b)); err != nil {
			return errors.Wrapf(err, "line %d", line)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "scan")
	}
	return nil
}

func decodeProduct(d *jx.Decoder) (p legacyProduct, err error) {
	err = d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			p.ID, err = d.Int64()
		case "color":
			p.Color, err = optStr(d)
		case "variant":
			p.Variant, err = optStr(d)
		case "price":
			p.Price, err = money(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return p, err
}

func decodeCustomer(d *jx.Decoder) (c legacyCustomer, err error) {
	err = d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "customer_id":
			c.ID, err = d.Int64()
		case "name":
			c.Name, err = optStr(d)
		case "address":
			c.Address, err = optStr(d)
		case "phone":
			c.Phone, err = optStr(d)
		case "email":
			c.Email, err = optStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return c, err
}

func decodeOrder(d *jx.Decoder) (o legacyOrder, err error) {
	err = d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "order_id":
			o.ID, err = d.Int64()
		case "customer_id":
			o.CustomerID, err = d.Int64()
		case "order_date":
			var s string
			if s, err = optStr(d); err == nil {
				o.OrderDate, err = parseDate(s)
			}
		case "delivery_fee":
			o.DeliveryFee, err = money(d)
		case "total_price":
			o.TotalPrice, err = money(d)
		case "payments":
			o.Payments, err = money(d)
		case "status":
			o.Status, err = optStr(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	return o, err
}

func decodeItem(d *jx.Decoder) (it legacyItem, err error) {
	err = d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "order_id":
			it.OrderID, err = d.Int64()
		case "product_id":
			it.ProductID, err = d.Int64()
		case "quantity":
			it.Quantity, err = d.Int()
		case "subtotal":
			it.Subtotal, err = money(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return it, err
}

// optStr reads a string that may be null.
func optStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// money reads an amount stored as a JSON number, a numeric string or null
// and rounds it to cents. The legacy database kept floats.
func money(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Null:
		return decimal.Zero, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		if strings.TrimSpace(s) == "" {
			return decimal.Zero, nil
		}
		v, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return decimal.Zero, err
		}
		return v.Round(2), nil
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		v, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, err
		}
		return v.Round(2), nil
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseDate accepts the formats SQLite stores dates in. Dates without a zone
// are taken as UTC.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized date %q", s)
}
