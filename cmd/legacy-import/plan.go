package main

import (
	"context"
	"log/slog"
	"sort"

	"github.com/go-faster/errors"

	"github.com/xenking/tortilla-storefront/internal/domain/customer"
	"github.com/xenking/tortilla-storefront/internal/domain/order"
	"github.com/xenking/tortilla-storefront/internal/domain/product"
)

// importPlan is the legacy data reshaped for the new schema. Customers are
// deduplicated by case-insensitive email; orders refer to customers by their
// position in Customers and get new ids on insert.
type importPlan struct {
	Products  []product.Product
	Customers []customer.Customer
	Orders    []plannedOrder
	Skipped   int
}

type plannedOrder struct {
	LegacyID int64
	Customer int
	Order    order.Order
}

// buildPlan validates and reshapes the legacy tables. Items of unknown
// products are skipped with a warning, as are orders of unknown customers and
// orders left without items.
func buildPlan(data legacyData) (*importPlan, error) {
	p := &importPlan{}

	products := make(map[int64]product.Product, len(data.Products))
	for _, lp := range data.Products {
		if lp.ID <= 0 {
			return nil, errors.Errorf("product with invalid id %d", lp.ID)
		}
		pr := product.Product{ID: lp.ID, Color: lp.Color, Variant: lp.Variant, Price: lp.Price}
		products[lp.ID] = pr
		p.Products = append(p.Products, pr)
	}
	sort.Slice(p.Products, func(i, j int) bool { return p.Products[i].ID < p.Products[j].ID })

	legacyCustomers := append([]legacyCustomer(nil), data.Customers...)
	sort.Slice(legacyCustomers, func(i, j int) bool { return legacyCustomers[i].ID < legacyCustomers[j].ID })

	byEmail := make(map[string]int)
	byLegacyID := make(map[int64]int)
	for _, lc := range legacyCustomers {
		c := customer.New(customer.Contact{
			Name:    lc.Name,
			Address: lc.Address,
			Phone:   lc.Phone,
			Email:   lc.Email,
		}.Normalize())
		key := customer.NormalizeEmail(c.Email)
		if key == "" {
			slog.Warn("skipping customer without email", slog.Int64("legacy_id", lc.ID))
			continue
		}
		idx, ok := byEmail[key]
		if !ok {
			idx = len(p.Customers)
			byEmail[key] = idx
			p.Customers = append(p.Customers, c)
		} else {
			slog.Info("merging duplicate customer",
				slog.Int64("legacy_id", lc.ID),
				slog.String("email", key),
			)
		}
		byLegacyID[lc.ID] = idx
	}

	items := make(map[int64][]order.Item)
	for _, li := range data.Items {
		pr, ok := products[li.ProductID]
		if !ok {
			slog.Warn("skipping item of unknown product",
				slog.Int64("legacy_order_id", li.OrderID),
				slog.Int64("product_id", li.ProductID),
			)
			continue
		}
		if li.Quantity <= 0 {
			slog.Warn("skipping item with non-positive quantity",
				slog.Int64("legacy_order_id", li.OrderID),
				slog.Int64("product_id", li.ProductID),
			)
			continue
		}
		items[li.OrderID] = append(items[li.OrderID], order.Item{
			ProductID: pr.ID,
			Color:     pr.Color,
			Variant:   pr.Variant,
			Quantity:  li.Quantity,
			Subtotal:  li.Subtotal,
		})
	}

	for _, lo := range data.Orders {
		idx, ok := byLegacyID[lo.CustomerID]
		if !ok {
			slog.Warn("skipping order of unknown customer",
				slog.Int64("legacy_order_id", lo.ID),
				slog.Int64("legacy_customer_id", lo.CustomerID),
			)
			p.Skipped++
			continue
		}
		its := items[lo.ID]
		if len(its) == 0 {
			slog.Warn("skipping order without importable items", slog.Int64("legacy_order_id", lo.ID))
			p.Skipped++
			continue
		}
		sort.Slice(its, func(i, j int) bool { return its[i].ProductID < its[j].ProductID })

		p.Orders = append(p.Orders, plannedOrder{
			LegacyID: lo.ID,
			Customer: idx,
			Order: order.Order{
				OrderDate:   lo.OrderDate,
				DeliveryFee: lo.DeliveryFee,
				TotalPrice:  lo.TotalPrice,
				Payments:    lo.Payments,
				Status:      legacyStatus(lo.Status),
				Items:       its,
			},
		})
	}
	// Insert in chronological order so new ids keep the legacy sequence.
	sort.SliceStable(p.Orders, func(i, j int) bool {
		a, b := p.Orders[i], p.Orders[j]
		if !a.Order.OrderDate.Equal(b.Order.OrderDate) {
			return a.Order.OrderDate.Before(b.Order.OrderDate)
		}
		return a.LegacyID < b.LegacyID
	})

	return p, nil
}

func legacyStatus(s string) order.Status {
	if s == string(order.StatusClosed) {
		return order.StatusClosed
	}
	return order.StatusOpen
}

// apply writes the plan in one transaction. Customers that already exist
// are reused; their contact details are left untouched.
func apply(ctx context.Context, store order.Store, p *importPlan) (map[int64]int64, error) {
	rekeyed := make(map[int64]int64, len(p.Orders))
	err := store.Tx(ctx, func(ctx context.Context, tx order.Tx) error {
		ids := make([]int64, len(p.Customers))
		for i := range p.Customers {
			c := p.Customers[i]
			existing, err := tx.CustomerByEmail(ctx, c.Email)
			switch {
			case err == nil:
				ids[i] = existing.ID
				continue
			case !errors.Is(err, customer.ErrNotFound):
				return errors.Wrapf(err, "find customer %s", c.Email)
			}
			if err := tx.CreateCustomer(ctx, &c); err != nil {
				return errors.Wrapf(err, "create customer %s", c.Email)
			}
			ids[i] = c.ID
		}

		for _, po := range p.Orders {
			o := po.Order
			o.CustomerID = ids[po.Customer]
			if err := tx.CreateOrder(ctx, &o); err != nil {
				return errors.Wrapf(err, "create order for legacy order %d", po.LegacyID)
			}
			rekeyed[po.LegacyID] = o.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rekeyed, nil
}
