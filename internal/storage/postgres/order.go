package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/tortilla-storefront/internal/domain/customer"
	"github.com/xenking/tortilla-storefront/internal/domain/order"
)

const (
	orderColumns = `o.order_id, o.customer_id, o.order_date, o.delivery_fee, o.total_price, o.payments, o.status,
		c.name, c.address, c.phone, c.email`

	listOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders o JOIN customers c ON c.customer_id = o.customer_id
		WHERE ($1 = '' AND $2 = '' AND $3 = '')
			OR ($1 <> '' AND LOWER(c.email) LIKE '%' || $1 || '%' ESCAPE '\')
			OR ($2 <> '' AND c.name ILIKE '%' || $2 || '%' ESCAPE '\')
			OR ($3 <> '' AND regexp_replace(c.phone, '\D', '', 'g') LIKE '%' || $3 || '%')
		ORDER BY o.order_date DESC, o.order_id DESC`

	lockOrderSQL = `SELECT ` + orderColumns + `
		FROM orders o JOIN customers c ON c.customer_id = o.customer_id
		WHERE o.order_id = $1
		FOR UPDATE OF o`

	customerOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders o JOIN customers c ON c.customer_id = o.customer_id
		WHERE o.customer_id = $1
		ORDER BY o.order_date, o.order_id`

	orderItemsSQL = `SELECT oi.order_id, oi.product_id, p.color, p.variant, oi.quantity, oi.subtotal
		FROM order_items oi JOIN products p ON p.product_id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.product_id`

	balanceByEmailSQL = `SELECT COALESCE(SUM(o.total_price - o.payments), 0), COUNT(o.order_id)
		FROM orders o JOIN customers c ON c.customer_id = o.customer_id
		WHERE LOWER(c.email) = LOWER($1)`

	customerByEmailSQL = `SELECT customer_id, name, address, phone, email
		FROM customers WHERE LOWER(email) = LOWER($1)`

	createCustomerSQL = `INSERT INTO customers (name, address, phone, email)
		VALUES ($1, $2, $3, $4) RETURNING customer_id`

	createOrderSQL = `INSERT INTO orders (customer_id, order_date, delivery_fee, total_price, payments, status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING order_id`

	createOrderItemSQL = `INSERT INTO order_items (order_id, product_id, quantity, subtotal)
		VALUES ($1, $2, $3, $4)`

	saveOrderSQL = `UPDATE orders
		SET delivery_fee = $2, total_price = $3, payments = $4, status = $5
		WHERE order_id = $1`
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Tx runs fn inside a single database transaction.
func (s *OrderStore) Tx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, orderTx{tx: tx})
	})
}

// ListOrders returns the orders matching f with customers and items,
// newest first.
func (s *OrderStore) ListOrders(ctx context.Context, f order.Filter) ([]order.Order, error) {
	rows, err := s.pool.Query(ctx, listOrdersSQL,
		escapeLike(f.Email), escapeLike(f.Name), f.Phone)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	if err := loadItems(ctx, s.pool, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// BalanceByEmail aggregates the balances of all orders of the customer with
// the given email.
func (s *OrderStore) BalanceByEmail(ctx context.Context, email string) (order.BalanceSummary, error) {
	var (
		total decimal.Decimal
		count int64
	)
	if err := s.pool.QueryRow(ctx, balanceByEmailSQL, email).Scan(&total, &count); err != nil {
		return order.BalanceSummary{}, fmt.Errorf("balance for %q: %w", email, err)
	}
	return order.BalanceSummary{
		TotalBalance: total,
		OrderCount:   int(count),
		HasOrders:    count > 0,
	}, nil
}

type orderTx struct {
	tx pgx.Tx
}

func (t orderTx) CustomerByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	rows, err := t.tx.Query(ctx, customerByEmailSQL, email)
	if err != nil {
		return nil, fmt.Errorf("customer by email: %w", err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (customer.Customer, error) {
		var c customer.Customer
		err := row.Scan(&c.ID, &c.Name, &c.Address, &c.Phone, &c.Email)
		return c, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("customer by email: %w", err)
	}
	return &c, nil
}

func (t orderTx) CreateCustomer(ctx context.Context, c *customer.Customer) error {
	err := t.tx.QueryRow(ctx, createCustomerSQL, c.Name, c.Address, c.Phone, c.Email).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("creating customer: %w", err)
	}
	return nil
}

func (t orderTx) CustomerOrders(ctx context.Context, customerID int64) ([]order.Order, error) {
	rows, err := t.tx.Query(ctx, customerOrdersSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("customer %d orders: %w", customerID, err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("customer %d orders: %w", customerID, err)
	}
	return orders, nil
}

// CreateOrder inserts the order row and queues all item inserts in a single
// batch.
func (t orderTx) CreateOrder(ctx context.Context, o *order.Order) error {
	err := t.tx.QueryRow(ctx, createOrderSQL,
		o.CustomerID, o.OrderDate, o.DeliveryFee, o.TotalPrice, o.Payments, string(o.Status),
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("creating order: %w", err)
	}

	b := &pgx.Batch{}
	for _, it := range o.Items {
		b.Queue(createOrderItemSQL, o.ID, it.ProductID, it.Quantity, it.Subtotal)
	}
	br := t.tx.SendBatch(ctx, b)
	for range o.Items {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("creating items of order %d: %w", o.ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("creating items of order %d: %w", o.ID, err)
	}
	return nil
}

func (t orderTx) LockOrder(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := t.tx.Query(ctx, lockOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("locking order %d: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("locking order %d: %w", id, err)
	}

	orders := []order.Order{o}
	if err := loadItems(ctx, t.tx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (t orderTx) SaveOrder(ctx context.Context, o *order.Order) error {
	tag, err := t.tx.Exec(ctx, saveOrderSQL,
		o.ID, o.DeliveryFee, o.TotalPrice, o.Payments, string(o.Status))
	if err != nil {
		return fmt.Errorf("saving order %d: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

// loadItems fetches the items of all orders with one query and attaches
// them in place.
func loadItems(ctx context.Context, q querier, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := q.Query(ctx, orderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("loading order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID int64
			it      order.Item
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Color, &it.Variant, &it.Quantity, &it.Subtotal); err != nil {
			return fmt.Errorf("scanning order item: %w", err)
		}
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("loading order items: %w", err)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.OrderDate, &o.DeliveryFee, &o.TotalPrice, &o.Payments, &status,
		&o.Customer.Name, &o.Customer.Address, &o.Customer.Phone, &o.Customer.Email,
	)
	o.Status = order.Status(status)
	o.Customer.ID = o.CustomerID
	return o, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
