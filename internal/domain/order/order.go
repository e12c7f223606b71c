package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/tortilla-storefront/internal/domain/customer"
)

// ErrOrderNotFound is returned by stores when an order id does not exist.
var ErrOrderNotFound = errors.New("order not found")

// Status is the fulfilment state of an order.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Order is a single purchase by a customer. The balance is never stored: it
// is always TotalPrice minus Payments.
type Order struct {
	ID          int64
	CustomerID  int64
	Customer    customer.Customer
	OrderDate   time.Time
	DeliveryFee decimal.Decimal
	TotalPrice  decimal.Decimal
	Payments    decimal.Decimal
	Status      Status
	Items       []Item
}

// Balance is the amount still owed on the order. Negative means credit.
func (o *Order) Balance() decimal.Decimal {
	return o.TotalPrice.Sub(o.Payments)
}

// ItemsSubtotal is the sum of the item subtotals.
func (o *Order) ItemsSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Subtotal)
	}
	return sum
}

// Item is one line of an order. Subtotal is the unit price at ordering time
// times the quantity and never changes afterwards.
type Item struct {
	ProductID int64
	Color     string
	Variant   string
	Quantity  int
	Subtotal  decimal.Decimal
}

// Name is the display name of the ordered product.
func (it Item) Name() string {
	if it.Variant == "" {
		return it.Color
	}
	return it.Color + " " + it.Variant
}

// Filter selects orders by customer attributes. Non-empty fields are
// OR-matched as case-insensitive substrings; Phone holds digits only and is
// matched against the digits of the stored phone. An empty filter selects
// every order.
type Filter struct {
	Email string
	Name  string
	Phone string
}

// IsZero reports whether no criterion is set.
func (f Filter) IsZero() bool {
	return f.Email == "" && f.Name == "" && f.Phone == ""
}

// BalanceSummary aggregates the orders of one customer.
type BalanceSummary struct {
	TotalBalance decimal.Decimal
	OrderCount   int
	HasOrders    bool
}

// Store is the persistence capability used by the order workflows.
type Store interface {
	// Tx runs fn in a single transaction. The transaction is rolled back when
	// fn returns an error.
	Tx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// ListOrders returns orders with their customer and items, newest first.
	ListOrders(ctx context.Context, f Filter) ([]Order, error)
	// BalanceByEmail aggregates all orders of the customer with the given
	// email, compared case-insensitively.
	BalanceByEmail(ctx context.Context, email string) (BalanceSummary, error)
}

// Tx is the set of operations available inside a store transaction.
type Tx interface {
	// CustomerByEmail returns customer.ErrNotFound when no customer matches.
	CustomerByEmail(ctx context.Context, email string) (*customer.Customer, error)
	// CreateCustomer inserts c and sets its ID.
	CreateCustomer(ctx context.Context, c *customer.Customer) error
	// CustomerOrders returns the existing orders of a customer without items.
	CustomerOrders(ctx context.Context, customerID int64) ([]Order, error)
	// CreateOrder inserts o together with its items and sets its ID.
	CreateOrder(ctx context.Context, o *Order) error
	// LockOrder loads an order with its items and locks it until the end of
	// the transaction. It returns ErrOrderNotFound for unknown ids.
	LockOrder(ctx context.Context, id int64) (*Order, error)
	// SaveOrder writes the mutable fields of o: delivery fee, total price,
	// payments and status.
	SaveOrder(ctx context.Context, o *Order) error
}
