package order

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/tortilla-storefront/internal/domain/customer"
	"github.com/xenking/tortilla-storefront/internal/domain/product"
)

// --- In-memory store ---

type memStore struct {
	mu sync.Mutex

	customers map[int64]customer.Customer
	orders    map[int64]Order
	nextCust  int64
	nextOrder int64

	createOrderErr error
	listErr        error
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		customers: make(map[int64]customer.Customer),
		orders:    make(map[int64]Order),
	}
}

func (m *memStore) Tx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	customers := make(map[int64]customer.Customer, len(m.customers))
	for k, v := range m.customers {
		customers[k] = v
	}
	orders := make(map[int64]Order, len(m.orders))
	for k, v := range m.orders {
		orders[k] = v
	}
	nextCust, nextOrder := m.nextCust, m.nextOrder

	if err := fn(ctx, memTx{m}); err != nil {
		m.customers, m.orders = customers, orders
		m.nextCust, m.nextOrder = nextCust, nextOrder
		return err
	}
	return nil
}

func (m *memStore) ListOrders(_ context.Context, f Filter) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, m.listErr
	}

	var out []Order
	for _, o := range m.orders {
		c := m.customers[o.CustomerID]
		if !f.IsZero() && !matches(c, f) {
			continue
		}
		o.Customer = c
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return earlier(&out[j], &out[i]) })
	return out, nil
}

func matches(c customer.Customer, f Filter) bool {
	switch {
	case f.Email != "" && strings.Contains(strings.ToLower(c.Email), strings.ToLower(f.Email)):
		return true
	case f.Name != "" && strings.Contains(strings.ToLower(c.Name), strings.ToLower(f.Name)):
		return true
	case f.Phone != "" && strings.Contains(customer.PhoneDigits(c.Phone), f.Phone):
		return true
	default:
		return false
	}
}

func (m *memStore) BalanceByEmail(_ context.Context, email string) (BalanceSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sum := BalanceSummary{TotalBalance: decimal.Zero}
	for _, o := range m.orders {
		if !strings.EqualFold(m.customers[o.CustomerID].Email, email) {
			continue
		}
		sum.TotalBalance = sum.TotalBalance.Add(o.Balance())
		sum.OrderCount++
	}
	sum.HasOrders = sum.OrderCount > 0
	return sum, nil
}

// seed stores an order for c directly, creating the customer when needed.
func (m *memStore) seed(c customer.Customer, o Order) Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == 0 {
		for _, existing := range m.customers {
			if strings.EqualFold(existing.Email, c.Email) {
				c = existing
			}
		}
	}
	if c.ID == 0 {
		m.nextCust++
		c.ID = m.nextCust
		m.customers[c.ID] = c
	}

	m.nextOrder++
	o.ID = m.nextOrder
	o.CustomerID = c.ID
	o.Customer = c
	if o.Status == "" {
		o.Status = StatusOpen
	}
	m.orders[o.ID] = o
	return o
}

func (m *memStore) order(id int64) Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

type memTx struct {
	m *memStore
}

func (t memTx) CustomerByEmail(_ context.Context, email string) (*customer.Customer, error) {
	for _, c := range t.m.customers {
		if strings.EqualFold(c.Email, email) {
			return &c, nil
		}
	}
	return nil, customer.ErrNotFound
}

func (t memTx) CreateCustomer(_ context.Context, c *customer.Customer) error {
	t.m.nextCust++
	c.ID = t.m.nextCust
	t.m.customers[c.ID] = *c
	return nil
}

func (t memTx) CustomerOrders(_ context.Context, customerID int64) ([]Order, error) {
	var out []Order
	for _, o := range t.m.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (t memTx) CreateOrder(_ context.Context, o *Order) error {
	if t.m.createOrderErr != nil {
		return t.m.createOrderErr
	}
	t.m.nextOrder++
	o.ID = t.m.nextOrder
	t.m.orders[o.ID] = *o
	return nil
}

func (t memTx) LockOrder(_ context.Context, id int64) (*Order, error) {
	o, ok := t.m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	o.Customer = t.m.customers[o.CustomerID]
	return &o, nil
}

func (t memTx) SaveOrder(_ context.Context, o *Order) error {
	stored, ok := t.m.orders[o.ID]
	if !ok {
		return ErrOrderNotFound
	}
	stored.DeliveryFee = o.DeliveryFee
	stored.TotalPrice = o.TotalPrice
	stored.Payments = o.Payments
	stored.Status = o.Status
	t.m.orders[o.ID] = stored
	return nil
}

// --- Product repository mock ---

type mockProductRepo struct {
	byID   map[int64]product.Product
	getErr error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func newProductRepo(products ...product.Product) *mockProductRepo {
	byID := make(map[int64]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &mockProductRepo{byID: byID}
}

// --- Helpers ---

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	t := baseTime
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func ana() customer.Customer {
	return customer.Customer{Name: "Ana Lopez", Address: "12 Elm St", Phone: "(555) 123-4567", Email: "ana@example.com"}
}

func ben() customer.Customer {
	return customer.Customer{Name: "Ben Ortiz", Address: "9 Oak Ave", Phone: "555.987.6543", Email: "ben@example.com"}
}

func itemsOf(subtotals ...string) []Item {
	items := make([]Item, len(subtotals))
	for i, s := range subtotals {
		items[i] = Item{ProductID: int64(i + 1), Color: "Blue", Variant: "Corn", Quantity: 1, Subtotal: d(s)}
	}
	return items
}
