//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go/modules/compose"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/tortilla-storefront/internal/domain/auth"
	"github.com/xenking/tortilla-storefront/internal/domain/customer"
	"github.com/xenking/tortilla-storefront/internal/domain/order"
	"github.com/xenking/tortilla-storefront/internal/domain/product"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	dc, err := tc.NewDockerCompose("testdata/docker-compose.yml")
	if err != nil {
		log.Fatalf("compose init: %v", err)
	}
	defer func() {
		if err := dc.Down(context.Background(), tc.RemoveOrphans(true), tc.RemoveVolumes(true)); err != nil {
			log.Printf("compose down: %v", err)
		}
	}()

	err = dc.
		WaitForService("postgres", wait.ForListeningPort("5432/tcp")).
		Up(ctx, tc.Wait(true))
	if err != nil {
		log.Fatalf("compose up: %v", err)
	}

	pg, err := dc.ServiceContainer(ctx, "postgres")
	if err != nil {
		log.Fatalf("postgres container: %v", err)
	}
	host, err := pg.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	url := fmt.Sprintf("postgres://tortilla:tortilla@%s:%s/tortilla?sslmode=disable", host, port.Port())
	testPool, err = NewPool(ctx, url)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	// Applying the schema twice must be harmless.
	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("migrations (second run): %v", err)
	}

	products := NewProductRepository(testPool)
	for _, p := range []product.Product{
		{ID: 1, Color: "Blue", Variant: "Corn", Price: decimal.RequireFromString("20.00")},
		{ID: 2, Color: "Yellow", Variant: "Flour", Price: decimal.RequireFromString("12.50")},
	} {
		if err := products.Upsert(ctx, p); err != nil {
			log.Fatalf("seed product: %v", err)
		}
	}

	return m.Run()
}

func newService(t *testing.T) *order.Service {
	t.Helper()
	svc, err := order.NewService(NewProductRepository(testPool), NewOrderStore(testPool))
	require.NoError(t, err)
	return svc
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestProductRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(testPool)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(all), 2)
	assert.Equal(t, int64(1), all[0].ID)
	assert.True(t, d("20").Equal(all[0].Price))

	some, err := repo.GetByIDs(ctx, []int64{2, 999})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "Flour", some[0].Variant)
}

func TestAPIKeyRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAPIKeyRepository(testPool)
	hash := auth.HashKey([]byte("pepper"), "admin-key")

	require.NoError(t, repo.Upsert(ctx, auth.APIKeyInfo{
		ID: "admin", KeyHash: hash, Name: "Admin", Scopes: []string{auth.ScopeAdmin},
	}))

	info, err := repo.FindByHash(ctx, hash)
	require.NoError(t, err)
	assert.True(t, info.HasScope(auth.ScopeAdmin))

	_, err = repo.FindByHash(ctx, "nope")
	require.ErrorIs(t, err, auth.ErrKeyNotFound)
}

func TestOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	email := fmt.Sprintf("lifecycle-%d@example.com", time.Now().UnixNano())

	first, err := svc.PlaceOrder(ctx, order.PlaceOrderRequest{
		Contact: customer.Contact{Name: "Ana", Address: "1 Main", Phone: "(555) 010-2030", Email: email},
		Cart:    map[int64]int{1: 2},
	})
	require.NoError(t, err)
	assert.True(t, first.NewCustomer)
	assert.True(t, d("50").Equal(first.Total))

	second, err := svc.PlaceOrder(ctx, order.PlaceOrderRequest{
		Contact: customer.Contact{Name: "Ana", Address: "1 Main", Phone: "555", Email: "  " + email},
		Cart:    map[int64]int{1: 3, 2: 2},
	})
	require.NoError(t, err)
	assert.False(t, second.NewCustomer)
	assert.Equal(t, first.Customer.ID, second.Customer.ID)
	assert.True(t, d("50").Equal(second.PreviousBalance))
	assert.True(t, d("85").Equal(second.ItemsSubtotal))
	assert.True(t, d("12.75").Equal(second.DeliveryFee))

	paid, err := svc.RecordPayment(ctx, first.OrderID, d("150"))
	require.NoError(t, err)
	assert.True(t, d("-100").Equal(paid.Balance()))
	require.Len(t, paid.Items, 1)

	discounted, err := svc.ApplyDiscount(ctx, second.OrderID, d("20"))
	require.NoError(t, err)
	assert.True(t, d("77.75").Equal(discounted.TotalPrice))

	restored, err := svc.CancelDiscount(ctx, second.OrderID)
	require.NoError(t, err)
	assert.True(t, d("97.75").Equal(restored.TotalPrice))

	adjusted, err := svc.AdjustDeliveryFee(ctx, second.OrderID, d("5"))
	require.NoError(t, err)
	assert.True(t, d("90").Equal(adjusted.TotalPrice))

	closed, err := svc.Close(ctx, second.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusClosed, closed.Status)

	sum, err := svc.CheckBalance(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.OrderCount)
	assert.True(t, d("-10").Equal(sum.TotalBalance), "got %s", sum.TotalBalance)

	lookup, err := svc.FindOrders(ctx, order.LookupQuery{Phone: "555-010-2030"})
	require.NoError(t, err)
	require.Len(t, lookup.Statements, 2)
	assert.Equal(t, second.OrderID, lookup.Statements[0].Order.ID)
	assert.True(t, lookup.Statements[0].Latest)
	assert.True(t, d("-100").Equal(lookup.Statements[0].PreviousBalance))
	assert.Equal(t, []string{"Reduced Delivery Fee", "$7.75 Discount Applied"}, lookup.Statements[0].Adjustments)

	_, err = svc.Reopen(ctx, 1<<40)
	var nerr *order.NotFoundError
	require.ErrorAs(t, err, &nerr)
}

func TestPlaceOrder_UnknownProductLeavesNoRows(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	email := fmt.Sprintf("unknown-%d@example.com", time.Now().UnixNano())

	_, err := svc.PlaceOrder(ctx, order.PlaceOrderRequest{
		Contact: customer.Contact{Name: "Ben", Address: "2 Main", Phone: "1", Email: email},
		Cart:    map[int64]int{1: 1, 404: 1},
	})
	var nerr *order.NotFoundError
	require.ErrorAs(t, err, &nerr)

	sum, err := svc.CheckBalance(ctx, email)
	require.NoError(t, err)
	assert.False(t, sum.HasOrders)
}

func TestListOrders_EscapesLikePatterns(t *testing.T) {
	ctx := context.Background()
	store := NewOrderStore(testPool)

	orders, err := store.ListOrders(ctx, order.Filter{Email: "%"})
	require.NoError(t, err)
	assert.Empty(t, orders)
}
