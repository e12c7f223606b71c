package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTwoCustomers(store *memStore) {
	store.seed(ana(), Order{OrderDate: baseTime, DeliveryFee: d("10"), TotalPrice: d("50"), Items: itemsOf("40")})
	store.seed(ana(), Order{OrderDate: baseTime.Add(time.Hour), DeliveryFee: d("10"), TotalPrice: d("30"), Payments: d("30"), Items: itemsOf("20")})
	store.seed(ben(), Order{OrderDate: baseTime.Add(2 * time.Hour), DeliveryFee: d("9.60"), TotalPrice: d("89.60"), Items: itemsOf("80")})
}

func TestCheckBalance(t *testing.T) {
	store := newMemStore()
	seedTwoCustomers(store)
	svc := newTestService(t, catalog(), store)
	ctx := context.Background()

	sum, err := svc.CheckBalance(ctx, "  Ana@Example.com ")
	require.NoError(t, err)
	assert.True(t, d("50").Equal(sum.TotalBalance))
	assert.Equal(t, 2, sum.OrderCount)
	assert.True(t, sum.HasOrders)

	sum, err = svc.CheckBalance(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.True(t, sum.TotalBalance.IsZero())
	assert.Zero(t, sum.OrderCount)
	assert.False(t, sum.HasOrders)
}

func TestCheckBalance_Validation(t *testing.T) {
	svc := newTestService(t, catalog(), newMemStore())

	for _, email := range []string{"", "   ", "not-an-email"} {
		_, err := svc.CheckBalance(context.Background(), email)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "email %q", email)
		assert.Equal(t, "email", verr.Field)
	}
}

func TestFindOrders(t *testing.T) {
	store := newMemStore()
	seedTwoCustomers(store)
	svc := newTestService(t, catalog(), store)
	ctx := context.Background()

	tests := []struct {
		name      string
		query     LookupQuery
		wantCount int
		wantTotal string
	}{
		{name: "email", query: LookupQuery{Email: "ANA@example.com"}, wantCount: 2, wantTotal: "50"},
		{name: "name substring", query: LookupQuery{Name: "ortiz"}, wantCount: 1, wantTotal: "89.60"},
		{name: "phone digits", query: LookupQuery{Phone: "555-123-4567"}, wantCount: 2, wantTotal: "50"},
		{name: "phone other format", query: LookupQuery{Phone: "(555) 987 6543"}, wantCount: 1, wantTotal: "89.60"},
		{name: "or matched", query: LookupQuery{Email: "ana@", Name: "Ben"}, wantCount: 3, wantTotal: "139.60"},
		{name: "no match", query: LookupQuery{Email: "zed@example.com"}, wantCount: 0, wantTotal: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.FindOrders(ctx, tt.query)
			require.NoError(t, err)
			assert.Len(t, res.Statements, tt.wantCount)
			assert.True(t, d(tt.wantTotal).Equal(res.TotalBalance), "got %s", res.TotalBalance)
		})
	}
}

func TestFindOrders_RequiresCriterion(t *testing.T) {
	svc := newTestService(t, catalog(), newMemStore())

	for _, q := range []LookupQuery{{}, {Email: "  ", Name: " "}, {Phone: "call me"}} {
		_, err := svc.FindOrders(context.Background(), q)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "query", verr.Field)
	}
}

func TestDashboard(t *testing.T) {
	store := newMemStore()
	seedTwoCustomers(store)
	svc := newTestService(t, catalog(), store)
	ctx := context.Background()

	dash, err := svc.Dashboard(ctx, DashboardQuery{})
	require.NoError(t, err)
	require.Len(t, dash.Statements, 3)
	assert.Equal(t, "ben@example.com", dash.Statements[0].Order.Customer.Email)
	assert.True(t, dash.Statements[0].Latest)
	assert.True(t, dash.Statements[1].Latest)
	assert.False(t, dash.Statements[2].Latest)
	assert.True(t, d("50").Equal(dash.Statements[1].PreviousBalance))

	require.Len(t, dash.Outstanding, 2)
	assert.Equal(t, "ben@example.com", dash.Outstanding[0].Customer.Email)
	assert.True(t, d("89.60").Equal(dash.Outstanding[0].Total))

	dash, err = svc.Dashboard(ctx, DashboardQuery{Search: " ANA "})
	require.NoError(t, err)
	assert.Equal(t, "ANA", dash.Search)
	assert.Len(t, dash.Statements, 2)
	require.Len(t, dash.Outstanding, 1)
	assert.Equal(t, 2, dash.Outstanding[0].OrderCount)
}

func TestDashboard_StorageFailure(t *testing.T) {
	store := newMemStore()
	store.listErr = errors.New("timeout")
	svc := newTestService(t, catalog(), store)

	_, err := svc.Dashboard(context.Background(), DashboardQuery{})

	var serr *StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "list orders", serr.Op)
}
