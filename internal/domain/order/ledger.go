package order

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/xenking/tortilla-storefront/internal/domain/customer"
	"github.com/xenking/tortilla-storefront/internal/domain/pricing"
)

// Statement is an order together with the amounts derived from it for
// display: standard pricing, overrides, balance and previous balance.
type Statement struct {
	Order Order

	ItemsSubtotal       decimal.Decimal
	StandardDeliveryFee decimal.Decimal
	RateLabel           string
	StandardTotal       decimal.Decimal

	DeliveryFeeAdjusted bool
	DiscountApplied     bool
	DiscountAmount      decimal.Decimal
	// Adjustments lists human readable labels of the overrides in effect.
	Adjustments []string

	Balance decimal.Decimal
	// PreviousBalance is the sum of balances of the same customer's earlier
	// orders. It is informational only.
	PreviousBalance decimal.Decimal
	// Latest marks the customer's most recent order.
	Latest bool
}

// CustomerBalance is the aggregate balance of one customer.
type CustomerBalance struct {
	Customer   customer.Customer
	Total      decimal.Decimal
	OrderCount int
}

// NewStatements derives a statement for every order, preserving the input
// order. Previous balances and the latest marker are computed per customer
// over the given orders, ordered by (order date, order id).
func NewStatements(orders []Order, schedule pricing.Schedule) []Statement {
	byCustomer := make(map[int64][]int, len(orders))
	for i := range orders {
		cid := orders[i].CustomerID
		byCustomer[cid] = append(byCustomer[cid], i)
	}

	previous := make([]decimal.Decimal, len(orders))
	latest := make([]bool, len(orders))
	for _, idx := range byCustomer {
		sort.Slice(idx, func(a, b int) bool {
			return earlier(&orders[idx[a]], &orders[idx[b]])
		})
		running := decimal.Zero
		for _, i := range idx {
			previous[i] = running
			running = running.Add(orders[i].Balance())
		}
		latest[idx[len(idx)-1]] = true
	}

	out := make([]Statement, len(orders))
	for i := range orders {
		st := statementFor(orders[i], schedule)
		st.PreviousBalance = previous[i]
		st.Latest = latest[i]
		out[i] = st
	}
	return out
}

func earlier(a, b *Order) bool {
	if !a.OrderDate.Equal(b.OrderDate) {
		return a.OrderDate.Before(b.OrderDate)
	}
	return a.ID < b.ID
}

var discountTolerance = decimal.New(1, -2)

func statementFor(o Order, schedule pricing.Schedule) Statement {
	subtotal := o.ItemsSubtotal()
	quote := schedule.Resolve(subtotal)
	st := Statement{
		Order:               o,
		ItemsSubtotal:       subtotal,
		StandardDeliveryFee: quote.DeliveryFee,
		RateLabel:           quote.Label,
		StandardTotal:       subtotal.Add(quote.DeliveryFee),
		Balance:             o.Balance(),
	}

	if !o.DeliveryFee.Equal(quote.DeliveryFee) {
		st.DeliveryFeeAdjusted = true
		if o.DeliveryFee.LessThan(quote.DeliveryFee) {
			st.Adjustments = append(st.Adjustments, "Reduced Delivery Fee")
		} else {
			st.Adjustments = append(st.Adjustments, "Adjusted Delivery Fee")
		}
	}

	// Differences of a cent or less are rounding, not a discount.
	if o.TotalPrice.LessThan(st.StandardTotal.Sub(discountTolerance)) {
		st.DiscountAmount = st.StandardTotal.Sub(o.TotalPrice)
		st.DiscountApplied = true
		st.Adjustments = append(st.Adjustments,
			fmt.Sprintf("$%s Discount Applied", st.DiscountAmount.StringFixed(2)))
	}

	return st
}

// Outstanding aggregates balances per customer and returns the customers who
// owe money, largest amount first. Ties are broken by customer id.
func Outstanding(orders []Order) []CustomerBalance {
	totals := make(map[int64]*CustomerBalance)
	for i := range orders {
		o := &orders[i]
		cb, ok := totals[o.CustomerID]
		if !ok {
			c := o.Customer
			c.ID = o.CustomerID
			cb = &CustomerBalance{Customer: c, Total: decimal.Zero}
			totals[o.CustomerID] = cb
		}
		cb.Total = cb.Total.Add(o.Balance())
		cb.OrderCount++
	}

	out := make([]CustomerBalance, 0, len(totals))
	for _, cb := range totals {
		if cb.Total.IsPositive() {
			out = append(out, *cb)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Customer.ID < out[j].Customer.ID
	})
	return out
}

// TotalBalance sums the balances of the given orders.
func TotalBalance(orders []Order) decimal.Decimal {
	sum := decimal.Zero
	for i := range orders {
		sum = sum.Add(orders[i].Balance())
	}
	return sum
}
