package order

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/tortilla-storefront/internal/domain/customer"
)

// LookupQuery holds the self-service order lookup criteria. Any
// combination may be given; orders matching any of them are returned.
type LookupQuery struct {
	Email string
	Name  string
	Phone string
}

// Lookup is the result of a customer order lookup.
type Lookup struct {
	Statements   []Statement
	TotalBalance decimal.Decimal
}

// DashboardQuery filters the admin dashboard by a customer email substring.
type DashboardQuery struct {
	Search string
}

// Dashboard is the admin view of all orders.
type Dashboard struct {
	Search      string
	Statements  []Statement
	Outstanding []CustomerBalance
}

// CheckBalance returns the aggregate balance of the customer with the given
// email. Unknown customers yield a zero summary.
func (s *Service) CheckBalance(ctx context.Context, email string) (_ BalanceSummary, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.CheckBalance")
	defer func() { endSpan(span, rerr) }()

	email = strings.TrimSpace(email)
	if err := customer.ValidateEmail(email); err != nil {
		var ferr *customer.InvalidFieldError
		if errors.As(err, &ferr) {
			return BalanceSummary{}, &ValidationError{Field: ferr.Field, Reason: ferr.Reason}
		}
		return BalanceSummary{}, err
	}

	sum, err := s.store.BalanceByEmail(ctx, customer.NormalizeEmail(email))
	if err != nil {
		return BalanceSummary{}, storageErr("balance by email", err)
	}
	return sum, nil
}

// FindOrders returns the orders of customers matching any of the given
// criteria. At least one criterion is required.
func (s *Service) FindOrders(ctx context.Context, q LookupQuery) (_ *Lookup, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.FindOrders")
	defer func() { endSpan(span, rerr) }()

	f := Filter{
		Email: customer.NormalizeEmail(q.Email),
		Name:  strings.TrimSpace(q.Name),
		Phone: customer.PhoneDigits(q.Phone),
	}
	if f.IsZero() {
		return nil, &ValidationError{Field: "query", Reason: "enter an email, name or phone number"}
	}

	orders, err := s.store.ListOrders(ctx, f)
	if err != nil {
		return nil, storageErr("list orders", err)
	}
	return &Lookup{
		Statements:   NewStatements(orders, s.schedule),
		TotalBalance: TotalBalance(orders),
	}, nil
}

// Dashboard returns statements for all orders, newest first, optionally
// narrowed to customers whose email contains the search term, together with
// the outstanding balance summary.
func (s *Service) Dashboard(ctx context.Context, q DashboardQuery) (_ *Dashboard, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Dashboard")
	defer func() { endSpan(span, rerr) }()

	search := strings.TrimSpace(q.Search)
	orders, err := s.store.ListOrders(ctx, Filter{Email: strings.ToLower(search)})
	if err != nil {
		return nil, storageErr("list orders", err)
	}
	return &Dashboard{
		Search:      search,
		Statements:  NewStatements(orders, s.schedule),
		Outstanding: Outstanding(orders),
	}, nil
}
