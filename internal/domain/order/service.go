package order

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/tortilla-storefront/internal/domain/customer"
	"github.com/xenking/tortilla-storefront/internal/domain/pricing"
	"github.com/xenking/tortilla-storefront/internal/domain/product"
)

const instrumentationName = "github.com/xenking/tortilla-storefront/internal/domain/order"

// MaxQuantity bounds the quantity of a single cart line.
const MaxQuantity = 1000

// PlaceOrderRequest holds the input for placing an order. Cart maps product
// ids to quantities.
type PlaceOrderRequest struct {
	Contact customer.Contact
	Cart    map[int64]int
}

// Receipt summarizes a placed order.
type Receipt struct {
	OrderID     int64
	OrderDate   time.Time
	Customer    customer.Customer
	NewCustomer bool
	Items       []Item

	ItemsSubtotal decimal.Decimal
	DeliveryFee   decimal.Decimal
	RateLabel     string
	Total         decimal.Decimal
	// PreviousBalance is the customer's net balance before this order.
	// Negative means credit.
	PreviousBalance decimal.Decimal
	// CurrentBalance is Total plus PreviousBalance. It is never stored.
	CurrentBalance decimal.Decimal
}

// Service implements order placement, admin adjustments and balance
// inquiries on top of a Store.
type Service struct {
	products product.Repository
	store    Store
	schedule pricing.Schedule
	now      func() time.Time

	tracer       trace.Tracer
	ordersPlaced metric.Int64Counter
	payments     metric.Int64Counter
	adjustments  metric.Int64Counter
}

// Option configures a Service.
type Option func(*options)

type options struct {
	schedule       pricing.Schedule
	now            func() time.Time
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// WithSchedule overrides the delivery fee schedule.
func WithSchedule(s pricing.Schedule) Option {
	return func(o *options) { o.schedule = s }
}

// WithClock overrides the clock used to date new orders.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMeterProvider sets the meter provider for service counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithTracerProvider sets the tracer provider for service spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// NewService creates an order Service.
func NewService(products product.Repository, store Store, opts ...Option) (*Service, error) {
	o := options{
		schedule:       pricing.Standard,
		now:            time.Now,
		meterProvider:  metricnoop.NewMeterProvider(),
		tracerProvider: tracenoop.NewTracerProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	meter := o.meterProvider.Meter(instrumentationName)
	ordersPlaced, err := meter.Int64Counter("storefront.orders.placed",
		metric.WithDescription("Number of orders placed"))
	if err != nil {
		return nil, errors.Wrap(err, "orders placed counter")
	}
	payments, err := meter.Int64Counter("storefront.payments.recorded",
		metric.WithDescription("Number of payments recorded by admins"))
	if err != nil {
		return nil, errors.Wrap(err, "payments counter")
	}
	adjustments, err := meter.Int64Counter("storefront.orders.adjustments",
		metric.WithDescription("Number of admin order adjustments"))
	if err != nil {
		return nil, errors.Wrap(err, "adjustments counter")
	}

	return &Service{
		products:     products,
		store:        store,
		schedule:     o.schedule,
		now:          o.now,
		tracer:       o.tracerProvider.Tracer(instrumentationName),
		ordersPlaced: ordersPlaced,
		payments:     payments,
		adjustments:  adjustments,
	}, nil
}

// Schedule returns the delivery fee schedule in use.
func (s *Service) Schedule() pricing.Schedule {
	return s.schedule
}

// PlaceOrder validates the contact and cart, prices the items, resolves the
// customer and persists the order with its items in one transaction.
// Customer credit is carried forward for display only and is never applied
// to the new order.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (_ *Receipt, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder")
	defer func() { endSpan(span, rerr) }()

	contact := req.Contact.Normalize()
	if err := contact.Validate(); err != nil {
		var ferr *customer.InvalidFieldError
		if errors.As(err, &ferr) {
			return nil, &ValidationError{Field: ferr.Field, Reason: ferr.Reason}
		}
		return nil, err
	}

	ids := cartIDs(req.Cart)
	if len(ids) == 0 {
		return nil, &ValidationError{Field: "cart", Reason: "at least one item is required"}
	}
	for _, id := range ids {
		if req.Cart[id] > MaxQuantity {
			return nil, &ValidationError{
				Field:  "cart",
				Reason: fmt.Sprintf("quantity of product %d must not exceed %d", id, MaxQuantity),
			}
		}
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, storageErr("get products", err)
	}
	byID := make(map[int64]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	items := make([]Item, 0, len(ids))
	subtotal := decimal.Zero
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, &NotFoundError{Entity: "product", ID: strconv.FormatInt(id, 10)}
		}
		qty := req.Cart[id]
		line := p.Price.Mul(decimal.NewFromInt(int64(qty))).Round(2)
		items = append(items, Item{
			ProductID: p.ID,
			Color:     p.Color,
			Variant:   p.Variant,
			Quantity:  qty,
			Subtotal:  line,
		})
		subtotal = subtotal.Add(line)
	}

	quote := s.schedule.Resolve(subtotal)
	receipt := &Receipt{
		Items:         items,
		ItemsSubtotal: subtotal,
		DeliveryFee:   quote.DeliveryFee,
		RateLabel:     quote.Label,
		Total:         subtotal.Add(quote.DeliveryFee),
	}

	err = s.store.Tx(ctx, func(ctx context.Context, tx Tx) error {
		c, newCustomer, err := resolveCustomer(ctx, tx, contact)
		if err != nil {
			return err
		}

		history, err := tx.CustomerOrders(ctx, c.ID)
		if err != nil {
			return errors.Wrap(err, "customer orders")
		}

		o := &Order{
			CustomerID:  c.ID,
			Customer:    *c,
			OrderDate:   s.now(),
			DeliveryFee: receipt.DeliveryFee,
			TotalPrice:  receipt.Total,
			Payments:    decimal.Zero,
			Status:      StatusOpen,
			Items:       items,
		}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		receipt.OrderID = o.ID
		receipt.OrderDate = o.OrderDate
		receipt.Customer = *c
		receipt.NewCustomer = newCustomer
		receipt.PreviousBalance = TotalBalance(history)
		return nil
	})
	if err != nil {
		return nil, storageErr("place order", err)
	}
	receipt.CurrentBalance = receipt.Total.Add(receipt.PreviousBalance)

	span.SetAttributes(attribute.Int64("order.id", receipt.OrderID))
	s.ordersPlaced.Add(ctx, 1)
	return receipt, nil
}

func resolveCustomer(ctx context.Context, tx Tx, contact customer.Contact) (*customer.Customer, bool, error) {
	c, err := tx.CustomerByEmail(ctx, contact.Email)
	switch {
	case err == nil:
		return c, false, nil
	case errors.Is(err, customer.ErrNotFound):
	default:
		return nil, false, errors.Wrap(err, "customer by email")
	}

	nc := customer.New(contact)
	if err := tx.CreateCustomer(ctx, &nc); err != nil {
		return nil, false, errors.Wrap(err, "create customer")
	}
	return &nc, true, nil
}

// cartIDs returns the sorted product ids of entries with a positive id and
// quantity.
func cartIDs(cart map[int64]int) []int64 {
	ids := make([]int64, 0, len(cart))
	for id, qty := range cart {
		if id <= 0 || qty <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
