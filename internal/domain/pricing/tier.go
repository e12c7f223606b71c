// Package pricing maps an order's items subtotal to its delivery fee.
package pricing

import "github.com/shopspring/decimal"

// Quote is the delivery fee resolved for a subtotal together with the label
// shown to customers and admins.
type Quote struct {
	DeliveryFee decimal.Decimal
	Label       string
}

// Tier is one row of a delivery fee schedule. A tier applies to subtotals up
// to and including UpTo; the last tier of a schedule has a zero UpTo and
// catches everything above the previous bound.
type Tier struct {
	UpTo      decimal.Decimal
	Inclusive bool
	// Flat is charged as-is when Rate is zero.
	Flat decimal.Decimal
	// Rate is a percentage of the subtotal.
	Rate  decimal.Decimal
	Label string
}

// Schedule is an ordered list of tiers, lowest bound first.
type Schedule []Tier

var hundred = decimal.NewFromInt(100)

// Standard is the delivery fee schedule used by the storefront.
var Standard = Schedule{
	{UpTo: decimal.NewFromInt(50), Flat: decimal.NewFromInt(10), Label: "$10.00 flat rate"},
	{UpTo: decimal.NewFromInt(75), Inclusive: true, Rate: decimal.NewFromInt(15), Label: "15% (orders $51–75)"},
	{UpTo: decimal.NewFromInt(100), Inclusive: true, Rate: decimal.NewFromInt(12), Label: "12% (orders $76–100)"},
	{UpTo: decimal.NewFromInt(150), Inclusive: true, Rate: decimal.NewFromInt(10), Label: "10% (orders $101–150)"},
	{UpTo: decimal.NewFromInt(250), Inclusive: true, Rate: decimal.NewFromInt(8), Label: "8% (orders $151–250)"},
	{Rate: decimal.NewFromInt(6), Label: "6% (orders over $251)"},
}

// Resolve returns the delivery fee for the given items subtotal. Percentage
// fees are rounded to cents.
func (s Schedule) Resolve(subtotal decimal.Decimal) Quote {
	t := s.tierFor(subtotal)
	if t.Rate.IsZero() {
		return Quote{DeliveryFee: t.Flat.Round(2), Label: t.Label}
	}
	return Quote{
		DeliveryFee: subtotal.Mul(t.Rate).Div(hundred).Round(2),
		Label:       t.Label,
	}
}

func (s Schedule) tierFor(subtotal decimal.Decimal) Tier {
	for i, t := range s {
		if i == len(s)-1 {
			return t
		}
		if subtotal.LessThan(t.UpTo) || (t.Inclusive && subtotal.Equal(t.UpTo)) {
			return t
		}
	}
	return Tier{}
}

// Resolve resolves subtotal against the Standard schedule.
func Resolve(subtotal decimal.Decimal) Quote {
	return Standard.Resolve(subtotal)
}
