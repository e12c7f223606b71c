// Package customer holds customer identity and contact validation rules.
package customer

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
)

// ErrNotFound is returned when no customer matches a lookup.
var ErrNotFound = errors.New("customer not found")

// Customer is a person who has placed at least one order. The email is the
// natural key and is compared case-insensitively.
type Customer struct {
	ID      int64
	Name    string
	Address string
	Phone   string
	Email   string
}

// Contact is the contact information submitted with an order.
type Contact struct {
	Name    string `validate:"required,max=200"`
	Address string `validate:"required,max=500"`
	Phone   string `validate:"required,max=50"`
	Email   string `validate:"required,email,max=254"`
}

// InvalidFieldError reports the first contact field that failed validation.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return e.Field + ": " + e.Reason
}

var validate = validator.New()

// Normalize trims every field of c.
func (c Contact) Normalize() Contact {
	return Contact{
		Name:    strings.TrimSpace(c.Name),
		Address: strings.TrimSpace(c.Address),
		Phone:   strings.TrimSpace(c.Phone),
		Email:   strings.TrimSpace(c.Email),
	}
}

// Validate checks that all fields are present and the email is well formed.
// It returns *InvalidFieldError on failure.
func (c Contact) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errors.Wrap(err, "validate contact")
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return &InvalidFieldError{Field: field, Reason: "is required"}
	case "email":
		return &InvalidFieldError{Field: field, Reason: "is not a valid email address"}
	case "max":
		return &InvalidFieldError{Field: field, Reason: "is too long"}
	default:
		return &InvalidFieldError{Field: field, Reason: "is invalid"}
	}
}

// ValidateEmail checks that email is a well-formed address.
func ValidateEmail(email string) error {
	if email == "" {
		return &InvalidFieldError{Field: "email", Reason: "is required"}
	}
	if err := validate.Var(email, "email"); err != nil {
		return &InvalidFieldError{Field: "email", Reason: "is not a valid email address"}
	}
	return nil
}

// New builds a customer record from validated contact details.
func New(c Contact) Customer {
	return Customer{
		Name:    c.Name,
		Address: c.Address,
		Phone:   c.Phone,
		Email:   c.Email,
	}
}

// NormalizeEmail returns the lookup form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PhoneDigits strips everything but digits from a phone number, so that
// "(555) 123-4567" and "555.123.4567" compare equal.
func PhoneDigits(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
