package checkout

import (
	"fmt"
	"strings"

	"github.com/Zyrax101/ThreadHeaven/internal/domain"
)

const (
	FieldFullName   = "full_name"
	FieldEmail      = "email"
	FieldStreet     = "street"
	FieldCity       = "city"
	FieldPostalCode = "postal_code"
	FieldCountry    = "country"
)

// ValidationError names the offending form field so the client can
// focus it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidateShippingForm checks the required fields and the email shape.
// Full address validation is the payment provider's job; locally an
// email just has to contain an @.
func ValidateShippingForm(form domain.ShippingAddress, email string) error {
	required := []struct {
		field string
		value string
	}{
		{FieldFullName, form.FullName},
		{FieldEmail, email},
		{FieldStreet, form.Street},
		{FieldCity, form.City},
		{FieldPostalCode, form.PostalCode},
		{FieldCountry, form.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Reason: "required"}
		}
	}

	if !strings.Contains(email, "@") {
		return &ValidationError{Field: FieldEmail, Reason: "must contain @"}
	}
	return nil
}
