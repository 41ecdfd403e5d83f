package game

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	maxNameLength = 50
	maxQuantity   = 999
	maxItems      = 50

	// Amounts carry at most cents. Exponents are checked before any
	// comparison so "1e-5000000" is rejected without expanding it.
	maxDecimalPlaces  = 2
	maxAmountExponent = 5
	maxQtyExponent    = 2
)

var maxAmount = decimal.NewFromInt(999999)

func tooManyPlaces(d decimal.Decimal) bool {
	return d.Exponent() < -maxDecimalPlaces
}

// ValidateItem checks a single receipt line.
func ValidateItem(name string, qty, price decimal.Decimal) []ValidationError {
	var errs []ValidationError

	switch {
	case strings.TrimSpace(name) == "":
		errs = append(errs, ValidationError{Field: "item", Message: "Item name is required"})
	case utf8.RuneCountInString(name) > maxNameLength:
		errs = append(errs, ValidationError{Field: "item", Message: "Item name must be 50 characters or less"})
	}

	switch {
	case !qty.IsPositive():
		errs = append(errs, ValidationError{Field: "quantity", Message: "Quantity must be greater than 0"})
	case tooManyPlaces(qty):
		errs = append(errs, ValidationError{Field: "quantity", Message: "Quantity must be a whole number"})
	case qty.Exponent() > maxQtyExponent || qty.GreaterThan(decimal.NewFromInt(maxQuantity)):
		errs = append(errs, ValidationError{Field: "quantity", Message: "Quantity cannot exceed 999"})
	case !qty.IsInteger():
		errs = append(errs, ValidationError{Field: "quantity", Message: "Quantity must be a whole number"})
	}

	switch {
	case !price.IsPositive():
		errs = append(errs, ValidationError{Field: "price", Message: "Price must be greater than 0"})
	case tooManyPlaces(price):
		errs = append(errs, ValidationError{Field: "price", Message: "Price can have at most 2 decimal places"})
	case price.Exponent() > maxAmountExponent || price.GreaterThan(maxAmount):
		errs = append(errs, ValidationError{Field: "price", Message: "Price cannot exceed 999,999"})
	}

	return errs
}

// ValidateReceiptItems checks the item list and every item in it. Item
// errors are tagged items[i].<field> and prefixed "Item i+1:".
func ValidateReceiptItems(items []ItemDraft) []ValidationError {
	if len(items) == 0 {
		return []ValidationError{{Field: "items", Message: "At least one item is required"}}
	}

	var errs []ValidationError
	if len(items) > maxItems {
		errs = append(errs, ValidationError{Field: "items", Message: "Cannot have more than 50 items"})
	}

	for i, item := range items {
		for _, e := range ValidateItem(item.Item, item.Qty, item.Price) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("items[%d].%s", i, e.Field),
				Message: fmt.Sprintf("Item %d: %s", i+1, e.Message),
			})
		}
	}
	return errs
}

// ValidateLocation checks the city and country parts of a location.
func ValidateLocation(country, city string) []ValidationError {
	var errs []ValidationError

	switch {
	case strings.TrimSpace(country) == "":
		errs = append(errs, ValidationError{Field: "country", Message: "Country is required"})
	case utf8.RuneCountInString(country) > maxNameLength:
		errs = append(errs, ValidationError{Field: "country", Message: "Country must be 50 characters or less"})
	}

	switch {
	case strings.TrimSpace(city) == "":
		errs = append(errs, ValidationError{Field: "city", Message: "City is required"})
	case utf8.RuneCountInString(city) > maxNameLength:
		errs = append(errs, ValidationError{Field: "city", Message: "City must be 50 characters or less"})
	}

	return errs
}

// ValidateCurrency checks that code has an exchange rate.
func ValidateCurrency(code string) []ValidationError {
	if IsSupportedCurrency(code) {
		return nil
	}
	return []ValidationError{{Field: "currency", Message: fmt.Sprintf("Currency %s is not supported", code)}}
}

// ValidateGuess checks a raw guess string.
func ValidateGuess(raw string) []ValidationError {
	_, errs := ParseGuess(raw)
	return errs
}

// ParseGuess parses and validates a raw guess. Surrounding whitespace is
// ignored; anything else that is not a plain decimal number of at most two
// decimal places is rejected.
func ParseGuess(raw string) (decimal.Decimal, []ValidationError) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, []ValidationError{{Field: "guess", Message: "Guess is required"}}
	}

	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, []ValidationError{{Field: "guess", Message: "Guess must be a valid number"}}
	}

	switch {
	case !value.IsPositive():
		return decimal.Zero, []ValidationError{{Field: "guess", Message: "Guess must be greater than 0"}}
	case tooManyPlaces(value):
		return decimal.Zero, []ValidationError{{Field: "guess", Message: "Guess can have at most 2 decimal places"}}
	case value.Exponent() > maxAmountExponent || value.GreaterThan(maxAmount):
		return decimal.Zero, []ValidationError{{Field: "guess", Message: "Guess cannot exceed 999,999"}}
	}
	return value, nil
}

// SplitLocation splits "City, Country" on the last comma.
func SplitLocation(location string) (city, country string) {
	idx := strings.LastIndex(location, ",")
	if idx < 0 {
		return strings.TrimSpace(location), ""
	}
	return strings.TrimSpace(location[:idx]), strings.TrimSpace(location[idx+1:])
}

// ValidatePostDraft runs every check CreatePost needs and returns the
// normalised "City, Country" location alongside any errors.
func ValidatePostDraft(draft PostDraft) (string, []ValidationError) {
	city, country := draft.City, draft.Country
	if city == "" && country == "" {
		city, country = SplitLocation(draft.Location)
	}

	var errs []ValidationError
	errs = append(errs, ValidateReceiptItems(draft.Items)...)
	errs = append(errs, ValidateLocation(country, city)...)
	errs = append(errs, ValidateCurrency(draft.Currency)...)

	return strings.TrimSpace(city) + ", " + strings.TrimSpace(country), errs
}
