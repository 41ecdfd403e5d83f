package game

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

type rate struct {
	code   string
	toUSD  decimal.Decimal
	symbol string
}

// Static exchange table. Order is the order GetSupportedCurrencies reports.
var rates = []rate{
	{"USD", decimal.RequireFromString("1"), "$"},
	{"EUR", decimal.RequireFromString("1.07"), "€"},
	{"GBP", decimal.RequireFromString("1.25"), "£"},
	{"CAD", decimal.RequireFromString("0.74"), "C$"},
	{"AUD", decimal.RequireFromString("0.66"), "A$"},
	{"JPY", decimal.RequireFromString("0.0067"), "¥"},
	{"CHF", decimal.RequireFromString("1.09"), "CHF"},
	{"CNY", decimal.RequireFromString("0.14"), "¥"},
	{"INR", decimal.RequireFromString("0.012"), "₹"},
	{"MXN", decimal.RequireFromString("0.059"), "$"},
}

func lookupRate(code string) (rate, bool) {
	for _, r := range rates {
		if r.code == code {
			return r, true
		}
	}
	return rate{}, false
}

// ConvertToUSD converts amount to US dollars, rounded half up to cents.
func ConvertToUSD(amount decimal.Decimal, code string) (decimal.Decimal, error) {
	r, ok := lookupRate(code)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, code)
	}
	// Round is half away from zero; amounts here are never negative.
	return amount.Mul(r.toUSD).Round(2), nil
}

// IsSupportedCurrency reports whether code has an exchange rate.
func IsSupportedCurrency(code string) bool {
	_, ok := lookupRate(code)
	return ok
}

// GetSupportedCurrencies returns the currency codes with a known rate.
func GetSupportedCurrencies() []string {
	codes := make([]string, len(rates))
	for i, r := range rates {
		codes[i] = r.code
	}
	return codes
}

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatCurrency renders amount with the currency's en-US symbol and two
// decimals. Codes unknown to CLDR fall back to the static symbol table, and
// failing that to the code itself.
func FormatCurrency(amount decimal.Decimal, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return fallbackSymbol(code) + amount.StringFixed(2)
	}

	symbol := printer.Sprint(currency.Symbol(unit))
	if symbol == "" {
		symbol = fallbackSymbol(code)
	}
	return symbol + printer.Sprint(number.Decimal(amount.InexactFloat64(), number.Scale(2)))
}

func fallbackSymbol(code string) string {
	if r, ok := lookupRate(code); ok {
		return r.symbol
	}
	return code
}
