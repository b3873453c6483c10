// Package money parses scraped price text into decimals and renders them for alerts.
package money

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// NotAvailable is rendered in place of a missing amount.
const NotAvailable = "N/A"

// DefaultSymbol is used when the currency code is missing or unknown.
const DefaultSymbol = "$"

// ErrNoDigits is returned when the text carries no numeric content.
var ErrNoDigits = errors.New("money: no digits in value")

var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"CAD": "CA$",
	"AUD": "A$",
}

// Symbol maps an ISO currency code to its display prefix.
func Symbol(code string) string {
	if s, ok := symbols[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return s
	}
	return DefaultSymbol
}

// Parse converts text such as "$1,234.56", "-$75.00", "USD 99" or "($12.00)" into a decimal.
// Currency codes, symbols and whitespace may surround the number and commas must group
// thousands. A minus sign before or after the amount, or wrapping parentheses, makes the
// value negative. Any other text is rejected.
func Parse(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return decimal.Decimal{}, ErrNoDigits
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	core, signed := stripAffixes(s)
	negative = negative || signed

	if !strings.ContainsAny(core, "0123456789") {
		return decimal.Decimal{}, ErrNoDigits
	}
	if !amountPattern.MatchString(core) {
		return decimal.Decimal{}, fmt.Errorf("money: parse %q: unexpected text around amount", text)
	}

	value, err := decimal.NewFromString(strings.ReplaceAll(core, ",", ""))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("money: parse %q: %w", text, err)
	}
	if negative {
		value = value.Neg()
	}
	return value, nil
}

var (
	amountPattern = regexp.MustCompile(`^(\d{1,3}(,\d{3})+|\d+)(\.\d+)?$`)
	codePrefix    = regexp.MustCompile(`^[A-Z]{3}`)
	codeSuffix    = regexp.MustCompile(`[A-Z]{3}$`)
	signs         = []string{"-", "−"}
	symbolTokens  = []string{"CA$", "A$", "$", "€", "£"} // longest first
)

// stripAffixes peels currency codes, symbols and sign characters off both ends of s.
func stripAffixes(s string) (string, bool) {
	negative := false
	for {
		before := s
		s = strings.TrimSpace(s)
		for _, sign := range signs {
			if strings.HasPrefix(s, sign) {
				s, negative = strings.TrimPrefix(s, sign), true
			}
			if strings.HasSuffix(s, sign) {
				s, negative = strings.TrimSuffix(s, sign), true
			}
		}
		for _, sym := range symbolTokens {
			s = strings.TrimPrefix(s, sym)
			s = strings.TrimSuffix(s, sym)
		}
		if loc := codePrefix.FindStringIndex(s); loc != nil {
			s = s[loc[1]:]
		}
		if loc := codeSuffix.FindStringIndex(s); loc != nil {
			s = s[:loc[0]]
		}
		if s == before {
			return s, negative
		}
	}
}

// ParseNull is Parse with failures folded into an invalid NullDecimal.
func ParseNull(text string) decimal.NullDecimal {
	value, err := Parse(text)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(value)
}

// Format renders d with thousands separators and two fractional digits, e.g. "-$1,234.50".
func Format(d decimal.Decimal, symbol string) string {
	fixed := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if d.Round(2).IsNegative() {
		b.WriteByte('-')
	}
	b.WriteString(symbol)
	b.WriteString(group(whole))
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// FormatNull renders NotAvailable for a missing amount.
func FormatNull(d decimal.NullDecimal, symbol string) string {
	if !d.Valid {
		return NotAvailable
	}
	return Format(d.Decimal, symbol)
}

// OrZero coalesces a missing amount to zero.
func OrZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

func group(whole string) string {
	if len(whole) <= 3 {
		return whole
	}
	var b strings.Builder
	lead := len(whole) % 3
	if lead > 0 {
		b.WriteString(whole[:lead])
	}
	for i := lead; i < len(whole); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(whole[i : i+3])
	}
	return b.String()
}
