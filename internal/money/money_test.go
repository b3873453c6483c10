package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"$1,234.56", "1234.56"},
		{"USD 2,480.00", "2480"},
		{"-$75.00", "-75"},
		{"$-75.00", "-75"},
		{"($12.34)", "-12.34"},
		{"  $0.00 ", "0"},
		{"1,000,000.10 USD", "1000000.1"},
		{"€99", "99"},
		{"CA$1,500.25", "1500.25"},
		{"75.00-", "-75"},
		{"−$10.00", "-10"},
		{"USD2,000", "2000"},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q) 不应报错: %v", tc.in, err)
		}
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("Parse(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestParseRejectsText(t *testing.T) {
	for _, in := range []string{"", "   ", "Included", "$"} {
		if _, err := Parse(in); err == nil {
			t.Fatalf("Parse(%q) 应返回错误", in)
		}
		if ParseNull(in).Valid {
			t.Fatalf("ParseNull(%q) 应为空", in)
		}
	}
	if _, err := Parse("1.2.3"); err == nil {
		t.Fatal("多个小数点应报错")
	}
}

func TestParseRejectsSurroundingText(t *testing.T) {
	cases := []string{
		"$1,234.56 for 2 guests",
		"Total: $3,210.00 USD (2 guests)",
		"$1,234.50-$100",
		"€1.234,56",
		"12,34.00",
		"$1,234 - 2 guests",
	}
	for _, in := range cases {
		if got, err := Parse(in); err == nil {
			t.Fatalf("Parse(%q) = %s, 应返回错误", in, got)
		}
		if ParseNull(in).Valid {
			t.Fatalf("ParseNull(%q) 应为空", in)
		}
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		in     string
		symbol string
		want   string
	}{
		{"0", "$", "$0.00"},
		{"5", "$", "$5.00"},
		{"999.9", "$", "$999.90"},
		{"1234.5", "$", "$1,234.50"},
		{"1234567.891", "€", "€1,234,567.89"},
		{"-75", "$", "-$75.00"},
		{"-1000", "£", "-£1,000.00"},
	}
	for _, tc := range cases {
		got := Format(decimal.RequireFromString(tc.in), tc.symbol)
		if got != tc.want {
			t.Fatalf("Format(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatNull(t *testing.T) {
	if got := FormatNull(decimal.NullDecimal{}, "$"); got != NotAvailable {
		t.Fatalf("缺失值应渲染为 N/A, 实际 %q", got)
	}
	if got := FormatNull(decimal.NewNullDecimal(decimal.NewFromInt(3)), "$"); got != "$3.00" {
		t.Fatalf("实际 %q", got)
	}
}

func TestRoundTrip(t *testing.T) {
	values := []string{"0.00", "-0.01", "12.30", "-75.00", "1234.56", "-98765.43", "1000000.00", "2480.99"}
	for _, v := range values {
		original := decimal.RequireFromString(v)
		for _, symbol := range []string{"$", "€", "CA$"} {
			rendered := Format(original, symbol)
			parsed, err := Parse(rendered)
			if err != nil {
				t.Fatalf("re-parse %q: %v", rendered, err)
			}
			if !parsed.Equal(original) {
				t.Fatalf("round trip %s -> %q -> %s", v, rendered, parsed)
			}
		}
	}
}

func TestSymbol(t *testing.T) {
	if Symbol("usd") != "$" || Symbol("EUR") != "€" || Symbol("") != DefaultSymbol || Symbol("XYZ") != DefaultSymbol {
		t.Fatal("symbol mapping 不正确")
	}
}
