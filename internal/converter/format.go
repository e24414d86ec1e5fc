package converter

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	groupSeparator = ","
	decimalPoint   = "."
)

// FormatAmount renders v with its integer part grouped in thousands and at most
// precision fractional digits. Rounding is half-even and trailing fractional
// zeros are dropped, so 2400000.00 renders as "2,400,000".
func FormatAmount(v decimal.Decimal, precision int) string {
	if precision < 0 {
		precision = 0
	}
	fixed := v.RoundBank(int32(precision)).StringFixed(int32(precision))

	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	intPart, fracPart, _ := strings.Cut(fixed, decimalPoint)
	fracPart = strings.TrimRight(fracPart, "0")

	out := groupDigits(intPart)
	if fracPart != "" {
		out += decimalPoint + fracPart
	}
	if negative && out != "0" {
		out = "-" + out
	}
	return out
}

// FormatSource renders the raw input buffer: the integer part is grouped and
// the fractional part is kept exactly as typed, including a trailing point.
func FormatSource(buffer string) string {
	intPart, fracPart, hasPoint := strings.Cut(buffer, decimalPoint)
	out := groupDigits(strings.TrimLeft(intPart, "0"))
	if hasPoint {
		out += decimalPoint + fracPart
	}
	return out
}

// ParseBuffer converts an input buffer to a decimal. Anything unparsable is zero.
func ParseBuffer(buffer string) decimal.Decimal {
	cleaned := strings.ReplaceAll(buffer, groupSeparator, "")
	cleaned = strings.TrimSuffix(cleaned, decimalPoint)
	if cleaned == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return v
}

func groupDigits(digits string) string {
	if digits == "" {
		return "0"
	}
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}

	var b strings.Builder
	b.Grow(len(digits) + len(digits)/3)
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteString(groupSeparator)
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
