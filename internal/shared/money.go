package shared

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MinorUnitScale is the number of decimal places held by an Amount.
const MinorUnitScale = 2

// Amount is a monetary value in integer minor units (cents).
type Amount int64

// ParseAmount converts a decimal string such as "125.50" into minor units.
// Values with more precision than the minor unit are rejected.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q", ErrValidation, s)
	}
	return AmountFromDecimal(d)
}

// AmountFromDecimal converts an exact decimal into minor units.
func AmountFromDecimal(d decimal.Decimal) (Amount, error) {
	shifted := d.Shift(MinorUnitScale)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: amount %s exceeds %d decimal places", ErrValidation, d.String(), MinorUnitScale)
	}
	return Amount(shifted.IntPart()), nil
}

// MulQuantity multiplies a unit price by a quantity, rounding half away from zero
// to the nearest minor unit.
func (a Amount) MulQuantity(qty decimal.Decimal) Amount {
	return Amount(decimal.NewFromInt(int64(a)).Mul(qty).Round(0).IntPart())
}

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -MinorUnitScale)
}

// String renders the amount with exactly two decimals, e.g. "-12.30".
func (a Amount) String() string {
	return a.Decimal().StringFixed(MinorUnitScale)
}

var displayPrinter = message.NewPrinter(language.English)

// Display renders the amount with thousands separators for reports, e.g.
// "-1,234.50".
func (a Amount) Display() string {
	sign := ""
	if a < 0 {
		sign = "-"
	}
	abs := a.Abs()
	return sign + displayPrinter.Sprintf("%d", int64(abs/100)) + fmt.Sprintf(".%02d", int64(abs%100))
}

// Abs returns the absolute value.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// MarshalJSON encodes the amount as a JSON string in major units.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON string ("10.25") or a JSON number (10.25).
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*a = 0
		return nil
	}
	v, err := ParseAmount(string(raw))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// MaxAmount returns the larger of a and b.
func MaxAmount(a, b Amount) Amount {
	if a > b {
		return a
	}
	return b
}
