package shared

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseAmountRejectsSubCentPrecision(t *testing.T) {
	a, err := ParseAmount("125.5")
	require.NoError(t, err)
	require.Equal(t, Amount(12550), a)

	_, err = ParseAmount("0.001")
	require.True(t, errors.Is(err, ErrValidation))

	_, err = ParseAmount("abc")
	require.True(t, errors.Is(err, ErrValidation))
}

func TestAmountJSONAcceptsStringAndNumber(t *testing.T) {
	var payload struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"10.25","b":99.1}`), &payload))
	require.Equal(t, Amount(1025), payload.A)
	require.Equal(t, Amount(9910), payload.B)

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":"10.25","b":"99.10"}`, string(raw))
}

func TestMulQuantityRoundsToMinorUnit(t *testing.T) {
	price := Amount(333) // 3.33
	require.Equal(t, Amount(500), price.MulQuantity(decimal.RequireFromString("1.5")))
	require.Equal(t, Amount(999), price.MulQuantity(decimal.NewFromInt(3)))
}

func TestAmountDisplayGroupsThousands(t *testing.T) {
	require.Equal(t, "-12.30", Amount(-1230).String())
	require.Equal(t, "1,234,567.89", Amount(123456789).Display())
	require.Equal(t, "-1,234.05", Amount(-123405).Display())
	require.Equal(t, "0.07", Amount(7).Display())
}
