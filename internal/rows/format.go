package rows

import (
	"math/big"

	"github.com/shopspring/decimal"
)

const nativeDecimals = 18

// FormatUnits renders base units at the given scale with trailing zeros trimmed.
func FormatUnits(value *big.Int, decimals int32) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -decimals).String()
}

// FormatEther renders a wei amount in ETH.
func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, nativeDecimals)
}

// ParseUnits converts a human decimal string into base units. Digits beyond
// the scale are truncated.
func ParseUnits(value string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, err
	}
	return d.Shift(decimals).Truncate(0).BigInt(), nil
}
