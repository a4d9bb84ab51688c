package utils

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// ToDecimal converts a raw on-chain amount to a decimal value, considering the given number of decimals.
// Example: amount=1234500000000000000, decimals=18 => 1.2345
func ToDecimal(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}
