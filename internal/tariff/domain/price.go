package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Price 保险费 = 申报价值 × 费率，精确十进制运算，不做舍入。
func Price(rate, declaredValue decimal.Decimal) (decimal.Decimal, error) {
	if declaredValue.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: declared value must be non-negative, got %s", ErrValidation, declaredValue.String())
	}
	if err := ValidateRate(rate); err != nil {
		return decimal.Zero, err
	}
	return declaredValue.Mul(rate), nil
}
