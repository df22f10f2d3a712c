// 包 保险费率服务的领域模型。
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout 费率日期格式。
const DateLayout = "2006-01-02"

// CargoType 货物类型，名称全局唯一且区分大小写。
type CargoType struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCargoType 创建货物类型。名称按字节保存，只拒绝空串。
func NewCargoType(name string) (*CargoType, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: cargo type name is required", ErrValidation)
	}
	now := time.Now().UTC()
	return &CargoType{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Tariff 某货物类型在某日的费率。
// 同一 (TariffDate, CargoTypeID) 至多一条；创建后仅 Rate 与 UpdatedAt 可变。
type Tariff struct {
	ID          uuid.UUID
	TariffDate  time.Time
	Rate        decimal.Decimal
	CargoTypeID uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewTariff 创建费率。
func NewTariff(cargoTypeID uuid.UUID, date time.Time, rate decimal.Decimal) (*Tariff, error) {
	if err := ValidateRate(rate); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Tariff{
		ID:          uuid.New(),
		TariffDate:  TruncateDate(date),
		Rate:        rate,
		CargoTypeID: cargoTypeID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// SetRate 覆盖费率并刷新 UpdatedAt。
func (t *Tariff) SetRate(rate decimal.Decimal) error {
	if err := ValidateRate(rate); err != nil {
		return err
	}
	t.Rate = rate
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// ValidateRate 费率必须非负。
func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() {
		return fmt.Errorf("%w: rate must be non-negative, got %s", ErrValidation, rate.String())
	}
	return nil
}

// ParseDate 解析 YYYY-MM-DD，返回 UTC 零点。
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", ErrValidation, s)
	}
	return d, nil
}

// TruncateDate 丢弃时间部分。
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate 格式化为 YYYY-MM-DD。
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
