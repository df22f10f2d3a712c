package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UpdateRateCommand 修改单条费率。
type UpdateRateCommand struct {
	TariffID uuid.UUID
	Rate     decimal.Decimal
	UserID   string
}

// DeleteTariffCommand 删除单条费率。
type DeleteTariffCommand struct {
	TariffID uuid.UUID
	UserID   string
}

// CreateTariffCommand 直接创建费率，货物类型必须已存在。
type CreateTariffCommand struct {
	CargoTypeName string
	Date          time.Time
	Rate          decimal.Decimal
	UserID        string
}

// CalculateQuery 计算保险费。
type CalculateQuery struct {
	TariffDate    time.Time
	CargoTypeName string
	DeclaredValue decimal.Decimal
}

// Quote 计算结果。
type Quote struct {
	TariffID      uuid.UUID
	TariffDate    time.Time
	CargoTypeName string
	Rate          decimal.Decimal
	DeclaredValue decimal.Decimal
	Amount        decimal.Decimal
}
