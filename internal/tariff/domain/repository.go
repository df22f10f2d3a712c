package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TariffRepository 货物类型与费率的持久化契约。
// 查询类方法在记录不存在时返回 nil, nil。
type TariffRepository interface {
	// WithTx 在事务中执行 fn；fn 内使用 txCtx 的调用共享同一事务。
	WithTx(ctx context.Context, fn func(txCtx context.Context) error) error

	FindCargoTypeByName(ctx context.Context, name string) (*CargoType, error)
	// CreateCargoType 名称重复返回 ErrConflict。
	CreateCargoType(ctx context.Context, ct *CargoType) error
	GetCargoType(ctx context.Context, id uuid.UUID) (*CargoType, error)
	ListCargoTypes(ctx context.Context) ([]*CargoType, error)

	FindTariff(ctx context.Context, cargoTypeID uuid.UUID, date time.Time) (*Tariff, error)
	// CreateTariff (类型, 日期) 重复返回 ErrConflict。
	CreateTariff(ctx context.Context, t *Tariff) error
	// UpdateTariffRate id 不存在返回 ErrTariffNotFound。
	UpdateTariffRate(ctx context.Context, id uuid.UUID, rate decimal.Decimal) (*Tariff, error)
	GetTariff(ctx context.Context, id uuid.UUID) (*Tariff, error)
	ListTariffs(ctx context.Context) ([]*Tariff, error)
	// DeleteTariff id 不存在返回 ErrTariffNotFound。
	DeleteTariff(ctx context.Context, id uuid.UUID) error
	FindTariffByDateAndTypeName(ctx context.Context, date time.Time, name string) (*Tariff, error)
}

// AuditLogRepository 审计日志仓储。
type AuditLogRepository interface {
	// Save 同一消息位置重复写入视为成功。
	Save(ctx context.Context, log *AuditLog) error
	List(ctx context.Context, limit int) ([]*AuditLog, error)
}

// RateKey 费率缓存键。
type RateKey struct {
	Date      time.Time
	CargoType string
}

// RateCache 费率读缓存。
type RateCache interface {
	Get(ctx context.Context, key RateKey) (*Tariff, bool, error)
	Set(ctx context.Context, key RateKey, t *Tariff) error
	Invalidate(ctx context.Context, keys ...RateKey) error
}
