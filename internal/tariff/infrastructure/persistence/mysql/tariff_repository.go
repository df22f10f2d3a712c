package mysql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/cargotariff/internal/tariff/domain"
	"github.com/wyfcoding/cargotariff/pkg/db"
)

// TariffRepository 基于 gorm 的 domain.TariffRepository 实现。
type TariffRepository struct {
	db *db.DB
}

// NewTariffRepository 创建费率仓储。
func NewTariffRepository(d *db.DB) *TariffRepository {
	return &TariffRepository{db: d}
}

// AutoMigrate 建表与索引。
func AutoMigrate(d *db.DB) error {
	if err := d.AutoMigrate(&CargoTypeModel{}, &TariffModel{}, &AuditLogModel{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// --- tx helpers ---

func (r *TariffRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithTx(ctx, fn)
}

func (r *TariffRepository) getDB(ctx context.Context) *gorm.DB {
	return r.db.Conn(ctx)
}

// create 在事务内用 savepoint 隔离失败的插入，事务在冲突后仍可继续使用。
func (r *TariffRepository) create(ctx context.Context, value any) error {
	conn := r.getDB(ctx)
	if _, inTx := db.TxFromContext(ctx); !inTx {
		return translateError(conn.Omit(clause.Associations).Create(value).Error)
	}

	sp := "sp_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := conn.SavePoint(sp).Error; err != nil {
		return translateError(err)
	}
	if err := conn.Omit(clause.Associations).Create(value).Error; err != nil {
		if rbErr := conn.RollbackTo(sp).Error; rbErr != nil {
			return fmt.Errorf("%w: rollback to savepoint: %w", domain.ErrStorage, rbErr)
		}
		return translateError(err)
	}
	return nil
}

// --- CargoType ---

func (r *TariffRepository) FindCargoTypeByName(ctx context.Context, name string) (*domain.CargoType, error) {
	var m CargoTypeModel
	err := r.getDB(ctx).Where("name = ?", name).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err)
	}
	return toCargoType(&m), nil
}

func (r *TariffRepository) CreateCargoType(ctx context.Context, ct *domain.CargoType) error {
	return r.create(ctx, toCargoTypeModel(ct))
}

func (r *TariffRepository) GetCargoType(ctx context.Context, id uuid.UUID) (*domain.CargoType, error) {
	var m CargoTypeModel
	err := r.getDB(ctx).Where("uid = ?", id.String()).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err)
	}
	return toCargoType(&m), nil
}

func (r *TariffRepository) ListCargoTypes(ctx context.Context) ([]*domain.CargoType, error) {
	var models []CargoTypeModel
	if err := r.getDB(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, translateError(err)
	}
	out := make([]*domain.CargoType, 0, len(models))
	for i := range models {
		out = append(out, toCargoType(&models[i]))
	}
	return out, nil
}

// --- Tariff ---

func (r *TariffRepository) FindTariff(ctx context.Context, cargoTypeID uuid.UUID, date time.Time) (*domain.Tariff, error) {
	var m TariffModel
	err := r.getDB(ctx).
		Where("cargo_type_uid = ? AND tariff_date = ?", cargoTypeID.String(), datatypes.Date(domain.TruncateDate(date))).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err)
	}
	return toTariff(&m)
}

func (r *TariffRepository) CreateTariff(ctx context.Context, t *domain.Tariff) error {
	return r.create(ctx, toTariffModel(t))
}

func (r *TariffRepository) UpdateTariffRate(ctx context.Context, id uuid.UUID, rate decimal.Decimal) (*domain.Tariff, error) {
	var m TariffModel
	conn := r.getDB(ctx)
	err := conn.Where("uid = ?", id.String()).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTariffNotFound
	}
	if err != nil {
		return nil, translateError(err)
	}

	now := time.Now().UTC()
	err = conn.Model(&TariffModel{}).
		Where("uid = ?", m.UID).
		Updates(map[string]any{
			"rate":       rate.String(),
			"updated_at": now,
		}).Error
	if err != nil {
		return nil, translateError(err)
	}

	t, err := toTariff(&m)
	if err != nil {
		return nil, err
	}
	t.Rate = rate
	t.UpdatedAt = now
	return t, nil
}

func (r *TariffRepository) GetTariff(ctx context.Context, id uuid.UUID) (*domain.Tariff, error) {
	var m TariffModel
	err := r.getDB(ctx).Where("uid = ?", id.String()).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err)
	}
	return toTariff(&m)
}

func (r *TariffRepository) ListTariffs(ctx context.Context) ([]*domain.Tariff, error) {
	var models []TariffModel
	if err := r.getDB(ctx).Order("tariff_date ASC, created_at ASC, uid ASC").Find(&models).Error; err != nil {
		return nil, translateError(err)
	}
	out := make([]*domain.Tariff, 0, len(models))
	for i := range models {
		t, err := toTariff(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *TariffRepository) DeleteTariff(ctx context.Context, id uuid.UUID) error {
	res := r.getDB(ctx).Where("uid = ?", id.String()).Delete(&TariffModel{})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrTariffNotFound
	}
	return nil
}

func (r *TariffRepository) FindTariffByDateAndTypeName(ctx context.Context, date time.Time, name string) (*domain.Tariff, error) {
	var m TariffModel
	err := r.getDB(ctx).
		Joins("JOIN cargo_types ON cargo_types.uid = cargo_tariffs.cargo_type_uid").
		Where("cargo_tariffs.tariff_date = ? AND cargo_types.name = ?", datatypes.Date(domain.TruncateDate(date)), name).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err)
	}
	return toTariff(&m)
}

// translateError 唯一约束冲突映射为 ErrConflict，其余映射为 ErrStorage。
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsDuplicate(err):
		return fmt.Errorf("%w: %w", domain.ErrConflict, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
}

var _ domain.TariffRepository = (*TariffRepository)(nil)
