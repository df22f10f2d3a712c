package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/wyfcoding/cargotariff/internal/tariff/domain"
	"github.com/wyfcoding/cargotariff/pkg/logger"
)

// TariffCommandService 单条费率的写操作。
// 存储变更提交后才发布审计事件；发布失败不回滚已提交的变更。
type TariffCommandService struct {
	repo      domain.TariffRepository
	publisher domain.AuditPublisher
	cache     domain.RateCache
}

// NewTariffCommandService 创建命令服务，cache 可为 nil。
func NewTariffCommandService(repo domain.TariffRepository, publisher domain.AuditPublisher, cache domain.RateCache) *TariffCommandService {
	return &TariffCommandService{repo: repo, publisher: publisher, cache: cache}
}

// UpdateRate 只修改费率。返回 *domain.NotificationError 时结果已提交。
func (c *TariffCommandService) UpdateRate(ctx context.Context, cmd UpdateRateCommand) (*domain.Tariff, error) {
	if err := domain.ValidateRate(cmd.Rate); err != nil {
		return nil, err
	}

	var updated *domain.Tariff
	var key domain.RateKey
	err := c.repo.WithTx(ctx, func(txCtx context.Context) error {
		current, err := c.repo.GetTariff(txCtx, cmd.TariffID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrTariffNotFound
		}
		if key, err = c.rateKey(txCtx, current); err != nil {
			return err
		}
		updated, err = c.repo.UpdateTariffRate(txCtx, current.ID, cmd.Rate)
		return err
	})
	if err != nil {
		return nil, err
	}

	invalidateRates(ctx, c.cache, key)
	logger.Info(ctx, "tariff rate updated", "tariff_id", updated.ID.String(), "rate", updated.Rate.String(), "user_id", cmd.UserID)
	return updated, c.notify(ctx, cmd.UserID, domain.AuditActionUpdate, updated.ID)
}

// Delete 删除费率，不级联删除货物类型。
func (c *TariffCommandService) Delete(ctx context.Context, cmd DeleteTariffCommand) error {
	var key domain.RateKey
	err := c.repo.WithTx(ctx, func(txCtx context.Context) error {
		current, err := c.repo.GetTariff(txCtx, cmd.TariffID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrTariffNotFound
		}
		if key, err = c.rateKey(txCtx, current); err != nil {
			return err
		}
		return c.repo.DeleteTariff(txCtx, current.ID)
	})
	if err != nil {
		return err
	}

	invalidateRates(ctx, c.cache, key)
	logger.Info(ctx, "tariff deleted", "tariff_id", cmd.TariffID.String(), "user_id", cmd.UserID)
	return c.notify(ctx, cmd.UserID, domain.AuditActionDelete, cmd.TariffID)
}

// CreateTariff 直接创建费率，(日期, 类型) 已存在返回 domain.ErrConflict。
func (c *TariffCommandService) CreateTariff(ctx context.Context, cmd CreateTariffCommand) (*domain.Tariff, error) {
	var created *domain.Tariff
	err := c.repo.WithTx(ctx, func(txCtx context.Context) error {
		ct, err := c.repo.FindCargoTypeByName(txCtx, cmd.CargoTypeName)
		if err != nil {
			return err
		}
		if ct == nil {
			return fmt.Errorf("%w: %q", domain.ErrCargoTypeNotFound, cmd.CargoTypeName)
		}
		t, err := domain.NewTariff(ct.ID, cmd.Date, cmd.Rate)
		if err != nil {
			return err
		}
		if err := c.repo.CreateTariff(txCtx, t); err != nil {
			return err
		}
		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidateRates(ctx, c.cache, domain.RateKey{Date: created.TariffDate, CargoType: cmd.CargoTypeName})
	logger.Info(ctx, "tariff created", "tariff_id", created.ID.String(), "cargo_type", cmd.CargoTypeName, "user_id", cmd.UserID)
	return created, c.notify(ctx, cmd.UserID, domain.AuditActionCreate, created.ID)
}

// CreateCargoType 显式创建货物类型，重名返回 domain.ErrConflict。
func (c *TariffCommandService) CreateCargoType(ctx context.Context, name string) (*domain.CargoType, error) {
	ct, err := domain.NewCargoType(name)
	if err != nil {
		return nil, err
	}
	if err := c.repo.CreateCargoType(ctx, ct); err != nil {
		return nil, err
	}
	return ct, nil
}

func (c *TariffCommandService) rateKey(ctx context.Context, t *domain.Tariff) (domain.RateKey, error) {
	ct, err := c.repo.GetCargoType(ctx, t.CargoTypeID)
	if err != nil {
		return domain.RateKey{}, err
	}
	if ct == nil {
		return domain.RateKey{}, fmt.Errorf("%w: %s", domain.ErrCargoTypeNotFound, t.CargoTypeID)
	}
	return domain.RateKey{Date: t.TariffDate, CargoType: ct.Name}, nil
}

func (c *TariffCommandService) notify(ctx context.Context, userID string, action domain.AuditAction, tariffID uuid.UUID) error {
	if c.publisher == nil {
		return nil
	}
	if err := c.publisher.Publish(ctx, domain.NewTariffAuditEvent(userID, action, tariffID)); err != nil {
		logger.Error(ctx, "audit event publish failed", "action", string(action), "tariff_id", tariffID.String(), "error", err)
		return &domain.NotificationError{Action: action, TariffID: tariffID.String(), Err: err}
	}
	return nil
}
