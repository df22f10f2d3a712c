package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/cargotariff/internal/tariff/domain"
	"github.com/wyfcoding/cargotariff/pkg/logger"
	"github.com/wyfcoding/cargotariff/pkg/metrics"
)

// ReconciliationService 将批量费率表合并进存储。
// 整张表在一个事务内写入，任何失败都不留下部分结果。
type ReconciliationService struct {
	repo    domain.TariffRepository
	cache   domain.RateCache
	metrics *metrics.Metrics
}

// NewReconciliationService 创建对账服务，cache 可为 nil。
func NewReconciliationService(repo domain.TariffRepository, cache domain.RateCache, m *metrics.Metrics) *ReconciliationService {
	return &ReconciliationService{repo: repo, cache: cache, metrics: m}
}

// EnsureCargoType 按名称查找货物类型，不存在则创建。
// 创建时遇到并发写入的唯一约束冲突，重新读取并复用对方的记录。
func (s *ReconciliationService) EnsureCargoType(ctx context.Context, name string) (*domain.CargoType, bool, error) {
	existing, err := s.repo.FindCargoTypeByName(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	ct, err := domain.NewCargoType(name)
	if err != nil {
		return nil, false, err
	}
	err = s.repo.CreateCargoType(ctx, ct)
	if err == nil {
		return ct, true, nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return nil, false, err
	}

	existing, ferr := s.repo.FindCargoTypeByName(ctx, name)
	if ferr != nil {
		return nil, false, ferr
	}
	if existing == nil {
		return nil, false, err
	}
	logger.Debug(ctx, "cargo type created concurrently, reusing", "name", name)
	return existing, false, nil
}

// UpsertTariff 写入 (类型, 日期) 的费率，已存在则覆盖 rate。
// 创建冲突时回退为更新。
func (s *ReconciliationService) UpsertTariff(ctx context.Context, cargoTypeID uuid.UUID, date time.Time, rate decimal.Decimal) (*domain.Tariff, bool, error) {
	existing, err := s.repo.FindTariff(ctx, cargoTypeID, date)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		updated, err := s.repo.UpdateTariffRate(ctx, existing.ID, rate)
		return updated, false, err
	}

	t, err := domain.NewTariff(cargoTypeID, date, rate)
	if err != nil {
		return nil, false, err
	}
	err = s.repo.CreateTariff(ctx, t)
	if err == nil {
		return t, true, nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return nil, false, err
	}

	existing, ferr := s.repo.FindTariff(ctx, cargoTypeID, date)
	if ferr != nil {
		return nil, false, ferr
	}
	if existing == nil {
		return nil, false, err
	}
	updated, err := s.repo.UpdateTariffRate(ctx, existing.ID, rate)
	return updated, false, err
}

// Reconcile 校验并合并整张费率表。
// 失败时返回 *domain.ReconcileError，存储保持调用前的状态。
func (s *ReconciliationService) Reconcile(ctx context.Context, table domain.RateTable) (*domain.ChangeSummary, error) {
	start := time.Now()

	groups, err := table.Validate()
	if err != nil {
		s.fail(ctx, start, err)
		return nil, err
	}

	var summary domain.ChangeSummary
	var touched []domain.RateKey

	err = s.repo.WithTx(ctx, func(txCtx context.Context) (txErr error) {
		var cur *domain.ReconcileError
		defer func() {
			if r := recover(); r != nil {
				if cur == nil {
					cur = &domain.ReconcileError{Index: -1}
				}
				cur.Err = fmt.Errorf("%w: panic: %v", domain.ErrStorage, r)
				txErr = cur
			}
		}()

		for _, g := range groups {
			for i, e := range g.Entries {
				cur = &domain.ReconcileError{Date: g.Raw, CargoType: e.CargoType, Index: i}
				if err := txCtx.Err(); err != nil {
					cur.Err = err
					return cur
				}

				ct, created, err := s.EnsureCargoType(txCtx, e.CargoType)
				if err != nil {
					cur.Err = err
					return cur
				}
				if created {
					summary.CreatedTypes++
				} else {
					summary.MatchedTypes++
				}

				_, created, err = s.UpsertTariff(txCtx, ct.ID, g.Date, e.Rate)
				if err != nil {
					cur.Err = err
					return cur
				}
				if created {
					summary.CreatedTariffs++
				} else {
					summary.UpdatedTariffs++
				}

				touched = append(touched, domain.RateKey{Date: g.Date, CargoType: e.CargoType})
			}
		}
		cur = nil
		return nil
	})
	if err != nil {
		var rerr *domain.ReconcileError
		if !errors.As(err, &rerr) {
			rerr = &domain.ReconcileError{Index: -1, Err: fmt.Errorf("%w: transaction: %w", domain.ErrStorage, err)}
		}
		s.fail(ctx, start, rerr)
		return nil, rerr
	}

	invalidateRates(ctx, s.cache, touched...)
	s.metrics.RecordReconcile("success", time.Since(start).Seconds(), summary.CreatedTypes, summary.CreatedTariffs, summary.UpdatedTariffs)
	logger.Info(ctx, "rate table reconciled",
		"entries", table.Len(),
		"created_types", summary.CreatedTypes,
		"matched_types", summary.MatchedTypes,
		"created_tariffs", summary.CreatedTariffs,
		"updated_tariffs", summary.UpdatedTariffs,
	)
	return &summary, nil
}

func (s *ReconciliationService) fail(ctx context.Context, start time.Time, err error) {
	kind := domain.FailureStorage
	var rerr *domain.ReconcileError
	if errors.As(err, &rerr) {
		kind = rerr.Kind()
	}
	s.metrics.RecordReconcile(kind, time.Since(start).Seconds(), 0, 0, 0)
	logger.Warn(ctx, "rate table reconciliation failed", "kind", kind, "error", err)
}

// invalidateRates 提交后清理缓存，失败只记录日志，缓存最终随 TTL 过期。
func invalidateRates(ctx context.Context, cache domain.RateCache, keys ...domain.RateKey) {
	if cache == nil || len(keys) == 0 {
		return
	}
	if err := cache.Invalidate(ctx, keys...); err != nil {
		logger.Warn(ctx, "rate cache invalidation failed", "keys", len(keys), "error", err)
	}
}
