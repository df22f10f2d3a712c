package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/cargotariff/internal/tariff/domain"
	"github.com/wyfcoding/cargotariff/pkg/logger"
	"github.com/wyfcoding/cargotariff/pkg/metrics"
)

// PricingService 解析适用费率并计算保险费，只读。
type PricingService struct {
	repo    domain.TariffRepository
	cache   domain.RateCache
	metrics *metrics.Metrics
}

// NewPricingService 创建定价服务，cache 可为 nil。
func NewPricingService(repo domain.TariffRepository, cache domain.RateCache, m *metrics.Metrics) *PricingService {
	return &PricingService{repo: repo, cache: cache, metrics: m}
}

// ResolveRate 按精确日期与名称查找费率，没有匹配时 found 为 false。
func (s *PricingService) ResolveRate(ctx context.Context, date time.Time, cargoTypeName string) (*domain.Tariff, bool, error) {
	key := domain.RateKey{Date: domain.TruncateDate(date), CargoType: cargoTypeName}

	if s.cache != nil {
		t, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.metrics.RecordRateCache("error")
			logger.Warn(ctx, "rate cache lookup failed", "error", err)
		case ok:
			s.metrics.RecordRateCache("hit")
			return t, true, nil
		default:
			s.metrics.RecordRateCache("miss")
		}
	}

	t, err := s.repo.FindTariffByDateAndTypeName(ctx, key.Date, cargoTypeName)
	if err != nil {
		return nil, false, err
	}
	if t == nil {
		return nil, false, nil
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, t); err != nil {
			logger.Warn(ctx, "rate cache fill failed", "error", err)
		}
	}
	return t, true, nil
}

// Calculate 计算保险费，没有匹配费率时返回 domain.ErrTariffNotFound。
func (s *PricingService) Calculate(ctx context.Context, q CalculateQuery) (*Quote, error) {
	if q.DeclaredValue.IsNegative() {
		s.metrics.RecordQuote("invalid")
		_, err := domain.Price(decimal.Zero, q.DeclaredValue)
		return nil, err
	}

	t, found, err := s.ResolveRate(ctx, q.TariffDate, q.CargoTypeName)
	if err != nil {
		s.metrics.RecordQuote("error")
		return nil, err
	}
	if !found {
		s.metrics.RecordQuote("not_found")
		return nil, domain.ErrTariffNotFound
	}

	amount, err := domain.Price(t.Rate, q.DeclaredValue)
	if err != nil {
		s.metrics.RecordQuote("invalid")
		return nil, err
	}

	s.metrics.RecordQuote("success")
	return &Quote{
		TariffID:      t.ID,
		TariffDate:    t.TariffDate,
		CargoTypeName: q.CargoTypeName,
		Rate:          t.Rate,
		DeclaredValue: q.DeclaredValue,
		Amount:        amount,
	}, nil
}
