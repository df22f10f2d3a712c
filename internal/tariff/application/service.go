package application

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/wyfcoding/cargotariff/internal/tariff/domain"
	"github.com/wyfcoding/cargotariff/pkg/metrics"
)

// TariffService 费率服务门面，整合对账、定价、命令与查询服务。
type TariffService struct {
	reconciler *ReconciliationService
	pricing    *PricingService
	commands   *TariffCommandService
	queries    *TariffQueryService
}

// NewTariffService 创建费率服务门面。
func NewTariffService(
	repo domain.TariffRepository,
	audit domain.AuditLogRepository,
	publisher domain.AuditPublisher,
	cache domain.RateCache,
	m *metrics.Metrics,
) *TariffService {
	return &TariffService{
		reconciler: NewReconciliationService(repo, cache, m),
		pricing:    NewPricingService(repo, cache, m),
		commands:   NewTariffCommandService(repo, publisher, cache),
		queries:    NewTariffQueryService(repo, audit),
	}
}

// LoadRateTable 解析并对账一张费率表。
func (s *TariffService) LoadRateTable(ctx context.Context, r io.Reader) (*domain.ChangeSummary, error) {
	table, err := domain.ParseRateTable(r)
	if err != nil {
		return nil, err
	}
	return s.reconciler.Reconcile(ctx, table)
}

// Calculate 计算保险费。
func (s *TariffService) Calculate(ctx context.Context, q CalculateQuery) (*QuoteDTO, error) {
	quote, err := s.pricing.Calculate(ctx, q)
	if err != nil {
		return nil, err
	}
	return toQuoteDTO(quote), nil
}

// UpdateRate 修改费率；返回 *domain.NotificationError 时 DTO 仍然有效。
func (s *TariffService) UpdateRate(ctx context.Context, cmd UpdateRateCommand) (*TariffDTO, error) {
	t, err := s.commands.UpdateRate(ctx, cmd)
	return toTariffDTO(t), err
}

// DeleteTariff 删除费率。
func (s *TariffService) DeleteTariff(ctx context.Context, cmd DeleteTariffCommand) error {
	return s.commands.Delete(ctx, cmd)
}

// CreateTariff 直接创建费率；返回 *domain.NotificationError 时 DTO 仍然有效。
func (s *TariffService) CreateTariff(ctx context.Context, cmd CreateTariffCommand) (*TariffDTO, error) {
	t, err := s.commands.CreateTariff(ctx, cmd)
	return toTariffDTO(t), err
}

// CreateCargoType 创建货物类型。
func (s *TariffService) CreateCargoType(ctx context.Context, name string) (*CargoTypeDTO, error) {
	ct, err := s.commands.CreateCargoType(ctx, name)
	if err != nil {
		return nil, err
	}
	return toCargoTypeDTO(ct), nil
}

// GetTariff 获取单条费率。
func (s *TariffService) GetTariff(ctx context.Context, id uuid.UUID) (*TariffDTO, error) {
	return s.queries.GetTariff(ctx, id)
}

// ListTariffs 获取全部费率。
func (s *TariffService) ListTariffs(ctx context.Context) ([]*TariffDTO, error) {
	return s.queries.ListTariffs(ctx)
}

// ListCargoTypes 获取全部货物类型。
func (s *TariffService) ListCargoTypes(ctx context.Context) ([]*CargoTypeDTO, error) {
	return s.queries.ListCargoTypes(ctx)
}

// ListAuditLogs 最近的审计记录。
func (s *TariffService) ListAuditLogs(ctx context.Context, limit int) ([]*AuditLogDTO, error) {
	return s.queries.ListAuditLogs(ctx, limit)
}
