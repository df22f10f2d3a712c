package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/wyfcoding/cargotariff/internal/tariff/domain"
)

// TariffQueryService 费率只读查询。
type TariffQueryService struct {
	repo  domain.TariffRepository
	audit domain.AuditLogRepository
}

// NewTariffQueryService 创建查询服务，audit 可为 nil。
func NewTariffQueryService(repo domain.TariffRepository, audit domain.AuditLogRepository) *TariffQueryService {
	return &TariffQueryService{repo: repo, audit: audit}
}

// GetTariff 不存在返回 domain.ErrTariffNotFound。
func (q *TariffQueryService) GetTariff(ctx context.Context, id uuid.UUID) (*TariffDTO, error) {
	t, err := q.repo.GetTariff(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, domain.ErrTariffNotFound
	}
	return toTariffDTO(t), nil
}

func (q *TariffQueryService) ListTariffs(ctx context.Context) ([]*TariffDTO, error) {
	tariffs, err := q.repo.ListTariffs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*TariffDTO, 0, len(tariffs))
	for _, t := range tariffs {
		out = append(out, toTariffDTO(t))
	}
	return out, nil
}

func (q *TariffQueryService) ListCargoTypes(ctx context.Context) ([]*CargoTypeDTO, error) {
	types, err := q.repo.ListCargoTypes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*CargoTypeDTO, 0, len(types))
	for _, ct := range types {
		out = append(out, toCargoTypeDTO(ct))
	}
	return out, nil
}

// ListAuditLogs 最近的审计记录。
func (q *TariffQueryService) ListAuditLogs(ctx context.Context, limit int) ([]*AuditLogDTO, error) {
	if q.audit == nil {
		return []*AuditLogDTO{}, nil
	}
	logs, err := q.audit.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*AuditLogDTO, 0, len(logs))
	for _, l := range logs {
		out = append(out, toAuditLogDTO(l))
	}
	return out, nil
}
