package application

import (
	"context"

	"github.com/wyfcoding/cargotariff/internal/tariff/domain"
	"github.com/wyfcoding/cargotariff/pkg/logger"
	"github.com/wyfcoding/cargotariff/pkg/metrics"
)

// AuditProjectionService 将审计事件落库，供审计消费者调用。
type AuditProjectionService struct {
	repo    domain.AuditLogRepository
	metrics *metrics.Metrics
}

// NewAuditProjectionService 创建审计投影服务。
func NewAuditProjectionService(repo domain.AuditLogRepository, m *metrics.Metrics) *AuditProjectionService {
	return &AuditProjectionService{repo: repo, metrics: m}
}

// Record 按消息位置幂等写入，事件不合法时返回 domain.ErrValidation。
func (s *AuditProjectionService) Record(ctx context.Context, event domain.TariffAuditEvent, topic string, partition int, offset int64) error {
	l, err := domain.NewAuditLog(event, topic, partition, offset)
	if err != nil {
		s.metrics.RecordAuditConsume("invalid")
		return err
	}
	if err := s.repo.Save(ctx, l); err != nil {
		s.metrics.RecordAuditConsume("failed")
		return err
	}
	s.metrics.RecordAuditConsume("stored")
	logger.Debug(ctx, "audit event stored", "tariff_id", event.TariffID, "action", string(event.Action), "offset", offset)
	return nil
}
