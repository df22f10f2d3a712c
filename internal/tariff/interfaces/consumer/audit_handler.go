package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/cargotariff/internal/tariff/application"
	"github.com/wyfcoding/cargotariff/internal/tariff/domain"
	"github.com/wyfcoding/cargotariff/pkg/logger"
	"github.com/wyfcoding/cargotariff/pkg/mq"
	"github.com/wyfcoding/cargotariff/pkg/utils"
)

// AuditHandler 消费审计主题并写入审计日志。
type AuditHandler struct {
	projection *application.AuditProjectionService
	maxRetries int
}

// NewAuditHandler maxRetries 为存储失败时的重试次数。
func NewAuditHandler(projection *application.AuditProjectionService, maxRetries int) *AuditHandler {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &AuditHandler{projection: projection, maxRetries: maxRetries}
}

// Handle 解码失败或事件不合法直接返回错误交给死信队列，存储失败先按退避重试。
func (h *AuditHandler) Handle(ctx context.Context, msg *mq.Message) error {
	var event domain.TariffAuditEvent
	if err := msg.UnmarshalPayload(&event); err != nil {
		return fmt.Errorf("%w: decode audit event at offset %d: %w", domain.ErrValidation, msg.Offset, err)
	}

	err := utils.RetryWithBackoff(ctx, h.maxRetries, 100*time.Millisecond, 2*time.Second, func(ctx context.Context) error {
		err := h.projection.Record(ctx, event, msg.Topic, msg.Partition, msg.Offset)
		if errors.Is(err, domain.ErrValidation) {
			return utils.Permanent(err)
		}
		return err
	})
	if err != nil && !errors.Is(err, domain.ErrValidation) {
		logger.Error(ctx, "audit event projection failed", "offset", msg.Offset, "error", err)
	}
	return err
}
