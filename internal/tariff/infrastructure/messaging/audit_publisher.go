package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wyfcoding/cargotariff/internal/tariff/domain"
	"github.com/wyfcoding/cargotariff/pkg/config"
	"github.com/wyfcoding/cargotariff/pkg/logger"
	"github.com/wyfcoding/cargotariff/pkg/metrics"
)

// Sender 消息发送接口，mq.KafkaProducer 满足该接口。
type Sender interface {
	SendMessage(ctx context.Context, topic, key string, value any) error
}

// KafkaAuditPublisher 通过 Kafka 发布审计事件，连续失败后熔断。
type KafkaAuditPublisher struct {
	sender  Sender
	topic   string
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
}

// NewKafkaAuditPublisher 创建 Kafka 审计发布者。
func NewKafkaAuditPublisher(sender Sender, cfg config.KafkaConfig, m *metrics.Metrics) *KafkaAuditPublisher {
	failures := cfg.BreakerFailures
	if failures <= 0 {
		failures = 5
	}
	timeout := time.Duration(cfg.BreakerTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "tariff-audit-publisher",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "audit publisher breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &KafkaAuditPublisher{
		sender:  sender,
		topic:   cfg.AuditTopic,
		breaker: gobreaker.NewCircuitBreaker(settings),
		metrics: m,
	}
}

// Publish 以 tariff_id 作为分区键发送。
func (p *KafkaAuditPublisher) Publish(ctx context.Context, event domain.TariffAuditEvent) error {
	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.sender.SendMessage(ctx, p.topic, event.TariffID, event)
	})
	switch {
	case err == nil:
		p.metrics.RecordAuditPublish("sent")
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		p.metrics.RecordAuditPublish("breaker_open")
	default:
		p.metrics.RecordAuditPublish("failed")
	}
	return fmt.Errorf("publish audit event to %s: %w", p.topic, err)
}

// LogAuditPublisher 未配置 Kafka 时只写日志。
type LogAuditPublisher struct {
	metrics *metrics.Metrics
}

// NewLogAuditPublisher 创建日志审计发布者。
func NewLogAuditPublisher(m *metrics.Metrics) *LogAuditPublisher {
	return &LogAuditPublisher{metrics: m}
}

// Publish 写一条 info 日志。
func (p *LogAuditPublisher) Publish(ctx context.Context, event domain.TariffAuditEvent) error {
	logger.Info(ctx, "tariff audit event",
		"user_id", event.UserID,
		"action", string(event.Action),
		"timestamp", event.Timestamp,
		"tariff_id", event.TariffID,
	)
	p.metrics.RecordAuditPublish("logged")
	return nil
}

var (
	_ domain.AuditPublisher = (*KafkaAuditPublisher)(nil)
	_ domain.AuditPublisher = (*LogAuditPublisher)(nil)
)
