package domain

import "context"

// AuditPublisher 审计事件发布者接口，在事务提交后调用。
type AuditPublisher interface {
	Publish(ctx context.Context, event TariffAuditEvent) error
}
