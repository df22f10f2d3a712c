package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditAction 变更动作。
type AuditAction string

const (
	AuditActionCreate AuditAction = "CREATE"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionDelete AuditAction = "DELETE"
)

// Valid 是否为已知动作。
func (a AuditAction) Valid() bool {
	switch a {
	case AuditActionCreate, AuditActionUpdate, AuditActionDelete:
		return true
	}
	return false
}

// TariffAuditEvent 单条费率变更的审计事件。
type TariffAuditEvent struct {
	UserID    string      `json:"user_id"`
	Action    AuditAction `json:"action"`
	Timestamp string      `json:"timestamp"`
	TariffID  string      `json:"tariff_id"`
}

// NewTariffAuditEvent 以当前 UTC 时间生成事件。
func NewTariffAuditEvent(userID string, action AuditAction, tariffID uuid.UUID) TariffAuditEvent {
	return TariffAuditEvent{
		UserID:    userID,
		Action:    action,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		TariffID:  tariffID.String(),
	}
}

// Validate 消费端校验。
func (e TariffAuditEvent) Validate() error {
	if !e.Action.Valid() {
		return fmt.Errorf("%w: unknown audit action %q", ErrValidation, e.Action)
	}
	if _, err := time.Parse(time.RFC3339, e.Timestamp); err != nil {
		return fmt.Errorf("%w: invalid audit timestamp %q", ErrValidation, e.Timestamp)
	}
	return nil
}
