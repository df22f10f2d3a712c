package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditLog 持久化的审计记录，由审计消费者写入。
type AuditLog struct {
	ID         uuid.UUID
	TariffID   string
	UserID     string
	Action     AuditAction
	OccurredAt time.Time
	// 消息来源位置，用于去重
	Topic     string
	Partition int
	Offset    int64
	CreatedAt time.Time
}

// NewAuditLog 从事件构造审计记录。
func NewAuditLog(e TariffAuditEvent, topic string, partition int, offset int64) (*AuditLog, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	occurred, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid audit timestamp %q", ErrValidation, e.Timestamp)
	}
	return &AuditLog{
		ID:         uuid.New(),
		TariffID:   e.TariffID,
		UserID:     e.UserID,
		Action:     e.Action,
		OccurredAt: occurred.UTC(),
		Topic:      topic,
		Partition:  partition,
		Offset:     offset,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
