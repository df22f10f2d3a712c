package mysql

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/wyfcoding/cargotariff/internal/tariff/domain"
	"github.com/wyfcoding/cargotariff/pkg/db"
)

// AuditLogRepository 审计日志仓储。
type AuditLogRepository struct {
	db *db.DB
}

// NewAuditLogRepository 创建审计日志仓储。
func NewAuditLogRepository(d *db.DB) *AuditLogRepository {
	return &AuditLogRepository{db: d}
}

// Save 按消息位置去重，重复投递不报错。
func (r *AuditLogRepository) Save(ctx context.Context, l *domain.AuditLog) error {
	err := r.db.Conn(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "msg_topic"}, {Name: "msg_partition"}, {Name: "msg_offset"}},
			DoNothing: true,
		}).
		Create(toAuditLogModel(l)).Error
	return translateError(err)
}

// List 按发生时间倒序。
func (r *AuditLogRepository) List(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []AuditLogModel
	if err := r.db.Conn(ctx).Order("occurred_at DESC, msg_offset DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, translateError(err)
	}
	out := make([]*domain.AuditLog, 0, len(models))
	for i := range models {
		out = append(out, toAuditLog(&models[i]))
	}
	return out, nil
}

var _ domain.AuditLogRepository = (*AuditLogRepository)(nil)
