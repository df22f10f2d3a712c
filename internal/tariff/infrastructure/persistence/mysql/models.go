package mysql

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/wyfcoding/cargotariff/internal/tariff/domain"
)

// caseSensitiveName 按字节比较的名称列，MySQL 下使用 utf8mb4_bin 排序规则。
type caseSensitiveName string

// GormDBDataType 各驱动的列类型。
func (caseSensitiveName) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "mysql" {
		return "varchar(255) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin"
	}
	return "varchar(255)"
}

// CargoTypeModel 货物类型表映射。
type CargoTypeModel struct {
	UID       string            `gorm:"column:uid;primaryKey;type:varchar(36)"`
	Name      caseSensitiveName `gorm:"column:name;not null;uniqueIndex:idx_cargo_types_name"`
	CreatedAt time.Time         `gorm:"column:created_at"`
	UpdatedAt time.Time         `gorm:"column:updated_at"`
}

func (CargoTypeModel) TableName() string { return "cargo_types" }

// TariffModel 费率表映射，(cargo_type_uid, tariff_date) 唯一。
type TariffModel struct {
	UID          string          `gorm:"column:uid;primaryKey;type:varchar(36)"`
	TariffDate   datatypes.Date  `gorm:"column:tariff_date;not null;uniqueIndex:idx_cargo_tariffs_type_date,priority:2"`
	Rate         string          `gorm:"column:rate;type:decimal(20,10);not null"`
	CargoTypeUID string          `gorm:"column:cargo_type_uid;type:varchar(36);not null;uniqueIndex:idx_cargo_tariffs_type_date,priority:1"`
	CargoType    *CargoTypeModel `gorm:"foreignKey:CargoTypeUID;references:UID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	CreatedAt    time.Time       `gorm:"column:created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at"`
}

func (TariffModel) TableName() string { return "cargo_tariffs" }

// AuditLogModel 审计日志表映射，消息位置唯一。
type AuditLogModel struct {
	UID          string    `gorm:"column:uid;primaryKey;type:varchar(36)"`
	TariffUID    string    `gorm:"column:tariff_uid;type:varchar(36);index"`
	UserUID      string    `gorm:"column:user_uid;type:varchar(64);index"`
	Action       string    `gorm:"column:action;type:varchar(16);not null"`
	OccurredAt   time.Time `gorm:"column:occurred_at;index"`
	MsgTopic     string    `gorm:"column:msg_topic;type:varchar(255);not null;uniqueIndex:idx_audit_logs_position,priority:1"`
	MsgPartition int       `gorm:"column:msg_partition;not null;uniqueIndex:idx_audit_logs_position,priority:2"`
	MsgOffset    int64     `gorm:"column:msg_offset;not null;uniqueIndex:idx_audit_logs_position,priority:3"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (AuditLogModel) TableName() string { return "tariff_audit_logs" }

// mapping helpers

func toCargoTypeModel(ct *domain.CargoType) *CargoTypeModel {
	if ct == nil {
		return nil
	}
	return &CargoTypeModel{
		UID:       ct.ID.String(),
		Name:      caseSensitiveName(ct.Name),
		CreatedAt: ct.CreatedAt,
		UpdatedAt: ct.UpdatedAt,
	}
}

func toCargoType(m *CargoTypeModel) *domain.CargoType {
	if m == nil {
		return nil
	}
	return &domain.CargoType{
		ID:        uuid.MustParse(m.UID),
		Name:      string(m.Name),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toTariffModel(t *domain.Tariff) *TariffModel {
	if t == nil {
		return nil
	}
	return &TariffModel{
		UID:          t.ID.String(),
		TariffDate:   datatypes.Date(domain.TruncateDate(t.TariffDate)),
		Rate:         t.Rate.String(),
		CargoTypeUID: t.CargoTypeID.String(),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// toTariff 行内容无法解析时返回 ErrStorage，不回退为零费率。
func toTariff(m *TariffModel) (*domain.Tariff, error) {
	if m == nil {
		return nil, nil
	}
	id, err := uuid.Parse(m.UID)
	if err != nil {
		return nil, fmt.Errorf("%w: tariff uid %q: %w", domain.ErrStorage, m.UID, err)
	}
	typeID, err := uuid.Parse(m.CargoTypeUID)
	if err != nil {
		return nil, fmt.Errorf("%w: tariff %s cargo type uid %q: %w", domain.ErrStorage, m.UID, m.CargoTypeUID, err)
	}
	rate, err := decimal.NewFromString(m.Rate)
	if err != nil {
		return nil, fmt.Errorf("%w: tariff %s rate %q: %w", domain.ErrStorage, m.UID, m.Rate, err)
	}
	return &domain.Tariff{
		ID:          id,
		TariffDate:  domain.TruncateDate(time.Time(m.TariffDate)),
		Rate:        rate,
		CargoTypeID: typeID,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

func toAuditLogModel(l *domain.AuditLog) *AuditLogModel {
	return &AuditLogModel{
		UID:          l.ID.String(),
		TariffUID:    l.TariffID,
		UserUID:      l.UserID,
		Action:       string(l.Action),
		OccurredAt:   l.OccurredAt,
		MsgTopic:     l.Topic,
		MsgPartition: l.Partition,
		MsgOffset:    l.Offset,
		CreatedAt:    l.CreatedAt,
	}
}

func toAuditLog(m *AuditLogModel) *domain.AuditLog {
	return &domain.AuditLog{
		ID:         uuid.MustParse(m.UID),
		TariffID:   m.TariffUID,
		UserID:     m.UserUID,
		Action:     domain.AuditAction(m.Action),
		OccurredAt: m.OccurredAt,
		Topic:      m.MsgTopic,
		Partition:  m.MsgPartition,
		Offset:     m.MsgOffset,
		CreatedAt:  m.CreatedAt,
	}
}
