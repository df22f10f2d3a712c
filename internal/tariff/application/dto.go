package application

import (
	"time"

	"github.com/wyfcoding/cargotariff/internal/tariff/domain"
)

// TariffDTO 对外的费率表示，字段名与历史接口一致。
type TariffDTO struct {
	UID            string    `json:"uid"`
	TariffDate     string    `json:"tariff_date"`
	Rate           float64   `json:"rate"`
	ToCargoTypeUID string    `json:"to_cargo_type_uid"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CargoTypeDTO 货物类型。
type CargoTypeDTO struct {
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuoteDTO 报价明细。
type QuoteDTO struct {
	TariffUID     string  `json:"tariff_uid"`
	TariffDate    string  `json:"tariff_date"`
	CargoTypeName string  `json:"cargo_type_name"`
	Rate          float64 `json:"rate"`
	TotalPrice    float64 `json:"total_price"`
	Result        float64 `json:"result"`
}

// AuditLogDTO 审计记录。
type AuditLogDTO struct {
	UID        string    `json:"uid"`
	TariffUID  string    `json:"tariff_uid"`
	UserUID    string    `json:"user_uid"`
	Action     string    `json:"action"`
	OccurredAt time.Time `json:"occurred_at"`
}

func toTariffDTO(t *domain.Tariff) *TariffDTO {
	if t == nil {
		return nil
	}
	return &TariffDTO{
		UID:            t.ID.String(),
		TariffDate:     domain.FormatDate(t.TariffDate),
		Rate:           t.Rate.InexactFloat64(),
		ToCargoTypeUID: t.CargoTypeID.String(),
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func toCargoTypeDTO(ct *domain.CargoType) *CargoTypeDTO {
	if ct == nil {
		return nil
	}
	return &CargoTypeDTO{
		UID:       ct.ID.String(),
		Name:      ct.Name,
		CreatedAt: ct.CreatedAt,
		UpdatedAt: ct.UpdatedAt,
	}
}

func toQuoteDTO(q *Quote) *QuoteDTO {
	return &QuoteDTO{
		TariffUID:     q.TariffID.String(),
		TariffDate:    domain.FormatDate(q.TariffDate),
		CargoTypeName: q.CargoTypeName,
		Rate:          q.Rate.InexactFloat64(),
		TotalPrice:    q.DeclaredValue.InexactFloat64(),
		Result:        q.Amount.InexactFloat64(),
	}
}

func toAuditLogDTO(l *domain.AuditLog) *AuditLogDTO {
	return &AuditLogDTO{
		UID:        l.ID.String(),
		TariffUID:  l.TariffID,
		UserUID:    l.UserID,
		Action:     string(l.Action),
		OccurredAt: l.OccurredAt,
	}
}
