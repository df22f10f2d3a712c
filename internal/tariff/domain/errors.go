package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrValidation 输入不合法，整个请求在写入前被拒绝。
	ErrValidation = errors.New("validation failed")
	// ErrTariffNotFound 费率不存在。
	ErrTariffNotFound = errors.New("cargo tariff not found")
	// ErrCargoTypeNotFound 货物类型不存在。
	ErrCargoTypeNotFound = errors.New("cargo type not found")
	// ErrConflict 唯一约束冲突。
	ErrConflict = errors.New("conflict")
	// ErrStorage 存储层故障。
	ErrStorage = errors.New("storage failure")
	// ErrNotification 审计通知发送失败，存储变更已生效。
	ErrNotification = errors.New("notification failed")
)

// 对账失败类别。
const (
	FailureValidation = "validation"
	FailureConflict   = "conflict"
	FailureStorage    = "storage"
	FailureCancelled  = "cancelled"
)

// ReconcileError 费率表对账失败，携带出错条目位置。Index 为 -1 表示与具体条目无关。
type ReconcileError struct {
	Date      string
	CargoType string
	Index     int
	Err       error
}

func (e *ReconcileError) Error() string {
	switch {
	case e.Date == "":
		return fmt.Sprintf("reconcile %s failure: %v", e.Kind(), e.Err)
	case e.Index < 0:
		return fmt.Sprintf("reconcile %s failure at date %q: %v", e.Kind(), e.Date, e.Err)
	default:
		return fmt.Sprintf("reconcile %s failure at date %q entry %d (%q): %v", e.Kind(), e.Date, e.Index, e.CargoType, e.Err)
	}
}

func (e *ReconcileError) Unwrap() error { return e.Err }

// Kind 失败类别。
func (e *ReconcileError) Kind() string {
	switch {
	case errors.Is(e.Err, ErrValidation):
		return FailureValidation
	case errors.Is(e.Err, context.Canceled), errors.Is(e.Err, context.DeadlineExceeded):
		return FailureCancelled
	case errors.Is(e.Err, ErrConflict):
		return FailureConflict
	default:
		return FailureStorage
	}
}

// NotificationError 变更已提交但审计事件发送失败。
type NotificationError struct {
	Action   AuditAction
	TariffID string
	Err      error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("Error sending message: %v", e.Err)
}

// Unwrap 同时匹配 ErrNotification 与底层原因。
func (e *NotificationError) Unwrap() []error {
	return []error{ErrNotification, e.Err}
}
