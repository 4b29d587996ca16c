package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Refund statuses
const (
	RefundPending = "PENDING"
	RefundSuccess = "SUCCESS"
	RefundFailed  = "FAILED"
)

// Refund records one (possibly partial) reversal against a SUCCESS
// transaction. The sum of SUCCESS refunds never exceeds the transaction's
// net amount.
type Refund struct {
	ID            uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionID uint            `gorm:"column:transaction_id;not null;index" json:"transaction_id"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	Status        string          `gorm:"column:status;size:20;not null;default:PENDING" json:"status"`
	Reason        string          `gorm:"column:reason;size:500" json:"reason"`
	InitiatedBy   string          `gorm:"column:initiated_by;size:50;not null" json:"initiated_by"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Refund) TableName() string {
	return "refunds"
}

func (r *Refund) MarkSuccess() error {
	if r.Status != RefundPending {
		return &StateTransitionError{Entity: "refund", From: r.Status, To: RefundSuccess}
	}
	r.Status = RefundSuccess
	return nil
}

func (r *Refund) MarkFailed() error {
	if r.Status != RefundPending {
		return &StateTransitionError{Entity: "refund", From: r.Status, To: RefundFailed}
	}
	r.Status = RefundFailed
	return nil
}
