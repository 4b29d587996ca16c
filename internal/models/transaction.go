package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction statuses
const (
	TxStatusPending   = "PENDING"
	TxStatusSuccess   = "SUCCESS"
	TxStatusFailed    = "FAILED"
	TxStatusReversed  = "REVERSED"
	TxStatusRefunded  = "REFUNDED"
	TxStatusCancelled = "CANCELLED"
)

// Payment types
const (
	PaymentCollection = "COLLECTION"
	PaymentPayout     = "PAYOUT"
	PaymentRefund     = "REFUND"
	PaymentCommission = "COMMISSION"
	PaymentFee        = "FEE"
	PaymentTax        = "TAX"
	PaymentAdjustment = "ADJUSTMENT"
)

type Transaction struct {
	ID              uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	ReferenceId     string          `gorm:"column:reference_id;size:50;not null;uniqueIndex" json:"reference_id"`
	IdempotencyKey  string          `gorm:"column:idempotency_key;size:191;not null;uniqueIndex" json:"idempotency_key"`
	UserId          int             `gorm:"column:user_id;not null;index" json:"user_id"`
	WalletID        uint            `gorm:"column:wallet_id;not null;index" json:"wallet_id"`
	PaymentType     string          `gorm:"column:payment_type;size:20;not null" json:"payment_type"`
	Amount          decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	NetAmount       decimal.Decimal `gorm:"column:net_amount;type:decimal(20,2);not null" json:"net_amount"`
	TotalCommission decimal.Decimal `gorm:"column:total_commission;type:decimal(20,2);default:0.00" json:"total_commission"`
	RootCommission  decimal.Decimal `gorm:"column:root_commission;type:decimal(20,2);default:0.00" json:"root_commission"`
	ProviderCharge  decimal.Decimal `gorm:"column:provider_charge;type:decimal(20,2);default:0.00" json:"provider_charge"`
	TaxAmount       decimal.Decimal `gorm:"column:tax_amount;type:decimal(20,2);default:0.00" json:"tax_amount"`
	FeeAmount       decimal.Decimal `gorm:"column:fee_amount;type:decimal(20,2);default:0.00" json:"fee_amount"`
	CashbackAmount  decimal.Decimal `gorm:"column:cashback_amount;type:decimal(20,2);default:0.00" json:"cashback_amount"`
	Status          string          `gorm:"column:status;size:20;not null;default:PENDING" json:"status"`
	Narration       string          `gorm:"column:narration;size:500" json:"narration"`
	ProviderRef     *string         `gorm:"column:provider_ref;size:100" json:"provider_ref,omitempty"`
	ProviderResp    string          `gorm:"column:provider_response;type:text" json:"provider_response,omitempty"`
	FailureReason   string          `gorm:"column:failure_reason;size:500" json:"failure_reason,omitempty"`
	InitiatedBy     string          `gorm:"column:initiated_by;size:50" json:"initiated_by"`
	InitiatedAt     time.Time       `gorm:"column:initiated_at;autoCreateTime" json:"initiated_at"`
	ProcessedAt     *time.Time      `gorm:"column:processed_at" json:"processed_at,omitempty"`
	CompletedAt     *time.Time      `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// ComputeNetAmount returns amount less deductions plus cashback.
func (t *Transaction) ComputeNetAmount() decimal.Decimal {
	deductions := t.TotalCommission.Add(t.ProviderCharge).Add(t.TaxAmount).Add(t.FeeAmount)
	return t.Amount.Sub(deductions).Add(t.CashbackAmount)
}

// ValidateNetAmount re-verifies the stored net amount against the deduction
// fields. Run before every persist; a mismatch means the transaction must
// not be written.
func (t *Transaction) ValidateNetAmount() error {
	if !t.NetAmount.Equal(t.ComputeNetAmount()) {
		return NewValidationError("net amount does not reconcile with deduction fields")
	}
	return nil
}

// CanRefund reports whether a refund may be initiated against this
// transaction.
func (t *Transaction) CanRefund() bool {
	return t.Status == TxStatusSuccess
}

func (t *Transaction) transition(to string) error {
	allowed := map[string][]string{
		TxStatusPending: {TxStatusSuccess, TxStatusFailed, TxStatusCancelled},
		TxStatusSuccess: {TxStatusRefunded, TxStatusReversed},
	}
	for _, s := range allowed[t.Status] {
		if s == to {
			t.Status = to
			return nil
		}
	}
	return &StateTransitionError{Entity: "transaction", From: t.Status, To: to}
}

func (t *Transaction) MarkAsSuccess(providerRef *string, providerResp string) error {
	if err := t.transition(TxStatusSuccess); err != nil {
		return err
	}
	now := time.Now()
	t.ProcessedAt = &now
	t.CompletedAt = &now
	t.ProviderRef = providerRef
	t.ProviderResp = providerResp
	return nil
}

func (t *Transaction) MarkAsFailed(reason string) error {
	if err := t.transition(TxStatusFailed); err != nil {
		return err
	}
	now := time.Now()
	t.ProcessedAt = &now
	t.FailureReason = reason
	return nil
}

func (t *Transaction) MarkAsCancelled() error {
	return t.transition(TxStatusCancelled)
}

func (t *Transaction) MarkAsRefunded() error {
	if !t.CanRefund() {
		return &StateTransitionError{Entity: "transaction", From: t.Status, To: TxStatusRefunded}
	}
	return t.transition(TxStatusRefunded)
}

// MarkAsReversed is the administrative compensating transition.
func (t *Transaction) MarkAsReversed() error {
	if err := t.transition(TxStatusReversed); err != nil {
		return err
	}
	now := time.Now()
	t.CompletedAt = &now
	return nil
}
