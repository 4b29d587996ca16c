package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entry types
const (
	EntryTypeDebit  = "DEBIT"
	EntryTypeCredit = "CREDIT"
)

// Reference types
const (
	ReferenceTransaction = "TRANSACTION"
	ReferenceCommission  = "COMMISSION"
	ReferenceRefund      = "REFUND"
	ReferenceAdjustment  = "ADJUSTMENT"
	ReferenceBonus       = "BONUS"
	ReferenceCharge      = "CHARGE"
	ReferenceFee         = "FEE"
	ReferenceTax         = "TAX"
	ReferencePayout      = "PAYOUT"
	ReferenceCollection  = "COLLECTION"
)

// LedgerEntry is the audit trail of record. Rows are created once and never
// updated or deleted; corrections are posted as compensating entries.
type LedgerEntry struct {
	ID             uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	WalletID       uint            `gorm:"column:wallet_id;not null;index:idx_ledger_wallet_created,priority:1" json:"wallet_id"`
	TransactionID  *uint           `gorm:"column:transaction_id;index" json:"transaction_id,omitempty"`
	EntryType      string          `gorm:"column:entry_type;size:10;not null" json:"entry_type"`
	ReferenceType  string          `gorm:"column:reference_type;size:20;not null" json:"reference_type"`
	Amount         decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	RunningBalance decimal.Decimal `gorm:"column:running_balance;type:decimal(20,2);not null" json:"running_balance"`
	Narration      string          `gorm:"column:narration;size:500;not null" json:"narration"`
	IdempotencyKey string          `gorm:"column:idempotency_key;size:191;not null;uniqueIndex" json:"idempotency_key"`
	Metadata       string          `gorm:"column:metadata;type:text" json:"metadata,omitempty"`
	CreatedBy      string          `gorm:"column:created_by;size:50" json:"created_by"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime;index:idx_ledger_wallet_created,priority:2" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// SignedAmount returns the amount signed by entry direction: credits are
// positive, debits negative.
func (e *LedgerEntry) SignedAmount() decimal.Decimal {
	if e.EntryType == EntryTypeDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}

func ValidEntryType(t string) bool {
	return t == EntryTypeDebit || t == EntryTypeCredit
}

func ValidReferenceType(t string) bool {
	switch t {
	case ReferenceTransaction, ReferenceCommission, ReferenceRefund, ReferenceAdjustment,
		ReferenceBonus, ReferenceCharge, ReferenceFee, ReferenceTax, ReferencePayout, ReferenceCollection:
		return true
	}
	return false
}
