package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet types
const (
	WalletTypePrimary    = "PRIMARY"
	WalletTypeCommission = "COMMISSION"
	WalletTypeEscrow     = "ESCROW"
	WalletTypeTax        = "TAX"
	WalletTypeBonus      = "BONUS"
	WalletTypeHolding    = "HOLDING"
)

type Wallet struct {
	ID                  uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerId             int              `gorm:"column:owner_id;not null;uniqueIndex:idx_wallet_owner" json:"owner_id"`
	OwnerType           string           `gorm:"column:owner_type;size:20;not null;uniqueIndex:idx_wallet_owner" json:"owner_type"`
	WalletType          string           `gorm:"column:wallet_type;size:20;not null;default:PRIMARY;uniqueIndex:idx_wallet_owner" json:"wallet_type"`
	Currency            string           `gorm:"column:currency;size:10;not null" json:"currency"`
	Balance             decimal.Decimal  `gorm:"column:balance;type:decimal(20,2);default:0.00" json:"balance"`
	HoldBalance         decimal.Decimal  `gorm:"column:hold_balance;type:decimal(20,2);default:0.00" json:"hold_balance"`
	AvailableBalance    decimal.Decimal  `gorm:"column:available_balance;type:decimal(20,2);default:0.00" json:"available_balance"`
	DailyLimit          *decimal.Decimal `gorm:"column:daily_limit;type:decimal(20,2)" json:"daily_limit,omitempty"`
	MonthlyLimit        *decimal.Decimal `gorm:"column:monthly_limit;type:decimal(20,2)" json:"monthly_limit,omitempty"`
	PerTransactionLimit *decimal.Decimal `gorm:"column:per_transaction_limit;type:decimal(20,2)" json:"per_transaction_limit,omitempty"`
	IsActive            bool             `gorm:"column:is_active;default:true" json:"is_active"`
	Version             int              `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt           time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// Validate checks the three-field balance invariant. It must hold after
// every mutation; a violation aborts the enclosing atomic unit.
func (w *Wallet) Validate() error {
	if w.Balance.IsNegative() || w.HoldBalance.IsNegative() || w.AvailableBalance.IsNegative() ||
		w.HoldBalance.GreaterThan(w.Balance) ||
		!w.AvailableBalance.Equal(w.Balance.Sub(w.HoldBalance)) {
		return &BalanceInconsistencyError{
			WalletID:         w.ID,
			Balance:          w.Balance,
			HoldBalance:      w.HoldBalance,
			AvailableBalance: w.AvailableBalance,
		}
	}
	return nil
}

func (w *Wallet) recompute() error {
	w.AvailableBalance = w.Balance.Sub(w.HoldBalance)
	return w.Validate()
}

// Debit removes amount from the wallet. Requires amount > 0 and sufficient
// available balance.
func (w *Wallet) Debit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewValidationError("debit amount must be positive")
	}
	if w.PerTransactionLimit != nil && amount.GreaterThan(*w.PerTransactionLimit) {
		return NewValidationError("amount exceeds per-transaction limit")
	}
	if w.AvailableBalance.LessThan(amount) {
		return &InsufficientFundsError{WalletID: w.ID, Available: w.AvailableBalance, Requested: amount}
	}
	w.Balance = w.Balance.Sub(amount)
	return w.recompute()
}

// Credit adds amount to the wallet. Requires amount > 0.
func (w *Wallet) Credit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewValidationError("credit amount must be positive")
	}
	w.Balance = w.Balance.Add(amount)
	return w.recompute()
}

// Hold earmarks amount: it moves from available into hold, balance unchanged.
func (w *Wallet) Hold(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewValidationError("hold amount must be positive")
	}
	if w.PerTransactionLimit != nil && amount.GreaterThan(*w.PerTransactionLimit) {
		return NewValidationError("amount exceeds per-transaction limit")
	}
	if w.AvailableBalance.LessThan(amount) {
		return &InsufficientFundsError{WalletID: w.ID, Available: w.AvailableBalance, Requested: amount}
	}
	w.HoldBalance = w.HoldBalance.Add(amount)
	return w.recompute()
}

// ReleaseHold moves amount back from hold into available.
func (w *Wallet) ReleaseHold(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewValidationError("release amount must be positive")
	}
	if w.HoldBalance.LessThan(amount) {
		return NewValidationError("release amount exceeds hold balance")
	}
	w.HoldBalance = w.HoldBalance.Sub(amount)
	return w.recompute()
}

// Settle consumes amount from the hold. For a debit settlement the funds
// leave the wallet; for a credit settlement the balance was already
// incremented when the hold was placed, so only the hold is released.
func (w *Wallet) Settle(amount decimal.Decimal, isDebit bool) error {
	if !amount.IsPositive() {
		return NewValidationError("settle amount must be positive")
	}
	if w.HoldBalance.LessThan(amount) {
		return NewValidationError("settle amount exceeds hold balance")
	}
	w.HoldBalance = w.HoldBalance.Sub(amount)
	if isDebit {
		w.Balance = w.Balance.Sub(amount)
	}
	return w.recompute()
}
