package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors, matched with errors.Is. Structured variants below carry
// the values a caller needs to act on and unwrap to these.
var (
	ErrValidation               = errors.New("validation failed")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrDuplicateIdempotencyKey  = errors.New("duplicate idempotency key")
	ErrBalanceInconsistency     = errors.New("balance inconsistency")
	ErrInvalidStateTransition   = errors.New("invalid state transition")
	ErrCommissionConfigNotFound = errors.New("commission configuration not found")
	ErrRefundExceedsBalance     = errors.New("refund exceeds refundable amount")
	ErrStaleVersion             = errors.New("stale wallet version")
	ErrWalletNotFound           = errors.New("wallet not found")
	ErrWalletInactive           = errors.New("wallet is inactive")
	ErrTransactionNotFound      = errors.New("transaction not found")
)

func NewValidationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// InsufficientFundsError is rejected before any write; the wallet is
// left untouched.
type InsufficientFundsError struct {
	WalletID  uint
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on wallet %d: available %s, requested %s",
		e.WalletID, e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// BalanceInconsistencyError is fatal: the surrounding database transaction
// must be rolled back wholesale.
type BalanceInconsistencyError struct {
	WalletID         uint
	Balance          decimal.Decimal
	HoldBalance      decimal.Decimal
	AvailableBalance decimal.Decimal
}

func (e *BalanceInconsistencyError) Error() string {
	return fmt.Sprintf("balance inconsistency on wallet %d: balance=%s hold=%s available=%s",
		e.WalletID, e.Balance.StringFixed(2), e.HoldBalance.StringFixed(2), e.AvailableBalance.StringFixed(2))
}

func (e *BalanceInconsistencyError) Unwrap() error {
	return ErrBalanceInconsistency
}

// StateTransitionError reports the current and the attempted status.
type StateTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition %s -> %s", e.Entity, e.From, e.To)
}

func (e *StateTransitionError) Unwrap() error {
	return ErrInvalidStateTransition
}

// IdempotencyConflictError is returned when a key is replayed with a
// payload that does not match the original entry.
type IdempotencyConflictError struct {
	Key string
}

func (e *IdempotencyConflictError) Error() string {
	return fmt.Sprintf("idempotency key %q replayed with conflicting payload", e.Key)
}

func (e *IdempotencyConflictError) Unwrap() error {
	return ErrDuplicateIdempotencyKey
}

// IsClientError reports whether the error is caused by invalid input or a
// business-rule rejection, as opposed to an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrInvalidStateTransition) ||
		errors.Is(err, ErrRefundExceedsBalance) ||
		errors.Is(err, ErrWalletInactive)
}

// IsRetryable reports whether the operation may succeed if replayed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStaleVersion)
}

// IsNotFound reports whether the error indicates a missing aggregate.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWalletNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrCommissionConfigNotFound)
}
