package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testWallet(balance, hold string) *Wallet {
	b := d(balance)
	h := d(hold)
	return &Wallet{
		ID:               1,
		Balance:          b,
		HoldBalance:      h,
		AvailableBalance: b.Sub(h),
		IsActive:         true,
	}
}

func TestWalletInvariant(t *testing.T) {
	if err := testWallet("1000", "300").Validate(); err != nil {
		t.Fatalf("valid wallet rejected: %v", err)
	}

	broken := testWallet("1000", "300")
	broken.AvailableBalance = d("800")
	err := broken.Validate()
	if !errors.Is(err, ErrBalanceInconsistency) {
		t.Fatalf("expected balance inconsistency, got %v", err)
	}

	overHeld := &Wallet{Balance: d("100"), HoldBalance: d("200"), AvailableBalance: d("-100")}
	if overHeld.Validate() == nil {
		t.Fatal("hold above balance accepted")
	}
}

func TestWalletDebitCredit(t *testing.T) {
	w := testWallet("1000", "0")

	if err := w.Debit(d("400")); err != nil {
		t.Fatalf("debit failed: %v", err)
	}
	if !w.Balance.Equal(d("600")) || !w.AvailableBalance.Equal(d("600")) {
		t.Fatalf("after debit: balance=%s available=%s", w.Balance, w.AvailableBalance)
	}

	if err := w.Credit(d("150")); err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if !w.Balance.Equal(d("750")) {
		t.Fatalf("after credit: balance=%s", w.Balance)
	}

	if err := w.Debit(d("800")); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if err := w.Debit(d("0")); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := w.Credit(d("-5")); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWalletDebitRespectsHold(t *testing.T) {
	w := testWallet("1000", "700")
	// 300 available; the held portion is not spendable.
	if err := w.Debit(d("400")); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if err := w.Debit(d("300")); err != nil {
		t.Fatalf("debit within available failed: %v", err)
	}
	if !w.Balance.Equal(d("700")) || !w.HoldBalance.Equal(d("700")) || !w.AvailableBalance.IsZero() {
		t.Fatalf("unexpected state: %s/%s/%s", w.Balance, w.HoldBalance, w.AvailableBalance)
	}
}

func TestWalletHoldSettle(t *testing.T) {
	w := testWallet("1000", "0")

	if err := w.Hold(d("300")); err != nil {
		t.Fatalf("hold failed: %v", err)
	}
	if !w.Balance.Equal(d("1000")) || !w.HoldBalance.Equal(d("300")) || !w.AvailableBalance.Equal(d("700")) {
		t.Fatalf("after hold: %s/%s/%s", w.Balance, w.HoldBalance, w.AvailableBalance)
	}

	if err := w.Settle(d("300"), true); err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if !w.Balance.Equal(d("700")) || !w.HoldBalance.IsZero() || !w.AvailableBalance.Equal(d("700")) {
		t.Fatalf("after settle: %s/%s/%s", w.Balance, w.HoldBalance, w.AvailableBalance)
	}

	if err := w.Settle(d("1"), true); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error settling empty hold, got %v", err)
	}
}

func TestWalletReleaseHold(t *testing.T) {
	w := testWallet("1000", "300")
	if err := w.ReleaseHold(d("400")); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := w.ReleaseHold(d("300")); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if !w.AvailableBalance.Equal(d("1000")) {
		t.Fatalf("after release: available=%s", w.AvailableBalance)
	}
}

func TestWalletPerTransactionLimit(t *testing.T) {
	limit := d("250")
	w := testWallet("1000", "0")
	w.PerTransactionLimit = &limit

	if err := w.Debit(d("300")); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected limit rejection, got %v", err)
	}
	if err := w.Hold(d("300")); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected limit rejection, got %v", err)
	}
	if err := w.Debit(d("250")); err != nil {
		t.Fatalf("debit at limit failed: %v", err)
	}
}
