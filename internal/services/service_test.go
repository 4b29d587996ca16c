package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fincore-service/internal/models"
)

var testActor = models.Actor{Kind: models.ActorEmployee, ID: 1}

// setupTestDB opens a per-test in-memory sqlite database. The named DSN
// keeps the database alive across the pool's connections without sharing
// state between tests.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	err = db.AutoMigrate(
		&models.Wallet{},
		&models.LedgerEntry{},
		&models.Transaction{},
		&models.CommissionEarning{},
		&models.RootCommissionEarning{},
		&models.CommissionConfig{},
		&models.Refund{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// createFundedWallet provisions a PRIMARY wallet with an opening balance
// posted through the ledger.
func createFundedWallet(t *testing.T, svc *WalletService, ownerID int, balance string) *models.Wallet {
	t.Helper()
	wallet, err := svc.CreateWallet(CreateWalletDTO{
		OwnerId:        ownerID,
		OwnerType:      models.ActorUser,
		WalletType:     models.WalletTypePrimary,
		Currency:       "INR",
		InitialBalance: dec(balance),
		Actor:          testActor,
	})
	if err != nil {
		t.Fatalf("createFundedWallet: %v", err)
	}
	return wallet
}

func reloadWallet(t *testing.T, db *gorm.DB, id uint) *models.Wallet {
	t.Helper()
	var w models.Wallet
	if err := db.First(&w, id).Error; err != nil {
		t.Fatalf("reloadWallet: %v", err)
	}
	return &w
}

func assertBalances(t *testing.T, w *models.Wallet, balance, hold, available string) {
	t.Helper()
	if !w.Balance.Equal(dec(balance)) {
		t.Errorf("balance = %s, want %s", w.Balance.StringFixed(2), balance)
	}
	if !w.HoldBalance.Equal(dec(hold)) {
		t.Errorf("hold balance = %s, want %s", w.HoldBalance.StringFixed(2), hold)
	}
	if !w.AvailableBalance.Equal(dec(available)) {
		t.Errorf("available balance = %s, want %s", w.AvailableBalance.StringFixed(2), available)
	}
}

func countLedgerEntries(t *testing.T, db *gorm.DB, walletID uint) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.LedgerEntry{}).Where("wallet_id = ?", walletID).Count(&n).Error; err != nil {
		t.Fatalf("countLedgerEntries: %v", err)
	}
	return n
}
