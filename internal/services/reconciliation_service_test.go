package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"fincore-service/internal/models"
)

func TestReconcileCleanWallet(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	walletSvc := NewWalletService(db, ledger)
	svc := NewReconciliationService(db, nil)

	wallet := createFundedWallet(t, walletSvc, 601, "1000")
	for _, key := range []string{"rec-a", "rec-b"} {
		_, err := ledger.Post(PostEntryDTO{
			WalletID:       wallet.ID,
			EntryType:      models.EntryTypeDebit,
			ReferenceType:  models.ReferenceCharge,
			Amount:         dec("100"),
			Narration:      "charge",
			IdempotencyKey: key,
			Actor:          testActor,
		})
		require.NoError(t, err)
	}

	ok, err := svc.ReconcileWallet(wallet.ID)
	require.NoError(t, err)
	require.True(t, ok)

	drifted, err := svc.ReconcileAll()
	require.NoError(t, err)
	require.Empty(t, drifted)
}

func TestReconcileDetectsBalanceDrift(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	walletSvc := NewWalletService(db, ledger)
	svc := NewReconciliationService(db, nil)

	wallet := createFundedWallet(t, walletSvc, 602, "1000")

	// Corrupt the stored balance behind the ledger's back.
	require.NoError(t, db.Model(&models.Wallet{}).Where("id = ?", wallet.ID).
		Updates(map[string]interface{}{"balance": dec("1100"), "available_balance": dec("1100")}).Error)

	ok, err := svc.ReconcileWallet(wallet.ID)
	require.NoError(t, err)
	require.False(t, ok)

	drifted, err := svc.ReconcileAll()
	require.NoError(t, err)
	require.Equal(t, []uint{wallet.ID}, drifted)
}

func TestReconcileDetectsBrokenRunningChain(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	walletSvc := NewWalletService(db, ledger)
	svc := NewReconciliationService(db, nil)

	wallet := createFundedWallet(t, walletSvc, 603, "1000")
	entry, err := ledger.Post(PostEntryDTO{
		WalletID:       wallet.ID,
		EntryType:      models.EntryTypeCredit,
		ReferenceType:  models.ReferenceAdjustment,
		Amount:         dec("200"),
		Narration:      "credit",
		IdempotencyKey: "rec-603",
		Actor:          testActor,
	})
	require.NoError(t, err)

	// Tamper with one running balance; replay must flag the chain.
	require.NoError(t, db.Model(&models.LedgerEntry{}).Where("id = ?", entry.ID).
		Update("running_balance", dec("1300")).Error)

	ok, err := svc.ReconcileWallet(wallet.ID)
	require.NoError(t, err)
	require.False(t, ok)
}
