package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"fincore-service/internal/models"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func percentConfig(value string) *models.CommissionConfig {
	return &models.CommissionConfig{
		CommissionType: models.CommissionPercentage,
		Value:          dec(value),
		IsActive:       true,
	}
}

func TestComputeSplitPercentage(t *testing.T) {
	cfg := percentConfig("2")
	cfg.ApplyTds = true
	cfg.TdsPercent = dec("10")

	split := ComputeSplit(cfg, dec("10000"))
	require.True(t, split.CommissionAmount.Equal(dec("200")), "commission = %s", split.CommissionAmount)
	require.True(t, split.TdsAmount.Equal(dec("20")), "tds = %s", split.TdsAmount)
	require.True(t, split.GstAmount.IsZero())
	require.True(t, split.RootCommissionAmount.IsZero())
	require.True(t, split.NetAmount.Equal(dec("180")), "net = %s", split.NetAmount)
}

func TestComputeSplitWithRootAndGst(t *testing.T) {
	cfg := percentConfig("2")
	cfg.ApplyTds = true
	cfg.TdsPercent = dec("10")
	cfg.ApplyGst = true
	cfg.GstPercent = dec("18")
	cfg.RootCommissionPercent = dec("25")

	split := ComputeSplit(cfg, dec("10000"))
	require.True(t, split.CommissionAmount.Equal(dec("200")))
	require.True(t, split.RootCommissionAmount.Equal(dec("50")))
	require.True(t, split.TdsAmount.Equal(dec("20")))
	require.True(t, split.GstAmount.Equal(dec("36")))
	// 200 + 50 - (20 + 36)
	require.True(t, split.NetAmount.Equal(dec("194")), "net = %s", split.NetAmount)
}

func TestComputeSplitFlatClippedToAmount(t *testing.T) {
	cfg := &models.CommissionConfig{
		CommissionType: models.CommissionFlat,
		Value:          dec("500"),
		IsActive:       true,
	}
	split := ComputeSplit(cfg, dec("300"))
	require.True(t, split.CommissionAmount.Equal(dec("300")))
}

func TestComputeSplitNegativeValueClippedToZero(t *testing.T) {
	cfg := &models.CommissionConfig{
		CommissionType: models.CommissionFlat,
		Value:          dec("-50"),
		IsActive:       true,
	}
	split := ComputeSplit(cfg, dec("300"))
	require.True(t, split.CommissionAmount.IsZero())
	require.True(t, split.NetAmount.IsZero())
}

func TestComputeSplitNetNeverNegative(t *testing.T) {
	cfg := percentConfig("1")
	cfg.ApplyTds = true
	cfg.TdsPercent = dec("150")

	split := ComputeSplit(cfg, dec("1000"))
	require.False(t, split.NetAmount.IsNegative())
	require.True(t, split.NetAmount.IsZero())
}

func TestComputeSplitRounding(t *testing.T) {
	split := ComputeSplit(percentConfig("2.5"), dec("333.33"))
	// 333.33 * 2.5% = 8.33325, rounded half-up to 8.33
	require.True(t, split.CommissionAmount.Equal(dec("8.33")), "commission = %s", split.CommissionAmount)
}

func TestResolveConfigUserOverrideBeatsRoleDefault(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCommissionService(db, NewLedgerService(db))

	roleCfg := percentConfig("1")
	roleCfg.Role = strPtr("RETAILER")
	require.NoError(t, db.Create(roleCfg).Error)

	userCfg := percentConfig("3")
	userCfg.UserId = intPtr(301)
	require.NoError(t, db.Create(userCfg).Error)

	cfg, err := svc.ResolveConfig(db, 301, "RETAILER", "recharge", dec("1000"))
	require.NoError(t, err)
	require.True(t, cfg.Value.Equal(dec("3")))

	// Another user without an override falls back to the role default.
	cfg, err = svc.ResolveConfig(db, 999, "RETAILER", "recharge", dec("1000"))
	require.NoError(t, err)
	require.True(t, cfg.Value.Equal(dec("1")))
}

func TestResolveConfigServiceScopedBeatsUnscoped(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCommissionService(db, NewLedgerService(db))

	unscoped := percentConfig("1")
	unscoped.Role = strPtr("RETAILER")
	require.NoError(t, db.Create(unscoped).Error)

	scoped := percentConfig("2")
	scoped.Role = strPtr("RETAILER")
	scoped.Service = strPtr("recharge")
	require.NoError(t, db.Create(scoped).Error)

	cfg, err := svc.ResolveConfig(db, 302, "RETAILER", "recharge", dec("1000"))
	require.NoError(t, err)
	require.True(t, cfg.Value.Equal(dec("2")))

	// A different service does not match the scoped row.
	cfg, err = svc.ResolveConfig(db, 302, "RETAILER", "billpay", dec("1000"))
	require.NoError(t, err)
	require.True(t, cfg.Value.Equal(dec("1")))
}

func TestResolveConfigSlabBounds(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCommissionService(db, NewLedgerService(db))

	low := percentConfig("2")
	low.Role = strPtr("RETAILER")
	low.MinAmount = decPtr("0")
	low.MaxAmount = decPtr("1000")
	require.NoError(t, db.Create(low).Error)

	high := percentConfig("1")
	high.Role = strPtr("RETAILER")
	high.MinAmount = decPtr("1000.01")
	require.NoError(t, db.Create(high).Error)

	cfg, err := svc.ResolveConfig(db, 303, "RETAILER", "recharge", dec("500"))
	require.NoError(t, err)
	require.True(t, cfg.Value.Equal(dec("2")))

	cfg, err = svc.ResolveConfig(db, 303, "RETAILER", "recharge", dec("5000"))
	require.NoError(t, err)
	require.True(t, cfg.Value.Equal(dec("1")))
}

func TestResolveConfigInactiveAndMissing(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCommissionService(db, NewLedgerService(db))

	inactive := percentConfig("2")
	inactive.Role = strPtr("RETAILER")
	inactive.IsActive = false
	require.NoError(t, db.Create(inactive).Error)

	_, err := svc.ResolveConfig(db, 304, "RETAILER", "recharge", dec("1000"))
	require.ErrorIs(t, err, models.ErrCommissionConfigNotFound)
}

// setupCommissionWallets creates the beneficiary commission wallet and the
// root wallet that postSplit targets.
func setupCommissionWallets(t *testing.T, walletSvc *WalletService, beneficiaryID, rootID int) (benef, root *models.Wallet) {
	t.Helper()
	var err error
	benef, err = walletSvc.CreateWallet(CreateWalletDTO{
		OwnerId:    beneficiaryID,
		OwnerType:  models.ActorUser,
		WalletType: models.WalletTypeCommission,
		Currency:   "INR",
		Actor:      testActor,
	})
	require.NoError(t, err)
	root, err = walletSvc.CreateWallet(CreateWalletDTO{
		OwnerId:    rootID,
		OwnerType:  models.ActorRoot,
		WalletType: models.WalletTypePrimary,
		Currency:   "INR",
		Actor:      testActor,
	})
	require.NoError(t, err)
	return benef, root
}

func TestDistributeSplitCreditsBothWallets(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	walletSvc := NewWalletService(db, ledger)
	svc := NewCommissionService(db, ledger)

	benefWallet, rootWallet := setupCommissionWallets(t, walletSvc, 310, 1)

	trx := models.Transaction{
		ReferenceId:    "TXN-DIST00000001",
		IdempotencyKey: "dist-310",
		UserId:         777,
		WalletID:       benefWallet.ID,
		PaymentType:    models.PaymentCollection,
		Amount:         dec("10000"),
		NetAmount:      dec("10000"),
		Status:         models.TxStatusSuccess,
	}
	require.NoError(t, db.Create(&trx).Error)

	cfg := percentConfig("2")
	cfg.ApplyTds = true
	cfg.TdsPercent = dec("10")
	cfg.RootCommissionPercent = dec("25")
	split := ComputeSplit(cfg, trx.Amount)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, _, err := svc.DistributeSplitInTx(tx, &trx, split, DistributeDTO{
			BeneficiaryID:   310,
			BeneficiaryRole: "RETAILER",
			Service:         "recharge",
			RootID:          1,
			Actor:           testActor,
		})
		return err
	})
	require.NoError(t, err)

	// Beneficiary receives commission net of taxes; root receives its cut.
	assertBalances(t, reloadWallet(t, db, benefWallet.ID), "180", "0", "180")
	assertBalances(t, reloadWallet(t, db, rootWallet.ID), "50", "0", "50")

	var earning models.CommissionEarning
	require.NoError(t, db.Where("transaction_id = ?", trx.ID).First(&earning).Error)
	require.Equal(t, models.EarningProcessed, earning.Status)
	require.True(t, earning.NetAmount.Equal(dec("230")))

	var rootEarning models.RootCommissionEarning
	require.NoError(t, db.Where("transaction_id = ?", trx.ID).First(&rootEarning).Error)
	require.Equal(t, models.EarningProcessed, rootEarning.Status)
}

func TestDistributeSplitMissingWalletMarksFailed(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	svc := NewCommissionService(db, ledger)

	trx := models.Transaction{
		ReferenceId:    "TXN-DIST00000002",
		IdempotencyKey: "dist-311",
		UserId:         777,
		WalletID:       1,
		PaymentType:    models.PaymentCollection,
		Amount:         dec("1000"),
		NetAmount:      dec("1000"),
		Status:         models.TxStatusSuccess,
	}
	require.NoError(t, db.Create(&trx).Error)

	split := ComputeSplit(percentConfig("2"), trx.Amount)
	var earning *models.CommissionEarning
	err := db.Transaction(func(tx *gorm.DB) error {
		e, _, err := svc.DistributeSplitInTx(tx, &trx, split, DistributeDTO{
			BeneficiaryID: 311,
			RootID:        1,
			Actor:         testActor,
		})
		earning = e
		return err
	})
	require.NoError(t, err)
	require.Equal(t, models.EarningFailed, earning.Status)
	require.NotEmpty(t, earning.FailureReason)
}

func TestDistributeSplitInactiveRootUndoesBeneficiaryCredit(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	walletSvc := NewWalletService(db, ledger)
	svc := NewCommissionService(db, ledger)

	benefWallet, rootWallet := setupCommissionWallets(t, walletSvc, 313, 1)
	require.NoError(t, walletSvc.Deactivate(rootWallet.ID, testActor))

	trx := models.Transaction{
		ReferenceId:    "TXN-DIST00000004",
		IdempotencyKey: "dist-313",
		UserId:         777,
		WalletID:       1,
		PaymentType:    models.PaymentCollection,
		Amount:         dec("10000"),
		NetAmount:      dec("10000"),
		Status:         models.TxStatusSuccess,
	}
	require.NoError(t, db.Create(&trx).Error)

	cfg := percentConfig("2")
	cfg.RootCommissionPercent = dec("25")
	split := ComputeSplit(cfg, trx.Amount)

	// Beneficiary posting succeeds first (lower wallet id), then the root
	// posting hits the inactive wallet.
	var earning *models.CommissionEarning
	err := db.Transaction(func(tx *gorm.DB) error {
		e, _, err := svc.DistributeSplitInTx(tx, &trx, split, DistributeDTO{
			BeneficiaryID: 313,
			RootID:        1,
			Actor:         testActor,
		})
		earning = e
		return err
	})
	require.NoError(t, err)
	require.Equal(t, models.EarningFailed, earning.Status)
	require.NotEmpty(t, earning.FailureReason)

	// All-or-nothing: the beneficiary credit must not survive the failure.
	assertBalances(t, reloadWallet(t, db, benefWallet.ID), "0", "0", "0")
	assertBalances(t, reloadWallet(t, db, rootWallet.ID), "0", "0", "0")
	require.EqualValues(t, 0, countLedgerEntries(t, db, benefWallet.ID))
	require.EqualValues(t, 0, countLedgerEntries(t, db, rootWallet.ID))

	var rootEarning models.RootCommissionEarning
	require.NoError(t, db.Where("transaction_id = ?", trx.ID).First(&rootEarning).Error)
	require.Equal(t, models.EarningFailed, rootEarning.Status)
}

func TestRetryEarningAfterWalletCreated(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	walletSvc := NewWalletService(db, ledger)
	svc := NewCommissionService(db, ledger)

	trx := models.Transaction{
		ReferenceId:    "TXN-DIST00000003",
		IdempotencyKey: "dist-312",
		UserId:         777,
		WalletID:       1,
		PaymentType:    models.PaymentCollection,
		Amount:         dec("10000"),
		NetAmount:      dec("10000"),
		Status:         models.TxStatusSuccess,
	}
	require.NoError(t, db.Create(&trx).Error)

	cfg := percentConfig("2")
	cfg.RootCommissionPercent = dec("25")
	split := ComputeSplit(cfg, trx.Amount)

	var earning *models.CommissionEarning
	err := db.Transaction(func(tx *gorm.DB) error {
		e, _, err := svc.DistributeSplitInTx(tx, &trx, split, DistributeDTO{
			BeneficiaryID: 312,
			RootID:        1,
			Actor:         testActor,
		})
		earning = e
		return err
	})
	require.NoError(t, err)
	require.Equal(t, models.EarningFailed, earning.Status)

	benefWallet, rootWallet := setupCommissionWallets(t, walletSvc, 312, 1)

	require.NoError(t, svc.RetryEarning(earning.ID, DistributeDTO{Actor: testActor}))

	assertBalances(t, reloadWallet(t, db, benefWallet.ID), "200", "0", "200")
	assertBalances(t, reloadWallet(t, db, rootWallet.ID), "50", "0", "50")

	var reloaded models.CommissionEarning
	require.NoError(t, db.First(&reloaded, earning.ID).Error)
	require.Equal(t, models.EarningProcessed, reloaded.Status)

	// A second retry must fail the PROCESSED guard, not double-credit.
	err = svc.RetryEarning(earning.ID, DistributeDTO{Actor: testActor})
	require.ErrorIs(t, err, models.ErrInvalidStateTransition)
	assertBalances(t, reloadWallet(t, db, benefWallet.ID), "200", "0", "200")
}

func TestEarningValidateRejectsExcessCommission(t *testing.T) {
	earning := models.CommissionEarning{
		Amount:           dec("100"),
		CommissionAmount: dec("150"),
		NetAmount:        dec("150"),
	}
	require.ErrorIs(t, earning.Validate(), models.ErrValidation)
}
