package services

import (
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fincore-service/internal/models"
	"fincore-service/pkg/common"
)

// maxVersionRetries bounds optimistic check-and-retry on wallet writes.
const maxVersionRetries = 3

// LedgerService is the single write path for wallet balances: every balance
// change commits together with its ledger entry or not at all.
type LedgerService struct {
	DB *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

type PostEntryDTO struct {
	WalletID       uint
	EntryType      string
	ReferenceType  string
	Amount         decimal.Decimal
	Narration      string
	IdempotencyKey string
	TransactionID  *uint
	Metadata       string
	Actor          models.Actor
}

func (d PostEntryDTO) validate() error {
	if !d.Amount.IsPositive() {
		return models.NewValidationError("amount must be positive")
	}
	if strings.TrimSpace(d.Narration) == "" {
		return models.NewValidationError("narration must not be empty")
	}
	if strings.TrimSpace(d.IdempotencyKey) == "" {
		return models.NewValidationError("idempotency key must not be empty")
	}
	if !models.ValidEntryType(d.EntryType) {
		return models.NewValidationError("unknown entry type " + d.EntryType)
	}
	if !models.ValidReferenceType(d.ReferenceType) {
		return models.NewValidationError("unknown reference type " + d.ReferenceType)
	}
	return nil
}

// withVersionRetry re-runs the whole transactional unit when a wallet write
// observed a stale version. Stale writes are retried, never overwritten.
func withVersionRetry(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		err = db.Transaction(fn)
		if !errors.Is(err, models.ErrStaleVersion) {
			return err
		}
	}
	return err
}

// Post appends one ledger entry and applies the matching wallet mutation in
// a single atomic unit. Replaying an idempotency key returns the original
// entry and performs no writes.
func (s *LedgerService) Post(data PostEntryDTO) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	err := withVersionRetry(s.DB, func(tx *gorm.DB) error {
		e, err := s.PostInTx(tx, data)
		if err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// PostInTx is Post running inside a caller-owned transaction, used when the
// entry must commit atomically with other writes (settlement, commission,
// refund).
func (s *LedgerService) PostInTx(tx *gorm.DB, data PostEntryDTO) (*models.LedgerEntry, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}

	if existing, err := s.Replay(tx, data.IdempotencyKey, data.EntryType, data.Amount); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	wallet, err := lockWallet(tx, data.WalletID)
	if err != nil {
		return nil, err
	}

	switch data.EntryType {
	case models.EntryTypeDebit:
		if err := s.checkSpendLimits(tx, wallet, data.Amount); err != nil {
			return nil, err
		}
		if err := wallet.Debit(data.Amount); err != nil {
			return nil, err
		}
	case models.EntryTypeCredit:
		if err := wallet.Credit(data.Amount); err != nil {
			return nil, err
		}
	}

	if err := persistWallet(tx, wallet); err != nil {
		return nil, err
	}

	return s.Append(tx, wallet, data)
}

// Replay looks up a previously committed entry for the key. A hit with a
// matching payload is an idempotent replay; a hit with a different amount
// or direction is a conflict.
func (s *LedgerService) Replay(tx *gorm.DB, key, entryType string, amount decimal.Decimal) (*models.LedgerEntry, error) {
	var existing models.LedgerEntry
	err := tx.Where("idempotency_key = ?", key).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if existing.EntryType != entryType || !existing.Amount.Equal(amount) {
		return nil, &models.IdempotencyConflictError{Key: key}
	}
	log.Info().Str("idempotency_key", key).Uint("entry_id", existing.ID).Msg("ledger entry replayed")
	return &existing, nil
}

// Append writes the ledger row for a wallet whose mutation has already been
// applied and persisted inside tx. The entry's running balance snapshots the
// wallet balance immediately after the change.
func (s *LedgerService) Append(tx *gorm.DB, wallet *models.Wallet, data PostEntryDTO) (*models.LedgerEntry, error) {
	entry := models.LedgerEntry{
		WalletID:       wallet.ID,
		TransactionID:  data.TransactionID,
		EntryType:      data.EntryType,
		ReferenceType:  data.ReferenceType,
		Amount:         data.Amount,
		RunningBalance: wallet.Balance,
		Narration:      data.Narration,
		IdempotencyKey: data.IdempotencyKey,
		Metadata:       data.Metadata,
		CreatedBy:      data.Actor.String(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// checkSpendLimits enforces the wallet's daily and monthly debit ceilings
// against what the ledger has already recorded.
func (s *LedgerService) checkSpendLimits(tx *gorm.DB, wallet *models.Wallet, amount decimal.Decimal) error {
	if wallet.DailyLimit == nil && wallet.MonthlyLimit == nil {
		return nil
	}
	now := time.Now()
	if wallet.DailyLimit != nil {
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		spent, err := s.debitedSince(tx, wallet.ID, dayStart)
		if err != nil {
			return err
		}
		if spent.Add(amount).GreaterThan(*wallet.DailyLimit) {
			return models.NewValidationError("amount exceeds daily limit")
		}
	}
	if wallet.MonthlyLimit != nil {
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		spent, err := s.debitedSince(tx, wallet.ID, monthStart)
		if err != nil {
			return err
		}
		if spent.Add(amount).GreaterThan(*wallet.MonthlyLimit) {
			return models.NewValidationError("amount exceeds monthly limit")
		}
	}
	return nil
}

func (s *LedgerService) debitedSince(tx *gorm.DB, walletID uint, since time.Time) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := tx.Model(&models.LedgerEntry{}).
		Where("wallet_id = ? AND entry_type = ? AND created_at >= ?", walletID, models.EntryTypeDebit, since).
		Select("SUM(amount)").Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

type LedgerHistoryDTO struct {
	WalletID  uint
	StartDate string
	EndDate   string
	Page      int
	Limit     int
}

// GetLedgerHistory returns a wallet's entries in chronological order.
func (s *LedgerService) GetLedgerHistory(data LedgerHistoryDTO) (common.PaginationResult, error) {
	limit := data.Limit
	if limit <= 0 {
		limit = 50
	}
	page := data.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	query := s.DB.Model(&models.LedgerEntry{}).Where("wallet_id = ?", data.WalletID)
	if data.StartDate != "" {
		query = query.Where("created_at >= ?", data.StartDate)
	}
	if data.EndDate != "" {
		query = query.Where("created_at <= ?", data.EndDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return common.PaginationResult{}, err
	}

	var entries []models.LedgerEntry
	if err := query.Order("created_at ASC, id ASC").Limit(limit).Offset(offset).Find(&entries).Error; err != nil {
		return common.PaginationResult{}, err
	}

	return common.PaginateResponse(entries, total, page, limit, "Ledger history fetched"), nil
}

// lockWallet loads the wallet row that a mutation will be checked against.
// The version captured here guards the subsequent persistWallet.
func lockWallet(tx *gorm.DB, walletID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	err := tx.First(&wallet, walletID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	if !wallet.IsActive {
		return nil, models.ErrWalletInactive
	}
	return &wallet, nil
}

// persistWallet writes the mutated wallet back, failing with ErrStaleVersion
// when a concurrent writer got there first.
func persistWallet(tx *gorm.DB, wallet *models.Wallet) error {
	if err := wallet.Validate(); err != nil {
		log.Error().Err(err).Uint("wallet_id", wallet.ID).Msg("balance inconsistency, rolling back")
		return err
	}
	res := tx.Model(&models.Wallet{}).
		Where("id = ? AND version = ?", wallet.ID, wallet.Version).
		Updates(map[string]interface{}{
			"balance":           wallet.Balance,
			"hold_balance":      wallet.HoldBalance,
			"available_balance": wallet.AvailableBalance,
			"version":           wallet.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrStaleVersion
	}
	wallet.Version++
	return nil
}
