package services

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fincore-service/internal/models"
	"fincore-service/pkg/common"
)

// WalletService owns wallet lifecycle and the hold flows. Balance changes
// always go through the ledger poster; holds move funds between available
// and hold without changing the balance, so they carry no ledger entry
// until settlement.
type WalletService struct {
	DB     *gorm.DB
	Ledger *LedgerService
}

func NewWalletService(db *gorm.DB, ledger *LedgerService) *WalletService {
	return &WalletService{DB: db, Ledger: ledger}
}

type CreateWalletDTO struct {
	OwnerId             int
	OwnerType           string
	WalletType          string
	Currency            string
	InitialBalance      decimal.Decimal
	DailyLimit          *decimal.Decimal
	MonthlyLimit        *decimal.Decimal
	PerTransactionLimit *decimal.Decimal
	Actor               models.Actor
}

// CreateWallet provisions a wallet at owner onboarding. A non-zero opening
// balance is posted through the ledger so the audit trail starts at entry
// one.
func (s *WalletService) CreateWallet(data CreateWalletDTO) (*models.Wallet, error) {
	if err := data.Actor.Validate(); err != nil {
		return nil, err
	}
	if data.WalletType == "" {
		data.WalletType = models.WalletTypePrimary
	}
	if data.InitialBalance.IsNegative() {
		return nil, models.NewValidationError("initial balance must not be negative")
	}

	wallet := models.Wallet{
		OwnerId:             data.OwnerId,
		OwnerType:           data.OwnerType,
		WalletType:          data.WalletType,
		Currency:            data.Currency,
		Balance:             decimal.Zero,
		HoldBalance:         decimal.Zero,
		AvailableBalance:    decimal.Zero,
		DailyLimit:          data.DailyLimit,
		MonthlyLimit:        data.MonthlyLimit,
		PerTransactionLimit: data.PerTransactionLimit,
		IsActive:            true,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&wallet).Error; err != nil {
			return err
		}
		if data.InitialBalance.IsPositive() {
			_, err := s.Ledger.PostInTx(tx, PostEntryDTO{
				WalletID:       wallet.ID,
				EntryType:      models.EntryTypeCredit,
				ReferenceType:  models.ReferenceAdjustment,
				Amount:         data.InitialBalance,
				Narration:      "Opening balance",
				IdempotencyKey: fmt.Sprintf("wallet:%d:opening", wallet.ID),
				Actor:          data.Actor,
			})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Re-read so the returned aggregate reflects the opening post.
	if err := s.DB.First(&wallet, wallet.ID).Error; err != nil {
		return nil, err
	}
	log.Info().Uint("wallet_id", wallet.ID).Int("owner_id", data.OwnerId).Str("owner_type", data.OwnerType).Msg("wallet created")
	return &wallet, nil
}

// GetWallet returns a wallet by id.
func (s *WalletService) GetWallet(walletID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	err := s.DB.First(&wallet, walletID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// GetOwnerWallet returns one of an owner's wallets by type.
func (s *WalletService) GetOwnerWallet(ownerId int, ownerType, walletType string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := s.DB.Where("owner_id = ? AND owner_type = ? AND wallet_type = ?", ownerId, ownerType, walletType).
		First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// GetBalance exposes the balance triple for one wallet.
func (s *WalletService) GetBalance(walletID uint) (common.SuccessResponse, error) {
	wallet, err := s.GetWallet(walletID)
	if err != nil {
		return common.SuccessResponse{}, err
	}
	return common.NewSuccessResponse(map[string]interface{}{
		"wallet_id":         wallet.ID,
		"currency":          wallet.Currency,
		"balance":           wallet.Balance,
		"hold_balance":      wallet.HoldBalance,
		"available_balance": wallet.AvailableBalance,
	}, "Balance fetched"), nil
}

// Deactivate disables a wallet. Wallets are never hard-deleted.
func (s *WalletService) Deactivate(walletID uint, actor models.Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	res := s.DB.Model(&models.Wallet{}).Where("id = ?", walletID).Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrWalletNotFound
	}
	log.Info().Uint("wallet_id", walletID).Str("actor", actor.String()).Msg("wallet deactivated")
	return nil
}

type HoldFundsDTO struct {
	WalletID uint
	Amount   decimal.Decimal
	Actor    models.Actor
}

// HoldFunds earmarks funds: available shrinks, hold grows, balance is
// untouched.
func (s *WalletService) HoldFunds(data HoldFundsDTO) (*models.Wallet, error) {
	return s.mutateHold(data.WalletID, func(w *models.Wallet) error {
		return w.Hold(data.Amount)
	})
}

// ReleaseHold returns earmarked funds to available.
func (s *WalletService) ReleaseHold(data HoldFundsDTO) (*models.Wallet, error) {
	return s.mutateHold(data.WalletID, func(w *models.Wallet) error {
		return w.ReleaseHold(data.Amount)
	})
}

func (s *WalletService) mutateHold(walletID uint, op func(*models.Wallet) error) (*models.Wallet, error) {
	var wallet *models.Wallet
	err := withVersionRetry(s.DB, func(tx *gorm.DB) error {
		w, err := lockWallet(tx, walletID)
		if err != nil {
			return err
		}
		if err := op(w); err != nil {
			return err
		}
		if err := persistWallet(tx, w); err != nil {
			return err
		}
		wallet = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

type SettleHoldDTO struct {
	WalletID       uint
	Amount         decimal.Decimal
	IsDebit        bool
	Narration      string
	IdempotencyKey string
	TransactionID  *uint
	Actor          models.Actor
}

// SettleHold consumes a hold. A debit settlement means the funds leave the
// wallet, so it appends a DEBIT ledger entry atomically with the mutation;
// a credit settlement only releases the earmark.
func (s *WalletService) SettleHold(data SettleHoldDTO) (*models.Wallet, error) {
	if data.IsDebit && data.IdempotencyKey == "" {
		return nil, models.NewValidationError("idempotency key required for debit settlement")
	}

	var wallet *models.Wallet
	err := withVersionRetry(s.DB, func(tx *gorm.DB) error {
		if data.IsDebit {
			existing, err := s.Ledger.Replay(tx, data.IdempotencyKey, models.EntryTypeDebit, data.Amount)
			if err != nil {
				return err
			}
			if existing != nil {
				w, err := lockWallet(tx, data.WalletID)
				if err != nil {
					return err
				}
				wallet = w
				return nil
			}
		}

		w, err := lockWallet(tx, data.WalletID)
		if err != nil {
			return err
		}
		if err := w.Settle(data.Amount, data.IsDebit); err != nil {
			return err
		}
		if err := persistWallet(tx, w); err != nil {
			return err
		}
		if data.IsDebit {
			narration := data.Narration
			if narration == "" {
				narration = "Hold settlement"
			}
			if _, err := s.Ledger.Append(tx, w, PostEntryDTO{
				WalletID:       w.ID,
				EntryType:      models.EntryTypeDebit,
				ReferenceType:  models.ReferencePayout,
				Amount:         data.Amount,
				Narration:      narration,
				IdempotencyKey: data.IdempotencyKey,
				TransactionID:  data.TransactionID,
				Actor:          data.Actor,
			}); err != nil {
				return err
			}
		}
		wallet = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}
