package services

import (
	"errors"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fincore-service/internal/models"
	"fincore-service/pkg/common"
)

// TransactionService drives the transaction state machine and orchestrates
// ledger posting and commission distribution for each monetary event.
type TransactionService struct {
	DB          *gorm.DB
	Ledger      *LedgerService
	Commissions *CommissionService
	Queue       *asynq.Client // optional; nil disables background retries
}

func NewTransactionService(db *gorm.DB, ledger *LedgerService, commissions *CommissionService, queue *asynq.Client) *TransactionService {
	return &TransactionService{DB: db, Ledger: ledger, Commissions: commissions, Queue: queue}
}

type PostTransactionDTO struct {
	UserId         int
	WalletID       uint
	PaymentType    string
	Amount         decimal.Decimal
	ProviderCharge decimal.Decimal
	TaxAmount      decimal.Decimal
	FeeAmount      decimal.Decimal
	CashbackAmount decimal.Decimal
	Narration      string
	IdempotencyKey string
	Actor          models.Actor
}

func (d PostTransactionDTO) validate() error {
	if err := d.Actor.Validate(); err != nil {
		return err
	}
	if !d.Amount.IsPositive() {
		return models.NewValidationError("transaction amount must be positive")
	}
	if d.IdempotencyKey == "" {
		return models.NewValidationError("idempotency key must not be empty")
	}
	switch d.PaymentType {
	case models.PaymentCollection, models.PaymentPayout, models.PaymentRefund,
		models.PaymentCommission, models.PaymentFee, models.PaymentTax, models.PaymentAdjustment:
	default:
		return models.NewValidationError("unknown payment type " + d.PaymentType)
	}
	if d.ProviderCharge.IsNegative() || d.TaxAmount.IsNegative() || d.FeeAmount.IsNegative() || d.CashbackAmount.IsNegative() {
		return models.NewValidationError("deduction fields must not be negative")
	}
	return nil
}

// PostTransaction records a new monetary event in PENDING. Replaying the
// idempotency key returns the original transaction unchanged.
func (s *TransactionService) PostTransaction(data PostTransactionDTO) (*models.Transaction, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}

	var existing models.Transaction
	err := s.DB.Where("idempotency_key = ?", data.IdempotencyKey).First(&existing).Error
	if err == nil {
		if !existing.Amount.Equal(data.Amount) || existing.PaymentType != data.PaymentType {
			return nil, &models.IdempotencyConflictError{Key: data.IdempotencyKey}
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var wallet models.Wallet
	if err := s.DB.First(&wallet, data.WalletID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrWalletNotFound
		}
		return nil, err
	}

	trx := models.Transaction{
		ReferenceId:    common.GenerateReferenceID(),
		IdempotencyKey: data.IdempotencyKey,
		UserId:         data.UserId,
		WalletID:       data.WalletID,
		PaymentType:    data.PaymentType,
		Amount:         data.Amount,
		ProviderCharge: data.ProviderCharge,
		TaxAmount:      data.TaxAmount,
		FeeAmount:      data.FeeAmount,
		CashbackAmount: data.CashbackAmount,
		Status:         models.TxStatusPending,
		Narration:      data.Narration,
		InitiatedBy:    data.Actor.String(),
	}
	trx.NetAmount = trx.ComputeNetAmount()
	if err := trx.ValidateNetAmount(); err != nil {
		return nil, err
	}
	if err := s.DB.Create(&trx).Error; err != nil {
		return nil, err
	}
	log.Info().Str("reference_id", trx.ReferenceId).Str("payment_type", trx.PaymentType).
		Str("amount", trx.Amount.StringFixed(2)).Msg("transaction created")
	return &trx, nil
}

type SettleTransactionDTO struct {
	ReferenceId  string
	ProviderRef  *string
	ProviderResp string
	Commission   *DistributeDTO // nil when no upline earns on this event
	Actor        models.Actor
}

// Settle moves a PENDING transaction to SUCCESS: the wallet entry, the
// status change and the commission split commit as one atomic unit.
// Settling an already-SUCCESS transaction is an idempotent no-op.
func (s *TransactionService) Settle(data SettleTransactionDTO) (*models.Transaction, error) {
	var result *models.Transaction
	var failedEarning *models.CommissionEarning

	err := withVersionRetry(s.DB, func(tx *gorm.DB) error {
		failedEarning = nil
		trx, err := findTransaction(tx, data.ReferenceId)
		if err != nil {
			return err
		}
		if trx.Status == models.TxStatusSuccess {
			result = trx
			return nil
		}

		var split CommissionSplit
		haveCommission := false
		if data.Commission != nil {
			cfg, err := s.Commissions.ResolveConfig(tx, data.Commission.BeneficiaryID,
				data.Commission.BeneficiaryRole, data.Commission.Service, trx.Amount)
			if errors.Is(err, models.ErrCommissionConfigNotFound) {
				log.Warn().Str("reference_id", trx.ReferenceId).Int("beneficiary", data.Commission.BeneficiaryID).
					Msg("no commission configuration, commission step skipped")
			} else if err != nil {
				return err
			} else {
				split = ComputeSplit(cfg, trx.Amount)
				haveCommission = true
			}
		}

		if haveCommission {
			trx.TotalCommission = split.CommissionAmount
			trx.RootCommission = split.RootCommissionAmount
		}
		trx.NetAmount = trx.ComputeNetAmount()
		if err := trx.MarkAsSuccess(data.ProviderRef, data.ProviderResp); err != nil {
			return err
		}
		if err := trx.ValidateNetAmount(); err != nil {
			return err
		}
		if err := tx.Save(trx).Error; err != nil {
			return err
		}

		if err := s.postSettlementEntry(tx, trx, data.Actor); err != nil {
			return err
		}

		if haveCommission {
			earning, _, err := s.Commissions.DistributeSplitInTx(tx, trx, split, *data.Commission)
			if err != nil {
				return err
			}
			if earning != nil && earning.Status == models.EarningFailed {
				failedEarning = earning
			}
		}

		result = trx
		return nil
	})
	if err != nil {
		return nil, err
	}

	if failedEarning != nil && data.Commission != nil {
		s.enqueueCommissionRetry(failedEarning.ID, *data.Commission)
	}
	return result, nil
}

// postSettlementEntry applies the transaction's own amount to its wallet:
// collections credit the net amount, payouts debit the gross.
func (s *TransactionService) postSettlementEntry(tx *gorm.DB, trx *models.Transaction, actor models.Actor) error {
	entryType := models.EntryTypeCredit
	refType := models.ReferenceCollection
	amount := trx.NetAmount
	switch trx.PaymentType {
	case models.PaymentPayout:
		entryType = models.EntryTypeDebit
		refType = models.ReferencePayout
		amount = trx.Amount
	case models.PaymentFee, models.PaymentTax:
		entryType = models.EntryTypeDebit
		refType = models.ReferenceFee
		if trx.PaymentType == models.PaymentTax {
			refType = models.ReferenceTax
		}
		amount = trx.Amount
	case models.PaymentCollection:
	default:
		refType = models.ReferenceTransaction
	}
	if !amount.IsPositive() {
		return nil
	}
	txnID := trx.ID
	_, err := s.Ledger.PostInTx(tx, PostEntryDTO{
		WalletID:       trx.WalletID,
		EntryType:      entryType,
		ReferenceType:  refType,
		Amount:         amount,
		Narration:      settlementNarration(trx),
		IdempotencyKey: trx.ReferenceId + ":settlement",
		TransactionID:  &txnID,
		Actor:          actor,
	})
	return err
}

func settlementNarration(trx *models.Transaction) string {
	if trx.Narration != "" {
		return trx.Narration
	}
	return trx.PaymentType + " " + trx.ReferenceId
}

func (s *TransactionService) enqueueCommissionRetry(earningID uint, data DistributeDTO) {
	if s.Queue == nil {
		return
	}
	task, err := NewCommissionRetryTask(CommissionRetryPayload{
		EarningID:       earningID,
		BeneficiaryRole: data.BeneficiaryRole,
		Service:         data.Service,
		Actor:           data.Actor,
	})
	if err == nil {
		_, err = s.Queue.Enqueue(task)
	}
	if err != nil {
		log.Error().Err(err).Uint("earning_id", earningID).Msg("failed to enqueue commission retry")
	}
}

// MarkFailed records a provider failure on a PENDING transaction.
func (s *TransactionService) MarkFailed(referenceId, reason string) (*models.Transaction, error) {
	return s.updateTransaction(referenceId, func(trx *models.Transaction) error {
		return trx.MarkAsFailed(reason)
	})
}

// Cancel aborts a PENDING transaction.
func (s *TransactionService) Cancel(referenceId string) (*models.Transaction, error) {
	return s.updateTransaction(referenceId, func(trx *models.Transaction) error {
		return trx.MarkAsCancelled()
	})
}

// Reverse is the administrative compensating transition: it undoes the
// settlement entry and moves the transaction to REVERSED.
func (s *TransactionService) Reverse(referenceId string, actor models.Actor) (*models.Transaction, error) {
	var result *models.Transaction
	err := withVersionRetry(s.DB, func(tx *gorm.DB) error {
		trx, err := findTransaction(tx, referenceId)
		if err != nil {
			return err
		}
		if err := trx.MarkAsReversed(); err != nil {
			return err
		}
		if err := trx.ValidateNetAmount(); err != nil {
			return err
		}
		if err := tx.Save(trx).Error; err != nil {
			return err
		}

		entryType := models.EntryTypeDebit
		amount := trx.NetAmount
		if trx.PaymentType == models.PaymentPayout {
			entryType = models.EntryTypeCredit
			amount = trx.Amount
		}
		if amount.IsPositive() {
			txnID := trx.ID
			if _, err := s.Ledger.PostInTx(tx, PostEntryDTO{
				WalletID:       trx.WalletID,
				EntryType:      entryType,
				ReferenceType:  models.ReferenceAdjustment,
				Amount:         amount,
				Narration:      "Reversal of " + trx.ReferenceId,
				IdempotencyKey: trx.ReferenceId + ":reversal",
				TransactionID:  &txnID,
				Actor:          actor,
			}); err != nil {
				return err
			}
		}
		result = trx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetByReference fetches a transaction by its generated reference.
func (s *TransactionService) GetByReference(referenceId string) (*models.Transaction, error) {
	return findTransaction(s.DB, referenceId)
}

func (s *TransactionService) updateTransaction(referenceId string, mutate func(*models.Transaction) error) (*models.Transaction, error) {
	var result *models.Transaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		trx, err := findTransaction(tx, referenceId)
		if err != nil {
			return err
		}
		if err := mutate(trx); err != nil {
			return err
		}
		if err := trx.ValidateNetAmount(); err != nil {
			return err
		}
		if err := tx.Save(trx).Error; err != nil {
			return err
		}
		result = trx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func findTransaction(tx *gorm.DB, referenceId string) (*models.Transaction, error) {
	var trx models.Transaction
	err := tx.Where("reference_id = ?", referenceId).First(&trx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &trx, nil
}
