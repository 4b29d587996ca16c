package services

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fincore-service/internal/models"
)

// RefundService reverses settled transactions, wholly or in parts. The sum
// of SUCCESS refunds never exceeds the transaction's net amount.
type RefundService struct {
	DB     *gorm.DB
	Ledger *LedgerService
}

func NewRefundService(db *gorm.DB, ledger *LedgerService) *RefundService {
	return &RefundService{DB: db, Ledger: ledger}
}

type RefundDTO struct {
	ReferenceId string
	Amount      decimal.Decimal
	Reason      string
	Actor       models.Actor
}

// RefundTransaction posts a compensating entry on the originating wallet
// and records the refund. When the refundable amount is exhausted the
// transaction transitions to REFUNDED.
func (s *RefundService) RefundTransaction(data RefundDTO) (*models.Refund, error) {
	if err := data.Actor.Validate(); err != nil {
		return nil, err
	}
	if !data.Amount.IsPositive() {
		return nil, models.NewValidationError("refund amount must be positive")
	}

	var refund *models.Refund
	err := withVersionRetry(s.DB, func(tx *gorm.DB) error {
		trx, err := findTransaction(tx, data.ReferenceId)
		if err != nil {
			return err
		}
		if !trx.CanRefund() {
			return &models.StateTransitionError{Entity: "transaction", From: trx.Status, To: models.TxStatusRefunded}
		}

		refunded, err := s.refundedTotal(tx, trx.ID)
		if err != nil {
			return err
		}
		refundable := trx.NetAmount.Sub(refunded)
		if data.Amount.GreaterThan(refundable) {
			return fmt.Errorf("%w: requested %s, refundable %s",
				models.ErrRefundExceedsBalance, data.Amount.StringFixed(2), refundable.StringFixed(2))
		}

		r := models.Refund{
			TransactionID: trx.ID,
			Amount:        data.Amount,
			Status:        models.RefundPending,
			Reason:        data.Reason,
			InitiatedBy:   data.Actor.String(),
		}
		if err := tx.Create(&r).Error; err != nil {
			return err
		}

		// A collection credited the wallet at settlement, so its refund
		// debits; a payout is the mirror image.
		entryType := models.EntryTypeDebit
		if trx.PaymentType == models.PaymentPayout {
			entryType = models.EntryTypeCredit
		}
		txnID := trx.ID
		if _, err := s.Ledger.PostInTx(tx, PostEntryDTO{
			WalletID:       trx.WalletID,
			EntryType:      entryType,
			ReferenceType:  models.ReferenceRefund,
			Amount:         data.Amount,
			Narration:      refundNarration(trx.ReferenceId, data.Reason),
			IdempotencyKey: fmt.Sprintf("%s:refund:%d", trx.ReferenceId, r.ID),
			TransactionID:  &txnID,
			Actor:          data.Actor,
		}); err != nil {
			return err
		}

		if err := r.MarkSuccess(); err != nil {
			return err
		}
		if err := tx.Model(&r).Update("status", r.Status).Error; err != nil {
			return err
		}

		if refunded.Add(data.Amount).Equal(trx.NetAmount) {
			if err := trx.MarkAsRefunded(); err != nil {
				return err
			}
			if err := trx.ValidateNetAmount(); err != nil {
				return err
			}
			if err := tx.Save(trx).Error; err != nil {
				return err
			}
		}

		refund = &r
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("reference_id", data.ReferenceId).Str("amount", data.Amount.StringFixed(2)).
		Str("actor", data.Actor.String()).Msg("refund processed")
	return refund, nil
}

// ListRefunds returns all refunds recorded against a transaction.
func (s *RefundService) ListRefunds(referenceId string) ([]models.Refund, error) {
	trx, err := findTransaction(s.DB, referenceId)
	if err != nil {
		return nil, err
	}
	var refunds []models.Refund
	if err := s.DB.Where("transaction_id = ?", trx.ID).Order("created_at ASC").Find(&refunds).Error; err != nil {
		return nil, err
	}
	return refunds, nil
}

func (s *RefundService) refundedTotal(tx *gorm.DB, transactionID uint) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := tx.Model(&models.Refund{}).
		Where("transaction_id = ? AND status = ?", transactionID, models.RefundSuccess).
		Select("SUM(amount)").Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func refundNarration(referenceId, reason string) string {
	if reason == "" {
		return "Refund of " + referenceId
	}
	return "Refund of " + referenceId + ": " + reason
}
