package services

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fincore-service/internal/models"
)

// CommissionService resolves the applicable rate card for a settled
// transaction and distributes the beneficiary and platform splits, each
// backed by its own ledger posting.
type CommissionService struct {
	DB     *gorm.DB
	Ledger *LedgerService
}

func NewCommissionService(db *gorm.DB, ledger *LedgerService) *CommissionService {
	return &CommissionService{DB: db, Ledger: ledger}
}

// CommissionSplit is the computed outcome of applying a config to a
// transaction amount.
type CommissionSplit struct {
	CommissionAmount     decimal.Decimal
	RootCommissionAmount decimal.Decimal
	TdsAmount            decimal.Decimal
	GstAmount            decimal.Decimal
	NetAmount            decimal.Decimal
	CommissionType       string
}

var oneHundred = decimal.NewFromInt(100)

// ComputeSplit applies the config to amount. The commission is clipped to
// [0, amount]; the net never goes negative.
func ComputeSplit(cfg *models.CommissionConfig, amount decimal.Decimal) CommissionSplit {
	var commission decimal.Decimal
	switch cfg.CommissionType {
	case models.CommissionFlat:
		commission = cfg.Value.Round(2)
	default:
		commission = amount.Mul(cfg.Value).Div(oneHundred).Round(2)
	}
	if commission.IsNegative() {
		commission = decimal.Zero
	}
	if commission.GreaterThan(amount) {
		commission = amount
	}

	root := decimal.Zero
	if cfg.RootCommissionPercent.IsPositive() {
		root = commission.Mul(cfg.RootCommissionPercent).Div(oneHundred).Round(2)
	}

	tds := decimal.Zero
	if cfg.ApplyTds {
		tds = commission.Mul(cfg.TdsPercent).Div(oneHundred).Round(2)
	}
	gst := decimal.Zero
	if cfg.ApplyGst {
		gst = commission.Mul(cfg.GstPercent).Div(oneHundred).Round(2)
	}

	net := decimal.Max(decimal.Zero, commission.Add(root).Sub(tds.Add(gst)))

	return CommissionSplit{
		CommissionAmount:     commission,
		RootCommissionAmount: root,
		TdsAmount:            tds,
		GstAmount:            gst,
		NetAmount:            net,
		CommissionType:       cfg.CommissionType,
	}
}

// ResolveConfig finds the applicable commission configuration. A
// user-specific override beats the role default; within each, a
// service-scoped row beats an unscoped one. Slab bounds are applied to the
// transaction amount.
func (s *CommissionService) ResolveConfig(tx *gorm.DB, userID int, role, service string, amount decimal.Decimal) (*models.CommissionConfig, error) {
	var candidates []models.CommissionConfig
	err := tx.Where("is_active = ?", true).
		Where("user_id = ? OR (user_id IS NULL AND role = ?)", userID, role).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	var applicable []models.CommissionConfig
	for _, c := range candidates {
		if c.Service != nil && *c.Service != service {
			continue
		}
		if !c.AppliesTo(amount) {
			continue
		}
		applicable = append(applicable, c)
	}
	if len(applicable) == 0 {
		return nil, models.ErrCommissionConfigNotFound
	}

	sort.SliceStable(applicable, func(i, j int) bool {
		return configRank(&applicable[i]) < configRank(&applicable[j])
	})
	cfg := applicable[0]
	return &cfg, nil
}

func configRank(c *models.CommissionConfig) int {
	rank := 0
	if c.UserId == nil {
		rank += 2 // role default loses to user override
	}
	if c.Service == nil {
		rank++ // unscoped loses to service-scoped
	}
	return rank
}

type DistributeDTO struct {
	BeneficiaryID   int
	BeneficiaryRole string
	Service         string
	RootID          int
	Actor           models.Actor
}

// DistributeSplitInTx persists the earning pair and posts their ledger
// credits. Both earning records and both credits commit together; if either
// wallet cannot be posted to, the earnings are recorded FAILED and no
// wallet is touched.
func (s *CommissionService) DistributeSplitInTx(tx *gorm.DB, trx *models.Transaction, split CommissionSplit, data DistributeDTO) (*models.CommissionEarning, *models.RootCommissionEarning, error) {
	earning := models.CommissionEarning{
		TransactionID:        trx.ID,
		UserId:               data.BeneficiaryID,
		FromUserId:           trx.UserId,
		Amount:               trx.Amount,
		CommissionAmount:     split.CommissionAmount,
		RootCommissionAmount: split.RootCommissionAmount,
		CommissionType:       split.CommissionType,
		TdsAmount:            split.TdsAmount,
		GstAmount:            split.GstAmount,
		NetAmount:            split.NetAmount,
		Status:               models.EarningPending,
	}
	if err := earning.Validate(); err != nil {
		return nil, nil, err
	}
	rootEarning := models.RootCommissionEarning{
		TransactionID:        trx.ID,
		RootId:               data.RootID,
		FromUserId:           trx.UserId,
		Amount:               trx.Amount,
		CommissionAmount:     split.CommissionAmount,
		RootCommissionAmount: split.RootCommissionAmount,
		CommissionType:       split.CommissionType,
		TdsAmount:            split.TdsAmount,
		GstAmount:            split.GstAmount,
		NetAmount:            split.NetAmount,
		Status:               models.EarningPending,
	}
	if err := tx.Create(&earning).Error; err != nil {
		return nil, nil, err
	}
	if err := tx.Create(&rootEarning).Error; err != nil {
		return nil, nil, err
	}

	// The pair of postings is all-or-nothing: a savepoint lets a failure on
	// the second wallet undo the first wallet's credit while the FAILED
	// earning records above still commit.
	if err := tx.SavePoint("commission_postings").Error; err != nil {
		return nil, nil, err
	}
	if err := s.postSplit(tx, trx, &earning, &rootEarning, data); err != nil {
		if !models.IsClientError(err) && !models.IsNotFound(err) {
			return nil, nil, err
		}
		if rbErr := tx.RollbackTo("commission_postings").Error; rbErr != nil {
			return nil, nil, rbErr
		}
		reason := err.Error()
		if markErr := earning.MarkFailed(reason); markErr == nil {
			tx.Model(&earning).Updates(map[string]interface{}{"status": earning.Status, "failure_reason": reason})
		}
		if markErr := rootEarning.MarkFailed(reason); markErr == nil {
			tx.Model(&rootEarning).Updates(map[string]interface{}{"status": rootEarning.Status, "failure_reason": reason})
		}
		log.Warn().Err(err).Str("reference_id", trx.ReferenceId).Int("beneficiary", data.BeneficiaryID).
			Msg("commission posting failed, earnings marked FAILED")
		return &earning, &rootEarning, nil
	}

	if err := earning.MarkProcessed(); err != nil {
		return nil, nil, err
	}
	if err := rootEarning.MarkProcessed(); err != nil {
		return nil, nil, err
	}
	if err := tx.Model(&earning).Update("status", earning.Status).Error; err != nil {
		return nil, nil, err
	}
	if err := tx.Model(&rootEarning).Update("status", rootEarning.Status).Error; err != nil {
		return nil, nil, err
	}

	log.Info().Str("reference_id", trx.ReferenceId).Int("beneficiary", data.BeneficiaryID).
		Str("commission", split.CommissionAmount.StringFixed(2)).
		Str("root_commission", split.RootCommissionAmount.StringFixed(2)).
		Msg("commission distributed")
	return &earning, &rootEarning, nil
}

// postSplit credits the beneficiary's commission wallet and the root
// wallet. Posting order follows ascending wallet id so that concurrent
// distributions touching the same pair cannot deadlock.
func (s *CommissionService) postSplit(tx *gorm.DB, trx *models.Transaction, earning *models.CommissionEarning, rootEarning *models.RootCommissionEarning, data DistributeDTO) error {
	var beneficiaryWallet, rootWallet models.Wallet
	err := tx.Where("owner_id = ? AND owner_type = ? AND wallet_type = ?",
		data.BeneficiaryID, models.ActorUser, models.WalletTypeCommission).First(&beneficiaryWallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrWalletNotFound
	}
	if err != nil {
		return err
	}
	err = tx.Where("owner_id = ? AND owner_type = ?", data.RootID, models.ActorRoot).First(&rootWallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrWalletNotFound
	}
	if err != nil {
		return err
	}

	beneficiaryNet := decimal.Max(decimal.Zero,
		earning.CommissionAmount.Sub(earning.TdsAmount.Add(earning.GstAmount)))

	type posting struct {
		walletID uint
		amount   decimal.Decimal
		key      string
		note     string
	}
	postings := []posting{
		{
			walletID: beneficiaryWallet.ID,
			amount:   beneficiaryNet,
			key:      fmt.Sprintf("%s:user-%d:commission", trx.ReferenceId, data.BeneficiaryID),
			note:     fmt.Sprintf("Commission on %s", trx.ReferenceId),
		},
	}
	if rootEarning.RootCommissionAmount.IsPositive() {
		postings = append(postings, posting{
			walletID: rootWallet.ID,
			amount:   rootEarning.RootCommissionAmount,
			key:      fmt.Sprintf("%s:root-commission", trx.ReferenceId),
			note:     fmt.Sprintf("Root commission on %s", trx.ReferenceId),
		})
	}
	sort.Slice(postings, func(i, j int) bool { return postings[i].walletID < postings[j].walletID })

	for _, p := range postings {
		if !p.amount.IsPositive() {
			continue
		}
		txnID := trx.ID
		if _, err := s.Ledger.PostInTx(tx, PostEntryDTO{
			WalletID:       p.walletID,
			EntryType:      models.EntryTypeCredit,
			ReferenceType:  models.ReferenceCommission,
			Amount:         p.amount,
			Narration:      p.note,
			IdempotencyKey: p.key,
			TransactionID:  &txnID,
			Actor:          data.Actor,
		}); err != nil {
			return err
		}
	}
	return nil
}

// RetryEarning re-runs the ledger postings for a FAILED earning pair. The
// idempotency keys derived from the transaction reference make the retry
// safe against double credit.
func (s *CommissionService) RetryEarning(earningID uint, data DistributeDTO) error {
	return withVersionRetry(s.DB, func(tx *gorm.DB) error {
		var earning models.CommissionEarning
		if err := tx.First(&earning, earningID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewValidationError("commission earning not found")
			}
			return err
		}
		if earning.Status != models.EarningFailed {
			return &models.StateTransitionError{Entity: "commission earning", From: earning.Status, To: models.EarningProcessed}
		}

		var rootEarning models.RootCommissionEarning
		if err := tx.Where("transaction_id = ?", earning.TransactionID).First(&rootEarning).Error; err != nil {
			return err
		}
		var trx models.Transaction
		if err := tx.First(&trx, earning.TransactionID).Error; err != nil {
			return err
		}

		data.BeneficiaryID = earning.UserId
		data.RootID = rootEarning.RootId
		if err := s.postSplit(tx, &trx, &earning, &rootEarning, data); err != nil {
			return err
		}
		if err := earning.MarkProcessed(); err != nil {
			return err
		}
		if err := rootEarning.MarkProcessed(); err != nil {
			return err
		}
		if err := tx.Model(&earning).Updates(map[string]interface{}{"status": earning.Status, "failure_reason": ""}).Error; err != nil {
			return err
		}
		return tx.Model(&rootEarning).Updates(map[string]interface{}{"status": rootEarning.Status, "failure_reason": ""}).Error
	})
}
