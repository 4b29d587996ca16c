package services

import (
	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fincore-service/internal/models"
)

// ReconciliationService replays each wallet's ledger and verifies that the
// running-balance chain and the stored wallet balance agree. Drift is
// logged, never auto-corrected: the ledger is the record of truth and a
// mismatch needs an operator.
type ReconciliationService struct {
	DB    *gorm.DB
	Queue *asynq.Client // optional; nil runs sweeps in-process
}

func NewReconciliationService(db *gorm.DB, queue *asynq.Client) *ReconciliationService {
	return &ReconciliationService{DB: db, Queue: queue}
}

// ReconcileWallet replays one wallet's entries in order. Each entry's
// running balance must equal the previous one plus/minus its signed amount,
// and the final value must match the wallet's stored balance.
func (s *ReconciliationService) ReconcileWallet(walletID uint) (bool, error) {
	var wallet models.Wallet
	if err := s.DB.First(&wallet, walletID).Error; err != nil {
		return false, err
	}
	if err := wallet.Validate(); err != nil {
		log.Error().Err(err).Uint("wallet_id", walletID).Msg("wallet invariant violated")
		return false, nil
	}

	var entries []models.LedgerEntry
	if err := s.DB.Where("wallet_id = ?", walletID).
		Order("created_at ASC, id ASC").Find(&entries).Error; err != nil {
		return false, err
	}

	running := decimal.Zero
	for _, e := range entries {
		running = running.Add(e.SignedAmount())
		if !e.RunningBalance.Equal(running) {
			log.Error().Uint("wallet_id", walletID).Uint("entry_id", e.ID).
				Str("expected", running.StringFixed(2)).
				Str("recorded", e.RunningBalance.StringFixed(2)).
				Msg("running balance drift")
			return false, nil
		}
	}

	if !wallet.Balance.Equal(running) {
		log.Error().Uint("wallet_id", walletID).
			Str("ledger_balance", running.StringFixed(2)).
			Str("wallet_balance", wallet.Balance.StringFixed(2)).
			Msg("wallet balance does not match ledger")
		return false, nil
	}
	return true, nil
}

// ReconcileAll sweeps every wallet and returns the ids that failed.
func (s *ReconciliationService) ReconcileAll() ([]uint, error) {
	var ids []uint
	if err := s.DB.Model(&models.Wallet{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}

	var drifted []uint
	for _, id := range ids {
		ok, err := s.ReconcileWallet(id)
		if err != nil {
			return drifted, err
		}
		if !ok {
			drifted = append(drifted, id)
		}
	}
	if len(drifted) > 0 {
		log.Error().Ints("wallet_ids", toInts(drifted)).Msg("reconciliation sweep found drift")
	} else {
		log.Info().Int("wallets", len(ids)).Msg("reconciliation sweep clean")
	}
	return drifted, nil
}

// StartScheduler runs the sweep nightly at 02:00.
func (s *ReconciliationService) StartScheduler() {
	c := cron.New()
	_, err := c.AddFunc("0 2 * * *", s.runSweep)
	if err != nil {
		log.Error().Err(err).Msg("failed to schedule reconciliation sweep")
		return
	}
	c.Start()
	log.Info().Msg("Ledger reconciliation scheduler started (daily at 02:00)")
}

// runSweep hands the sweep to the worker when a queue is configured,
// falling back to an in-process run.
func (s *ReconciliationService) runSweep() {
	if s.Queue != nil {
		task, err := NewLedgerReconcileTask(ReconcilePayload{})
		if err == nil {
			_, err = s.Queue.Enqueue(task)
		}
		if err == nil {
			return
		}
		log.Error().Err(err).Msg("failed to enqueue reconciliation sweep, running in-process")
	}
	if _, err := s.ReconcileAll(); err != nil {
		log.Error().Err(err).Msg("reconciliation sweep failed")
	}
}

func toInts(ids []uint) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}
