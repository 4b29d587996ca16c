package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"fincore-service/internal/services"
)

type Worker struct {
	Commissions    *services.CommissionService
	Reconciliation *services.ReconciliationService
}

func NewWorker(commissions *services.CommissionService, reconciliation *services.ReconciliationService) *Worker {
	return &Worker{Commissions: commissions, Reconciliation: reconciliation}
}

func (w *Worker) HandleCommissionRetry(ctx context.Context, t *asynq.Task) error {
	var p services.CommissionRetryPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	err := w.Commissions.RetryEarning(p.EarningID, services.DistributeDTO{
		BeneficiaryRole: p.BeneficiaryRole,
		Service:         p.Service,
		Actor:           p.Actor,
	})
	if err != nil {
		log.Warn().Err(err).Uint("earning_id", p.EarningID).Msg("commission retry failed")
		return err
	}
	log.Info().Uint("earning_id", p.EarningID).Msg("commission retry processed")
	return nil
}

func (w *Worker) HandleLedgerReconcile(ctx context.Context, t *asynq.Task) error {
	var p services.ReconcilePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if p.WalletID == 0 {
		_, err := w.Reconciliation.ReconcileAll()
		return err
	}
	ok, err := w.Reconciliation.ReconcileWallet(p.WalletID)
	if err != nil {
		return err
	}
	if !ok {
		log.Error().Uint("wallet_id", p.WalletID).Msg("reconcile task found drift")
	}
	return nil
}

func StartWorker(redisOpt asynq.RedisClientOpt, commissions *services.CommissionService, reconciliation *services.ReconciliationService) {
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	worker := NewWorker(commissions, reconciliation)
	mux := asynq.NewServeMux()

	mux.HandleFunc(services.TaskCommissionRetry, worker.HandleCommissionRetry)
	mux.HandleFunc(services.TaskLedgerReconcile, worker.HandleLedgerReconcile)

	if err := srv.Run(mux); err != nil {
		log.Fatal().Err(err).Msg("could not run worker server")
	}
}
