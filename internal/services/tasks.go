package services

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"fincore-service/internal/models"
)

// Task types handled by the asynq worker (internal/worker). Constructors
// live beside their payloads so the enqueueing services and the worker mux
// share one definition.
const (
	TaskCommissionRetry = "commission:retry"
	TaskLedgerReconcile = "ledger:reconcile"
)

type CommissionRetryPayload struct {
	EarningID       uint         `json:"earning_id"`
	BeneficiaryRole string       `json:"beneficiary_role"`
	Service         string       `json:"service"`
	Actor           models.Actor `json:"actor"`
}

// ReconcilePayload targets one wallet, or every wallet when WalletID is 0.
type ReconcilePayload struct {
	WalletID uint `json:"wallet_id"`
}

func NewCommissionRetryTask(payload CommissionRetryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCommissionRetry, data), nil
}

func NewLedgerReconcileTask(payload ReconcilePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerReconcile, data), nil
}
