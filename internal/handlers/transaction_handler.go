package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"fincore-service/internal/services"
	"fincore-service/pkg/common"
)

type TransactionHandler struct {
	Transactions *services.TransactionService
	Refunds      *services.RefundService
}

func NewTransactionHandler(transactions *services.TransactionService, refunds *services.RefundService) *TransactionHandler {
	return &TransactionHandler{Transactions: transactions, Refunds: refunds}
}

type PostTransactionRequest struct {
	UserId         int             `json:"user_id" binding:"required"`
	WalletID       uint            `json:"wallet_id" binding:"required"`
	PaymentType    string          `json:"payment_type" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	ProviderCharge decimal.Decimal `json:"provider_charge"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	FeeAmount      decimal.Decimal `json:"fee_amount"`
	CashbackAmount decimal.Decimal `json:"cashback_amount"`
	Narration      string          `json:"narration"`
	IdempotencyKey string          `json:"idempotency_key" binding:"required"`
	Actor          ActorRequest    `json:"actor" binding:"required"`
}

func (h *TransactionHandler) PostTransaction(c *gin.Context) {
	var req PostTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}

	trx, err := h.Transactions.PostTransaction(services.PostTransactionDTO{
		UserId:         req.UserId,
		WalletID:       req.WalletID,
		PaymentType:    req.PaymentType,
		Amount:         req.Amount,
		ProviderCharge: req.ProviderCharge,
		TaxAmount:      req.TaxAmount,
		FeeAmount:      req.FeeAmount,
		CashbackAmount: req.CashbackAmount,
		Narration:      req.Narration,
		IdempotencyKey: req.IdempotencyKey,
		Actor:          req.Actor.toActor(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewSuccessResponse(trx, "Transaction created"))
}

type CommissionRequest struct {
	BeneficiaryID   int    `json:"beneficiary_id" binding:"required"`
	BeneficiaryRole string `json:"beneficiary_role"`
	Service         string `json:"service"`
	RootID          int    `json:"root_id"`
}

type SettleRequest struct {
	ProviderRef  *string            `json:"provider_ref"`
	ProviderResp string             `json:"provider_response"`
	Commission   *CommissionRequest `json:"commission"`
	Actor        ActorRequest       `json:"actor" binding:"required"`
}

func (h *TransactionHandler) Settle(c *gin.Context) {
	var req SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}

	dto := services.SettleTransactionDTO{
		ReferenceId:  c.Param("reference"),
		ProviderRef:  req.ProviderRef,
		ProviderResp: req.ProviderResp,
		Actor:        req.Actor.toActor(),
	}
	if req.Commission != nil {
		dto.Commission = &services.DistributeDTO{
			BeneficiaryID:   req.Commission.BeneficiaryID,
			BeneficiaryRole: req.Commission.BeneficiaryRole,
			Service:         req.Commission.Service,
			RootID:          req.Commission.RootID,
			Actor:           req.Actor.toActor(),
		}
	}

	trx, err := h.Transactions.Settle(dto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(trx, "Transaction settled"))
}

type FailRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *TransactionHandler) Fail(c *gin.Context) {
	var req FailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}
	trx, err := h.Transactions.MarkFailed(c.Param("reference"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(trx, "Transaction failed"))
}

func (h *TransactionHandler) Cancel(c *gin.Context) {
	trx, err := h.Transactions.Cancel(c.Param("reference"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(trx, "Transaction cancelled"))
}

type ReverseRequest struct {
	Actor ActorRequest `json:"actor" binding:"required"`
}

func (h *TransactionHandler) Reverse(c *gin.Context) {
	var req ReverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}
	trx, err := h.Transactions.Reverse(c.Param("reference"), req.Actor.toActor())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(trx, "Transaction reversed"))
}

func (h *TransactionHandler) Get(c *gin.Context) {
	trx, err := h.Transactions.GetByReference(c.Param("reference"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(trx, "Transaction fetched"))
}

type RefundRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Reason string          `json:"reason"`
	Actor  ActorRequest    `json:"actor" binding:"required"`
}

func (h *TransactionHandler) Refund(c *gin.Context) {
	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}
	refund, err := h.Refunds.RefundTransaction(services.RefundDTO{
		ReferenceId: c.Param("reference"),
		Amount:      req.Amount,
		Reason:      req.Reason,
		Actor:       req.Actor.toActor(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(refund, "Refund processed"))
}

func (h *TransactionHandler) ListRefunds(c *gin.Context) {
	refunds, err := h.Refunds.ListRefunds(c.Param("reference"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(refunds, "Refunds fetched"))
}
