package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"fincore-service/internal/models"
	"fincore-service/internal/services"
	"fincore-service/pkg/common"
)

type WalletHandler struct {
	Wallets *services.WalletService
	Ledger  *services.LedgerService
}

func NewWalletHandler(wallets *services.WalletService, ledger *services.LedgerService) *WalletHandler {
	return &WalletHandler{Wallets: wallets, Ledger: ledger}
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case models.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidStateTransition), errors.Is(err, models.ErrDuplicateIdempotencyKey):
		status = http.StatusConflict
	case models.IsClientError(err):
		status = http.StatusBadRequest
	}
	c.JSON(status, common.NewErrorResponse(err.Error(), nil, status))
}

func walletID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid wallet id", nil, http.StatusBadRequest))
		return 0, false
	}
	return uint(id), true
}

type ActorRequest struct {
	Kind string `json:"kind" binding:"required"`
	ID   int    `json:"id"`
}

func (a ActorRequest) toActor() models.Actor {
	return models.Actor{Kind: a.Kind, ID: a.ID}
}

type CreateWalletRequest struct {
	OwnerId             int              `json:"owner_id" binding:"required"`
	OwnerType           string           `json:"owner_type" binding:"required"`
	WalletType          string           `json:"wallet_type"`
	Currency            string           `json:"currency" binding:"required"`
	InitialBalance      decimal.Decimal  `json:"initial_balance"`
	DailyLimit          *decimal.Decimal `json:"daily_limit"`
	MonthlyLimit        *decimal.Decimal `json:"monthly_limit"`
	PerTransactionLimit *decimal.Decimal `json:"per_transaction_limit"`
	Actor               ActorRequest     `json:"actor" binding:"required"`
}

func (h *WalletHandler) CreateWallet(c *gin.Context) {
	var req CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}

	wallet, err := h.Wallets.CreateWallet(services.CreateWalletDTO{
		OwnerId:             req.OwnerId,
		OwnerType:           req.OwnerType,
		WalletType:          req.WalletType,
		Currency:            req.Currency,
		InitialBalance:      req.InitialBalance,
		DailyLimit:          req.DailyLimit,
		MonthlyLimit:        req.MonthlyLimit,
		PerTransactionLimit: req.PerTransactionLimit,
		Actor:               req.Actor.toActor(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewSuccessResponse(wallet, "Wallet created"))
}

func (h *WalletHandler) GetBalance(c *gin.Context) {
	id, ok := walletID(c)
	if !ok {
		return
	}
	res, err := h.Wallets.GetBalance(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *WalletHandler) GetLedgerHistory(c *gin.Context) {
	id, ok := walletID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	res, err := h.Ledger.GetLedgerHistory(services.LedgerHistoryDTO{
		WalletID:  id,
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type HoldRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Actor  ActorRequest    `json:"actor" binding:"required"`
}

func (h *WalletHandler) HoldFunds(c *gin.Context) {
	h.mutateHold(c, h.Wallets.HoldFunds, "Funds held")
}

func (h *WalletHandler) ReleaseHold(c *gin.Context) {
	h.mutateHold(c, h.Wallets.ReleaseHold, "Hold released")
}

func (h *WalletHandler) mutateHold(c *gin.Context, op func(services.HoldFundsDTO) (*models.Wallet, error), message string) {
	id, ok := walletID(c)
	if !ok {
		return
	}
	var req HoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}
	wallet, err := op(services.HoldFundsDTO{WalletID: id, Amount: req.Amount, Actor: req.Actor.toActor()})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(wallet, message))
}

type SettleHoldRequest struct {
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	IsDebit        bool            `json:"is_debit"`
	Narration      string          `json:"narration"`
	IdempotencyKey string          `json:"idempotency_key"`
	Actor          ActorRequest    `json:"actor" binding:"required"`
}

func (h *WalletHandler) SettleHold(c *gin.Context) {
	id, ok := walletID(c)
	if !ok {
		return
	}
	var req SettleHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}
	wallet, err := h.Wallets.SettleHold(services.SettleHoldDTO{
		WalletID:       id,
		Amount:         req.Amount,
		IsDebit:        req.IsDebit,
		Narration:      req.Narration,
		IdempotencyKey: req.IdempotencyKey,
		Actor:          req.Actor.toActor(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(wallet, "Hold settled"))
}

type DeactivateRequest struct {
	Actor ActorRequest `json:"actor" binding:"required"`
}

func (h *WalletHandler) Deactivate(c *gin.Context) {
	id, ok := walletID(c)
	if !ok {
		return
	}
	var req DeactivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}
	if err := h.Wallets.Deactivate(id, req.Actor.toActor()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(nil, "Wallet deactivated"))
}
