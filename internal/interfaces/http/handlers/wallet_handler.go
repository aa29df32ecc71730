package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paymentcore.backend/internal/domain/entities"
	domainerrors "paymentcore.backend/internal/domain/errors"
	"paymentcore.backend/internal/interfaces/http/middleware"
	"paymentcore.backend/internal/interfaces/http/response"
	"paymentcore.backend/internal/usecases"
)

// WalletHandler exposes the Wallet Ledger's reserve/confirm/cancel
// protocol and its query operations over HTTP.
type WalletHandler struct {
	walletUsecase *usecases.WalletUsecase
}

func NewWalletHandler(walletUsecase *usecases.WalletUsecase) *WalletHandler {
	return &WalletHandler{walletUsecase: walletUsecase}
}

func (h *WalletHandler) walletID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid wallet id"))
		return uuid.UUID{}, false
	}
	return id, true
}

type createWalletRequest struct {
	Currency string `json:"currency"`
}

// Create handles POST /api/v1/wallet: opens a new empty wallet for the
// authenticated user.
func (h *WalletHandler) Create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("missing identity"))
		return
	}

	var req createWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	wallet, err := h.walletUsecase.CreateWallet(c.Request.Context(), userID, req.Currency)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{
		"walletId": wallet.ID,
		"currency": wallet.Currency,
		"balance":  wallet.Balance,
		"version":  wallet.Version,
	})
}

type reserveRequest struct {
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Currency  string          `json:"currency"`
	PaymentID uuid.UUID       `json:"paymentId" binding:"required"`
}

// Reserve handles POST /api/v1/wallet/{id}/reserve.
func (h *WalletHandler) Reserve(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("missing identity"))
		return
	}
	walletID, ok := h.walletID(c)
	if !ok {
		return
	}

	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	result, err := h.walletUsecase.ReserveFunds(c.Request.Context(), walletID, userID, req.Amount, req.Currency, req.PaymentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"walletTransactionId": result.WalletTransactionID,
		"walletId":            result.WalletID,
		"amountReserved":      result.AmountReserved,
		"remainingBalance":    result.RemainingBalance,
	})
}

type confirmRequest struct {
	WalletTransactionID   uuid.UUID `json:"walletTransactionId" binding:"required"`
	ProviderTransactionID string    `json:"providerTransactionId"`
	Provider              string    `json:"provider"`
}

// Confirm handles POST /api/v1/wallet/{id}/confirm.
func (h *WalletHandler) Confirm(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("missing identity"))
		return
	}
	walletID, ok := h.walletID(c)
	if !ok {
		return
	}

	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	if err := h.walletUsecase.ConfirmReservation(c.Request.Context(), walletID, req.WalletTransactionID, req.ProviderTransactionID, req.Provider, userID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "reservation confirmed"})
}

type cancelRequest struct {
	WalletTransactionID uuid.UUID `json:"walletTransactionId" binding:"required"`
}

// Cancel handles POST /api/v1/wallet/{id}/cancel.
func (h *WalletHandler) Cancel(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("missing identity"))
		return
	}
	walletID, ok := h.walletID(c)
	if !ok {
		return
	}

	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	if err := h.walletUsecase.CancelReservation(c.Request.Context(), walletID, req.WalletTransactionID, userID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "reservation cancelled"})
}

// Balance handles GET /api/v1/wallet/{id}/balance.
func (h *WalletHandler) Balance(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("missing identity"))
		return
	}
	walletID, ok := h.walletID(c)
	if !ok {
		return
	}

	wallet, err := h.walletUsecase.GetBalance(c.Request.Context(), walletID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"walletId":        wallet.ID,
		"balance":         wallet.Balance,
		"reservedBalance": wallet.ReservedBalance,
		"available":       wallet.Available(),
		"currency":        wallet.Currency,
		"version":         wallet.Version,
	})
}

// History handles GET /api/v1/wallet/{id}/transactions?page=N.
func (h *WalletHandler) History(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("missing identity"))
		return
	}
	walletID, ok := h.walletID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	result, err := h.walletUsecase.TransactionHistory(c.Request.Context(), walletID, userID, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"transactions": result.Transactions,
		"meta":         result.Meta,
	})
}

type topUpRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// TopUp handles POST /api/v1/wallet/{id}/topup.
func (h *WalletHandler) TopUp(c *gin.Context) {
	walletID, ok := h.walletID(c)
	if !ok {
		return
	}

	var req topUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	if err := h.walletUsecase.TopUp(c.Request.Context(), walletID, req.Amount); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "top up successful"})
}

type transferRequest struct {
	RecipientWalletID uuid.UUID       `json:"recipientWalletId" binding:"required"`
	Amount            decimal.Decimal `json:"amount" binding:"required"`
}

// Transfer handles POST /api/v1/wallet/{id}/transfer.
func (h *WalletHandler) Transfer(c *gin.Context) {
	walletID, ok := h.walletID(c)
	if !ok {
		return
	}

	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	if err := h.walletUsecase.Transfer(c.Request.Context(), walletID, req.RecipientWalletID, req.Amount); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "transfer successful"})
}

// MonthlyAggregate handles GET /api/v1/wallet/{id}/aggregate?year=&month=&type=:
// the sum of the user's COMPLETED credits or debits for one month.
func (h *WalletHandler) MonthlyAggregate(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("missing identity"))
		return
	}

	now := time.Now()
	year, _ := strconv.Atoi(c.DefaultQuery("year", strconv.Itoa(now.Year())))
	monthInt, _ := strconv.Atoi(c.DefaultQuery("month", strconv.Itoa(int(now.Month()))))
	txType := entities.WalletTransactionType(c.DefaultQuery("type", string(entities.TransactionDebit)))

	sum, err := h.walletUsecase.MonthlyAggregate(c.Request.Context(), userID, year, time.Month(monthInt), txType)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"total": sum, "year": year, "month": monthInt, "type": txType})
}
