package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domainerrors "paymentcore.backend/internal/domain/errors"
	"paymentcore.backend/internal/interfaces/http/middleware"
	"paymentcore.backend/internal/interfaces/http/response"
	"paymentcore.backend/internal/usecases"
)

// PaymentHandler exposes the Payment Orchestrator over HTTP.
type PaymentHandler struct {
	paymentUsecase *usecases.PaymentUsecase
}

func NewPaymentHandler(paymentUsecase *usecases.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{paymentUsecase: paymentUsecase}
}

type initiatePaymentRequest struct {
	Amount          decimal.Decimal `json:"amount" binding:"required"`
	Currency        string          `json:"currency"`
	WalletID        uuid.UUID       `json:"walletId" binding:"required"`
	ClientRequestID string          `json:"clientRequestId" binding:"required"`
	Provider        string          `json:"provider"`
}

// Initiate handles POST /api/v1/payment.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("missing identity"))
		return
	}

	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	result, err := h.paymentUsecase.InitiatePayment(c.Request.Context(), userID, usecases.InitiateRequest{
		Amount:          req.Amount,
		Currency:        req.Currency,
		WalletID:        req.WalletID,
		ClientRequestID: req.ClientRequestID,
		Provider:        req.Provider,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusOK
	if result.IsNew {
		status = http.StatusCreated
	}
	response.Success(c, status, gin.H{
		"paymentId": result.PaymentID,
		"version":   result.Version,
		"isNew":     result.IsNew,
	})
}

type processPaymentRequest struct {
	PaymentMethodToken string `json:"paymentMethodToken"`
	PaymentMethodID    string `json:"paymentMethodId"`
	Provider           string `json:"provider"`
}

// Process handles POST /api/v1/payment/{id}/process.
func (h *PaymentHandler) Process(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("missing identity"))
		return
	}
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid payment id"))
		return
	}

	var req processPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	token := req.PaymentMethodToken
	if token == "" {
		// Resolved payment-method lookup is out of scope (saved
		// payment-method CRUD); treat the id as the token directly.
		token = req.PaymentMethodID
	}
	if token == "" {
		response.Error(c, domainerrors.BadRequest("paymentMethodToken or paymentMethodId is required"))
		return
	}

	result, err := h.paymentUsecase.ProcessPayment(c.Request.Context(), userID, paymentID, usecases.ProcessRequest{
		PaymentMethodToken: token,
		Provider:           req.Provider,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, processResultToJSON(result))
}

// List handles GET /api/v1/payment?page=N: the authenticated user's
// payments, ten per page, newest first.
func (h *PaymentHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("missing identity"))
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	result, err := h.paymentUsecase.ListPayments(c.Request.Context(), userID, page)
	if err != nil {
		response.Error(c, err)
		return
	}

	payments := make([]gin.H, 0, len(result.Payments))
	for _, p := range result.Payments {
		payments = append(payments, processResultToJSON(p))
	}
	response.Success(c, http.StatusOK, gin.H{
		"payments": payments,
		"meta":     result.Meta,
	})
}

// Status handles GET /api/v1/payment/{id}/status.
func (h *PaymentHandler) Status(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("missing identity"))
		return
	}
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid payment id"))
		return
	}

	result, err := h.paymentUsecase.CheckStatus(c.Request.Context(), userID, paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, processResultToJSON(result))
}

func processResultToJSON(r *usecases.ProcessResult) gin.H {
	return gin.H{
		"paymentId": r.PaymentID,
		"status":    r.Status,
		"message":   r.Message,
		"amount":    r.Amount,
		"currency":  r.Currency,
		"createdAt": r.CreatedAt,
		"updatedAt": r.UpdatedAt,
	}
}
