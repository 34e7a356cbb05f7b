package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bondplatform/bond-backend/internal/pkg/apperror"
	"github.com/bondplatform/bond-backend/internal/service"
)

// PaymentHandler предоставляет HTTP слой платёжных операций:
// подтверждения от платёжных рейлов и журнал транзакций.
type PaymentHandler struct {
	payments *service.PaymentService
}

// NewPaymentHandler создаёт хэндлер.
func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Confirm обрабатывает POST /payments/confirm. Маршрут закрыт
// webhook-токеном платёжного адаптера, повторные доставки идемпотентны.
func (h *PaymentHandler) Confirm(c *gin.Context) {
	var req struct {
		ContractID    string  `json:"contract_id" binding:"required"`
		Amount        float64 `json:"amount" binding:"required,gt=0"`
		SettlementRef string  `json:"settlement_ref" binding:"required"`
		Method        string  `json:"method" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректное тело запроса"))
		return
	}

	contractID, err := uuid.Parse(req.ContractID)
	if err != nil {
		fail(c, apperror.New(apperror.ErrCodeValidation, "неверный contract_id"))
		return
	}

	contract, err := h.payments.ConfirmPayment(c.Request.Context(), service.ConfirmPaymentInput{
		ContractID:    contractID,
		Amount:        req.Amount,
		SettlementRef: req.SettlementRef,
		Method:        req.Method,
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// ListContractTransactions обрабатывает GET /contracts/:id/transactions.
func (h *PaymentHandler) ListContractTransactions(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}
	contractID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	limit, offset := pagination(c)

	transactions, err := h.payments.ListContractTransactions(c.Request.Context(), userID, role, contractID, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

// ListMyTransactions обрабатывает GET /payments/transactions.
func (h *PaymentHandler) ListMyTransactions(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	transactions, err := h.payments.ListMyTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}
