package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bondplatform/bond-backend/internal/pkg/apperror"
	"github.com/bondplatform/bond-backend/internal/service"
)

// ContractHandler предоставляет HTTP слой жизненного цикла контрактов.
type ContractHandler struct {
	contracts  *service.ContractService
	milestones *service.MilestoneService
}

// NewContractHandler создаёт хэндлер.
func NewContractHandler(contracts *service.ContractService, milestones *service.MilestoneService) *ContractHandler {
	return &ContractHandler{contracts: contracts, milestones: milestones}
}

// Create обрабатывает POST /contracts.
func (h *ContractHandler) Create(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}

	var req struct {
		Title           string  `json:"title" binding:"required"`
		Description     string  `json:"description" binding:"required"`
		FreelancerID    string  `json:"freelancer_id"`
		FreelancerEmail string  `json:"freelancer_email"`
		TotalAmount     float64 `json:"total_amount" binding:"required,gt=0"`
		Currency        string  `json:"currency" binding:"required"`
		Draft           bool    `json:"draft"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректное тело запроса"))
		return
	}

	in := service.CreateContractInput{
		Title:           req.Title,
		Description:     req.Description,
		FreelancerEmail: req.FreelancerEmail,
		TotalAmount:     req.TotalAmount,
		Currency:        req.Currency,
		Draft:           req.Draft,
	}
	if req.FreelancerID != "" {
		freelancerID, err := uuid.Parse(req.FreelancerID)
		if err != nil {
			fail(c, apperror.New(apperror.ErrCodeValidation, "неверный freelancer_id"))
			return
		}
		in.FreelancerID = &freelancerID
	}

	contract, err := h.contracts.CreateContract(c.Request.Context(), userID, role, in)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, contract)
}

// Get обрабатывает GET /contracts/:id. Отдаёт контракт вместе с вехами.
func (h *ContractHandler) Get(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}
	contractID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	contract, err := h.contracts.GetContract(c.Request.Context(), userID, role, contractID)
	if err != nil {
		fail(c, err)
		return
	}

	milestones, err := h.milestones.ListByContract(c.Request.Context(), userID, role, contractID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contract":   contract,
		"milestones": milestones,
	})
}

// List обрабатывает GET /contracts.
func (h *ContractHandler) List(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	contracts, err := h.contracts.ListMyContracts(c.Request.Context(), userID, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"contracts": contracts})
}

// SendInvitation обрабатывает POST /contracts/:id/send.
func (h *ContractHandler) SendInvitation(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	contractID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	contract, err := h.contracts.SendInvitation(c.Request.Context(), userID, contractID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// Accept обрабатывает POST /contracts/:id/accept.
func (h *ContractHandler) Accept(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	contractID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	contract, err := h.contracts.AcceptContract(c.Request.Context(), userID, contractID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// Reject обрабатывает POST /contracts/:id/reject.
func (h *ContractHandler) Reject(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	contractID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	contract, err := h.contracts.RejectContract(c.Request.Context(), userID, contractID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// Fund обрабатывает POST /contracts/:id/fund.
func (h *ContractHandler) Fund(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	contractID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Amount        float64 `json:"amount" binding:"required,gt=0"`
		SettlementRef *string `json:"settlement_ref"`
		PaymentMethod *string `json:"payment_method"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperror.Wrap(err, apperror.ErrCodeValidation, "сумма должна быть положительной"))
		return
	}

	contract, err := h.contracts.FundContract(c.Request.Context(), userID, contractID, service.FundInput{
		Amount:        req.Amount,
		SettlementRef: req.SettlementRef,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// UpdateStatus обрабатывает PATCH /contracts/:id/status.
func (h *ContractHandler) UpdateStatus(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}
	contractID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperror.Wrap(err, apperror.ErrCodeValidation, "status обязателен"))
		return
	}

	contract, err := h.contracts.UpdateStatus(c.Request.Context(), userID, role, contractID, req.Status)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// RequestDeletion обрабатывает POST /contracts/:id/deletion-request.
func (h *ContractHandler) RequestDeletion(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	contractID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	contract, err := h.contracts.RequestDeletion(c.Request.Context(), userID, contractID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// ConfirmDeletion обрабатывает POST /contracts/:id/deletion-confirm.
func (h *ContractHandler) ConfirmDeletion(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	contractID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.contracts.ConfirmDeletion(c.Request.Context(), userID, contractID); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Delete обрабатывает DELETE /contracts/:id.
func (h *ContractHandler) Delete(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	contractID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.contracts.DeleteContract(c.Request.Context(), userID, contractID); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// GetEscrow обрабатывает GET /contracts/:id/escrow.
func (h *ContractHandler) GetEscrow(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}
	contractID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	escrow, err := h.contracts.GetEscrow(c.Request.Context(), userID, role, contractID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, escrow)
}
