package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bondplatform/bond-backend/internal/pkg/apperror"
	"github.com/bondplatform/bond-backend/internal/service"
)

// DisputeHandler предоставляет HTTP слой разрешения споров.
type DisputeHandler struct {
	disputes *service.DisputeService
}

// NewDisputeHandler создаёт хэндлер.
func NewDisputeHandler(disputes *service.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputes: disputes}
}

// Create обрабатывает POST /contracts/:id/disputes.
func (h *DisputeHandler) Create(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	contractID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req struct {
		MilestoneID string `json:"milestone_id"`
		Reason      string `json:"reason" binding:"required"`
		Evidence    string `json:"evidence"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperror.Wrap(err, apperror.ErrCodeValidation, "reason обязателен"))
		return
	}

	in := service.CreateDisputeInput{
		Reason:   req.Reason,
		Evidence: req.Evidence,
	}
	if req.MilestoneID != "" {
		milestoneID, err := uuid.Parse(req.MilestoneID)
		if err != nil {
			fail(c, apperror.New(apperror.ErrCodeValidation, "неверный milestone_id"))
			return
		}
		in.MilestoneID = &milestoneID
	}

	dispute, err := h.disputes.CreateDispute(c.Request.Context(), userID, contractID, in)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, dispute)
}

// Get обрабатывает GET /disputes/:id.
func (h *DisputeHandler) Get(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}
	disputeID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	dispute, err := h.disputes.GetDispute(c.Request.Context(), userID, role, disputeID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// ListMy обрабатывает GET /disputes.
func (h *DisputeHandler) ListMy(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	disputes, err := h.disputes.ListMyDisputes(c.Request.Context(), userID, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"disputes": disputes})
}

// ListOpen обрабатывает GET /disputes/queue — очередь арбитра.
func (h *DisputeHandler) ListOpen(c *gin.Context) {
	_, role, ok := identity(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	disputes, err := h.disputes.ListOpenDisputes(c.Request.Context(), role, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"disputes": disputes})
}

// StartReview обрабатывает POST /disputes/:id/review.
func (h *DisputeHandler) StartReview(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}
	disputeID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	dispute, err := h.disputes.StartReview(c.Request.Context(), userID, role, disputeID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// Resolve обрабатывает POST /disputes/:id/resolve.
func (h *DisputeHandler) Resolve(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}
	disputeID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Outcome    string `json:"outcome" binding:"required"`
		Resolution string `json:"resolution" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperror.Wrap(err, apperror.ErrCodeValidation, "outcome и resolution обязательны"))
		return
	}

	dispute, err := h.disputes.ResolveDispute(c.Request.Context(), userID, role, disputeID, service.ResolveInput{
		Outcome:    req.Outcome,
		Resolution: req.Resolution,
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// Close обрабатывает POST /disputes/:id/close.
func (h *DisputeHandler) Close(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}
	disputeID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	dispute, err := h.disputes.CloseDispute(c.Request.Context(), userID, role, disputeID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}
