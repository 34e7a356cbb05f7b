package handlers

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/bondplatform/bond-backend/internal/pkg/apperror"
	"github.com/bondplatform/bond-backend/internal/service"
	"github.com/bondplatform/bond-backend/internal/storage"
)

// MilestoneHandler предоставляет HTTP слой жизненного цикла вех.
type MilestoneHandler struct {
	milestones *service.MilestoneService
	files      *storage.DeliverableStorage
}

// NewMilestoneHandler создаёт хэндлер.
func NewMilestoneHandler(milestones *service.MilestoneService, files *storage.DeliverableStorage) *MilestoneHandler {
	return &MilestoneHandler{milestones: milestones, files: files}
}

// Create обрабатывает POST /contracts/:id/milestones.
func (h *MilestoneHandler) Create(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	contractID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Title       string  `json:"title" binding:"required"`
		Description string  `json:"description"`
		Amount      float64 `json:"amount" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректное тело запроса"))
		return
	}

	milestone, err := h.milestones.CreateMilestone(c.Request.Context(), userID, contractID, service.CreateMilestoneInput{
		Title:       req.Title,
		Description: req.Description,
		Amount:      req.Amount,
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, milestone)
}

// List обрабатывает GET /contracts/:id/milestones.
func (h *MilestoneHandler) List(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}
	contractID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	milestones, err := h.milestones.ListByContract(c.Request.Context(), userID, role, contractID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"milestones": milestones})
}

// Get обрабатывает GET /milestones/:id.
func (h *MilestoneHandler) Get(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}
	milestoneID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	milestone, err := h.milestones.GetMilestone(c.Request.Context(), userID, role, milestoneID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, milestone)
}

// Submit обрабатывает POST /milestones/:id/submit. Результат передаётся
// ссылкой в JSON.
func (h *MilestoneHandler) Submit(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	milestoneID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req struct {
		DeliverableURL string `json:"deliverable_url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperror.Wrap(err, apperror.ErrCodeValidation, "deliverable_url обязателен"))
		return
	}

	milestone, err := h.milestones.SubmitDeliverable(c.Request.Context(), userID, milestoneID, req.DeliverableURL)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, milestone)
}

// Upload обрабатывает POST /milestones/:id/deliverable. Файл результата
// сохраняется в хранилище, веха сдаётся со ссылкой на него.
func (h *MilestoneHandler) Upload(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	milestoneID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		fail(c, apperror.New(apperror.ErrCodeValidation, "файл обязателен"))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		fail(c, apperror.Wrap(err, apperror.ErrCodeValidation, "не удалось прочитать файл"))
		return
	}
	defer f.Close()

	relative, _, err := h.files.Save(c.Request.Context(), milestoneID, fileHeader.Filename, f)
	if err != nil {
		fail(c, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error()))
		return
	}

	milestone, err := h.milestones.SubmitDeliverable(c.Request.Context(), userID, milestoneID, path.Join("/deliverables", relative))
	if err != nil {
		// Веху сдать не удалось, файл не оставляем.
		_ = h.files.Delete(c.Request.Context(), relative)
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, milestone)
}

// Approve обрабатывает POST /milestones/:id/approve.
func (h *MilestoneHandler) Approve(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	milestoneID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	milestone, err := h.milestones.ApproveMilestone(c.Request.Context(), userID, milestoneID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, milestone)
}

// RequestRevision обрабатывает POST /milestones/:id/revision.
func (h *MilestoneHandler) RequestRevision(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	milestoneID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Notes string `json:"notes" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperror.Wrap(err, apperror.ErrCodeValidation, "notes обязателен"))
		return
	}

	milestone, err := h.milestones.RequestRevision(c.Request.Context(), userID, milestoneID, req.Notes)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, milestone)
}

// Payout обрабатывает POST /milestones/:id/payout.
func (h *MilestoneHandler) Payout(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	milestoneID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	milestone, err := h.milestones.InitiatePayout(c.Request.Context(), userID, milestoneID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, milestone)
}

// SetVerification обрабатывает POST /milestones/:id/verification.
// Вызывается сервисом автоматической проверки, маршрут закрыт
// webhook-токеном.
func (h *MilestoneHandler) SetVerification(c *gin.Context) {
	milestoneID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
		Result string `json:"result"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperror.Wrap(err, apperror.ErrCodeValidation, "status обязателен"))
		return
	}

	if err := h.milestones.SetVerificationResult(c.Request.Context(), milestoneID, req.Status, req.Result); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
