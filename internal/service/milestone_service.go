package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/bondplatform/bond-backend/internal/logger"
	"github.com/bondplatform/bond-backend/internal/models"
	"github.com/bondplatform/bond-backend/internal/pkg/apperror"
	"github.com/bondplatform/bond-backend/internal/repository"
	"github.com/bondplatform/bond-backend/internal/validation"
)

// MilestoneStore описывает зависимости сервиса вех от хранилища.
type MilestoneStore interface {
	Create(ctx context.Context, milestone *models.Milestone) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.Milestone, error)
	Submit(ctx context.Context, id uuid.UUID, deliverableURL string) error
	RequestRevision(ctx context.Context, id uuid.UUID, notes string) error
	SetVerification(ctx context.Context, id uuid.UUID, status, result string) error
}

// MilestoneLedger — операции escrow, нужные сервису вех.
type MilestoneLedger interface {
	Release(ctx context.Context, p repository.ReleaseParams) (*models.Escrow, error)
	Payout(ctx context.Context, p repository.PayoutParams) error
}

// MilestoneService реализует жизненный цикл вехи: создание, сдача
// результата, одобрение с выплатой из escrow и вывод средств.
type MilestoneService struct {
	milestones MilestoneStore
	contracts  ContractStore
	ledger     MilestoneLedger
	notifier   Notifier
}

// NewMilestoneService создаёт сервис вех. notifier может быть nil.
func NewMilestoneService(milestones MilestoneStore, contracts ContractStore, ledger MilestoneLedger, notifier Notifier) *MilestoneService {
	return &MilestoneService{
		milestones: milestones,
		contracts:  contracts,
		ledger:     ledger,
		notifier:   notifier,
	}
}

// CreateMilestoneInput содержит данные новой вехи.
type CreateMilestoneInput struct {
	Title       string
	Description string
	Amount      float64
}

// CreateMilestone добавляет веху в контракт. Сумма всех вех не может
// превышать бюджет контракта.
func (s *MilestoneService) CreateMilestone(ctx context.Context, userID uuid.UUID, contractID uuid.UUID, in CreateMilestoneInput) (*models.Milestone, error) {
	if err := validation.ValidateLength("заголовок вехи", strings.TrimSpace(in.Title), validation.MinMilestoneTitleLength, validation.MaxMilestoneTitleLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateAmount("сумма вехи", in.Amount); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	contract, err := s.getContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if contract.ClientID != userID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "добавлять вехи может только клиент контракта")
	}

	switch contract.Status {
	case models.ContractStatusDraft, models.ContractStatusPendingAcceptance, models.ContractStatusActive:
	default:
		return nil, apperror.New(apperror.ErrCodeInvalidState, "в этом статусе контракта вехи не добавляются")
	}

	milestone := &models.Milestone{
		ContractID:  contractID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Amount:      in.Amount,
	}
	if err := s.milestones.Create(ctx, milestone); err != nil {
		switch {
		case errors.Is(err, repository.ErrBudgetExceeded):
			return nil, apperror.New(apperror.ErrCodeValidation, "сумма вех превышает бюджет контракта")
		case errors.Is(err, repository.ErrContractNotFound):
			return nil, apperror.ErrContractNotFound
		default:
			return nil, err
		}
	}

	return milestone, nil
}

// SubmitDeliverable сдаёт результат вехи на проверку клиенту.
// Доступно фрилансеру для вех в статусах pending и revision_requested.
func (s *MilestoneService) SubmitDeliverable(ctx context.Context, userID, milestoneID uuid.UUID, deliverableURL string) (*models.Milestone, error) {
	if strings.TrimSpace(deliverableURL) == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "ссылка на результат обязательна")
	}

	milestone, contract, err := s.getMilestoneWithContract(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if contract.FreelancerID != userID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "сдавать результат может только фрилансер контракта")
	}
	if contract.Status != models.ContractStatusActive {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "сдавать результат можно только по активному контракту")
	}

	if err := s.milestones.Submit(ctx, milestoneID, deliverableURL); err != nil {
		return nil, s.mapMilestoneErr(err)
	}
	milestone.Status = models.MilestoneStatusSubmitted
	milestone.DeliverableURL = &deliverableURL

	s.notify(ctx, contract.ClientID, models.EventMilestoneSubmitted, milestone)
	return milestone, nil
}

// ApproveMilestone одобряет сданную веху и выплачивает её сумму из
// escrow. Одобрение и выплата атомарны: повторное одобрение или
// нехватка средств откатывают операцию целиком.
func (s *MilestoneService) ApproveMilestone(ctx context.Context, userID, milestoneID uuid.UUID) (*models.Milestone, error) {
	milestone, contract, err := s.getMilestoneWithContract(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if contract.ClientID != userID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "одобрять вехи может только клиент контракта")
	}
	if contract.Status != models.ContractStatusActive {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "одобрять вехи можно только по активному контракту")
	}

	if _, err := s.ledger.Release(ctx, repository.ReleaseParams{
		ContractID:  contract.ID,
		MilestoneID: milestoneID,
		Amount:      milestone.Amount,
		FromUserID:  contract.ClientID,
		ToUserID:    contract.FreelancerID,
		Currency:    contract.Currency,
		Description: "выплата по одобренной вехе: " + milestone.Title,
	}); err != nil {
		switch {
		case errors.Is(err, repository.ErrMilestoneState):
			return nil, apperror.New(apperror.ErrCodeInvalidState, "веха не находится на проверке")
		case errors.Is(err, repository.ErrInsufficientEscrow):
			return nil, apperror.New(apperror.ErrCodeValidation, "в escrow недостаточно средств для выплаты")
		case errors.Is(err, repository.ErrEscrowNotFound):
			return nil, apperror.New(apperror.ErrCodeValidation, "контракт ещё не профинансирован")
		default:
			return nil, err
		}
	}
	milestone.Status = models.MilestoneStatusApproved

	s.notify(ctx, contract.FreelancerID, models.EventMilestoneApproved, milestone)

	logger.Log.WithFields(map[string]interface{}{
		"milestone_id": milestoneID,
		"contract_id":  contract.ID,
		"amount":       milestone.Amount,
	}).Info("milestone service: веха одобрена, средства зарезервированы к выплате")

	return milestone, nil
}

// RequestRevision возвращает сданную веху на доработку.
func (s *MilestoneService) RequestRevision(ctx context.Context, userID, milestoneID uuid.UUID, notes string) (*models.Milestone, error) {
	if strings.TrimSpace(notes) == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "комментарий к доработке обязателен")
	}

	milestone, contract, err := s.getMilestoneWithContract(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if contract.ClientID != userID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "возвращать вехи на доработку может только клиент")
	}

	if err := s.milestones.RequestRevision(ctx, milestoneID, notes); err != nil {
		return nil, s.mapMilestoneErr(err)
	}
	milestone.Status = models.MilestoneStatusRevisionRequested
	milestone.RevisionNotes = &notes

	s.notify(ctx, contract.FreelancerID, models.EventMilestoneRevision, milestone)
	return milestone, nil
}

// InitiatePayout выводит средства по одобренной вехе: approved -> paid.
// Инициирует фрилансер.
func (s *MilestoneService) InitiatePayout(ctx context.Context, userID, milestoneID uuid.UUID) (*models.Milestone, error) {
	milestone, contract, err := s.getMilestoneWithContract(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if contract.FreelancerID != userID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "выводить средства может только фрилансер контракта")
	}

	if err := s.ledger.Payout(ctx, repository.PayoutParams{
		ContractID:  contract.ID,
		MilestoneID: milestoneID,
		Amount:      milestone.Amount,
		FromUserID:  contract.ClientID,
		ToUserID:    contract.FreelancerID,
		Currency:    contract.Currency,
		Description: "вывод средств по вехе: " + milestone.Title,
	}); err != nil {
		if errors.Is(err, repository.ErrMilestoneState) {
			return nil, apperror.New(apperror.ErrCodeInvalidState, "выводить можно только по одобренной вехе")
		}
		return nil, err
	}
	milestone.Status = models.MilestoneStatusPaid

	s.notify(ctx, contract.ClientID, models.EventMilestonePaid, milestone)
	return milestone, nil
}

// SetVerificationResult сохраняет вердикт автоматической проверки
// результата. Вердикт консультативный: решение о приёмке всегда за
// клиентом, проверка ничего не блокирует.
func (s *MilestoneService) SetVerificationResult(ctx context.Context, milestoneID uuid.UUID, status, result string) error {
	switch status {
	case models.VerificationPassed, models.VerificationFailed:
	default:
		return apperror.New(apperror.ErrCodeValidation, "недопустимый статус проверки")
	}

	if err := s.milestones.SetVerification(ctx, milestoneID, status, result); err != nil {
		if errors.Is(err, repository.ErrMilestoneNotFound) {
			return apperror.ErrMilestoneNotFound
		}
		return err
	}
	return nil
}

// GetMilestone возвращает веху участнику контракта или арбитру.
func (s *MilestoneService) GetMilestone(ctx context.Context, userID uuid.UUID, role string, milestoneID uuid.UUID) (*models.Milestone, error) {
	milestone, contract, err := s.getMilestoneWithContract(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(contract, userID) && role != models.RoleArbiter {
		return nil, apperror.ErrForbidden
	}
	return milestone, nil
}

// ListByContract возвращает вехи контракта участнику или арбитру.
func (s *MilestoneService) ListByContract(ctx context.Context, userID uuid.UUID, role string, contractID uuid.UUID) ([]models.Milestone, error) {
	contract, err := s.getContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(contract, userID) && role != models.RoleArbiter {
		return nil, apperror.ErrForbidden
	}
	return s.milestones.ListByContract(ctx, contractID)
}

// getContract возвращает контракт, транслируя ошибку хранилища.
func (s *MilestoneService) getContract(ctx context.Context, contractID uuid.UUID) (*models.Contract, error) {
	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, repository.ErrContractNotFound) {
			return nil, apperror.ErrContractNotFound
		}
		return nil, err
	}
	return contract, nil
}

// getMilestoneWithContract загружает веху вместе с её контрактом.
func (s *MilestoneService) getMilestoneWithContract(ctx context.Context, milestoneID uuid.UUID) (*models.Milestone, *models.Contract, error) {
	milestone, err := s.milestones.GetByID(ctx, milestoneID)
	if err != nil {
		if errors.Is(err, repository.ErrMilestoneNotFound) {
			return nil, nil, apperror.ErrMilestoneNotFound
		}
		return nil, nil, err
	}

	contract, err := s.getContract(ctx, milestone.ContractID)
	if err != nil {
		return nil, nil, err
	}
	return milestone, contract, nil
}

// mapMilestoneErr транслирует ошибки хранилища вех в apperror.
func (s *MilestoneService) mapMilestoneErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrMilestoneNotFound):
		return apperror.ErrMilestoneNotFound
	case errors.Is(err, repository.ErrMilestoneState):
		return apperror.New(apperror.ErrCodeInvalidState, "веха не в подходящем статусе для этой операции")
	default:
		return err
	}
}

// notify отправляет уведомление, если notifier подключён.
func (s *MilestoneService) notify(ctx context.Context, userID uuid.UUID, event string, payload interface{}) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, userID, event, payload)
	}
}
