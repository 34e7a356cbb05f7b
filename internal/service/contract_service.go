package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bondplatform/bond-backend/internal/logger"
	"github.com/bondplatform/bond-backend/internal/models"
	"github.com/bondplatform/bond-backend/internal/pkg/apperror"
	"github.com/bondplatform/bond-backend/internal/repository"
	"github.com/bondplatform/bond-backend/internal/validation"
)

// ContractStore описывает зависимости сервиса контрактов от хранилища.
type ContractStore interface {
	Create(ctx context.Context, contract *models.Contract) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Contract, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, fromStatuses []string, newStatus string) error
	DeleteCascade(ctx context.Context, id uuid.UUID) error
}

// ContractLedger — операции escrow, нужные сервису контрактов.
type ContractLedger interface {
	Fund(ctx context.Context, p repository.FundParams) (*models.Contract, error)
	Refund(ctx context.Context, p repository.RefundParams) (*models.Escrow, error)
	GetByContractID(ctx context.Context, contractID uuid.UUID) (*models.Escrow, error)
	SetStatus(ctx context.Context, contractID uuid.UUID, fromStatuses []string, newStatus string) error
}

// UserFinder позволяет найти пользователя для приглашения в контракт.
type UserFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// ContractService реализует жизненный цикл контракта: создание,
// приглашение, принятие, финансирование и удаление.
type ContractService struct {
	contracts ContractStore
	ledger    ContractLedger
	users     UserFinder
	notifier  Notifier
}

// NewContractService создаёт сервис контрактов. notifier может быть nil.
func NewContractService(contracts ContractStore, ledger ContractLedger, users UserFinder, notifier Notifier) *ContractService {
	return &ContractService{
		contracts: contracts,
		ledger:    ledger,
		users:     users,
		notifier:  notifier,
	}
}

// CreateContractInput содержит данные нового контракта. Фрилансер
// указывается либо по ID, либо по email.
type CreateContractInput struct {
	Title           string
	Description     string
	FreelancerID    *uuid.UUID
	FreelancerEmail string
	TotalAmount     float64
	Currency        string
	Draft           bool
}

// FundInput содержит данные пополнения escrow.
type FundInput struct {
	Amount        float64
	SettlementRef *string
	PaymentMethod *string
}

// CreateContract создаёт контракт. Создавать контракты может только клиент.
// Контракт либо остаётся черновиком, либо сразу уходит фрилансеру
// приглашением в статусе pending_acceptance.
func (s *ContractService) CreateContract(ctx context.Context, userID uuid.UUID, role string, in CreateContractInput) (*models.Contract, error) {
	if role != models.RoleClient {
		return nil, apperror.New(apperror.ErrCodeForbidden, "создавать контракты может только клиент")
	}

	if err := validation.ValidateContractTitle(in.Title); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateContractDescription(in.Description); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateAmount("сумма контракта", in.TotalAmount); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateCurrency(in.Currency); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	freelancer, err := s.resolveFreelancer(ctx, in)
	if err != nil {
		return nil, err
	}
	if freelancer.ID == userID {
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя заключить контракт с самим собой")
	}

	status := models.ContractStatusPendingAcceptance
	if in.Draft {
		status = models.ContractStatusDraft
	}

	contract := &models.Contract{
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		ClientID:     userID,
		FreelancerID: freelancer.ID,
		TotalAmount:  in.TotalAmount,
		Currency:     strings.ToUpper(in.Currency),
		Status:       status,
		CreatedBy:    userID,
	}

	if err := s.contracts.Create(ctx, contract); err != nil {
		return nil, err
	}

	if status == models.ContractStatusPendingAcceptance {
		s.notify(ctx, freelancer.ID, models.EventContractInvitation, contract)
	}

	logger.Log.WithFields(map[string]interface{}{
		"contract_id": contract.ID,
		"client_id":   userID,
		"status":      contract.Status,
	}).Info("contract service: контракт создан")

	return contract, nil
}

// SendInvitation отправляет черновик фрилансеру: draft -> pending_acceptance.
func (s *ContractService) SendInvitation(ctx context.Context, userID, contractID uuid.UUID) (*models.Contract, error) {
	contract, err := s.getOwned(ctx, contractID, userID)
	if err != nil {
		return nil, err
	}

	if err := s.transition(ctx, contractID, []string{models.ContractStatusDraft}, models.ContractStatusPendingAcceptance); err != nil {
		return nil, err
	}
	contract.Status = models.ContractStatusPendingAcceptance

	s.notify(ctx, contract.FreelancerID, models.EventContractInvitation, contract)
	return contract, nil
}

// AcceptContract принимает приглашение: pending_acceptance -> active.
// Принять может только приглашённый фрилансер.
func (s *ContractService) AcceptContract(ctx context.Context, userID, contractID uuid.UUID) (*models.Contract, error) {
	contract, err := s.get(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if contract.FreelancerID != userID {
		return nil, apperror.ErrForbidden
	}

	if err := s.transition(ctx, contractID, []string{models.ContractStatusPendingAcceptance}, models.ContractStatusActive); err != nil {
		return nil, err
	}
	contract.Status = models.ContractStatusActive

	s.notify(ctx, contract.ClientID, models.EventContractAccepted, contract)
	return contract, nil
}

// RejectContract отклоняет приглашение: pending_acceptance -> cancelled.
func (s *ContractService) RejectContract(ctx context.Context, userID, contractID uuid.UUID) (*models.Contract, error) {
	contract, err := s.get(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if contract.FreelancerID != userID {
		return nil, apperror.ErrForbidden
	}

	if err := s.transition(ctx, contractID, []string{models.ContractStatusPendingAcceptance}, models.ContractStatusCancelled); err != nil {
		return nil, err
	}
	contract.Status = models.ContractStatusCancelled

	s.notify(ctx, contract.ClientID, models.EventContractRejected, contract)
	return contract, nil
}

// FundContract пополняет escrow контракта. Финансировать может только
// клиент и только активный контракт. Сумма сверх бюджета отклоняется.
func (s *ContractService) FundContract(ctx context.Context, userID uuid.UUID, contractID uuid.UUID, in FundInput) (*models.Contract, error) {
	if err := validation.ValidateAmount("сумма пополнения", in.Amount); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	contract, err := s.getOwned(ctx, contractID, userID)
	if err != nil {
		return nil, err
	}
	if contract.Status != models.ContractStatusActive {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "финансировать можно только активный контракт")
	}

	funded, err := s.ledger.Fund(ctx, repository.FundParams{
		ContractID:    contractID,
		FromUserID:    userID,
		Amount:        in.Amount,
		SettlementRef: in.SettlementRef,
		PaymentMethod: in.PaymentMethod,
		Description:   "пополнение escrow клиентом",
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOverfunded):
			return nil, apperror.New(apperror.ErrCodeValidation, "сумма пополнения превышает бюджет контракта")
		case errors.Is(err, repository.ErrDuplicateSettlement):
			return nil, apperror.New(apperror.ErrCodeConflict, "платёж с таким settlement_ref уже обработан")
		case errors.Is(err, repository.ErrContractNotFound):
			return nil, apperror.ErrContractNotFound
		default:
			return nil, err
		}
	}

	s.notify(ctx, funded.FreelancerID, models.EventContractFunded, funded)

	logger.Log.WithFields(map[string]interface{}{
		"contract_id":    funded.ID,
		"amount":         in.Amount,
		"funding_status": funded.FundingStatus,
	}).Info("contract service: escrow пополнен")

	return funded, nil
}

// UpdateStatus выполняет явный перевод статуса контракта. Допустимые
// переходы зависят от роли: клиент завершает активный контракт,
// арбитр управляет веткой disputed.
func (s *ContractService) UpdateStatus(ctx context.Context, userID uuid.UUID, role string, contractID uuid.UUID, newStatus string) (*models.Contract, error) {
	if _, ok := models.ValidContractStatuses[newStatus]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("неизвестный статус %q", newStatus))
	}

	contract, err := s.get(ctx, contractID)
	if err != nil {
		return nil, err
	}

	var from []string
	switch {
	case role == models.RoleClient && contract.ClientID == userID && newStatus == models.ContractStatusCompleted:
		from = []string{models.ContractStatusActive}
	case role == models.RoleArbiter && newStatus == models.ContractStatusDisputed:
		from = []string{models.ContractStatusActive}
	case role == models.RoleArbiter && newStatus == models.ContractStatusActive:
		from = []string{models.ContractStatusDisputed}
	case role == models.RoleArbiter && newStatus == models.ContractStatusCancelled:
		from = []string{models.ContractStatusDisputed}
	default:
		return nil, apperror.New(apperror.ErrCodeForbidden, "такой переход статуса вам недоступен")
	}

	if err := s.transition(ctx, contractID, from, newStatus); err != nil {
		return nil, err
	}
	contract.Status = newStatus

	// Отмена спорного контракта возвращает клиенту невыплаченный остаток.
	if newStatus == models.ContractStatusCancelled {
		if _, err := s.ledger.Refund(ctx, repository.RefundParams{
			ContractID:  contractID,
			ToUserID:    contract.ClientID,
			Description: "возврат средств при отмене контракта",
		}); err != nil && !errors.Is(err, repository.ErrEscrowNotFound) {
			return nil, err
		}
	}

	return contract, nil
}

// RequestDeletion помечает активный контракт на удаление. Фактическое
// удаление требует подтверждения фрилансера.
func (s *ContractService) RequestDeletion(ctx context.Context, userID, contractID uuid.UUID) (*models.Contract, error) {
	contract, err := s.getOwned(ctx, contractID, userID)
	if err != nil {
		return nil, err
	}
	if contract.Status == models.ContractStatusPendingAcceptance || contract.Status == models.ContractStatusDraft {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "непринятый контракт удаляется сразу, без подтверждения")
	}

	if err := s.transition(ctx, contractID, []string{models.ContractStatusActive}, models.ContractStatusPendingDeletion); err != nil {
		return nil, err
	}
	contract.Status = models.ContractStatusPendingDeletion

	return contract, nil
}

// ConfirmDeletion подтверждает удаление со стороны фрилансера. Перед
// каскадным удалением клиенту возвращается невыплаченный остаток escrow.
func (s *ContractService) ConfirmDeletion(ctx context.Context, userID, contractID uuid.UUID) error {
	contract, err := s.get(ctx, contractID)
	if err != nil {
		return err
	}
	if contract.FreelancerID != userID {
		return apperror.ErrForbidden
	}
	if contract.Status != models.ContractStatusPendingDeletion {
		return apperror.New(apperror.ErrCodeInvalidState, "контракт не помечен на удаление")
	}

	if _, err := s.ledger.Refund(ctx, repository.RefundParams{
		ContractID:  contractID,
		ToUserID:    contract.ClientID,
		Description: "возврат средств при удалении контракта",
	}); err != nil && !errors.Is(err, repository.ErrEscrowNotFound) {
		return err
	}

	if err := s.contracts.DeleteCascade(ctx, contractID); err != nil {
		if errors.Is(err, repository.ErrContractNotFound) {
			return apperror.ErrContractNotFound
		}
		return err
	}
	return nil
}

// DeleteContract удаляет контракт без подтверждения. Доступно клиенту
// для черновиков, непринятых и отменённых контрактов без средств в escrow.
func (s *ContractService) DeleteContract(ctx context.Context, userID, contractID uuid.UUID) error {
	contract, err := s.getOwned(ctx, contractID, userID)
	if err != nil {
		return err
	}

	switch contract.Status {
	case models.ContractStatusDraft, models.ContractStatusPendingAcceptance, models.ContractStatusCancelled:
	default:
		return apperror.New(apperror.ErrCodeInvalidState, "удаление в этом статусе требует подтверждения фрилансера")
	}

	if err := s.contracts.DeleteCascade(ctx, contractID); err != nil {
		if errors.Is(err, repository.ErrContractNotFound) {
			return apperror.ErrContractNotFound
		}
		return err
	}
	return nil
}

// GetContract возвращает контракт участнику или арбитру.
func (s *ContractService) GetContract(ctx context.Context, userID uuid.UUID, role string, contractID uuid.UUID) (*models.Contract, error) {
	contract, err := s.get(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(contract, userID) && role != models.RoleArbiter {
		return nil, apperror.ErrForbidden
	}
	return contract, nil
}

// GetEscrow возвращает состояние escrow контракта.
func (s *ContractService) GetEscrow(ctx context.Context, userID uuid.UUID, role string, contractID uuid.UUID) (*models.Escrow, error) {
	if _, err := s.GetContract(ctx, userID, role, contractID); err != nil {
		return nil, err
	}

	escrow, err := s.ledger.GetByContractID(ctx, contractID)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return nil, apperror.ErrEscrowNotFound
		}
		return nil, err
	}
	return escrow, nil
}

// ListMyContracts возвращает контракты пользователя.
func (s *ContractService) ListMyContracts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Contract, error) {
	return s.contracts.ListByUser(ctx, userID, limit, offset)
}

// resolveFreelancer находит фрилансера по ID или email и проверяет роль.
func (s *ContractService) resolveFreelancer(ctx context.Context, in CreateContractInput) (*models.User, error) {
	var (
		freelancer *models.User
		err        error
	)
	switch {
	case in.FreelancerID != nil:
		freelancer, err = s.users.GetByID(ctx, *in.FreelancerID)
	case in.FreelancerEmail != "":
		freelancer, err = s.users.GetByEmail(ctx, in.FreelancerEmail)
	default:
		return nil, apperror.New(apperror.ErrCodeValidation, "укажите фрилансера: freelancer_id или freelancer_email")
	}
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "фрилансер не найден")
		}
		return nil, err
	}
	if freelancer.Role != models.RoleFreelancer {
		return nil, apperror.New(apperror.ErrCodeValidation, "указанный пользователь не является фрилансером")
	}
	return freelancer, nil
}

// get возвращает контракт, транслируя ошибку хранилища.
func (s *ContractService) get(ctx context.Context, contractID uuid.UUID) (*models.Contract, error) {
	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, repository.ErrContractNotFound) {
			return nil, apperror.ErrContractNotFound
		}
		return nil, err
	}
	return contract, nil
}

// getOwned возвращает контракт, проверяя что userID — его клиент.
func (s *ContractService) getOwned(ctx context.Context, contractID, userID uuid.UUID) (*models.Contract, error) {
	contract, err := s.get(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if contract.ClientID != userID {
		return nil, apperror.ErrForbidden
	}
	return contract, nil
}

// transition переводит статус, транслируя ошибки хранилища.
func (s *ContractService) transition(ctx context.Context, contractID uuid.UUID, from []string, to string) error {
	if err := s.contracts.UpdateStatus(ctx, contractID, from, to); err != nil {
		switch {
		case errors.Is(err, repository.ErrContractNotFound):
			return apperror.ErrContractNotFound
		case errors.Is(err, repository.ErrContractState):
			return apperror.New(apperror.ErrCodeInvalidState, "контракт не в подходящем статусе для этой операции")
		default:
			return err
		}
	}
	return nil
}

// notify отправляет уведомление, если notifier подключён.
func (s *ContractService) notify(ctx context.Context, userID uuid.UUID, event string, payload interface{}) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, userID, event, payload)
	}
}

// isParticipant проверяет, что пользователь — сторона контракта.
func isParticipant(contract *models.Contract, userID uuid.UUID) bool {
	return contract.ClientID == userID || contract.FreelancerID == userID
}
