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

// DisputeStore описывает зависимости сервиса споров от хранилища.
type DisputeStore interface {
	Create(ctx context.Context, dispute *models.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetOpenByContract(ctx context.Context, contractID uuid.UUID) (*models.Dispute, error)
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.Dispute, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error)
	ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error)
	StartReview(ctx context.Context, id, arbiterID uuid.UUID) error
	Resolve(ctx context.Context, id uuid.UUID, outcome, resolution string, resolvedBy uuid.UUID) error
	Close(ctx context.Context, id uuid.UUID) error
}

// DisputeService реализует разрешение споров: открытие участником,
// рассмотрение арбитром и фиксацию исхода.
type DisputeService struct {
	disputes   DisputeStore
	contracts  ContractStore
	milestones MilestoneStore
	ledger     ContractLedger
	notifier   Notifier
}

// NewDisputeService создаёт сервис споров. notifier может быть nil.
func NewDisputeService(disputes DisputeStore, contracts ContractStore, milestones MilestoneStore, ledger ContractLedger, notifier Notifier) *DisputeService {
	return &DisputeService{
		disputes:   disputes,
		contracts:  contracts,
		milestones: milestones,
		ledger:     ledger,
		notifier:   notifier,
	}
}

// CreateDisputeInput содержит данные нового спора.
type CreateDisputeInput struct {
	MilestoneID *uuid.UUID
	Reason      string
	Evidence    string
}

// CreateDispute открывает спор по контракту. Открыть может любая сторона
// активного контракта; по одному контракту одновременно может идти
// только один спор. Контракт и escrow переводятся в disputed.
func (s *DisputeService) CreateDispute(ctx context.Context, userID uuid.UUID, contractID uuid.UUID, in CreateDisputeInput) (*models.Dispute, error) {
	reason := strings.TrimSpace(in.Reason)
	if err := validation.ValidateLength("причина спора", reason, validation.MinDisputeReasonLength, validation.MaxDisputeReasonLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, repository.ErrContractNotFound) {
			return nil, apperror.ErrContractNotFound
		}
		return nil, err
	}
	if !isParticipant(contract, userID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "открыть спор может только сторона контракта")
	}
	if contract.Status != models.ContractStatusActive {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "спор открывается только по активному контракту")
	}

	if in.MilestoneID != nil {
		milestone, err := s.milestones.GetByID(ctx, *in.MilestoneID)
		if err != nil {
			if errors.Is(err, repository.ErrMilestoneNotFound) {
				return nil, apperror.ErrMilestoneNotFound
			}
			return nil, err
		}
		if milestone.ContractID != contractID {
			return nil, apperror.New(apperror.ErrCodeValidation, "веха не относится к этому контракту")
		}
		if milestone.Status == models.MilestoneStatusPaid {
			return nil, apperror.New(apperror.ErrCodeInvalidState, "по выплаченной вехе спор не открывается")
		}
	}

	if _, err := s.disputes.GetOpenByContract(ctx, contractID); err == nil {
		return nil, apperror.New(apperror.ErrCodeConflict, "по контракту уже идёт спор")
	} else if !errors.Is(err, repository.ErrDisputeNotFound) {
		return nil, err
	}

	dispute := &models.Dispute{
		ContractID:  contractID,
		MilestoneID: in.MilestoneID,
		RaisedBy:    userID,
		Reason:      reason,
	}
	if evidence := strings.TrimSpace(in.Evidence); evidence != "" {
		if userID == contract.ClientID {
			dispute.ClientEvidence = &evidence
		} else {
			dispute.FreelancerEvidence = &evidence
		}
	}

	if err := s.disputes.Create(ctx, dispute); err != nil {
		return nil, err
	}

	// Контракт замораживается: выплаты по disputed escrow не проводятся.
	if err := s.contracts.UpdateStatus(ctx, contractID,
		[]string{models.ContractStatusActive}, models.ContractStatusDisputed); err != nil && !errors.Is(err, repository.ErrContractState) {
		return nil, err
	}
	if err := s.ledger.SetStatus(ctx, contractID,
		[]string{models.EscrowStatusFunded, models.EscrowStatusPending}, models.EscrowStatusDisputed); err != nil {
		logger.Log.WithError(err).WithField("contract_id", contractID).Warn("dispute service: не удалось пометить escrow как disputed")
	}

	counterparty := contract.FreelancerID
	if userID == contract.FreelancerID {
		counterparty = contract.ClientID
	}
	s.notify(ctx, counterparty, models.EventDisputeOpened, dispute)

	logger.Log.WithFields(map[string]interface{}{
		"dispute_id":  dispute.ID,
		"contract_id": contractID,
		"raised_by":   userID,
	}).Info("dispute service: спор открыт")

	return dispute, nil
}

// StartReview берёт спор в работу: open -> under_review, спор
// закрепляется за арбитром.
func (s *DisputeService) StartReview(ctx context.Context, arbiterID uuid.UUID, role string, disputeID uuid.UUID) (*models.Dispute, error) {
	if role != models.RoleArbiter {
		return nil, apperror.New(apperror.ErrCodeForbidden, "рассматривать споры может только арбитр")
	}

	dispute, err := s.get(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	if err := s.disputes.StartReview(ctx, disputeID, arbiterID); err != nil {
		return nil, s.mapDisputeErr(err)
	}
	dispute.Status = models.DisputeStatusUnderReview
	dispute.AssignedTo = &arbiterID

	return dispute, nil
}

// ResolveInput содержит решение арбитра.
type ResolveInput struct {
	Outcome    string
	Resolution string
}

// ResolveDispute фиксирует решение арбитра. Контракт возвращается в
// active, escrow размораживается. Средствами решение не распоряжается:
// дальнейшие выплаты или отмену контракта арбитр и стороны проводят
// обычными операциями.
func (s *DisputeService) ResolveDispute(ctx context.Context, arbiterID uuid.UUID, role string, disputeID uuid.UUID, in ResolveInput) (*models.Dispute, error) {
	if role != models.RoleArbiter {
		return nil, apperror.New(apperror.ErrCodeForbidden, "разрешать споры может только арбитр")
	}
	if _, ok := models.ValidDisputeOutcomes[in.Outcome]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "недопустимый исход спора")
	}
	resolution := strings.TrimSpace(in.Resolution)
	if resolution == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "обоснование решения обязательно")
	}

	dispute, err := s.get(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	if err := s.disputes.Resolve(ctx, disputeID, in.Outcome, resolution, arbiterID); err != nil {
		return nil, s.mapDisputeErr(err)
	}
	dispute.Status = models.DisputeStatusResolved
	dispute.Outcome = &in.Outcome
	dispute.Resolution = &resolution
	dispute.ResolvedBy = &arbiterID

	// Возвращаем контракт и escrow в рабочее состояние.
	if err := s.contracts.UpdateStatus(ctx, dispute.ContractID,
		[]string{models.ContractStatusDisputed}, models.ContractStatusActive); err != nil && !errors.Is(err, repository.ErrContractState) {
		return nil, err
	}
	if err := s.ledger.SetStatus(ctx, dispute.ContractID,
		[]string{models.EscrowStatusDisputed}, models.EscrowStatusFunded); err != nil {
		logger.Log.WithError(err).WithField("contract_id", dispute.ContractID).Warn("dispute service: не удалось разморозить escrow")
	}

	contract, err := s.contracts.GetByID(ctx, dispute.ContractID)
	if err == nil {
		s.notify(ctx, contract.ClientID, models.EventDisputeResolved, dispute)
		s.notify(ctx, contract.FreelancerID, models.EventDisputeResolved, dispute)
	}

	logger.Log.WithFields(map[string]interface{}{
		"dispute_id": disputeID,
		"outcome":    in.Outcome,
	}).Info("dispute service: спор разрешён")

	return dispute, nil
}

// CloseDispute закрывает решённый спор: resolved -> closed.
func (s *DisputeService) CloseDispute(ctx context.Context, arbiterID uuid.UUID, role string, disputeID uuid.UUID) (*models.Dispute, error) {
	if role != models.RoleArbiter {
		return nil, apperror.New(apperror.ErrCodeForbidden, "закрывать споры может только арбитр")
	}

	dispute, err := s.get(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	if err := s.disputes.Close(ctx, disputeID); err != nil {
		return nil, s.mapDisputeErr(err)
	}
	dispute.Status = models.DisputeStatusClosed

	return dispute, nil
}

// GetDispute возвращает спор стороне контракта или арбитру.
func (s *DisputeService) GetDispute(ctx context.Context, userID uuid.UUID, role string, disputeID uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.get(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if role == models.RoleArbiter {
		return dispute, nil
	}

	contract, err := s.contracts.GetByID(ctx, dispute.ContractID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(contract, userID) {
		return nil, apperror.ErrForbidden
	}
	return dispute, nil
}

// ListMyDisputes возвращает споры по контрактам пользователя.
func (s *DisputeService) ListMyDisputes(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	return s.disputes.ListByUser(ctx, userID, limit, offset)
}

// ListOpenDisputes возвращает очередь нерешённых споров для арбитра.
func (s *DisputeService) ListOpenDisputes(ctx context.Context, role string, limit, offset int) ([]models.Dispute, error) {
	if role != models.RoleArbiter {
		return nil, apperror.New(apperror.ErrCodeForbidden, "очередь споров доступна только арбитру")
	}
	return s.disputes.ListOpen(ctx, limit, offset)
}

// get возвращает спор, транслируя ошибку хранилища.
func (s *DisputeService) get(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, err
	}
	return dispute, nil
}

// mapDisputeErr транслирует ошибки хранилища споров в apperror.
func (s *DisputeService) mapDisputeErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrDisputeNotFound):
		return apperror.ErrDisputeNotFound
	case errors.Is(err, repository.ErrDisputeState):
		return apperror.New(apperror.ErrCodeInvalidState, "спор не в подходящем статусе для этой операции")
	default:
		return err
	}
}

// notify отправляет уведомление, если notifier подключён.
func (s *DisputeService) notify(ctx context.Context, userID uuid.UUID, event string, payload interface{}) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, userID, event, payload)
	}
}
