package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/bondplatform/bond-backend/internal/models"
	"github.com/bondplatform/bond-backend/internal/pkg/apperror"
	"github.com/bondplatform/bond-backend/internal/repository"
)

func openDispute(contractID uuid.UUID) *models.Dispute {
	return &models.Dispute{
		ID:         uuid.New(),
		ContractID: contractID,
		RaisedBy:   uuid.New(),
		Reason:     "результат не соответствует договорённостям",
		Status:     models.DisputeStatusOpen,
	}
}

func TestCreateDispute_Success(t *testing.T) {
	disputes := new(mockDisputeStore)
	contracts := new(mockContractStore)
	ledger := new(mockLedger)

	contract := activeContract()
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)
	disputes.On("GetOpenByContract", mock.Anything, contract.ID).Return(nil, repository.ErrDisputeNotFound)
	disputes.On("Create", mock.Anything, mock.MatchedBy(func(d *models.Dispute) bool {
		return d.ContractID == contract.ID &&
			d.RaisedBy == contract.ClientID &&
			d.ClientEvidence != nil && *d.ClientEvidence == "переписка и макеты"
	})).Return(nil)
	contracts.On("UpdateStatus", mock.Anything, contract.ID,
		[]string{models.ContractStatusActive}, models.ContractStatusDisputed).Return(nil)
	ledger.On("SetStatus", mock.Anything, contract.ID,
		[]string{models.EscrowStatusFunded, models.EscrowStatusPending}, models.EscrowStatusDisputed).Return(nil)

	svc := NewDisputeService(disputes, contracts, new(mockMilestoneStore), ledger, nil)

	dispute, err := svc.CreateDispute(context.Background(), contract.ClientID, contract.ID, CreateDisputeInput{
		Reason:   "результат не соответствует договорённостям",
		Evidence: "переписка и макеты",
	})

	assert.NoError(t, err)
	assert.Equal(t, contract.ID, dispute.ContractID)
	disputes.AssertExpectations(t)
	contracts.AssertExpectations(t)
	ledger.AssertExpectations(t)
}

func TestCreateDispute_StrangerForbidden(t *testing.T) {
	contracts := new(mockContractStore)

	contract := activeContract()
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)

	svc := NewDisputeService(new(mockDisputeStore), contracts, new(mockMilestoneStore), new(mockLedger), nil)

	_, err := svc.CreateDispute(context.Background(), uuid.New(), contract.ID, CreateDisputeInput{
		Reason: "результат не соответствует договорённостям",
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestCreateDispute_InactiveContract(t *testing.T) {
	contracts := new(mockContractStore)

	contract := activeContract()
	contract.Status = models.ContractStatusCompleted
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)

	svc := NewDisputeService(new(mockDisputeStore), contracts, new(mockMilestoneStore), new(mockLedger), nil)

	_, err := svc.CreateDispute(context.Background(), contract.ClientID, contract.ID, CreateDisputeInput{
		Reason: "результат не соответствует договорённостям",
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestCreateDispute_AlreadyOpen(t *testing.T) {
	disputes := new(mockDisputeStore)
	contracts := new(mockContractStore)

	contract := activeContract()
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)
	disputes.On("GetOpenByContract", mock.Anything, contract.ID).Return(openDispute(contract.ID), nil)

	svc := NewDisputeService(disputes, contracts, new(mockMilestoneStore), new(mockLedger), nil)

	_, err := svc.CreateDispute(context.Background(), contract.ClientID, contract.ID, CreateDisputeInput{
		Reason: "результат не соответствует договорённостям",
	})

	assert.Error(t, err)
	appErr, ok := apperror.As(err)
	assert.True(t, ok)
	assert.Equal(t, apperror.ErrCodeConflict, appErr.Code)
	assert.Contains(t, err.Error(), "уже идёт спор")
}

func TestCreateDispute_PaidMilestone(t *testing.T) {
	contracts := new(mockContractStore)
	milestones := new(mockMilestoneStore)

	contract := activeContract()
	milestone := submittedMilestone(contract.ID)
	milestone.Status = models.MilestoneStatusPaid

	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)
	milestones.On("GetByID", mock.Anything, milestone.ID).Return(milestone, nil)

	svc := NewDisputeService(new(mockDisputeStore), contracts, milestones, new(mockLedger), nil)

	_, err := svc.CreateDispute(context.Background(), contract.FreelancerID, contract.ID, CreateDisputeInput{
		MilestoneID: &milestone.ID,
		Reason:      "оплата прошла, но клиент требует переделку",
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
	assert.Contains(t, err.Error(), "выплаченной вехе")
}

func TestCreateDispute_ForeignMilestone(t *testing.T) {
	contracts := new(mockContractStore)
	milestones := new(mockMilestoneStore)

	contract := activeContract()
	milestone := submittedMilestone(uuid.New())

	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)
	milestones.On("GetByID", mock.Anything, milestone.ID).Return(milestone, nil)

	svc := NewDisputeService(new(mockDisputeStore), contracts, milestones, new(mockLedger), nil)

	_, err := svc.CreateDispute(context.Background(), contract.ClientID, contract.ID, CreateDisputeInput{
		MilestoneID: &milestone.ID,
		Reason:      "результат не соответствует договорённостям",
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Contains(t, err.Error(), "не относится к этому контракту")
}

func TestStartReview_OnlyArbiter(t *testing.T) {
	svc := NewDisputeService(new(mockDisputeStore), new(mockContractStore), new(mockMilestoneStore), new(mockLedger), nil)

	_, err := svc.StartReview(context.Background(), uuid.New(), models.RoleClient, uuid.New())

	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestStartReview_Success(t *testing.T) {
	disputes := new(mockDisputeStore)

	dispute := openDispute(uuid.New())
	arbiterID := uuid.New()

	disputes.On("GetByID", mock.Anything, dispute.ID).Return(dispute, nil)
	disputes.On("StartReview", mock.Anything, dispute.ID, arbiterID).Return(nil)

	svc := NewDisputeService(disputes, new(mockContractStore), new(mockMilestoneStore), new(mockLedger), nil)

	got, err := svc.StartReview(context.Background(), arbiterID, models.RoleArbiter, dispute.ID)

	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusUnderReview, got.Status)
	assert.Equal(t, arbiterID, *got.AssignedTo)
	disputes.AssertExpectations(t)
}

func TestResolveDispute_InvalidOutcome(t *testing.T) {
	svc := NewDisputeService(new(mockDisputeStore), new(mockContractStore), new(mockMilestoneStore), new(mockLedger), nil)

	_, err := svc.ResolveDispute(context.Background(), uuid.New(), models.RoleArbiter, uuid.New(), ResolveInput{
		Outcome:    "draw",
		Resolution: "обе стороны правы",
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Contains(t, err.Error(), "исход")
}

func TestResolveDispute_ResolutionRequired(t *testing.T) {
	svc := NewDisputeService(new(mockDisputeStore), new(mockContractStore), new(mockMilestoneStore), new(mockLedger), nil)

	_, err := svc.ResolveDispute(context.Background(), uuid.New(), models.RoleArbiter, uuid.New(), ResolveInput{
		Outcome: models.DisputeOutcomeSplit,
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Contains(t, err.Error(), "обоснование")
}

func TestResolveDispute_Success(t *testing.T) {
	disputes := new(mockDisputeStore)
	contracts := new(mockContractStore)
	ledger := new(mockLedger)

	contract := activeContract()
	contract.Status = models.ContractStatusDisputed
	dispute := openDispute(contract.ID)
	dispute.Status = models.DisputeStatusUnderReview
	arbiterID := uuid.New()

	disputes.On("GetByID", mock.Anything, dispute.ID).Return(dispute, nil)
	disputes.On("Resolve", mock.Anything, dispute.ID, models.DisputeOutcomeFreelancer, "работа выполнена по ТЗ", arbiterID).Return(nil)
	contracts.On("UpdateStatus", mock.Anything, contract.ID,
		[]string{models.ContractStatusDisputed}, models.ContractStatusActive).Return(nil)
	ledger.On("SetStatus", mock.Anything, contract.ID,
		[]string{models.EscrowStatusDisputed}, models.EscrowStatusFunded).Return(nil)
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)

	svc := NewDisputeService(disputes, contracts, new(mockMilestoneStore), ledger, nil)

	got, err := svc.ResolveDispute(context.Background(), arbiterID, models.RoleArbiter, dispute.ID, ResolveInput{
		Outcome:    models.DisputeOutcomeFreelancer,
		Resolution: "работа выполнена по ТЗ",
	})

	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolved, got.Status)
	assert.Equal(t, models.DisputeOutcomeFreelancer, *got.Outcome)
	disputes.AssertExpectations(t)
	contracts.AssertExpectations(t)
	ledger.AssertExpectations(t)
}

func TestCloseDispute_NotResolved(t *testing.T) {
	disputes := new(mockDisputeStore)

	dispute := openDispute(uuid.New())
	disputes.On("GetByID", mock.Anything, dispute.ID).Return(dispute, nil)
	disputes.On("Close", mock.Anything, dispute.ID).Return(repository.ErrDisputeState)

	svc := NewDisputeService(disputes, new(mockContractStore), new(mockMilestoneStore), new(mockLedger), nil)

	_, err := svc.CloseDispute(context.Background(), uuid.New(), models.RoleArbiter, dispute.ID)

	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestGetDispute_ParticipantAllowed(t *testing.T) {
	disputes := new(mockDisputeStore)
	contracts := new(mockContractStore)

	contract := activeContract()
	dispute := openDispute(contract.ID)

	disputes.On("GetByID", mock.Anything, dispute.ID).Return(dispute, nil)
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)

	svc := NewDisputeService(disputes, contracts, new(mockMilestoneStore), new(mockLedger), nil)

	got, err := svc.GetDispute(context.Background(), contract.FreelancerID, models.RoleFreelancer, dispute.ID)

	assert.NoError(t, err)
	assert.Equal(t, dispute.ID, got.ID)
}

func TestListOpenDisputes_OnlyArbiter(t *testing.T) {
	svc := NewDisputeService(new(mockDisputeStore), new(mockContractStore), new(mockMilestoneStore), new(mockLedger), nil)

	_, err := svc.ListOpenDisputes(context.Background(), models.RoleClient, 20, 0)

	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}
