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

func submittedMilestone(contractID uuid.UUID) *models.Milestone {
	return &models.Milestone{
		ID:         uuid.New(),
		ContractID: contractID,
		Title:      "Первый этап",
		Amount:     300,
		Status:     models.MilestoneStatusSubmitted,
	}
}

func TestCreateMilestone_Success(t *testing.T) {
	milestones := new(mockMilestoneStore)
	contracts := new(mockContractStore)

	contract := activeContract()
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)
	milestones.On("Create", mock.Anything, mock.MatchedBy(func(m *models.Milestone) bool {
		return m.ContractID == contract.ID && m.Amount == 300
	})).Return(nil)

	svc := NewMilestoneService(milestones, contracts, new(mockLedger), nil)

	milestone, err := svc.CreateMilestone(context.Background(), contract.ClientID, contract.ID, CreateMilestoneInput{
		Title:  "Первый этап",
		Amount: 300,
	})

	assert.NoError(t, err)
	assert.Equal(t, contract.ID, milestone.ContractID)
	milestones.AssertExpectations(t)
}

func TestCreateMilestone_BudgetExceeded(t *testing.T) {
	milestones := new(mockMilestoneStore)
	contracts := new(mockContractStore)

	contract := activeContract()
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)
	milestones.On("Create", mock.Anything, mock.Anything).Return(repository.ErrBudgetExceeded)

	svc := NewMilestoneService(milestones, contracts, new(mockLedger), nil)

	_, err := svc.CreateMilestone(context.Background(), contract.ClientID, contract.ID, CreateMilestoneInput{
		Title:  "Слишком дорогой этап",
		Amount: 900,
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Contains(t, err.Error(), "превышает бюджет")
}

func TestCreateMilestone_OnlyClient(t *testing.T) {
	contracts := new(mockContractStore)

	contract := activeContract()
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)

	svc := NewMilestoneService(new(mockMilestoneStore), contracts, new(mockLedger), nil)

	_, err := svc.CreateMilestone(context.Background(), contract.FreelancerID, contract.ID, CreateMilestoneInput{
		Title:  "Этап",
		Amount: 100,
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestCreateMilestone_CompletedContract(t *testing.T) {
	contracts := new(mockContractStore)

	contract := activeContract()
	contract.Status = models.ContractStatusCompleted
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)

	svc := NewMilestoneService(new(mockMilestoneStore), contracts, new(mockLedger), nil)

	_, err := svc.CreateMilestone(context.Background(), contract.ClientID, contract.ID, CreateMilestoneInput{
		Title:  "Этап",
		Amount: 100,
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestSubmitDeliverable_Success(t *testing.T) {
	milestones := new(mockMilestoneStore)
	contracts := new(mockContractStore)

	contract := activeContract()
	milestone := submittedMilestone(contract.ID)
	milestone.Status = models.MilestoneStatusPending

	milestones.On("GetByID", mock.Anything, milestone.ID).Return(milestone, nil)
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)
	milestones.On("Submit", mock.Anything, milestone.ID, "/deliverables/report.pdf").Return(nil)

	svc := NewMilestoneService(milestones, contracts, new(mockLedger), nil)

	got, err := svc.SubmitDeliverable(context.Background(), contract.FreelancerID, milestone.ID, "/deliverables/report.pdf")

	assert.NoError(t, err)
	assert.Equal(t, models.MilestoneStatusSubmitted, got.Status)
	milestones.AssertExpectations(t)
}

func TestSubmitDeliverable_OnlyFreelancer(t *testing.T) {
	milestones := new(mockMilestoneStore)
	contracts := new(mockContractStore)

	contract := activeContract()
	milestone := submittedMilestone(contract.ID)

	milestones.On("GetByID", mock.Anything, milestone.ID).Return(milestone, nil)
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)

	svc := NewMilestoneService(milestones, contracts, new(mockLedger), nil)

	_, err := svc.SubmitDeliverable(context.Background(), contract.ClientID, milestone.ID, "/deliverables/report.pdf")

	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestApproveMilestone_Success(t *testing.T) {
	milestones := new(mockMilestoneStore)
	contracts := new(mockContractStore)
	ledger := new(mockLedger)

	contract := activeContract()
	milestone := submittedMilestone(contract.ID)

	milestones.On("GetByID", mock.Anything, milestone.ID).Return(milestone, nil)
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)
	ledger.On("Release", mock.Anything, mock.MatchedBy(func(p repository.ReleaseParams) bool {
		return p.ContractID == contract.ID &&
			p.MilestoneID == milestone.ID &&
			p.Amount == milestone.Amount &&
			p.ToUserID == contract.FreelancerID
	})).Return(&models.Escrow{ContractID: contract.ID, ReleasedAmount: 300}, nil)

	svc := NewMilestoneService(milestones, contracts, ledger, nil)

	got, err := svc.ApproveMilestone(context.Background(), contract.ClientID, milestone.ID)

	assert.NoError(t, err)
	assert.Equal(t, models.MilestoneStatusApproved, got.Status)
	ledger.AssertExpectations(t)
}

func TestApproveMilestone_AlreadyApproved(t *testing.T) {
	milestones := new(mockMilestoneStore)
	contracts := new(mockContractStore)
	ledger := new(mockLedger)

	contract := activeContract()
	milestone := submittedMilestone(contract.ID)
	milestone.Status = models.MilestoneStatusApproved

	milestones.On("GetByID", mock.Anything, milestone.ID).Return(milestone, nil)
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)
	ledger.On("Release", mock.Anything, mock.Anything).Return(nil, repository.ErrMilestoneState)

	svc := NewMilestoneService(milestones, contracts, ledger, nil)

	_, err := svc.ApproveMilestone(context.Background(), contract.ClientID, milestone.ID)

	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
	assert.Contains(t, err.Error(), "не находится на проверке")
}

func TestApproveMilestone_InsufficientEscrow(t *testing.T) {
	milestones := new(mockMilestoneStore)
	contracts := new(mockContractStore)
	ledger := new(mockLedger)

	contract := activeContract()
	milestone := submittedMilestone(contract.ID)

	milestones.On("GetByID", mock.Anything, milestone.ID).Return(milestone, nil)
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)
	ledger.On("Release", mock.Anything, mock.Anything).Return(nil, repository.ErrInsufficientEscrow)

	svc := NewMilestoneService(milestones, contracts, ledger, nil)

	_, err := svc.ApproveMilestone(context.Background(), contract.ClientID, milestone.ID)

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Contains(t, err.Error(), "недостаточно средств")
}

func TestApproveMilestone_ContractNotFunded(t *testing.T) {
	milestones := new(mockMilestoneStore)
	contracts := new(mockContractStore)
	ledger := new(mockLedger)

	contract := activeContract()
	milestone := submittedMilestone(contract.ID)

	milestones.On("GetByID", mock.Anything, milestone.ID).Return(milestone, nil)
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)
	ledger.On("Release", mock.Anything, mock.Anything).Return(nil, repository.ErrEscrowNotFound)

	svc := NewMilestoneService(milestones, contracts, ledger, nil)

	_, err := svc.ApproveMilestone(context.Background(), contract.ClientID, milestone.ID)

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Contains(t, err.Error(), "не профинансирован")
}

func TestRequestRevision_NotesRequired(t *testing.T) {
	svc := NewMilestoneService(new(mockMilestoneStore), new(mockContractStore), new(mockLedger), nil)

	_, err := svc.RequestRevision(context.Background(), uuid.New(), uuid.New(), "   ")

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Contains(t, err.Error(), "комментарий")
}

func TestInitiatePayout_Success(t *testing.T) {
	milestones := new(mockMilestoneStore)
	contracts := new(mockContractStore)
	ledger := new(mockLedger)

	contract := activeContract()
	milestone := submittedMilestone(contract.ID)
	milestone.Status = models.MilestoneStatusApproved

	milestones.On("GetByID", mock.Anything, milestone.ID).Return(milestone, nil)
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)
	ledger.On("Payout", mock.Anything, mock.MatchedBy(func(p repository.PayoutParams) bool {
		return p.MilestoneID == milestone.ID && p.ToUserID == contract.FreelancerID
	})).Return(nil)

	svc := NewMilestoneService(milestones, contracts, ledger, nil)

	got, err := svc.InitiatePayout(context.Background(), contract.FreelancerID, milestone.ID)

	assert.NoError(t, err)
	assert.Equal(t, models.MilestoneStatusPaid, got.Status)
	ledger.AssertExpectations(t)
}

func TestInitiatePayout_NotApproved(t *testing.T) {
	milestones := new(mockMilestoneStore)
	contracts := new(mockContractStore)
	ledger := new(mockLedger)

	contract := activeContract()
	milestone := submittedMilestone(contract.ID)

	milestones.On("GetByID", mock.Anything, milestone.ID).Return(milestone, nil)
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)
	ledger.On("Payout", mock.Anything, mock.Anything).Return(repository.ErrMilestoneState)

	svc := NewMilestoneService(milestones, contracts, ledger, nil)

	_, err := svc.InitiatePayout(context.Background(), contract.FreelancerID, milestone.ID)

	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
	assert.Contains(t, err.Error(), "одобренной вехе")
}

func TestSetVerificationResult_InvalidStatus(t *testing.T) {
	svc := NewMilestoneService(new(mockMilestoneStore), new(mockContractStore), new(mockLedger), nil)

	err := svc.SetVerificationResult(context.Background(), uuid.New(), "maybe", "")

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestSetVerificationResult_Advisory(t *testing.T) {
	milestones := new(mockMilestoneStore)

	milestoneID := uuid.New()
	milestones.On("SetVerification", mock.Anything, milestoneID, models.VerificationFailed, "тесты не проходят").Return(nil)

	svc := NewMilestoneService(milestones, new(mockContractStore), new(mockLedger), nil)

	err := svc.SetVerificationResult(context.Background(), milestoneID, models.VerificationFailed, "тесты не проходят")

	assert.NoError(t, err)
	milestones.AssertExpectations(t)
}

func TestGetMilestone_StrangerForbidden(t *testing.T) {
	milestones := new(mockMilestoneStore)
	contracts := new(mockContractStore)

	contract := activeContract()
	milestone := submittedMilestone(contract.ID)

	milestones.On("GetByID", mock.Anything, milestone.ID).Return(milestone, nil)
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)

	svc := NewMilestoneService(milestones, contracts, new(mockLedger), nil)

	_, err := svc.GetMilestone(context.Background(), uuid.New(), models.RoleClient, milestone.ID)

	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}
