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

func activeContract() *models.Contract {
	return &models.Contract{
		ID:           uuid.New(),
		ClientID:     uuid.New(),
		FreelancerID: uuid.New(),
		TotalAmount:  1000,
		Currency:     "USD",
		Status:       models.ContractStatusActive,
	}
}

func TestConfirmPayment_Success(t *testing.T) {
	contracts := new(mockContractStore)
	ledger := new(mockLedger)

	contract := activeContract()
	funded := *contract
	funded.CurrentAmount = 500
	funded.FundingStatus = models.FundingStatusPartiallyFunded

	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)
	ledger.On("Fund", mock.Anything, mock.MatchedBy(func(p repository.FundParams) bool {
		return p.ContractID == contract.ID &&
			p.FromUserID == contract.ClientID &&
			p.Amount == 500 &&
			p.SettlementRef != nil && *p.SettlementRef == "pay_001"
	})).Return(&funded, nil)

	svc := NewPaymentService(contracts, ledger, new(mockTransactionReader), nil)

	got, err := svc.ConfirmPayment(context.Background(), ConfirmPaymentInput{
		ContractID:    contract.ID,
		Amount:        500,
		SettlementRef: "pay_001",
		Method:        models.PaymentMethodFiat,
	})

	assert.NoError(t, err)
	assert.Equal(t, models.FundingStatusPartiallyFunded, got.FundingStatus)
	contracts.AssertExpectations(t)
	ledger.AssertExpectations(t)
}

func TestConfirmPayment_DuplicateSettlementRefIdempotent(t *testing.T) {
	contracts := new(mockContractStore)
	ledger := new(mockLedger)

	contract := activeContract()
	contract.CurrentAmount = 500

	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)
	// Повтор того же подтверждения: состояние не меняется, ошибки нет.
	ledger.On("Fund", mock.Anything, mock.Anything).Return(contract, repository.ErrDuplicateSettlement)

	svc := NewPaymentService(contracts, ledger, new(mockTransactionReader), nil)

	got, err := svc.ConfirmPayment(context.Background(), ConfirmPaymentInput{
		ContractID:    contract.ID,
		Amount:        500,
		SettlementRef: "pay_001",
		Method:        models.PaymentMethodCrypto,
	})

	assert.NoError(t, err)
	assert.Equal(t, contract.ID, got.ID)
	assert.Equal(t, 500.0, got.CurrentAmount)
	ledger.AssertExpectations(t)
}

func TestConfirmPayment_Overfunded(t *testing.T) {
	contracts := new(mockContractStore)
	ledger := new(mockLedger)

	contract := activeContract()
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)
	ledger.On("Fund", mock.Anything, mock.Anything).Return(nil, repository.ErrOverfunded)

	svc := NewPaymentService(contracts, ledger, new(mockTransactionReader), nil)

	_, err := svc.ConfirmPayment(context.Background(), ConfirmPaymentInput{
		ContractID:    contract.ID,
		Amount:        5000,
		SettlementRef: "pay_002",
		Method:        models.PaymentMethodFiat,
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Contains(t, err.Error(), "превышает бюджет")
}

func TestConfirmPayment_InvalidMethod(t *testing.T) {
	svc := NewPaymentService(new(mockContractStore), new(mockLedger), new(mockTransactionReader), nil)

	_, err := svc.ConfirmPayment(context.Background(), ConfirmPaymentInput{
		ContractID:    uuid.New(),
		Amount:        100,
		SettlementRef: "pay_003",
		Method:        "cash",
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Contains(t, err.Error(), "способ оплаты")
}

func TestConfirmPayment_MissingSettlementRef(t *testing.T) {
	svc := NewPaymentService(new(mockContractStore), new(mockLedger), new(mockTransactionReader), nil)

	_, err := svc.ConfirmPayment(context.Background(), ConfirmPaymentInput{
		ContractID: uuid.New(),
		Amount:     100,
		Method:     models.PaymentMethodFiat,
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Contains(t, err.Error(), "settlement_ref")
}

func TestConfirmPayment_ContractNotActive(t *testing.T) {
	contracts := new(mockContractStore)

	contract := activeContract()
	contract.Status = models.ContractStatusDraft
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)

	svc := NewPaymentService(contracts, new(mockLedger), new(mockTransactionReader), nil)

	_, err := svc.ConfirmPayment(context.Background(), ConfirmPaymentInput{
		ContractID:    contract.ID,
		Amount:        100,
		SettlementRef: "pay_004",
		Method:        models.PaymentMethodFiat,
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestListContractTransactions_ForbiddenForStranger(t *testing.T) {
	contracts := new(mockContractStore)

	contract := activeContract()
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)

	svc := NewPaymentService(contracts, new(mockLedger), new(mockTransactionReader), nil)

	_, err := svc.ListContractTransactions(context.Background(), uuid.New(), models.RoleClient, contract.ID, 20, 0)

	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestListContractTransactions_ArbiterAllowed(t *testing.T) {
	contracts := new(mockContractStore)
	transactions := new(mockTransactionReader)

	contract := activeContract()
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)
	transactions.On("ListByContract", mock.Anything, contract.ID, 20, 0).
		Return([]models.Transaction{{ID: uuid.New(), ContractID: contract.ID}}, nil)

	svc := NewPaymentService(contracts, new(mockLedger), transactions, nil)

	list, err := svc.ListContractTransactions(context.Background(), uuid.New(), models.RoleArbiter, contract.ID, 20, 0)

	assert.NoError(t, err)
	assert.Len(t, list, 1)
	transactions.AssertExpectations(t)
}
