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

// TransactionReader читает журнал финансовых операций.
type TransactionReader interface {
	ListByContract(ctx context.Context, contractID uuid.UUID, limit, offset int) ([]models.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
}

// PaymentService обрабатывает подтверждения платежей от внешних рейлов
// (банковский эквайринг и криптокошельки) и отдаёт журнал операций.
type PaymentService struct {
	contracts    ContractStore
	ledger       ContractLedger
	transactions TransactionReader
	notifier     Notifier
}

// NewPaymentService создаёт платёжный сервис. notifier может быть nil.
func NewPaymentService(contracts ContractStore, ledger ContractLedger, transactions TransactionReader, notifier Notifier) *PaymentService {
	return &PaymentService{
		contracts:    contracts,
		ledger:       ledger,
		transactions: transactions,
		notifier:     notifier,
	}
}

// ConfirmPaymentInput — подтверждение платежа от платёжного адаптера.
type ConfirmPaymentInput struct {
	ContractID    uuid.UUID
	Amount        float64
	SettlementRef string
	Method        string
}

// ConfirmPayment зачисляет подтверждённый платёж в escrow контракта.
// Операция идемпотентна по settlement_ref: повторная доставка того же
// подтверждения возвращает текущее состояние без повторного зачисления.
func (s *PaymentService) ConfirmPayment(ctx context.Context, in ConfirmPaymentInput) (*models.Contract, error) {
	if err := validation.ValidateAmount("сумма платежа", in.Amount); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if strings.TrimSpace(in.SettlementRef) == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "settlement_ref обязателен")
	}
	if in.Method != models.PaymentMethodFiat && in.Method != models.PaymentMethodCrypto {
		return nil, apperror.New(apperror.ErrCodeValidation, "недопустимый способ оплаты")
	}

	contract, err := s.contracts.GetByID(ctx, in.ContractID)
	if err != nil {
		if errors.Is(err, repository.ErrContractNotFound) {
			return nil, apperror.ErrContractNotFound
		}
		return nil, err
	}
	if contract.Status != models.ContractStatusActive {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "зачислить платёж можно только на активный контракт")
	}

	funded, err := s.ledger.Fund(ctx, repository.FundParams{
		ContractID:    in.ContractID,
		FromUserID:    contract.ClientID,
		Amount:        in.Amount,
		SettlementRef: &in.SettlementRef,
		PaymentMethod: &in.Method,
		Description:   "зачисление платежа " + in.SettlementRef,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateSettlement):
			// Повторная доставка подтверждения: состояние не меняем.
			logger.Log.WithFields(map[string]interface{}{
				"contract_id":    in.ContractID,
				"settlement_ref": in.SettlementRef,
			}).Info("payment service: повторное подтверждение платежа, пропускаем")
			return funded, nil
		case errors.Is(err, repository.ErrOverfunded):
			return nil, apperror.New(apperror.ErrCodeValidation, "сумма платежа превышает бюджет контракта")
		case errors.Is(err, repository.ErrContractNotFound):
			return nil, apperror.ErrContractNotFound
		default:
			return nil, err
		}
	}

	s.notify(ctx, funded.FreelancerID, models.EventContractFunded, funded)
	s.notify(ctx, funded.ClientID, models.EventContractFunded, funded)

	logger.Log.WithFields(map[string]interface{}{
		"contract_id":    funded.ID,
		"settlement_ref": in.SettlementRef,
		"method":         in.Method,
		"funding_status": funded.FundingStatus,
	}).Info("payment service: платёж зачислен в escrow")

	return funded, nil
}

// ListContractTransactions возвращает журнал операций контракта
// участнику или арбитру.
func (s *PaymentService) ListContractTransactions(ctx context.Context, userID uuid.UUID, role string, contractID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, repository.ErrContractNotFound) {
			return nil, apperror.ErrContractNotFound
		}
		return nil, err
	}
	if !isParticipant(contract, userID) && role != models.RoleArbiter {
		return nil, apperror.ErrForbidden
	}
	return s.transactions.ListByContract(ctx, contractID, limit, offset)
}

// ListMyTransactions возвращает операции пользователя.
func (s *PaymentService) ListMyTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	return s.transactions.ListByUser(ctx, userID, limit, offset)
}

// notify отправляет уведомление, если notifier подключён.
func (s *PaymentService) notify(ctx context.Context, userID uuid.UUID, event string, payload interface{}) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, userID, event, payload)
	}
}
