package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bondplatform/bond-backend/internal/models"
)

// Ошибки уровня реестра escrow.
var (
	ErrEscrowNotFound      = errors.New("escrow not found")
	ErrInsufficientEscrow  = errors.New("release exceeds funded amount")
	ErrOverfunded          = errors.New("funding exceeds contract total")
	ErrDuplicateSettlement = errors.New("settlement reference already processed")
	ErrMilestoneState      = errors.New("milestone is not in expected status")
)

// EscrowRepository ведёт реестр средств контрактов: сколько внесено,
// сколько выплачено. Все операции, меняющие суммы, выполняются в одной
// SQL транзакции с блокировкой строки контракта — это сериализует
// конкурентные изменения по одному контракту.
type EscrowRepository struct {
	db *sqlx.DB
}

// NewEscrowRepository создаёт новый экземпляр.
func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// FundParams описывает пополнение escrow контракта.
type FundParams struct {
	ContractID    uuid.UUID
	FromUserID    uuid.UUID
	Amount        float64
	SettlementRef *string
	PaymentMethod *string
	Description   string
}

// Fund атомарно увеличивает внесённую сумму контракта: обновляет контракт,
// создаёт или пополняет escrow и записывает транзакцию финансирования.
// Повтор одного и того же settlement reference возвращает
// ErrDuplicateSettlement, не меняя состояние.
func (r *EscrowRepository) Fund(ctx context.Context, p FundParams) (*models.Contract, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("escrow repository: begin fund tx %w", err)
	}
	defer tx.Rollback()

	var contract models.Contract
	if err := tx.GetContext(ctx, &contract, `SELECT * FROM contracts WHERE id = $1 FOR UPDATE`, p.ContractID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("escrow repository: lock contract %w", err)
	}

	// Дедупликация по settlement reference платёжного провайдера.
	if p.SettlementRef != nil {
		var count int
		if err := tx.GetContext(ctx, &count,
			`SELECT COUNT(*) FROM transactions WHERE settlement_ref = $1`, *p.SettlementRef); err != nil {
			return nil, fmt.Errorf("escrow repository: settlement dedup %w", err)
		}
		if count > 0 {
			return &contract, ErrDuplicateSettlement
		}
	}

	newAmount := contract.CurrentAmount + p.Amount
	if newAmount > contract.TotalAmount {
		return nil, ErrOverfunded
	}

	fundingStatus := models.ComputeFundingStatus(newAmount, contract.TotalAmount)
	if _, err := tx.ExecContext(ctx, `
		UPDATE contracts
		SET current_amount = $2, funding_status = $3,
		    payment_method = COALESCE($4, payment_method),
		    settlement_ref = COALESCE($5, settlement_ref),
		    updated_at = NOW()
		WHERE id = $1
	`, contract.ID, newAmount, fundingStatus, p.PaymentMethod, p.SettlementRef); err != nil {
		return nil, fmt.Errorf("escrow repository: update contract funding %w", err)
	}
	contract.CurrentAmount = newAmount
	contract.FundingStatus = fundingStatus

	// Создаём или пополняем escrow контракта.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO escrows (contract_id, escrow_ref, funded_amount, released_amount, currency, status, funded_at, settlement_ref)
		VALUES ($1, $2, $3, 0, $4, $5, NOW(), $6)
		ON CONFLICT (contract_id) DO UPDATE SET
			funded_amount = escrows.funded_amount + $3,
			status = $5,
			funded_at = NOW(),
			settlement_ref = COALESCE($6, escrows.settlement_ref),
			updated_at = NOW()
	`, contract.ID, escrowRef(contract.ID), p.Amount, contract.Currency, models.EscrowStatusFunded, p.SettlementRef); err != nil {
		return nil, fmt.Errorf("escrow repository: upsert escrow %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (contract_id, from_user_id, to_user_id, amount, currency, type, status, description, settlement_ref, payment_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, contract.ID, p.FromUserID, contract.FreelancerID, p.Amount, contract.Currency,
		models.TransactionTypeFunding, models.TransactionStatusCompleted, p.Description, p.SettlementRef, p.PaymentMethod); err != nil {
		return nil, fmt.Errorf("escrow repository: insert funding transaction %w", err)
	}

	return &contract, tx.Commit()
}

// ReleaseParams описывает выплату по одобренной вехе.
type ReleaseParams struct {
	ContractID  uuid.UUID
	MilestoneID uuid.UUID
	Amount      float64
	FromUserID  uuid.UUID
	ToUserID    uuid.UUID
	Currency    string
	Description string
}

// Release атомарно одобряет веху и выплачивает её сумму из escrow:
// веха submitted -> approved, released_amount увеличивается, пишется
// транзакция release. Выплатить больше, чем внесено, нельзя.
func (r *EscrowRepository) Release(ctx context.Context, p ReleaseParams) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("escrow repository: begin release tx %w", err)
	}
	defer tx.Rollback()

	var escrow models.Escrow
	if err := tx.GetContext(ctx, &escrow, `SELECT * FROM escrows WHERE contract_id = $1 FOR UPDATE`, p.ContractID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: lock escrow %w", err)
	}

	if escrow.ReleasedAmount+p.Amount > escrow.FundedAmount {
		return nil, ErrInsufficientEscrow
	}

	// Переводим веху в approved строго из submitted: повторное одобрение
	// не пройдёт условие и не приведёт ко второй выплате.
	res, err := tx.ExecContext(ctx, `
		UPDATE milestones SET status = $2, approved_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, p.MilestoneID, models.MilestoneStatusApproved, models.MilestoneStatusSubmitted)
	if err != nil {
		return nil, fmt.Errorf("escrow repository: approve milestone %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrMilestoneState
	}

	newReleased := escrow.ReleasedAmount + p.Amount
	status := models.EscrowStatusFunded
	if newReleased >= escrow.FundedAmount {
		status = models.EscrowStatusReleased
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
		UPDATE escrows SET released_amount = $2, status = $3, released_at = $4, updated_at = NOW()
		WHERE id = $1
	`, escrow.ID, newReleased, status, now); err != nil {
		return nil, fmt.Errorf("escrow repository: update released amount %w", err)
	}
	escrow.ReleasedAmount = newReleased
	escrow.Status = status
	escrow.ReleasedAt = &now

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (contract_id, milestone_id, from_user_id, to_user_id, amount, currency, type, status, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ContractID, p.MilestoneID, p.FromUserID, p.ToUserID, p.Amount, p.Currency,
		models.TransactionTypeRelease, models.TransactionStatusCompleted, p.Description); err != nil {
		return nil, fmt.Errorf("escrow repository: insert release transaction %w", err)
	}

	return &escrow, tx.Commit()
}

// PayoutParams описывает вывод средств фрилансером по одобренной вехе.
type PayoutParams struct {
	ContractID  uuid.UUID
	MilestoneID uuid.UUID
	Amount      float64
	FromUserID  uuid.UUID
	ToUserID    uuid.UUID
	Currency    string
	Description string
}

// Payout переводит веху approved -> paid и записывает транзакцию payout.
func (r *EscrowRepository) Payout(ctx context.Context, p PayoutParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("escrow repository: begin payout tx %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE milestones SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, p.MilestoneID, models.MilestoneStatusPaid, models.MilestoneStatusApproved)
	if err != nil {
		return fmt.Errorf("escrow repository: mark milestone paid %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrMilestoneState
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (contract_id, milestone_id, from_user_id, to_user_id, amount, currency, type, status, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ContractID, p.MilestoneID, p.FromUserID, p.ToUserID, p.Amount, p.Currency,
		models.TransactionTypePayout, models.TransactionStatusCompleted, p.Description); err != nil {
		return fmt.Errorf("escrow repository: insert payout transaction %w", err)
	}

	return tx.Commit()
}

// RefundParams описывает возврат невыплаченного остатка клиенту.
type RefundParams struct {
	ContractID  uuid.UUID
	ToUserID    uuid.UUID
	Description string
}

// Refund возвращает клиенту невыплаченный остаток escrow. Возвращается
// ровно funded_amount - released_amount; контракт и escrow пересчитываются
// в той же транзакции.
func (r *EscrowRepository) Refund(ctx context.Context, p RefundParams) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("escrow repository: begin refund tx %w", err)
	}
	defer tx.Rollback()

	var contract models.Contract
	if err := tx.GetContext(ctx, &contract, `SELECT * FROM contracts WHERE id = $1 FOR UPDATE`, p.ContractID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("escrow repository: lock contract %w", err)
	}

	var escrow models.Escrow
	if err := tx.GetContext(ctx, &escrow, `SELECT * FROM escrows WHERE contract_id = $1 FOR UPDATE`, p.ContractID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: lock escrow %w", err)
	}

	refundable := escrow.FundedAmount - escrow.ReleasedAmount
	if refundable <= 0 {
		return &escrow, tx.Commit()
	}

	newFunded := escrow.FundedAmount - refundable
	if _, err := tx.ExecContext(ctx, `
		UPDATE escrows SET funded_amount = $2, status = $3, updated_at = NOW()
		WHERE id = $1
	`, escrow.ID, newFunded, models.EscrowStatusRefunded); err != nil {
		return nil, fmt.Errorf("escrow repository: update refunded escrow %w", err)
	}
	escrow.FundedAmount = newFunded
	escrow.Status = models.EscrowStatusRefunded

	newCurrent := contract.CurrentAmount - refundable
	if newCurrent < 0 {
		newCurrent = 0
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE contracts SET current_amount = $2, funding_status = $3, updated_at = NOW()
		WHERE id = $1
	`, contract.ID, newCurrent, models.ComputeFundingStatus(newCurrent, contract.TotalAmount)); err != nil {
		return nil, fmt.Errorf("escrow repository: update contract after refund %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (contract_id, from_user_id, to_user_id, amount, currency, type, status, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ContractID, contract.FreelancerID, p.ToUserID, refundable, escrow.Currency,
		models.TransactionTypeRefund, models.TransactionStatusCompleted, p.Description); err != nil {
		return nil, fmt.Errorf("escrow repository: insert refund transaction %w", err)
	}

	return &escrow, tx.Commit()
}

// GetByContractID возвращает escrow по контракту.
func (r *EscrowRepository) GetByContractID(ctx context.Context, contractID uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	if err := r.db.GetContext(ctx, &escrow, `SELECT * FROM escrows WHERE contract_id = $1`, contractID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: get by contract %w", err)
	}
	return &escrow, nil
}

// SetStatus переводит escrow в заданный статус из одного из ожидаемых.
// Используется для ветки disputed и возврата из неё.
func (r *EscrowRepository) SetStatus(ctx context.Context, contractID uuid.UUID, fromStatuses []string, newStatus string) error {
	query, args, err := sqlx.In(
		`UPDATE escrows SET status = ?, updated_at = NOW() WHERE contract_id = ? AND status IN (?)`,
		newStatus, contractID, fromStatuses,
	)
	if err != nil {
		return fmt.Errorf("escrow repository: build set status %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("escrow repository: set status %w", err)
	}
	return nil
}

// escrowRef формирует человекочитаемый идентификатор escrow.
func escrowRef(contractID uuid.UUID) string {
	return "esc_" + contractID.String()[:8]
}
