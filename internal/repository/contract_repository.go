package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bondplatform/bond-backend/internal/models"
)

// Ошибки уровня репозитория контрактов.
var (
	ErrContractNotFound = errors.New("contract not found")
	ErrContractState    = errors.New("contract is not in expected status")
)

// ContractRepository отвечает за работу с контрактами.
type ContractRepository struct {
	db *sqlx.DB
}

// NewContractRepository создаёт новый экземпляр.
func NewContractRepository(db *sqlx.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// Create сохраняет новый контракт.
func (r *ContractRepository) Create(ctx context.Context, contract *models.Contract) error {
	query := `
		INSERT INTO contracts (title, description, client_id, freelancer_id, total_amount, current_amount, currency, status, funding_status, created_by)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9)
		RETURNING id, current_amount, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		contract.Title, contract.Description, contract.ClientID, contract.FreelancerID,
		contract.TotalAmount, contract.Currency, contract.Status, models.FundingStatusUnfunded, contract.CreatedBy,
	).Scan(&contract.ID, &contract.CurrentAmount, &contract.CreatedAt, &contract.UpdatedAt); err != nil {
		return fmt.Errorf("contract repository: create %w", err)
	}
	contract.FundingStatus = models.FundingStatusUnfunded
	return nil
}

// GetByID возвращает контракт по идентификатору.
func (r *ContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	var contract models.Contract
	if err := r.db.GetContext(ctx, &contract, `SELECT * FROM contracts WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("contract repository: get by id %w", err)
	}
	return &contract, nil
}

// ListByUser возвращает контракты, где пользователь является клиентом или фрилансером.
func (r *ContractRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Contract, error) {
	var contracts []models.Contract
	err := r.db.SelectContext(ctx, &contracts, `
		SELECT * FROM contracts
		WHERE client_id = $1 OR freelancer_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("contract repository: list by user %w", err)
	}
	return contracts, nil
}

// UpdateStatus переводит контракт из ожидаемого статуса в новый.
// Условие на текущий статус защищает от гонок конкурентных переходов.
func (r *ContractRepository) UpdateStatus(ctx context.Context, id uuid.UUID, fromStatuses []string, newStatus string) error {
	query, args, err := sqlx.In(
		`UPDATE contracts SET status = ?, updated_at = NOW() WHERE id = ? AND status IN (?)`,
		newStatus, id, fromStatuses,
	)
	if err != nil {
		return fmt.Errorf("contract repository: build update status %w", err)
	}

	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("contract repository: update status %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		// Либо контракт не существует, либо статус уже изменился.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrContractState
	}
	return nil
}

// DeleteCascade удаляет контракт вместе с вехами и escrow в одной транзакции.
// Журнал транзакций не трогаем: это неизменяемый аудит.
func (r *ContractRepository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("contract repository: begin delete tx %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM disputes WHERE contract_id = $1`, id); err != nil {
		return fmt.Errorf("contract repository: delete disputes %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM milestones WHERE contract_id = $1`, id); err != nil {
		return fmt.Errorf("contract repository: delete milestones %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM escrows WHERE contract_id = $1`, id); err != nil {
		return fmt.Errorf("contract repository: delete escrow %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM contracts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("contract repository: delete contract %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrContractNotFound
	}

	return tx.Commit()
}
