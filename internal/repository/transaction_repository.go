package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bondplatform/bond-backend/internal/models"
)

// TransactionRepository читает журнал финансовых операций.
// Записи создаются только внутри транзакций EscrowRepository,
// отдельного метода создания здесь нет.
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository создаёт новый экземпляр.
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// ListByContract возвращает операции контракта от новых к старым.
func (r *TransactionRepository) ListByContract(ctx context.Context, contractID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT * FROM transactions WHERE contract_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, contractID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: list by contract %w", err)
	}
	return transactions, nil
}

// ListByUser возвращает операции, где пользователь был отправителем или получателем.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT * FROM transactions WHERE from_user_id = $1 OR to_user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: list by user %w", err)
	}
	return transactions, nil
}
