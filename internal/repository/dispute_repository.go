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

// Ошибки уровня репозитория споров.
var (
	ErrDisputeNotFound = errors.New("dispute not found")
	ErrDisputeState    = errors.New("dispute is not in expected status")
)

// DisputeRepository отвечает за работу со спорами.
type DisputeRepository struct {
	db *sqlx.DB
}

// NewDisputeRepository создаёт новый экземпляр.
func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Create сохраняет новый спор.
func (r *DisputeRepository) Create(ctx context.Context, dispute *models.Dispute) error {
	query := `
		INSERT INTO disputes (contract_id, milestone_id, raised_by, reason, client_evidence, freelancer_evidence, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		dispute.ContractID, dispute.MilestoneID, dispute.RaisedBy, dispute.Reason,
		dispute.ClientEvidence, dispute.FreelancerEvidence, models.DisputeStatusOpen,
	).Scan(&dispute.ID, &dispute.CreatedAt); err != nil {
		return fmt.Errorf("dispute repository: create %w", err)
	}
	dispute.Status = models.DisputeStatusOpen
	return nil
}

// GetByID возвращает спор по идентификатору.
func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := r.db.GetContext(ctx, &dispute, `SELECT * FROM disputes WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get by id %w", err)
	}
	return &dispute, nil
}

// GetOpenByContract возвращает незакрытый спор по контракту, если он есть.
func (r *DisputeRepository) GetOpenByContract(ctx context.Context, contractID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.GetContext(ctx, &dispute, `
		SELECT * FROM disputes
		WHERE contract_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC LIMIT 1
	`, contractID, models.DisputeStatusOpen, models.DisputeStatusUnderReview)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get open by contract %w", err)
	}
	return &dispute, nil
}

// ListByContract возвращает все споры контракта.
func (r *DisputeRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes,
		`SELECT * FROM disputes WHERE contract_id = $1 ORDER BY created_at DESC`, contractID)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list by contract %w", err)
	}
	return disputes, nil
}

// ListByUser возвращает споры по контрактам, в которых участвует пользователь.
func (r *DisputeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT d.* FROM disputes d
		JOIN contracts c ON c.id = d.contract_id
		WHERE c.client_id = $1 OR c.freelancer_id = $1
		ORDER BY d.created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list by user %w", err)
	}
	return disputes, nil
}

// ListOpen возвращает нерешённые споры для очереди арбитра.
func (r *DisputeRepository) ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes WHERE status IN ($1, $2)
		ORDER BY created_at LIMIT $3 OFFSET $4
	`, models.DisputeStatusOpen, models.DisputeStatusUnderReview, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list open %w", err)
	}
	return disputes, nil
}

// StartReview назначает арбитра и переводит спор open -> under_review.
func (r *DisputeRepository) StartReview(ctx context.Context, id, arbiterID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE disputes SET status = $2, assigned_to = $3
		WHERE id = $1 AND status = $4
	`, id, models.DisputeStatusUnderReview, arbiterID, models.DisputeStatusOpen)
	if err != nil {
		return fmt.Errorf("dispute repository: start review %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrDisputeState
	}
	return nil
}

// Resolve фиксирует решение арбитра. Допустимо из open и under_review,
// повторное решение не пройдёт условие на статус.
func (r *DisputeRepository) Resolve(ctx context.Context, id uuid.UUID, outcome, resolution string, resolvedBy uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE disputes
		SET status = $2, outcome = $3, resolution = $4, resolved_by = $5, resolved_at = NOW()
		WHERE id = $1 AND status IN ($6, $7)
	`, id, models.DisputeStatusResolved, outcome, resolution, resolvedBy,
		models.DisputeStatusOpen, models.DisputeStatusUnderReview)
	if err != nil {
		return fmt.Errorf("dispute repository: resolve %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrDisputeState
	}
	return nil
}

// Close закрывает решённый спор.
func (r *DisputeRepository) Close(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE disputes SET status = $2 WHERE id = $1 AND status = $3
	`, id, models.DisputeStatusClosed, models.DisputeStatusResolved)
	if err != nil {
		return fmt.Errorf("dispute repository: close %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrDisputeState
	}
	return nil
}
