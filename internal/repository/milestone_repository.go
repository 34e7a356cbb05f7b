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

// Ошибки уровня репозитория вех.
var (
	ErrMilestoneNotFound = errors.New("milestone not found")
	ErrBudgetExceeded    = errors.New("milestones total exceeds contract budget")
)

// MilestoneRepository отвечает за работу с вехами контрактов.
type MilestoneRepository struct {
	db *sqlx.DB
}

// NewMilestoneRepository создаёт новый экземпляр.
func NewMilestoneRepository(db *sqlx.DB) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

// Create сохраняет новую веху. Контракт блокируется на время проверки,
// чтобы параллельное создание вех не пробило бюджет.
func (r *MilestoneRepository) Create(ctx context.Context, milestone *models.Milestone) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("milestone repository: begin create tx %w", err)
	}
	defer tx.Rollback()

	var totalAmount float64
	if err := tx.GetContext(ctx, &totalAmount,
		`SELECT total_amount FROM contracts WHERE id = $1 FOR UPDATE`, milestone.ContractID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrContractNotFound
		}
		return fmt.Errorf("milestone repository: lock contract %w", err)
	}

	var allocated float64
	if err := tx.GetContext(ctx, &allocated,
		`SELECT COALESCE(SUM(amount), 0) FROM milestones WHERE contract_id = $1`, milestone.ContractID); err != nil {
		return fmt.Errorf("milestone repository: sum milestones %w", err)
	}
	if allocated+milestone.Amount > totalAmount {
		return ErrBudgetExceeded
	}

	query := `
		INSERT INTO milestones (contract_id, title, description, amount, due_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	if err := tx.QueryRowxContext(ctx, query,
		milestone.ContractID, milestone.Title, milestone.Description,
		milestone.Amount, milestone.DueDate, models.MilestoneStatusPending,
	).Scan(&milestone.ID, &milestone.CreatedAt, &milestone.UpdatedAt); err != nil {
		return fmt.Errorf("milestone repository: create %w", err)
	}
	milestone.Status = models.MilestoneStatusPending

	return tx.Commit()
}

// GetByID возвращает веху по идентификатору.
func (r *MilestoneRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	var milestone models.Milestone
	if err := r.db.GetContext(ctx, &milestone, `SELECT * FROM milestones WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMilestoneNotFound
		}
		return nil, fmt.Errorf("milestone repository: get by id %w", err)
	}
	return &milestone, nil
}

// ListByContract возвращает вехи контракта в порядке создания.
func (r *MilestoneRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.Milestone, error) {
	var milestones []models.Milestone
	err := r.db.SelectContext(ctx, &milestones,
		`SELECT * FROM milestones WHERE contract_id = $1 ORDER BY created_at`, contractID)
	if err != nil {
		return nil, fmt.Errorf("milestone repository: list by contract %w", err)
	}
	return milestones, nil
}

// Submit переводит веху в submitted и сохраняет ссылку на результат.
// Допустимо из pending и revision_requested.
func (r *MilestoneRepository) Submit(ctx context.Context, id uuid.UUID, deliverableURL string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE milestones
		SET status = $2, deliverable_url = $3, submitted_at = NOW(),
		    verification_status = $4, verification_result = NULL, updated_at = NOW()
		WHERE id = $1 AND status IN ($5, $6)
	`, id, models.MilestoneStatusSubmitted, deliverableURL, models.VerificationPending,
		models.MilestoneStatusPending, models.MilestoneStatusRevisionRequested)
	if err != nil {
		return fmt.Errorf("milestone repository: submit %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrMilestoneState
	}
	return nil
}

// RequestRevision возвращает сданную веху на доработку с комментарием клиента.
func (r *MilestoneRepository) RequestRevision(ctx context.Context, id uuid.UUID, notes string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE milestones SET status = $2, revision_notes = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, models.MilestoneStatusRevisionRequested, notes, models.MilestoneStatusSubmitted)
	if err != nil {
		return fmt.Errorf("milestone repository: request revision %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrMilestoneState
	}
	return nil
}

// SetVerification сохраняет результат автоматической проверки результата вехи.
func (r *MilestoneRepository) SetVerification(ctx context.Context, id uuid.UUID, status, result string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE milestones SET verification_status = $2, verification_result = $3, updated_at = NOW()
		WHERE id = $1
	`, id, status, result)
	if err != nil {
		return fmt.Errorf("milestone repository: set verification %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrMilestoneNotFound
	}
	return nil
}
