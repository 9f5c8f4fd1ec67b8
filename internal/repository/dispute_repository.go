package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
	"github.com/team4job/marketplace-backend/internal/repository/common"
)

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Create сохраняет спор с первым сообщением и применяет изменение заказа в одной транзакции.
// Если по заказу уже есть незакрытый спор, возвращает apperror.ErrDisputeActive.
func (r *DisputeRepository) Create(ctx context.Context, dispute *models.Dispute, first *models.DisputeMessage, fn JobMutation) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		job, err := lockJob(ctx, tx, dispute.JobID)
		if err != nil {
			return err
		}

		var active bool
		if err := tx.GetContext(ctx, &active, `
			SELECT EXISTS (SELECT 1 FROM disputes WHERE job_id = $1 AND status <> $2)
		`, dispute.JobID, models.DisputeStatusResolved); err != nil {
			return fmt.Errorf("dispute repository: active check %w", err)
		}
		if active {
			return apperror.ErrDisputeActive
		}

		err = tx.GetContext(ctx, dispute, `
			INSERT INTO disputes (job_id, job_title, raised_by, category, reason, status, party_ids)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING *
		`, dispute.JobID, dispute.JobTitle, dispute.RaisedBy, dispute.Category, dispute.Reason, dispute.Status, dispute.PartyIDs)
		if err != nil {
			if common.IsUniqueViolation(err) {
				return apperror.ErrDisputeActive
			}
			return fmt.Errorf("dispute repository: insert %w", err)
		}

		if first != nil {
			first.DisputeID = dispute.ID
			if err := insertDisputeMessage(ctx, tx, first); err != nil {
				return err
			}
			dispute.Messages = []models.DisputeMessage{*first}
		}

		before := job.Status
		job.DisputeID = &dispute.ID
		if err := fn(job); err != nil {
			return err
		}
		return saveJob(ctx, tx, before, job, &dispute.RaisedBy, "dispute raised")
	})
}

// GetByID возвращает спор вместе с перепиской.
func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	dispute, err := common.GetByID[models.Dispute](ctx, r.db, "disputes", id, apperror.ErrDisputeNotFound)
	if err != nil {
		return nil, err
	}
	if err := r.db.SelectContext(ctx, &dispute.Messages, `
		SELECT * FROM dispute_messages WHERE dispute_id = $1 ORDER BY created_at
	`, id); err != nil {
		return nil, fmt.Errorf("dispute repository: messages %w", err)
	}
	return dispute, nil
}

// ListForUser возвращает споры, открытые пользователем или где он является стороной.
func (r *DisputeRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Dispute, error) {
	var items []models.Dispute
	err := r.db.SelectContext(ctx, &items, `
		SELECT * FROM disputes
		WHERE raised_by = $1 OR $2 = ANY(party_ids)
		ORDER BY created_at DESC
	`, userID, userID.String())
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list for user %w", err)
	}
	return items, nil
}

// ListByStatus используется поддержкой для очереди споров.
func (r *DisputeRepository) ListByStatus(ctx context.Context, status models.DisputeStatus, limit, offset int) ([]models.Dispute, error) {
	var items []models.Dispute
	err := r.db.SelectContext(ctx, &items, `
		SELECT * FROM disputes WHERE status = $1 ORDER BY created_at LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list by status %w", err)
	}
	return items, nil
}

// ListStale возвращает споры в статусе, созданные раньше порога.
func (r *DisputeRepository) ListStale(ctx context.Context, status models.DisputeStatus, before time.Time) ([]models.Dispute, error) {
	var items []models.Dispute
	err := r.db.SelectContext(ctx, &items, `
		SELECT * FROM disputes WHERE status = $1 AND created_at < $2 ORDER BY created_at
	`, status, before)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list stale %w", err)
	}
	return items, nil
}

// Update блокирует спор, применяет изменение и, если передано, добавляет сообщение.
func (r *DisputeRepository) Update(ctx context.Context, id uuid.UUID, msg *models.DisputeMessage, fn func(*models.Dispute) error) (*models.Dispute, error) {
	var updated *models.Dispute
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		dispute, err := common.LockByID[models.Dispute](ctx, tx, "disputes", id, apperror.ErrDisputeNotFound)
		if err != nil {
			return err
		}
		if err := fn(dispute); err != nil {
			return err
		}

		if msg != nil {
			msg.DisputeID = dispute.ID
			if err := insertDisputeMessage(ctx, tx, msg); err != nil {
				return err
			}
		}

		_, err = tx.NamedExecContext(ctx, `
			UPDATE disputes SET
				status = :status,
				resolution = :resolution,
				resolved_by = :resolved_by,
				resolved_at = :resolved_at,
				updated_at = NOW()
			WHERE id = :id
		`, dispute)
		if err != nil {
			return fmt.Errorf("dispute repository: update %w", err)
		}
		updated = dispute
		return nil
	})
	return updated, err
}

func insertDisputeMessage(ctx context.Context, tx *sqlx.Tx, msg *models.DisputeMessage) error {
	err := tx.GetContext(ctx, msg, `
		INSERT INTO dispute_messages (dispute_id, author_id, author_role, content)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, msg.DisputeID, msg.AuthorID, msg.AuthorRole, msg.Content)
	if err != nil {
		return fmt.Errorf("dispute repository: insert message %w", err)
	}
	return nil
}
