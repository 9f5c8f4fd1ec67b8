package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
	"github.com/team4job/marketplace-backend/internal/repository/common"
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return common.GetByID[models.User](ctx, r.db, "users", id, apperror.ErrUserNotFound)
}

// AdjustReputation атомарно меняет очки репутации и, если указан заказ,
// убирает пользователя из списка отстранённых по нему.
// next получает текущее значение и возвращает новое.
func (r *UserRepository) AdjustReputation(ctx context.Context, userID uuid.UUID, jobID *uuid.UUID, reason string, next func(current int) int) (int, error) {
	var result int
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		current, err := lockReputation(ctx, tx, userID)
		if err != nil {
			return err
		}
		result = next(current)
		if err := writeReputation(ctx, tx, userID, jobID, reason, current, result); err != nil {
			return err
		}

		if jobID == nil {
			return nil
		}
		job, err := lockJob(ctx, tx, *jobID)
		if err != nil {
			return err
		}
		if !job.RemoveDisqualified(userID) {
			return nil
		}
		return saveJob(ctx, tx, job.Status, job, nil, "")
	})
	return result, err
}

// Reinstate снимает отстранение пользователя с заказа и списывает штраф.
// Если пользователь не отстранён, ничего не меняет и возвращает apperror.ErrNotDisqualified.
func (r *UserRepository) Reinstate(ctx context.Context, userID, jobID uuid.UUID, reason string, next func(current int) int) (int, error) {
	var result int
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		current, err := lockReputation(ctx, tx, userID)
		if err != nil {
			return err
		}
		job, err := lockJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if !job.RemoveDisqualified(userID) {
			return apperror.ErrNotDisqualified
		}

		result = next(current)
		if err := writeReputation(ctx, tx, userID, &jobID, reason, current, result); err != nil {
			return err
		}
		return saveJob(ctx, tx, job.Status, job, &userID, "")
	})
	return result, err
}

func lockReputation(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (int, error) {
	var current int
	if err := tx.GetContext(ctx, &current, `SELECT reputation_points FROM users WHERE id = $1 FOR UPDATE`, userID); err != nil {
		return 0, common.NotFoundOr(err, apperror.ErrUserNotFound, "user repository: lock")
	}
	return current, nil
}

func writeReputation(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, jobID *uuid.UUID, reason string, current, result int) error {
	if _, err := tx.ExecContext(ctx, `UPDATE users SET reputation_points = $2, updated_at = NOW() WHERE id = $1`, userID, result); err != nil {
		return fmt.Errorf("user repository: update reputation %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO reputation_history (user_id, job_id, delta, reason, points_after)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, jobID, result-current, reason, result); err != nil {
		return fmt.Errorf("user repository: reputation history %w", err)
	}
	return nil
}

// ToggleBookmark добавляет заказ в закладки или убирает его. Возвращает новое состояние.
func (r *UserRepository) ToggleBookmark(ctx context.Context, userID, jobID uuid.UUID) (bool, error) {
	var bookmarked bool
	err := r.db.GetContext(ctx, &bookmarked, `
		UPDATE users SET
			bookmarks = CASE
				WHEN $2::text = ANY(bookmarks) THEN array_remove(bookmarks, $2::text)
				ELSE array_append(bookmarks, $2::text)
			END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING $2::text = ANY(bookmarks)
	`, userID, jobID.String())
	if err != nil {
		return false, common.NotFoundOr(err, apperror.ErrUserNotFound, "user repository: toggle bookmark")
	}
	return bookmarked, nil
}
