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

var ErrDuplicateBid = apperror.New(apperror.ErrCodeConflict, "вы уже сделали ставку на этот заказ")

type BidRepository struct {
	db *sqlx.DB
}

func NewBidRepository(db *sqlx.DB) *BidRepository {
	return &BidRepository{db: db}
}

// Place блокирует заказ, проверяет его через check и атомарно добавляет ставку и участника.
func (r *BidRepository) Place(ctx context.Context, bid *models.Bid, check JobMutation) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		job, err := lockJob(ctx, tx, bid.JobID)
		if err != nil {
			return err
		}
		if err := check(job); err != nil {
			return err
		}

		err = tx.GetContext(ctx, bid, `
			INSERT INTO bids (job_id, installer_id, amount, cover_letter, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING *
		`, bid.JobID, bid.InstallerID, bid.Amount, bid.CoverLetter, models.BidStatusBidded)
		if err != nil {
			if common.IsUniqueViolation(err) {
				return ErrDuplicateBid
			}
			return fmt.Errorf("bid repository: insert %w", err)
		}

		if !job.HasBidder(bid.InstallerID) {
			job.BidderIDs = append(job.BidderIDs, bid.InstallerID.String())
		}
		return saveJob(ctx, tx, job.Status, job, &bid.InstallerID, "")
	})
}

// Withdraw отзывает ставку установщика, пока заказ открыт.
func (r *BidRepository) Withdraw(ctx context.Context, jobID, bidID uuid.UUID, check func(*models.Job, *models.Bid) error) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		job, err := lockJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		bid, err := common.LockByID[models.Bid](ctx, tx, "bids", bidID, apperror.ErrBidNotFound)
		if err != nil {
			return err
		}
		if bid.JobID != job.ID {
			return apperror.ErrBidNotFound
		}
		if err := check(job, bid); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `UPDATE bids SET status = $2, updated_at = NOW() WHERE id = $1`,
			bid.ID, models.BidStatusWithdrawn); err != nil {
			return fmt.Errorf("bid repository: withdraw %w", err)
		}

		remaining := job.BidderIDs[:0]
		for _, id := range job.BidderIDs {
			if id != bid.InstallerID.String() {
				remaining = append(remaining, id)
			}
		}
		job.BidderIDs = remaining
		return saveJob(ctx, tx, job.Status, job, &bid.InstallerID, "")
	})
}

func (r *BidRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	return common.GetByID[models.Bid](ctx, r.db, "bids", id, apperror.ErrBidNotFound)
}

// ListByJob возвращает все ставки заказа, кроме отозванных.
func (r *BidRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.db.SelectContext(ctx, &bids, `
		SELECT * FROM bids WHERE job_id = $1 AND status <> $2 ORDER BY created_at
	`, jobID, models.BidStatusWithdrawn)
	if err != nil {
		return nil, fmt.Errorf("bid repository: list by job %w", err)
	}
	return bids, nil
}

func (r *BidRepository) ListByInstaller(ctx context.Context, installerID uuid.UUID, limit, offset int) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.db.SelectContext(ctx, &bids, `
		SELECT * FROM bids WHERE installer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, installerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("bid repository: list by installer %w", err)
	}
	return bids, nil
}
