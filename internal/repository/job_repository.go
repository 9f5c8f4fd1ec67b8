package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
	"github.com/team4job/marketplace-backend/internal/repository/common"
)

// JobRepository управляет заказами и историей их статусов.
type JobRepository struct {
	db *sqlx.DB
}

func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// JobMutation изменяет заказ внутри транзакции. Ошибка откатывает все записи.
type JobMutation func(job *models.Job) error

// Create сохраняет новый заказ и заполняет служебные поля.
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (title, description, category, skills, location, status, job_giver_id,
			price_min, price_max, travel_tip, is_urgent, posted_at, deadline)
		VALUES (:title, :description, :category, :skills, :location, :status, :job_giver_id,
			:price_min, :price_max, :travel_tip, :is_urgent, :posted_at, :deadline)
		RETURNING id, created_at, updated_at, bidder_ids, disqualified_installer_ids
	`
	rows, err := r.db.NamedQueryContext(ctx, query, job)
	if err != nil {
		return fmt.Errorf("job repository: create %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt, &job.BidderIDs, &job.DisqualifiedInstallerIDs); err != nil {
			return fmt.Errorf("job repository: scan created %w", err)
		}
	}
	return rows.Err()
}

// GetByID возвращает заказ без сводок ставок.
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return common.GetByID[models.Job](ctx, r.db, "jobs", id, apperror.ErrJobNotFound)
}

// List возвращает заказы по фильтру, новые сверху.
func (r *JobRepository) List(ctx context.Context, filter models.JobFilter) ([]models.Job, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.JobGiverID != nil {
		args = append(args, *filter.JobGiverID)
		where = append(where, fmt.Sprintf("job_giver_id = $%d", len(args)))
	}
	if filter.Installer != nil {
		args = append(args, *filter.Installer)
		where = append(where, fmt.Sprintf("awarded_installer_id = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)

	query := fmt.Sprintf(`SELECT * FROM jobs WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		strings.Join(where, " AND "), len(args)-1, len(args))

	var jobs []models.Job
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("job repository: list %w", err)
	}
	return jobs, nil
}

var staleJobFields = map[string]bool{
	"completion_timestamp": true,
	"funding_deadline":     true,
	"updated_at":           true,
}

// ListStale возвращает заказы в статусе, у которых отметка времени раньше порога.
func (r *JobRepository) ListStale(ctx context.Context, filter models.StaleJobFilter) ([]models.Job, error) {
	if !staleJobFields[filter.Field] {
		return nil, fmt.Errorf("job repository: недопустимое поле %q", filter.Field)
	}

	query := fmt.Sprintf(`SELECT * FROM jobs WHERE status = $1 AND %s IS NOT NULL AND %s < $2 ORDER BY %s`,
		filter.Field, filter.Field, filter.Field)

	var jobs []models.Job
	if err := r.db.SelectContext(ctx, &jobs, query, filter.Status, filter.Before); err != nil {
		return nil, fmt.Errorf("job repository: list stale %w", err)
	}
	return jobs, nil
}

// Update блокирует заказ, применяет изменение и сохраняет его вместе с историей статуса.
func (r *JobRepository) Update(ctx context.Context, id uuid.UUID, changedBy *uuid.UUID, reason string, fn JobMutation) (*models.Job, error) {
	var updated *models.Job
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		job, err := lockJob(ctx, tx, id)
		if err != nil {
			return err
		}
		before := job.Status
		if err := fn(job); err != nil {
			return err
		}
		if err := saveJob(ctx, tx, before, job, changedBy, reason); err != nil {
			return err
		}
		updated = job
		return nil
	})
	return updated, err
}

// AwardBid принимает ставку: заказ переходит в bid_accepted, остальные ставки отклоняются.
func (r *JobRepository) AwardBid(ctx context.Context, jobID, bidID, changedBy uuid.UUID, fn func(*models.Job, *models.Bid) error) (*models.Job, error) {
	var updated *models.Job
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
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

		before := job.Status
		if err := fn(job, bid); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `UPDATE bids SET status = $2, updated_at = NOW() WHERE id = $1`,
			bid.ID, models.BidStatusAwarded); err != nil {
			return fmt.Errorf("job repository: award bid %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE bids SET status = $3, updated_at = NOW()
			WHERE job_id = $1 AND id <> $2 AND status = $4
		`, job.ID, bid.ID, models.BidStatusRejected, models.BidStatusBidded); err != nil {
			return fmt.Errorf("job repository: reject other bids %w", err)
		}

		if err := saveJob(ctx, tx, before, job, &changedBy, "bid awarded"); err != nil {
			return err
		}
		updated = job
		return nil
	})
	return updated, err
}

// DeclineAward снимает выбор исполнителя. Ставки, закрытые при выборе, снова
// участвуют в отборе. Отказавшегося от выбора не пускает список отстранённых.
func (r *JobRepository) DeclineAward(ctx context.Context, jobID, installerID uuid.UUID, fn JobMutation) (*models.Job, error) {
	var updated *models.Job
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		job, err := lockJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		before := job.Status
		if err := fn(job); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE bids SET status = $2, updated_at = NOW()
			WHERE job_id = $1 AND status IN ($3, $4)
		`, job.ID, models.BidStatusBidded, models.BidStatusAwarded, models.BidStatusRejected); err != nil {
			return fmt.Errorf("job repository: reopen bids %w", err)
		}

		if err := saveJob(ctx, tx, before, job, &installerID, "offer declined"); err != nil {
			return err
		}
		updated = job
		return nil
	})
	return updated, err
}

// History возвращает историю переходов статуса заказа.
func (r *JobRepository) History(ctx context.Context, jobID uuid.UUID) ([]models.JobStatusChange, error) {
	var changes []models.JobStatusChange
	err := r.db.SelectContext(ctx, &changes, `
		SELECT * FROM job_status_history WHERE job_id = $1 ORDER BY created_at
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("job repository: history %w", err)
	}
	return changes, nil
}

// CreateAttachment сохраняет метаданные загруженного фото.
func (r *JobRepository) CreateAttachment(ctx context.Context, att *models.JobAttachment) error {
	err := r.db.GetContext(ctx, att, `
		INSERT INTO job_attachments (job_id, uploaded_by, file_path, file_name, mime_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, att.JobID, att.UploadedBy, att.FilePath, att.FileName, att.MimeType, att.SizeBytes)
	if err != nil {
		return fmt.Errorf("job repository: create attachment %w", err)
	}
	return nil
}

func (r *JobRepository) ListAttachments(ctx context.Context, jobID uuid.UUID) ([]models.JobAttachment, error) {
	var items []models.JobAttachment
	if err := r.db.SelectContext(ctx, &items, `SELECT * FROM job_attachments WHERE job_id = $1 ORDER BY created_at`, jobID); err != nil {
		return nil, fmt.Errorf("job repository: list attachments %w", err)
	}
	return items, nil
}

// lockJob читает заказ с блокировкой строки.
func lockJob(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.Job, error) {
	return common.LockByID[models.Job](ctx, tx, "jobs", id, apperror.ErrJobNotFound)
}

// saveJob записывает изменяемые поля заказа и, если статус сменился, строку истории.
func saveJob(ctx context.Context, tx *sqlx.Tx, before models.JobStatus, job *models.Job, changedBy *uuid.UUID, reason string) error {
	_, err := tx.NamedExecContext(ctx, `
		UPDATE jobs SET
			title = :title,
			description = :description,
			category = :category,
			skills = :skills,
			location = :location,
			status = :status,
			awarded_installer_id = :awarded_installer_id,
			price_min = :price_min,
			price_max = :price_max,
			travel_tip = :travel_tip,
			is_urgent = :is_urgent,
			posted_at = :posted_at,
			deadline = :deadline,
			funding_deadline = :funding_deadline,
			completion_timestamp = :completion_timestamp,
			start_otp = :start_otp,
			work_started_at = :work_started_at,
			payment_released_at = :payment_released_at,
			bidder_ids = :bidder_ids,
			disqualified_installer_ids = :disqualified_installer_ids,
			dispute_id = :dispute_id,
			cancellation_reason = :cancellation_reason,
			updated_at = NOW()
		WHERE id = :id
	`, job)
	if err != nil {
		return fmt.Errorf("job repository: update %w", err)
	}

	if before == job.Status {
		return nil
	}

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO job_status_history (job_id, old_status, new_status, changed_by, reason)
		VALUES ($1, $2, $3, $4, $5)
	`, job.ID, before, job.Status, changedBy, reasonPtr)
	if err != nil {
		return fmt.Errorf("job repository: history %w", err)
	}
	return nil
}
