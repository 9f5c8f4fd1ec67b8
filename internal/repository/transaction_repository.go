package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
	"github.com/team4job/marketplace-backend/internal/repository/common"
)

// TransactionRepository хранит эскроу-транзакции. Все изменения, затрагивающие
// и транзакцию, и заказ, выполняются в одной транзакции БД.
type TransactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// EscrowMutation изменяет заказ и транзакцию в рамках одной транзакции БД.
type EscrowMutation func(job *models.Job, txn *models.Transaction) error

// SettleMutation изменяет заказ и все его открытые транзакции разом.
type SettleMutation func(job *models.Job, txns []*models.Transaction) error

const insertTransactionSQL = `
	INSERT INTO transactions (job_id, job_title, payer_id, payee_id, type, amount, travel_tip,
		commission, job_giver_fee, platform_fee, total_paid_by_giver, payout_to_installer,
		status, gateway_order_id, description, funded_at)
	VALUES (:job_id, :job_title, :payer_id, :payee_id, :type, :amount, :travel_tip,
		:commission, :job_giver_fee, :platform_fee, :total_paid_by_giver, :payout_to_installer,
		:status, :gateway_order_id, :description, :funded_at)
	RETURNING id, created_at
`

// Create сохраняет транзакцию в статусе initiated.
func (r *TransactionRepository) Create(ctx context.Context, txn *models.Transaction) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		return insertTransaction(ctx, tx, txn)
	})
}

// FundJob создаёт оплаченную транзакцию и применяет изменение заказа атомарно.
func (r *TransactionRepository) FundJob(ctx context.Context, txn *models.Transaction, changedBy *uuid.UUID, fn JobMutation) (*models.Job, error) {
	var updated *models.Job
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		job, err := lockJob(ctx, tx, txn.JobID)
		if err != nil {
			return err
		}
		before := job.Status
		if err := fn(job); err != nil {
			return err
		}
		if err := insertTransaction(ctx, tx, txn); err != nil {
			return err
		}
		if err := saveJob(ctx, tx, before, job, changedBy, "escrow funded"); err != nil {
			return err
		}
		updated = job
		return nil
	})
	return updated, err
}

// MarkFunded подтверждает оплату заказа по идентификатору заказа в шлюзе.
func (r *TransactionRepository) MarkFunded(ctx context.Context, orderID string, changedBy *uuid.UUID, fn EscrowMutation) (*models.Job, *models.Transaction, error) {
	var (
		job *models.Job
		txn *models.Transaction
	)
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var found models.Transaction
		err := tx.GetContext(ctx, &found, `SELECT * FROM transactions WHERE gateway_order_id = $1 FOR UPDATE`, orderID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.ErrTransactionNotFound
			}
			return fmt.Errorf("transaction repository: lock by order %w", err)
		}

		j, err := lockJob(ctx, tx, found.JobID)
		if err != nil {
			return err
		}
		if err := r.applyEscrow(ctx, tx, j, &found, changedBy, "escrow funded", fn); err != nil {
			return err
		}
		job, txn = j, &found
		return nil
	})
	return job, txn, err
}

// Settle блокирует заказ и все его транзакции (основную и доплаты) в одном
// из статусов from и применяет изменение ко всем сразу. Используется для
// выплаты установщику и для возврата средств.
func (r *TransactionRepository) Settle(ctx context.Context, jobID uuid.UUID, from []models.TransactionStatus, changedBy *uuid.UUID, reason string, fn SettleMutation) (*models.Job, []models.Transaction, error) {
	var (
		job  *models.Job
		txns []models.Transaction
	)
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		j, err := lockJob(ctx, tx, jobID)
		if err != nil {
			return err
		}

		statuses := make([]string, len(from))
		for i, s := range from {
			statuses[i] = string(s)
		}
		query, args, err := sqlx.In(`
			SELECT * FROM transactions
			WHERE job_id = ? AND status IN (?)
			ORDER BY created_at, id FOR UPDATE
		`, jobID, statuses)
		if err != nil {
			return err
		}

		var found []models.Transaction
		if err := tx.SelectContext(ctx, &found, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("transaction repository: lock by job %w", err)
		}
		if len(found) == 0 {
			return apperror.ErrTransactionNotFound
		}

		before := j.Status
		ptrs := make([]*models.Transaction, len(found))
		for i := range found {
			ptrs[i] = &found[i]
		}
		if err := fn(j, ptrs); err != nil {
			return err
		}
		for i := range found {
			if err := updateTransaction(ctx, tx, &found[i]); err != nil {
				return err
			}
		}
		if err := saveJob(ctx, tx, before, j, changedBy, reason); err != nil {
			return err
		}
		job, txns = j, found
		return nil
	})
	return job, txns, err
}

func (r *TransactionRepository) applyEscrow(ctx context.Context, tx *sqlx.Tx, job *models.Job, txn *models.Transaction, changedBy *uuid.UUID, reason string, fn EscrowMutation) error {
	before := job.Status
	if err := fn(job, txn); err != nil {
		return err
	}
	if err := updateTransaction(ctx, tx, txn); err != nil {
		return err
	}
	return saveJob(ctx, tx, before, job, changedBy, reason)
}

func (r *TransactionRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.GetContext(ctx, &txn, `SELECT * FROM transactions WHERE gateway_order_id = $1`, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("transaction repository: get by order %w", err)
	}
	return &txn, nil
}

func (r *TransactionRepository) ListByPayer(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	var items []models.Transaction
	if err := r.db.SelectContext(ctx, &items, `SELECT * FROM transactions WHERE payer_id = $1 ORDER BY created_at DESC`, userID); err != nil {
		return nil, fmt.Errorf("transaction repository: list by payer %w", err)
	}
	return items, nil
}

func (r *TransactionRepository) ListByPayee(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	var items []models.Transaction
	if err := r.db.SelectContext(ctx, &items, `SELECT * FROM transactions WHERE payee_id = $1 ORDER BY created_at DESC`, userID); err != nil {
		return nil, fmt.Errorf("transaction repository: list by payee %w", err)
	}
	return items, nil
}

func insertTransaction(ctx context.Context, tx *sqlx.Tx, txn *models.Transaction) error {
	query, args, err := tx.BindNamed(insertTransactionSQL, txn)
	if err != nil {
		return fmt.Errorf("transaction repository: bind %w", err)
	}
	if err := tx.QueryRowxContext(ctx, query, args...).Scan(&txn.ID, &txn.CreatedAt); err != nil {
		if common.IsCheckViolation(err) {
			return apperror.Validation("суммы транзакции не сходятся")
		}
		return fmt.Errorf("transaction repository: insert %w", err)
	}
	return nil
}

func updateTransaction(ctx context.Context, tx *sqlx.Tx, txn *models.Transaction) error {
	_, err := tx.NamedExecContext(ctx, `
		UPDATE transactions SET
			payee_id = :payee_id,
			status = :status,
			payout_transfer_id = :payout_transfer_id,
			refund_transfer_id = :refund_transfer_id,
			funded_at = :funded_at,
			released_at = :released_at,
			refunded_at = :refunded_at
		WHERE id = :id
	`, txn)
	if err != nil {
		return fmt.Errorf("transaction repository: update %w", err)
	}
	return nil
}
