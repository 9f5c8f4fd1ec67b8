package models

import (
	"time"

	"github.com/google/uuid"
)

// Bid ценовое предложение установщика по заказу.
type Bid struct {
	ID          uuid.UUID `db:"id" json:"id"`
	JobID       uuid.UUID `db:"job_id" json:"jobId"`
	InstallerID uuid.UUID `db:"installer_id" json:"installerId"`
	Amount      float64   `db:"amount" json:"amount"`
	CoverLetter *string   `db:"cover_letter" json:"coverLetter,omitempty"`
	Status      BidStatus `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// BidSummary облегчённая копия ставки для списков.
type BidSummary struct {
	ID          uuid.UUID `db:"id" json:"id"`
	InstallerID uuid.UUID `db:"installer_id" json:"installerId"`
	Amount      float64   `db:"amount" json:"amount"`
	Status      BidStatus `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

func (b *Bid) Summary() BidSummary {
	return BidSummary{
		ID:          b.ID,
		InstallerID: b.InstallerID,
		Amount:      b.Amount,
		Status:      b.Status,
		CreatedAt:   b.CreatedAt,
	}
}
