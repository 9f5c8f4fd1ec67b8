package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Dispute спор по заказу.
type Dispute struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	JobID      uuid.UUID      `db:"job_id" json:"jobId"`
	JobTitle   string         `db:"job_title" json:"jobTitle"`
	RaisedBy   uuid.UUID      `db:"raised_by" json:"raisedBy"`
	Category   string         `db:"category" json:"category"`
	Reason     string         `db:"reason" json:"reason"`
	Status     DisputeStatus  `db:"status" json:"status"`
	PartyIDs   pq.StringArray `db:"party_ids" json:"parties"`
	Resolution *string        `db:"resolution" json:"resolution,omitempty"`
	ResolvedBy *uuid.UUID     `db:"resolved_by" json:"resolvedBy,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updatedAt"`
	ResolvedAt *time.Time     `db:"resolved_at" json:"resolvedAt,omitempty"`

	Messages []DisputeMessage `db:"-" json:"messages,omitempty"`
}

// IsParty сообщает, является ли пользователь стороной спора.
func (d *Dispute) IsParty(userID uuid.UUID) bool {
	return d.RaisedBy == userID || containsID(d.PartyIDs, userID)
}

// DisputeMessage сообщение в переписке по спору.
type DisputeMessage struct {
	ID         uuid.UUID `db:"id" json:"id"`
	DisputeID  uuid.UUID `db:"dispute_id" json:"disputeId"`
	AuthorID   uuid.UUID `db:"author_id" json:"authorId"`
	AuthorRole string    `db:"author_role" json:"authorRole"`
	Content    string    `db:"content" json:"content"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
