package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Job заказ на установку, созданный заказчиком.
type Job struct {
	ID                       uuid.UUID      `db:"id" json:"id"`
	Title                    string         `db:"title" json:"title"`
	Description              string         `db:"description" json:"description"`
	Category                 string         `db:"category" json:"category"`
	Skills                   pq.StringArray `db:"skills" json:"skills"`
	Location                 string         `db:"location" json:"location"`
	Status                   JobStatus      `db:"status" json:"status"`
	JobGiverID               uuid.UUID      `db:"job_giver_id" json:"jobGiverId"`
	AwardedInstallerID       *uuid.UUID     `db:"awarded_installer_id" json:"awardedInstallerId,omitempty"`
	PriceMin                 float64        `db:"price_min" json:"priceMin"`
	PriceMax                 float64        `db:"price_max" json:"priceMax"`
	TravelTip                float64        `db:"travel_tip" json:"travelTip"`
	IsUrgent                 bool           `db:"is_urgent" json:"isUrgent"`
	PostedAt                 *time.Time     `db:"posted_at" json:"postedAt,omitempty"`
	Deadline                 time.Time      `db:"deadline" json:"deadline"`
	FundingDeadline          *time.Time     `db:"funding_deadline" json:"fundingDeadline,omitempty"`
	CompletionTimestamp      *time.Time     `db:"completion_timestamp" json:"completionTimestamp,omitempty"`
	StartOTP                 *string        `db:"start_otp" json:"-"`
	WorkStartedAt            *time.Time     `db:"work_started_at" json:"workStartedAt,omitempty"`
	PaymentReleasedAt        *time.Time     `db:"payment_released_at" json:"paymentReleasedAt,omitempty"`
	BidderIDs                pq.StringArray `db:"bidder_ids" json:"bidderIds"`
	DisqualifiedInstallerIDs pq.StringArray `db:"disqualified_installer_ids" json:"disqualifiedInstallerIds"`
	DisputeID                *uuid.UUID     `db:"dispute_id" json:"disputeId,omitempty"`
	CancellationReason       *string        `db:"cancellation_reason" json:"cancellationReason,omitempty"`
	CreatedAt                time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt                time.Time      `db:"updated_at" json:"updatedAt"`

	// Bids денормализованные сводки ставок, источник истины таблица bids.
	Bids []BidSummary `db:"-" json:"bids"`
}

// HasBidder проверяет, делал ли установщик ставку на заказ.
func (j *Job) HasBidder(installerID uuid.UUID) bool {
	return containsID(j.BidderIDs, installerID)
}

// IsDisqualified проверяет, отстранён ли установщик от заказа.
func (j *Job) IsDisqualified(installerID uuid.UUID) bool {
	return containsID(j.DisqualifiedInstallerIDs, installerID)
}

// RemoveDisqualified убирает установщика из списка отстранённых.
func (j *Job) RemoveDisqualified(installerID uuid.UUID) bool {
	out := j.DisqualifiedInstallerIDs[:0]
	removed := false
	for _, id := range j.DisqualifiedInstallerIDs {
		if id == installerID.String() {
			removed = true
			continue
		}
		out = append(out, id)
	}
	j.DisqualifiedInstallerIDs = out
	return removed
}

// IsParty сообщает, участвует ли пользователь в заказе как заказчик или исполнитель.
func (j *Job) IsParty(userID uuid.UUID) bool {
	if j.JobGiverID == userID {
		return true
	}
	return j.AwardedInstallerID != nil && *j.AwardedInstallerID == userID
}

func containsID(ids pq.StringArray, id uuid.UUID) bool {
	needle := id.String()
	for _, v := range ids {
		if v == needle {
			return true
		}
	}
	return false
}

// JobStatusChange запись истории переходов статуса.
type JobStatusChange struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	JobID     uuid.UUID  `db:"job_id" json:"jobId"`
	OldStatus JobStatus  `db:"old_status" json:"oldStatus"`
	NewStatus JobStatus  `db:"new_status" json:"newStatus"`
	ChangedBy *uuid.UUID `db:"changed_by" json:"changedBy,omitempty"`
	Reason    *string    `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

// JobFilter параметры выборки заказов.
type JobFilter struct {
	Statuses   []JobStatus
	Category   string
	JobGiverID *uuid.UUID
	Installer  *uuid.UUID
	Limit      int
	Offset     int
}

// StaleJobFilter выбирает заказы, застрявшие в статусе дольше порога.
type StaleJobFilter struct {
	Status JobStatus
	// Field колонка времени, с которой сравнивается порог.
	Field  string
	Before time.Time
}

// JobAttachment фото объекта, приложенное к заказу.
type JobAttachment struct {
	ID         uuid.UUID `db:"id" json:"id"`
	JobID      uuid.UUID `db:"job_id" json:"jobId"`
	UploadedBy uuid.UUID `db:"uploaded_by" json:"uploadedBy"`
	FilePath   string    `db:"file_path" json:"filePath"`
	FileName   string    `db:"file_name" json:"fileName"`
	MimeType   string    `db:"mime_type" json:"mimeType"`
	SizeBytes  int64     `db:"size_bytes" json:"sizeBytes"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
