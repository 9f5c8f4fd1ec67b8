package dto

import (
	"github.com/google/uuid"

	"github.com/team4job/marketplace-backend/internal/models"
)

// Envelope единый формат ответа API.
type Envelope struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// JobResponse заказ с подписью статуса для клиента.
// Код начала работ отдаётся только заказчику.
type JobResponse struct {
	*models.Job
	StatusLabel string  `json:"statusLabel"`
	StartOTP    *string `json:"startOtp,omitempty"`
}

func NewJobResponse(job *models.Job, viewer *models.Actor) *JobResponse {
	resp := &JobResponse{Job: job, StatusLabel: job.Status.DisplayName()}
	if viewer != nil && viewer.ID == job.JobGiverID {
		resp.StartOTP = job.StartOTP
	}
	return resp
}

func NewJobListResponse(jobs []models.Job, viewer *models.Actor) []*JobResponse {
	out := make([]*JobResponse, 0, len(jobs))
	for i := range jobs {
		out = append(out, NewJobResponse(&jobs[i], viewer))
	}
	return out
}

// DisputeResponse спор с подписью статуса.
type DisputeResponse struct {
	*models.Dispute
	StatusLabel string `json:"statusLabel"`
}

func NewDisputeResponse(d *models.Dispute) *DisputeResponse {
	return &DisputeResponse{Dispute: d, StatusLabel: d.Status.DisplayName()}
}

func NewDisputeListResponse(disputes []models.Dispute) []*DisputeResponse {
	out := make([]*DisputeResponse, 0, len(disputes))
	for i := range disputes {
		out = append(out, NewDisputeResponse(&disputes[i]))
	}
	return out
}

// EscrowResponse состояние заказа и транзакции после операции с эскроу.
// При выплате и возврате Transactions содержит все закрытые транзакции заказа,
// Transaction указывает на основную.
type EscrowResponse struct {
	Job          *JobResponse         `json:"job"`
	Transaction  *models.Transaction  `json:"transaction"`
	Transactions []models.Transaction `json:"transactions,omitempty"`
}

type BookmarkResponse struct {
	JobID      uuid.UUID `json:"jobId"`
	Bookmarked bool      `json:"bookmarked"`
}

type ReputationResponse struct {
	UserID uuid.UUID `json:"userId"`
	Points int       `json:"reputationPoints"`
}
