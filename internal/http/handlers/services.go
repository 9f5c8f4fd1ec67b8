package handlers

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/team4job/marketplace-backend/internal/ai"
	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/service"
	"github.com/team4job/marketplace-backend/internal/storage"
)

// Интерфейсы сервисов, которые нужны обработчикам. Реализации живут в internal/service.

type JobUseCases interface {
	CreateJob(ctx context.Context, actor models.Actor, in service.CreateJobInput) (*models.Job, error)
	PublishJob(ctx context.Context, actor models.Actor, jobID uuid.UUID) (*models.Job, error)
	GetJob(ctx context.Context, viewer *models.Actor, jobID uuid.UUID) (*models.Job, error)
	ListOpenJobs(ctx context.Context, category string, limit, offset int) ([]models.Job, error)
	ListMyJobs(ctx context.Context, actor models.Actor, status string, limit, offset int) ([]models.Job, error)
	AwardBid(ctx context.Context, actor models.Actor, jobID, bidID uuid.UUID) (*models.Job, error)
	StartWork(ctx context.Context, actor models.Actor, jobID uuid.UUID, otp string) (*models.Job, error)
	SubmitWork(ctx context.Context, actor models.Actor, jobID uuid.UUID) (*models.Job, error)
	ConfirmCompletion(ctx context.Context, actor models.Actor, jobID uuid.UUID) (*models.Job, error)
	DeclineOffer(ctx context.Context, actor models.Actor, jobID uuid.UUID) (*models.Job, error)
	CancelJob(ctx context.Context, actor models.Actor, jobID uuid.UUID, reason string) (*models.Job, error)
	ToggleBookmark(ctx context.Context, actor models.Actor, jobID uuid.UUID) (bool, error)
	AddAttachment(ctx context.Context, actor models.Actor, att *models.JobAttachment) error
	ListAttachments(ctx context.Context, actor models.Actor, jobID uuid.UUID) ([]models.JobAttachment, error)
	History(ctx context.Context, actor models.Actor, jobID uuid.UUID) ([]models.JobStatusChange, error)
}

type BidUseCases interface {
	PlaceBid(ctx context.Context, actor models.Actor, jobID uuid.UUID, amount float64, coverLetter *string) (*models.Bid, error)
	WithdrawBid(ctx context.Context, actor models.Actor, jobID, bidID uuid.UUID) error
	ListBids(ctx context.Context, actor models.Actor, jobID uuid.UUID) ([]models.Bid, error)
	ListMyBids(ctx context.Context, actor models.Actor, limit, offset int) ([]models.Bid, error)
}

type PaymentUseCases interface {
	CreatePaymentOrder(ctx context.Context, actor models.Actor, in service.CreateOrderInput) (*service.PaymentOrder, error)
	VerifyPayment(ctx context.Context, actor models.Actor, orderID string) (*models.Job, *models.Transaction, error)
	FundJob(ctx context.Context, in service.FundJobInput) (*models.Job, *models.Transaction, error)
	ReleaseFunds(ctx context.Context, actor models.Actor, jobID uuid.UUID) (*models.Job, []models.Transaction, error)
	RefundJob(ctx context.Context, actor models.Actor, jobID uuid.UUID, reason string) (*models.Job, []models.Transaction, error)
	TransactionHistory(ctx context.Context, actor models.Actor) ([]models.Transaction, error)
}

type DisputeUseCases interface {
	CreateDispute(ctx context.Context, actor models.Actor, in service.CreateDisputeInput) (*models.Dispute, error)
	GetDispute(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Dispute, error)
	ListMyDisputes(ctx context.Context, actor models.Actor) ([]models.Dispute, error)
	ListQueue(ctx context.Context, actor models.Actor, status models.DisputeStatus, limit, offset int) ([]models.Dispute, error)
	AddMessage(ctx context.Context, actor models.Actor, id uuid.UUID, content string) (*models.Dispute, error)
	ResolveDispute(ctx context.Context, actor models.Actor, id uuid.UUID, resolution string) (*models.Dispute, error)
}

type ReputationUseCases interface {
	DeductPoints(ctx context.Context, actor models.Actor, in service.DeductPointsInput) (int, error)
	Reapply(ctx context.Context, actor models.Actor, jobID uuid.UUID) (int, error)
}

type JobDescriptionGenerator interface {
	GenerateJobDescription(ctx context.Context, actor models.Actor, jobTitle string) (*ai.JobDescription, error)
}

type MonitorRunner interface {
	Run(ctx context.Context, now time.Time) ([]service.MonitorAlert, error)
}

type FeatureFlagManager interface {
	List(ctx context.Context) ([]models.FeatureFlag, error)
	Set(ctx context.Context, name string, enabled bool, description string) (*models.FeatureFlag, error)
}

type SystemLogReader interface {
	ListSystemLogs(ctx context.Context, level string, limit int) ([]models.SystemLog, error)
}

type BusinessEventLogger interface {
	LogBusinessEvent(ctx context.Context, eventType models.BusinessEventType, actorID *uuid.UUID, entityID string, metadata map[string]interface{})
}

type AttachmentStore interface {
	Save(ctx context.Context, jobID uuid.UUID, originalName string, r io.Reader) (*storage.StoredFile, error)
	Open(relativePath string) (*os.File, error)
	Delete(ctx context.Context, relativePath string) error
}
