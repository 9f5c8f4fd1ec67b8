package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/team4job/marketplace-backend/internal/logger"
	"github.com/team4job/marketplace-backend/internal/metrics"
	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
	"github.com/team4job/marketplace-backend/internal/repository"
	"github.com/team4job/marketplace-backend/internal/validation"
)

type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	List(ctx context.Context, filter models.JobFilter) ([]models.Job, error)
	Update(ctx context.Context, id uuid.UUID, changedBy *uuid.UUID, reason string, fn repository.JobMutation) (*models.Job, error)
	AwardBid(ctx context.Context, jobID, bidID, changedBy uuid.UUID, fn func(*models.Job, *models.Bid) error) (*models.Job, error)
	DeclineAward(ctx context.Context, jobID, installerID uuid.UUID, fn repository.JobMutation) (*models.Job, error)
	History(ctx context.Context, jobID uuid.UUID) ([]models.JobStatusChange, error)
	CreateAttachment(ctx context.Context, att *models.JobAttachment) error
	ListAttachments(ctx context.Context, jobID uuid.UUID) ([]models.JobAttachment, error)
}

type BidReader interface {
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Bid, error)
}

type BookmarkRepository interface {
	ToggleBookmark(ctx context.Context, userID, jobID uuid.UUID) (bool, error)
}

// EscrowSettler закрывает эскроу заказа: выплата установщику или возврат заказчику.
type EscrowSettler interface {
	ReleaseFunds(ctx context.Context, actor models.Actor, jobID uuid.UUID) (*models.Job, []models.Transaction, error)
	RefundJob(ctx context.Context, actor models.Actor, jobID uuid.UUID, reason string) (*models.Job, []models.Transaction, error)
}

// PointsAwarder начисляет очки репутации.
type PointsAwarder interface {
	AddPoints(ctx context.Context, userID uuid.UUID, points int, reason string) (int, error)
}

// CompletionPoints очки установщику за принятую заказчиком работу.
const CompletionPoints = 50

type JobService struct {
	jobs          JobRepository
	bids          BidReader
	bookmarks     BookmarkRepository
	escrow        EscrowSettler
	reputation    PointsAwarder
	events        BusinessEventLogger
	metrics       *metrics.Collector
	fundingWindow time.Duration
	now           func() time.Time
}

func NewJobService(
	jobs JobRepository,
	bids BidReader,
	bookmarks BookmarkRepository,
	escrow EscrowSettler,
	reputation PointsAwarder,
	events BusinessEventLogger,
	collector *metrics.Collector,
	fundingWindow time.Duration,
) *JobService {
	return &JobService{
		jobs:          jobs,
		bids:          bids,
		bookmarks:     bookmarks,
		escrow:        escrow,
		reputation:    reputation,
		events:        events,
		metrics:       collector,
		fundingWindow: fundingWindow,
		now:           time.Now,
	}
}

type CreateJobInput struct {
	Title       string
	Description string
	Category    string
	Skills      []string
	Location    string
	PriceMin    float64
	PriceMax    float64
	TravelTip   float64
	IsUrgent    bool
	Deadline    time.Time
	Publish     bool
}

// CreateJob создаёт заказ в статусе draft или сразу открывает его для ставок.
func (s *JobService) CreateJob(ctx context.Context, actor models.Actor, in CreateJobInput) (*models.Job, error) {
	if !actor.Roles.Has(models.RoleJobGiver) && !actor.Roles.Has(models.RoleAdmin) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "создавать заказы может только заказчик")
	}
	if err := validateJobInput(in, s.now()); err != nil {
		return nil, err
	}

	job := &models.Job{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Skills:      in.Skills,
		Location:    strings.TrimSpace(in.Location),
		Status:      models.JobStatusDraft,
		JobGiverID:  actor.ID,
		PriceMin:    in.PriceMin,
		PriceMax:    in.PriceMax,
		TravelTip:   in.TravelTip,
		IsUrgent:    in.IsUrgent,
		Deadline:    in.Deadline,
	}
	if in.Publish {
		now := s.now()
		job.Status = models.JobStatusOpen
		job.PostedAt = &now
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, apperror.Internal(err)
	}

	if job.Status == models.JobStatusOpen {
		s.events.LogBusinessEvent(ctx, models.EventJobPosted, actorIDPtr(actor), job.ID.String(), map[string]interface{}{
			"title":    job.Title,
			"category": job.Category,
		})
	}
	s.metrics.RecordJobTransition(string(job.Status))
	return job, nil
}

func validateJobInput(in CreateJobInput, now time.Time) error {
	if err := validation.ValidateJobTitle(in.Title); err != nil {
		return validationErr(err)
	}
	if err := validation.ValidateJobDescription(in.Description); err != nil {
		return validationErr(err)
	}
	if err := validation.ValidateLength("категория", in.Category, 0, validation.MaxCategoryLength); err != nil {
		return validationErr(err)
	}
	if err := validation.ValidateSkills(in.Skills); err != nil {
		return validationErr(err)
	}
	if err := validation.ValidateLocation(in.Location); err != nil {
		return validationErr(err)
	}
	if err := validation.ValidateBudget(in.PriceMin, in.PriceMax); err != nil {
		return validationErr(err)
	}
	if in.TravelTip < 0 {
		return apperror.Validation("чаевые на дорогу не могут быть отрицательными")
	}
	if !in.Deadline.After(now) {
		return apperror.Validation("срок приёма ставок должен быть в будущем")
	}
	return nil
}

// PublishJob переводит черновик в open.
func (s *JobService) PublishJob(ctx context.Context, actor models.Actor, jobID uuid.UUID) (*models.Job, error) {
	job, err := s.jobs.Update(ctx, jobID, actorIDPtr(actor), "published", func(job *models.Job) error {
		if job.JobGiverID != actor.ID {
			return apperror.ErrForbidden
		}
		if err := transition(job, models.JobStatusOpen); err != nil {
			return err
		}
		now := s.now()
		job.PostedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.LogBusinessEvent(ctx, models.EventJobPosted, actorIDPtr(actor), job.ID.String(), map[string]interface{}{
		"title": job.Title,
	})
	s.metrics.RecordJobTransition(string(job.Status))
	return job, nil
}

// GetJob возвращает заказ со сводками ставок. Черновик видят только владелец и персонал.
func (s *JobService) GetJob(ctx context.Context, viewer *models.Actor, jobID uuid.UUID) (*models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == models.JobStatusDraft && !canManage(viewer, job) {
		return nil, apperror.ErrJobNotFound
	}

	bids, err := s.bids.ListByJob(ctx, jobID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	job.Bids = make([]models.BidSummary, 0, len(bids))
	for i := range bids {
		job.Bids = append(job.Bids, bids[i].Summary())
	}
	return job, nil
}

func (s *JobService) ListOpenJobs(ctx context.Context, category string, limit, offset int) ([]models.Job, error) {
	jobs, err := s.jobs.List(ctx, models.JobFilter{
		Statuses: []models.JobStatus{models.JobStatusOpen},
		Category: strings.TrimSpace(category),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return jobs, nil
}

// ListMyJobs: заказчику его заказы, установщику назначенные ему.
func (s *JobService) ListMyJobs(ctx context.Context, actor models.Actor, status string, limit, offset int) ([]models.Job, error) {
	filter := models.JobFilter{Limit: limit, Offset: offset}
	if status != "" {
		parsed, err := models.ParseJobStatus(status)
		if err != nil {
			return nil, validationErr(err)
		}
		filter.Statuses = []models.JobStatus{parsed}
	}
	if actor.Roles.Has(models.RoleJobGiver) || !actor.Roles.Has(models.RoleInstaller) {
		filter.JobGiverID = &actor.ID
	} else {
		filter.Installer = &actor.ID
	}

	jobs, err := s.jobs.List(ctx, filter)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return jobs, nil
}

// AwardBid выбирает исполнителя и открывает окно оплаты.
func (s *JobService) AwardBid(ctx context.Context, actor models.Actor, jobID, bidID uuid.UUID) (*models.Job, error) {
	job, err := s.jobs.AwardBid(ctx, jobID, bidID, actor.ID, func(job *models.Job, bid *models.Bid) error {
		if job.JobGiverID != actor.ID {
			return apperror.ErrForbidden
		}
		if bid.Status != models.BidStatusBidded {
			return apperror.New(apperror.ErrCodeConflict, "ставка уже обработана")
		}
		if job.IsDisqualified(bid.InstallerID) {
			return apperror.New(apperror.ErrCodeConflict, "установщик отстранён от этого заказа")
		}
		if err := transition(job, models.JobStatusBidAccepted); err != nil {
			return err
		}
		deadline := s.now().Add(s.fundingWindow)
		installerID := bid.InstallerID
		job.AwardedInstallerID = &installerID
		job.FundingDeadline = &deadline
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.LogBusinessEvent(ctx, models.EventBidAccepted, actorIDPtr(actor), job.ID.String(), map[string]interface{}{
		"bid_id":       bidID.String(),
		"installer_id": job.AwardedInstallerID.String(),
	})
	s.metrics.RecordJobTransition(string(job.Status))
	return job, nil
}

// StartWork проверяет код начала работ под блокировкой строки заказа.
// При любой ошибке заказ не изменяется. Код после успешного старта не сбрасывается.
func (s *JobService) StartWork(ctx context.Context, actor models.Actor, jobID uuid.UUID, otp string) (*models.Job, error) {
	job, err := s.jobs.Update(ctx, jobID, actorIDPtr(actor), "work started", func(job *models.Job) error {
		if err := requireStatus(job, models.JobStatusInProgress); err != nil {
			return err
		}
		if job.AwardedInstallerID == nil || *job.AwardedInstallerID != actor.ID {
			return apperror.ErrForbidden
		}
		if job.StartOTP == nil || *job.StartOTP != otp {
			return apperror.ErrInvalidOTP
		}
		if job.WorkStartedAt == nil {
			now := s.now()
			job.WorkStartedAt = &now
		}
		return nil
	})
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"job_id":  jobID,
			"user_id": actor.ID,
		}).WithError(err).Info("start work отклонён")
		return nil, err
	}
	return job, nil
}

// SubmitWork установщик сдаёт работу, заказ ждёт подтверждения заказчика.
func (s *JobService) SubmitWork(ctx context.Context, actor models.Actor, jobID uuid.UUID) (*models.Job, error) {
	job, err := s.jobs.Update(ctx, jobID, actorIDPtr(actor), "work submitted", func(job *models.Job) error {
		if job.AwardedInstallerID == nil || *job.AwardedInstallerID != actor.ID {
			return apperror.ErrForbidden
		}
		if err := transition(job, models.JobStatusWorkSubmitted); err != nil {
			return err
		}
		now := s.now()
		job.CompletionTimestamp = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordJobTransition(string(job.Status))
	return job, nil
}

// ConfirmCompletion заказчик принимает работу, средства уходят установщику.
func (s *JobService) ConfirmCompletion(ctx context.Context, actor models.Actor, jobID uuid.UUID) (*models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.JobGiverID != actor.ID {
		return nil, apperror.ErrForbidden
	}

	job, _, err = s.escrow.ReleaseFunds(ctx, actor, jobID)
	if err != nil {
		return nil, err
	}
	s.events.LogBusinessEvent(ctx, models.EventJobCompleted, actorIDPtr(actor), job.ID.String(), nil)

	// деньги уже ушли, ошибка начисления не отменяет завершение
	installerID := *job.AwardedInstallerID
	if _, err := s.reputation.AddPoints(ctx, installerID, CompletionPoints, "Job completed: "+job.ID.String()); err != nil {
		logger.Log.WithFields(logrus.Fields{
			"job_id":  job.ID,
			"user_id": installerID,
		}).WithError(err).Warn("не удалось начислить очки за заказ")
	}
	return job, nil
}

// DeclineOffer выбранный установщик отказывается от заказа до оплаты.
// Он попадает в список отстранённых, заказ снова открыт для ставок.
func (s *JobService) DeclineOffer(ctx context.Context, actor models.Actor, jobID uuid.UUID) (*models.Job, error) {
	job, err := s.jobs.DeclineAward(ctx, jobID, actor.ID, func(job *models.Job) error {
		if job.AwardedInstallerID == nil || *job.AwardedInstallerID != actor.ID {
			return apperror.ErrForbidden
		}
		if err := transition(job, models.JobStatusOpen); err != nil {
			return err
		}
		if !job.IsDisqualified(actor.ID) {
			job.DisqualifiedInstallerIDs = append(job.DisqualifiedInstallerIDs, actor.ID.String())
		}
		job.AwardedInstallerID = nil
		job.FundingDeadline = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.LogBusinessEvent(ctx, models.EventOfferDeclined, actorIDPtr(actor), job.ID.String(), nil)
	s.metrics.RecordJobTransition(string(job.Status))
	return job, nil
}

// escrowedStatuses статусы, в которых по заказу удерживаются деньги.
var escrowedStatuses = map[models.JobStatus]bool{
	models.JobStatusFunded:     true,
	models.JobStatusInProgress: true,
	models.JobStatusDisputed:   true,
}

// CancelJob отменяет заказ. Если деньги уже в эскроу, они возвращаются заказчику.
func (s *JobService) CancelJob(ctx context.Context, actor models.Actor, jobID uuid.UUID, reason string) (*models.Job, error) {
	if err := validation.ValidateReason(reason); err != nil {
		return nil, validationErr(err)
	}

	current, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if current.JobGiverID != actor.ID && !actor.Roles.Has(models.RoleAdmin) {
		return nil, apperror.ErrForbidden
	}

	if escrowedStatuses[current.Status] {
		job, _, err := s.escrow.RefundJob(ctx, actor, jobID, reason)
		return job, err
	}

	job, err := s.jobs.Update(ctx, jobID, actorIDPtr(actor), reason, func(job *models.Job) error {
		if escrowedStatuses[job.Status] {
			return apperror.New(apperror.ErrCodeConflict, "заказ оплачен, повторите отмену")
		}
		if err := transition(job, models.JobStatusCancelled); err != nil {
			return err
		}
		r := strings.TrimSpace(reason)
		job.CancellationReason = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordJobTransition(string(job.Status))
	return job, nil
}

// ToggleBookmark добавляет заказ в закладки или убирает его.
func (s *JobService) ToggleBookmark(ctx context.Context, actor models.Actor, jobID uuid.UUID) (bool, error) {
	if _, err := s.jobs.GetByID(ctx, jobID); err != nil {
		return false, err
	}
	return s.bookmarks.ToggleBookmark(ctx, actor.ID, jobID)
}

// AddAttachment прикрепляет к заказу загруженный файл. Доступно сторонам заказа.
func (s *JobService) AddAttachment(ctx context.Context, actor models.Actor, att *models.JobAttachment) error {
	job, err := s.jobs.GetByID(ctx, att.JobID)
	if err != nil {
		return err
	}
	if !job.IsParty(actor.ID) {
		return apperror.ErrForbidden
	}
	att.UploadedBy = actor.ID
	if err := s.jobs.CreateAttachment(ctx, att); err != nil {
		return apperror.Internal(err)
	}
	return nil
}

func (s *JobService) ListAttachments(ctx context.Context, actor models.Actor, jobID uuid.UUID) ([]models.JobAttachment, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsParty(actor.ID) && !actor.Roles.IsStaff() {
		return nil, apperror.ErrForbidden
	}
	return s.jobs.ListAttachments(ctx, jobID)
}

// History история статусов заказа для сторон и персонала.
func (s *JobService) History(ctx context.Context, actor models.Actor, jobID uuid.UUID) ([]models.JobStatusChange, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsParty(actor.ID) && !actor.Roles.IsStaff() {
		return nil, apperror.ErrForbidden
	}
	return s.jobs.History(ctx, jobID)
}

func canManage(viewer *models.Actor, job *models.Job) bool {
	if viewer == nil {
		return false
	}
	return viewer.ID == job.JobGiverID || viewer.Roles.IsStaff()
}
