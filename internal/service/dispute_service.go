package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/team4job/marketplace-backend/internal/logger"
	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
	"github.com/team4job/marketplace-backend/internal/repository"
	"github.com/team4job/marketplace-backend/internal/validation"
)

var ErrDisputeAlreadyExists = apperror.ErrDisputeActive

type DisputeRepository interface {
	Create(ctx context.Context, dispute *models.Dispute, first *models.DisputeMessage, fn repository.JobMutation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Dispute, error)
	ListByStatus(ctx context.Context, status models.DisputeStatus, limit, offset int) ([]models.Dispute, error)
	Update(ctx context.Context, id uuid.UUID, msg *models.DisputeMessage, fn func(*models.Dispute) error) (*models.Dispute, error)
}

type DisputeService struct {
	disputes DisputeRepository
	jobs     JobGetter
	flags    FlagChecker
	events   BusinessEventLogger
	now      func() time.Time
}

func NewDisputeService(disputes DisputeRepository, jobs JobGetter, flags FlagChecker, events BusinessEventLogger) *DisputeService {
	return &DisputeService{disputes: disputes, jobs: jobs, flags: flags, events: events, now: time.Now}
}

type CreateDisputeInput struct {
	JobID    uuid.UUID
	Category string
	Reason   string
}

// CreateDispute открывает спор. Стороны спора: заказчик и выбранный установщик.
// Заказ переводится в disputed, если это допускает таблица переходов.
func (s *DisputeService) CreateDispute(ctx context.Context, actor models.Actor, in CreateDisputeInput) (*models.Dispute, error) {
	if !s.flags.IsEnabled(ctx, models.FlagDisputesV2) {
		return nil, apperror.ErrDisputesDisabled
	}
	if err := validation.ValidateReason(in.Reason); err != nil {
		return nil, validationErr(err)
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = "General"
	}
	reason := strings.TrimSpace(in.Reason)

	job, err := s.jobs.GetByID(ctx, in.JobID)
	if err != nil {
		return nil, err
	}
	if !job.IsParty(actor.ID) && !actor.Roles.IsStaff() {
		return nil, apperror.ErrForbidden
	}

	// наличие активного спора проверяет репозиторий под блокировкой заказа
	parties := pq.StringArray{job.JobGiverID.String()}
	if job.AwardedInstallerID != nil {
		parties = append(parties, job.AwardedInstallerID.String())
	}

	dispute := &models.Dispute{
		JobID:    job.ID,
		JobTitle: job.Title,
		RaisedBy: actor.ID,
		Category: category,
		Reason:   reason,
		Status:   models.DisputeStatusOpen,
		PartyIDs: parties,
	}
	first := &models.DisputeMessage{
		AuthorID:   actor.ID,
		AuthorRole: authorRole(actor, job),
		Content:    "Dispute opened: " + reason,
	}

	err = s.disputes.Create(ctx, dispute, first, func(job *models.Job) error {
		if job.Status.CanTransitionTo(models.JobStatusDisputed) {
			job.Status = models.JobStatusDisputed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.WithField("dispute_id", dispute.ID).WithField("job_id", job.ID).Warn("открыт спор по заказу")
	s.events.LogBusinessEvent(ctx, models.EventDisputeRaised, actorIDPtr(actor), job.ID.String(), map[string]interface{}{
		"dispute_id": dispute.ID.String(),
		"category":   category,
	})
	return dispute, nil
}

// GetDispute доступен сторонам спора и персоналу.
func (s *DisputeService) GetDispute(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !dispute.IsParty(actor.ID) && !actor.Roles.IsStaff() {
		return nil, apperror.ErrForbidden
	}
	return dispute, nil
}

func (s *DisputeService) ListMyDisputes(ctx context.Context, actor models.Actor) ([]models.Dispute, error) {
	items, err := s.disputes.ListForUser(ctx, actor.ID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return items, nil
}

// ListQueue очередь споров для поддержки.
func (s *DisputeService) ListQueue(ctx context.Context, actor models.Actor, status models.DisputeStatus, limit, offset int) ([]models.Dispute, error) {
	if !actor.Roles.IsStaff() {
		return nil, apperror.ErrForbidden
	}
	if status == "" {
		status = models.DisputeStatusOpen
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	items, err := s.disputes.ListByStatus(ctx, status, limit, offset)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return items, nil
}

// AddMessage добавляет сообщение в переписку. Первое сообщение после открытия
// переводит спор на рассмотрение.
func (s *DisputeService) AddMessage(ctx context.Context, actor models.Actor, id uuid.UUID, content string) (*models.Dispute, error) {
	if err := validation.ValidateMessageContent(content); err != nil {
		return nil, validationErr(err)
	}

	msg := &models.DisputeMessage{
		AuthorID: actor.ID,
		Content:  strings.TrimSpace(content),
	}
	dispute, err := s.disputes.Update(ctx, id, msg, func(d *models.Dispute) error {
		if !d.IsParty(actor.ID) && !actor.Roles.IsStaff() {
			return apperror.ErrForbidden
		}
		if d.Status == models.DisputeStatusResolved {
			return apperror.New(apperror.ErrCodeConflict, "спор уже закрыт")
		}
		if d.Status == models.DisputeStatusOpen {
			d.Status = models.DisputeStatusUnderReview
		}
		msg.AuthorRole = disputeAuthorRole(actor, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

// ResolveDispute закрывает спор. Деньги по заказу персонал распределяет отдельно
// через выплату или возврат.
func (s *DisputeService) ResolveDispute(ctx context.Context, actor models.Actor, id uuid.UUID, resolution string) (*models.Dispute, error) {
	if !actor.Roles.IsStaff() {
		return nil, apperror.ErrForbidden
	}
	if err := validation.ValidateReason(resolution); err != nil {
		return nil, validationErr(err)
	}
	resolution = strings.TrimSpace(resolution)

	dispute, err := s.disputes.Update(ctx, id, nil, func(d *models.Dispute) error {
		if !d.Status.CanTransitionTo(models.DisputeStatusResolved) {
			return apperror.New(apperror.ErrCodeConflict, "спор уже закрыт")
		}
		now := s.now()
		d.Status = models.DisputeStatusResolved
		d.Resolution = &resolution
		d.ResolvedBy = actorIDPtr(actor)
		d.ResolvedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.WithField("dispute_id", id).WithField("resolved_by", actor.ID).Info("спор закрыт")
	return dispute, nil
}

func authorRole(actor models.Actor, job *models.Job) string {
	switch {
	case actor.ID == job.JobGiverID:
		return string(models.RoleJobGiver)
	case job.AwardedInstallerID != nil && *job.AwardedInstallerID == actor.ID:
		return string(models.RoleInstaller)
	}
	return staffRole(actor)
}

// disputeAuthorRole первая сторона спора всегда заказчик, вторая установщик.
func disputeAuthorRole(actor models.Actor, d *models.Dispute) string {
	for i, id := range d.PartyIDs {
		if id != actor.ID.String() {
			continue
		}
		if i == 0 {
			return string(models.RoleJobGiver)
		}
		return string(models.RoleInstaller)
	}
	return staffRole(actor)
}

func staffRole(actor models.Actor) string {
	if actor.Roles.Has(models.RoleAdmin) {
		return string(models.RoleAdmin)
	}
	if actor.Roles.Has(models.RoleSupportTeam) {
		return string(models.RoleSupportTeam)
	}
	if len(actor.Roles) > 0 {
		return string(actor.Roles[0])
	}
	return ""
}
