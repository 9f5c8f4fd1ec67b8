package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/team4job/marketplace-backend/internal/metrics"
	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
	"github.com/team4job/marketplace-backend/internal/repository"
	"github.com/team4job/marketplace-backend/internal/validation"
)

// MinBidAmount минимальная сумма ставки.
const MinBidAmount = 100.0

type BidRepository interface {
	Place(ctx context.Context, bid *models.Bid, check repository.JobMutation) error
	Withdraw(ctx context.Context, jobID, bidID uuid.UUID, check func(*models.Job, *models.Bid) error) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Bid, error)
	ListByInstaller(ctx context.Context, installerID uuid.UUID, limit, offset int) ([]models.Bid, error)
}

type JobGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

type BidService struct {
	bids    BidRepository
	jobs    JobGetter
	events  BusinessEventLogger
	metrics *metrics.Collector
}

func NewBidService(bids BidRepository, jobs JobGetter, events BusinessEventLogger, collector *metrics.Collector) *BidService {
	return &BidService{bids: bids, jobs: jobs, events: events, metrics: collector}
}

// PlaceBid проверки на заказ выполняются под блокировкой строки, дубликаты отсекает и уникальный индекс.
func (s *BidService) PlaceBid(ctx context.Context, actor models.Actor, jobID uuid.UUID, amount float64, coverLetter *string) (*models.Bid, error) {
	if !actor.Roles.Has(models.RoleInstaller) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "ставки могут делать только установщики")
	}
	if amount < MinBidAmount {
		return nil, apperror.Validation("минимальная сумма ставки %.0f", MinBidAmount)
	}
	if err := validation.ValidateCoverLetter(coverLetter); err != nil {
		return nil, validationErr(err)
	}
	if coverLetter != nil {
		trimmed := strings.TrimSpace(*coverLetter)
		if trimmed == "" {
			coverLetter = nil
		} else {
			coverLetter = &trimmed
		}
	}

	bid := &models.Bid{
		JobID:       jobID,
		InstallerID: actor.ID,
		Amount:      amount,
		CoverLetter: coverLetter,
	}
	err := s.bids.Place(ctx, bid, func(job *models.Job) error {
		return checkBidAllowed(job, actor.ID, amount)
	})
	if err != nil {
		return nil, err
	}

	s.events.LogBusinessEvent(ctx, models.EventBidPlaced, actorIDPtr(actor), jobID.String(), map[string]interface{}{
		"bid_id": bid.ID.String(),
		"amount": amount,
	})
	s.metrics.RecordBidPlaced()
	return bid, nil
}

func checkBidAllowed(job *models.Job, installerID uuid.UUID, amount float64) error {
	if job.Status != models.JobStatusOpen {
		return apperror.New(apperror.ErrCodeConflict, "заказ не принимает ставки")
	}
	if job.JobGiverID == installerID {
		return apperror.New(apperror.ErrCodeForbidden, "нельзя делать ставку на свой заказ")
	}
	if job.IsDisqualified(installerID) {
		return apperror.New(apperror.ErrCodeForbidden, "вы отстранены от этого заказа")
	}
	if job.HasBidder(installerID) {
		return repository.ErrDuplicateBid
	}
	if job.PriceMax > 0 && amount > 2*job.PriceMax {
		return apperror.Validation("ставка не может превышать бюджет более чем вдвое (%.0f)", 2*job.PriceMax)
	}
	return nil
}

// WithdrawBid установщик отзывает свою ставку, пока заказ открыт.
func (s *BidService) WithdrawBid(ctx context.Context, actor models.Actor, jobID, bidID uuid.UUID) error {
	return s.bids.Withdraw(ctx, jobID, bidID, func(job *models.Job, bid *models.Bid) error {
		if bid.InstallerID != actor.ID {
			return apperror.ErrForbidden
		}
		if bid.Status != models.BidStatusBidded {
			return apperror.New(apperror.ErrCodeConflict, "ставку уже нельзя отозвать")
		}
		if job.Status != models.JobStatusOpen {
			return apperror.New(apperror.ErrCodeConflict, "заказ уже не принимает ставки")
		}
		return nil
	})
}

// ListBids заказчик и персонал видят все ставки, установщик только свою.
func (s *BidService) ListBids(ctx context.Context, actor models.Actor, jobID uuid.UUID) ([]models.Bid, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	bids, err := s.bids.ListByJob(ctx, jobID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if job.JobGiverID == actor.ID || actor.Roles.IsStaff() {
		return bids, nil
	}

	own := make([]models.Bid, 0, 1)
	for _, b := range bids {
		if b.InstallerID == actor.ID {
			own = append(own, b)
		}
	}
	return own, nil
}

func (s *BidService) ListMyBids(ctx context.Context, actor models.Actor, limit, offset int) ([]models.Bid, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	bids, err := s.bids.ListByInstaller(ctx, actor.ID, limit, offset)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return bids, nil
}
