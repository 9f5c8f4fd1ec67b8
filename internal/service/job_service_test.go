package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
)

type jobFixture struct {
	store    *memStore
	svc      *JobService
	payments   *PaymentService
	reputation *ReputationService
	gateway    *fakeGateway
	events   *fakeEvents
	now      time.Time
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()
	store := newMemStore()
	gateway := &fakeGateway{paid: true}
	events := &fakeEvents{}
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	pay := NewPaymentService(fakeTxnRepo{store}, fakeJobRepo{store}, fakeUserRepo{store}, gateway, fakeFlags{}, events, nil,
		FeeSettings{CommissionRate: 0.05, JobGiverFeeRate: 0.02})
	pay.now = fixedClock(now)
	pay.otp = func() (string, error) { return "654321", nil }

	reputation := NewReputationService(fakeUserRepo{store}, events)
	svc := NewJobService(fakeJobRepo{store}, fakeBidRepo{store}, fakeUserRepo{store}, pay, reputation, events, nil, 48*time.Hour)
	svc.now = fixedClock(now)

	return &jobFixture{store: store, svc: svc, payments: pay, reputation: reputation, gateway: gateway, events: events, now: now}
}

func (f *jobFixture) inProgressJob(giver, inst models.Actor, otp string) *models.Job {
	return f.store.putJob(models.Job{
		Title:              "Install 4 cameras",
		Status:             models.JobStatusInProgress,
		JobGiverID:         giver.ID,
		AwardedInstallerID: &inst.ID,
		StartOTP:           &otp,
	})
}

func validJobInput(now time.Time) CreateJobInput {
	return CreateJobInput{
		Title:       "Install 4 CCTV cameras",
		Description: "Need four dome cameras installed at the shop entrance and storage.",
		Category:    "CCTV",
		Skills:      []string{"cctv", "cabling"},
		Location:    "Pune",
		PriceMin:    5000,
		PriceMax:    8000,
		Deadline:    now.Add(7 * 24 * time.Hour),
	}
}

func TestJobService_CreateJob(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	giver := jobGiver()

	t.Run("черновик", func(t *testing.T) {
		job, err := f.svc.CreateJob(ctx, giver, validJobInput(f.now))
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusDraft, job.Status)
		assert.Nil(t, job.PostedAt)
		assert.NotContains(t, f.events.types(), models.EventJobPosted)
	})

	t.Run("сразу опубликован", func(t *testing.T) {
		in := validJobInput(f.now)
		in.Publish = true
		job, err := f.svc.CreateJob(ctx, giver, in)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusOpen, job.Status)
		require.NotNil(t, job.PostedAt)
		assert.Contains(t, f.events.types(), models.EventJobPosted)
	})

	t.Run("установщик не может создать заказ", func(t *testing.T) {
		_, err := f.svc.CreateJob(ctx, installer(), validJobInput(f.now))
		assert.True(t, apperror.IsForbidden(err))
	})

	t.Run("срок в прошлом", func(t *testing.T) {
		in := validJobInput(f.now)
		in.Deadline = f.now.Add(-time.Hour)
		_, err := f.svc.CreateJob(ctx, giver, in)
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("короткий заголовок", func(t *testing.T) {
		in := validJobInput(f.now)
		in.Title = "cam"
		_, err := f.svc.CreateJob(ctx, giver, in)
		assert.True(t, apperror.IsValidation(err))
	})
}

func TestJobService_GetJob_DraftHiddenFromOthers(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	giver := jobGiver()
	job := f.store.putJob(models.Job{Title: "Draft job", Status: models.JobStatusDraft, JobGiverID: giver.ID})

	_, err := f.svc.GetJob(ctx, nil, job.ID)
	assert.True(t, apperror.IsNotFound(err))

	other := installer()
	_, err = f.svc.GetJob(ctx, &other, job.ID)
	assert.True(t, apperror.IsNotFound(err))

	got, err := f.svc.GetJob(ctx, &giver, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.NotNil(t, got.Bids)
}

func TestJobService_AwardBid(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	giver, inst, other := jobGiver(), installer(), installer()
	job := f.store.putJob(models.Job{Title: "Open job", Status: models.JobStatusOpen, JobGiverID: giver.ID})

	bids := NewBidService(fakeBidRepo{f.store}, fakeJobRepo{f.store}, f.events, nil)
	win, err := bids.PlaceBid(ctx, inst, job.ID, 5000, nil)
	require.NoError(t, err)
	_, err = bids.PlaceBid(ctx, other, job.ID, 6000, nil)
	require.NoError(t, err)

	_, err = f.svc.AwardBid(ctx, inst, job.ID, win.ID)
	assert.True(t, apperror.IsForbidden(err))

	awarded, err := f.svc.AwardBid(ctx, giver, job.ID, win.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusBidAccepted, awarded.Status)
	require.NotNil(t, awarded.AwardedInstallerID)
	assert.Equal(t, inst.ID, *awarded.AwardedInstallerID)
	require.NotNil(t, awarded.FundingDeadline)
	assert.Equal(t, f.now.Add(48*time.Hour), *awarded.FundingDeadline)

	list, err := bids.ListBids(ctx, giver, job.ID)
	require.NoError(t, err)
	for _, b := range list {
		if b.ID == win.ID {
			assert.Equal(t, models.BidStatusAwarded, b.Status)
		} else {
			assert.Equal(t, models.BidStatusRejected, b.Status)
		}
	}
}

func TestJobService_DeclineOffer(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*jobFixture, *BidService, models.Actor, models.Actor, *models.Job, *models.Bid) {
		f := newJobFixture(t)
		giver, inst, other := jobGiver(), installer(), installer()
		f.store.putUser(models.User{ID: inst.ID, ReputationPoints: 40})
		job := f.store.putJob(models.Job{Title: "Open job", Status: models.JobStatusOpen, JobGiverID: giver.ID})

		bids := NewBidService(fakeBidRepo{f.store}, fakeJobRepo{f.store}, f.events, nil)
		win, err := bids.PlaceBid(ctx, inst, job.ID, 5000, nil)
		require.NoError(t, err)
		_, err = bids.PlaceBid(ctx, other, job.ID, 6000, nil)
		require.NoError(t, err)
		_, err = f.svc.AwardBid(ctx, giver, job.ID, win.ID)
		require.NoError(t, err)
		return f, bids, giver, inst, job, win
	}

	t.Run("отказ отстраняет и открывает заказ", func(t *testing.T) {
		f, bids, giver, inst, job, win := setup(t)

		declined, err := f.svc.DeclineOffer(ctx, inst, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusOpen, declined.Status)
		assert.Nil(t, declined.AwardedInstallerID)
		assert.Nil(t, declined.FundingDeadline)
		stored := f.store.job(job.ID)
		assert.True(t, stored.IsDisqualified(inst.ID))
		assert.Contains(t, f.events.types(), models.EventOfferDeclined)

		list, err := bids.ListBids(ctx, giver, job.ID)
		require.NoError(t, err)
		for _, b := range list {
			assert.Equal(t, models.BidStatusBidded, b.Status, "ставки снова участвуют в отборе")
		}

		_, err = f.svc.AwardBid(ctx, giver, job.ID, win.ID)
		assert.True(t, apperror.IsConflict(err), "отстранённого нельзя выбрать")
	})

	t.Run("возврат к заказу за штраф", func(t *testing.T) {
		f, _, giver, inst, job, win := setup(t)
		_, err := f.svc.DeclineOffer(ctx, inst, job.ID)
		require.NoError(t, err)

		balance, err := f.reputation.Reapply(ctx, inst, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 40-ReapplyPenalty, balance)
		stored := f.store.job(job.ID)
		assert.False(t, stored.IsDisqualified(inst.ID))
		assert.Contains(t, f.events.types(), models.EventReapplied)

		awarded, err := f.svc.AwardBid(ctx, giver, job.ID, win.ID)
		require.NoError(t, err)
		assert.Equal(t, inst.ID, *awarded.AwardedInstallerID)
	})

	t.Run("отказаться может только выбранный установщик", func(t *testing.T) {
		f, _, giver, _, job, _ := setup(t)

		_, err := f.svc.DeclineOffer(ctx, installer(), job.ID)
		assert.True(t, apperror.IsForbidden(err))
		_, err = f.svc.DeclineOffer(ctx, giver, job.ID)
		assert.True(t, apperror.IsForbidden(err))
		assert.Equal(t, models.JobStatusBidAccepted, f.store.job(job.ID).Status)
	})

	t.Run("после оплаты отказ невозможен", func(t *testing.T) {
		f := newJobFixture(t)
		giver, inst := jobGiver(), installer()
		job := f.inProgressJob(giver, inst, "123456")

		_, err := f.svc.DeclineOffer(ctx, inst, job.ID)
		assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
		stored := f.store.job(job.ID)
		assert.False(t, stored.IsDisqualified(inst.ID))
	})
}

func TestJobService_StartWork(t *testing.T) {
	ctx := context.Background()

	t.Run("совпадающий код", func(t *testing.T) {
		f := newJobFixture(t)
		giver, inst := jobGiver(), installer()
		job := f.inProgressJob(giver, inst, "123456")

		started, err := f.svc.StartWork(ctx, inst, job.ID, "123456")
		require.NoError(t, err)
		require.NotNil(t, started.WorkStartedAt)
		assert.Equal(t, f.now, *started.WorkStartedAt)
		assert.Equal(t, models.JobStatusInProgress, started.Status)
		// код не сбрасывается
		require.NotNil(t, started.StartOTP)
		assert.Equal(t, "123456", *started.StartOTP)
	})

	t.Run("повторный старт не меняет время", func(t *testing.T) {
		f := newJobFixture(t)
		giver, inst := jobGiver(), installer()
		job := f.inProgressJob(giver, inst, "123456")

		_, err := f.svc.StartWork(ctx, inst, job.ID, "123456")
		require.NoError(t, err)
		f.svc.now = fixedClock(f.now.Add(time.Hour))
		again, err := f.svc.StartWork(ctx, inst, job.ID, "123456")
		require.NoError(t, err)
		assert.Equal(t, f.now, *again.WorkStartedAt)
	})

	t.Run("неверный код", func(t *testing.T) {
		f := newJobFixture(t)
		giver, inst := jobGiver(), installer()
		job := f.inProgressJob(giver, inst, "123456")

		_, err := f.svc.StartWork(ctx, inst, job.ID, "000000")
		assert.ErrorIs(t, err, apperror.ErrInvalidOTP)
		assert.Nil(t, f.store.job(job.ID).WorkStartedAt)
	})

	t.Run("код не выдан", func(t *testing.T) {
		f := newJobFixture(t)
		giver, inst := jobGiver(), installer()
		job := f.store.putJob(models.Job{
			Title:              "No otp",
			Status:             models.JobStatusInProgress,
			JobGiverID:         giver.ID,
			AwardedInstallerID: &inst.ID,
		})

		_, err := f.svc.StartWork(ctx, inst, job.ID, "")
		assert.ErrorIs(t, err, apperror.ErrInvalidOTP)
		assert.Nil(t, f.store.job(job.ID).WorkStartedAt)
	})

	t.Run("не назначенный установщик", func(t *testing.T) {
		f := newJobFixture(t)
		giver, inst := jobGiver(), installer()
		job := f.inProgressJob(giver, inst, "123456")

		_, err := f.svc.StartWork(ctx, installer(), job.ID, "123456")
		assert.True(t, apperror.IsForbidden(err))
		assert.Nil(t, f.store.job(job.ID).WorkStartedAt)
	})

	t.Run("неверный статус", func(t *testing.T) {
		f := newJobFixture(t)
		giver, inst := jobGiver(), installer()
		job := f.store.putJob(models.Job{
			Title:              "Awaiting funding",
			Status:             models.JobStatusBidAccepted,
			JobGiverID:         giver.ID,
			AwardedInstallerID: &inst.ID,
			StartOTP:           ptr("123456"),
		})

		_, err := f.svc.StartWork(ctx, inst, job.ID, "123456")
		assert.True(t, apperror.IsConflict(err))
		assert.Nil(t, f.store.job(job.ID).WorkStartedAt)
	})
}

func TestJobService_SubmitAndConfirm(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	giver, inst := jobGiver(), installer()
	f.store.putUser(models.User{ID: inst.ID, Name: "Ravi", BeneficiaryID: ptr("BEN_1")})
	job := f.inProgressJob(giver, inst, "123456")
	txn := f.store.putTxn(models.Transaction{
		JobID:             job.ID,
		PayerID:           giver.ID,
		PayeeID:           &inst.ID,
		Type:              models.TransactionTypeJob,
		Amount:            10000,
		Commission:        500,
		JobGiverFee:       200,
		PlatformFee:       700,
		TotalPaidByGiver:  10200,
		PayoutToInstaller: 9500,
		Status:            models.TransactionStatusFunded,
	})

	_, err := f.svc.ConfirmCompletion(ctx, giver, job.ID)
	assert.True(t, apperror.IsConflict(err), "до сдачи работы подтверждать нечего")

	submitted, err := f.svc.SubmitWork(ctx, inst, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusWorkSubmitted, submitted.Status)
	require.NotNil(t, submitted.CompletionTimestamp)

	_, err = f.svc.ConfirmCompletion(ctx, inst, job.ID)
	assert.True(t, apperror.IsForbidden(err))

	done, err := f.svc.ConfirmCompletion(ctx, giver, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, done.Status)
	assert.Equal(t, models.TransactionStatusReleased, f.store.txn(txn.ID).Status)
	require.Len(t, f.gateway.payouts, 1)
	assert.Equal(t, 9500.0, f.gateway.payouts[0].Amount)
	assert.Equal(t, "BEN_1", f.gateway.payouts[0].BeneficiaryID)
	assert.Contains(t, f.events.types(), models.EventJobCompleted)

	rewarded, err := fakeUserRepo{f.store}.GetByID(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, CompletionPoints, rewarded.ReputationPoints, "установщику начислены очки за заказ")
}

func TestJobService_CancelJob(t *testing.T) {
	ctx := context.Background()

	t.Run("открытый заказ", func(t *testing.T) {
		f := newJobFixture(t)
		giver := jobGiver()
		job := f.store.putJob(models.Job{Title: "Open", Status: models.JobStatusOpen, JobGiverID: giver.ID})

		cancelled, err := f.svc.CancelJob(ctx, giver, job.ID, "No longer needed")
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCancelled, cancelled.Status)
		require.NotNil(t, cancelled.CancellationReason)
		assert.Equal(t, "No longer needed", *cancelled.CancellationReason)
	})

	t.Run("чужой заказ", func(t *testing.T) {
		f := newJobFixture(t)
		job := f.store.putJob(models.Job{Title: "Open", Status: models.JobStatusOpen, JobGiverID: uuid.New()})

		_, err := f.svc.CancelJob(ctx, jobGiver(), job.ID, "No longer needed")
		assert.True(t, apperror.IsForbidden(err))
		assert.Equal(t, models.JobStatusOpen, f.store.job(job.ID).Status)
	})

	t.Run("оплаченный заказ возвращает деньги", func(t *testing.T) {
		f := newJobFixture(t)
		giver, inst := jobGiver(), installer()
		job := f.inProgressJob(giver, inst, "123456")
		txn := f.store.putTxn(models.Transaction{
			JobID:            job.ID,
			PayerID:          giver.ID,
			Type:             models.TransactionTypeJob,
			Amount:           10000,
			TotalPaidByGiver: 10000,
			Status:           models.TransactionStatusFunded,
			GatewayOrderID:   ptr("order_x"),
		})

		cancelled, err := f.svc.CancelJob(ctx, giver, job.ID, "Changed plans")
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCancelled, cancelled.Status)
		assert.Equal(t, models.TransactionStatusRefunded, f.store.txn(txn.ID).Status)
		require.Len(t, f.gateway.refunds, 1)
		assert.Equal(t, 10000.0, f.gateway.refunds[0].Amount)
	})

	t.Run("завершённый заказ нельзя отменить", func(t *testing.T) {
		f := newJobFixture(t)
		giver := jobGiver()
		job := f.store.putJob(models.Job{Title: "Done", Status: models.JobStatusCompleted, JobGiverID: giver.ID})

		_, err := f.svc.CancelJob(ctx, giver, job.ID, "Too late")
		assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
	})
}

func TestJobService_ListMyJobs(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	giver, inst := jobGiver(), installer()
	f.store.putJob(models.Job{Title: "A", Status: models.JobStatusOpen, JobGiverID: giver.ID})
	f.store.putJob(models.Job{Title: "B", Status: models.JobStatusInProgress, JobGiverID: giver.ID, AwardedInstallerID: &inst.ID})
	f.store.putJob(models.Job{Title: "C", Status: models.JobStatusOpen, JobGiverID: uuid.New(), BidderIDs: pq.StringArray{inst.ID.String()}})

	mine, err := f.svc.ListMyJobs(ctx, giver, "", 20, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	// устаревшее имя статуса принимается на входе
	inProgress, err := f.svc.ListMyJobs(ctx, giver, "In Progress", 20, 0)
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	assert.Equal(t, "B", inProgress[0].Title)

	assigned, err := f.svc.ListMyJobs(ctx, inst, "", 20, 0)
	require.NoError(t, err)
	assert.Len(t, assigned, 2)

	_, err = f.svc.ListMyJobs(ctx, giver, "Sleeping", 20, 0)
	assert.True(t, apperror.IsValidation(err))
}

func TestJobService_Attachments(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	giver, inst := jobGiver(), installer()
	job := f.inProgressJob(giver, inst, "111111")

	att := &models.JobAttachment{JobID: job.ID, FilePath: "jobs/a.jpg", FileName: "a.jpg", MimeType: "image/jpeg", SizeBytes: 10}
	require.NoError(t, f.svc.AddAttachment(ctx, inst, att))
	assert.Equal(t, inst.ID, att.UploadedBy)

	err := f.svc.AddAttachment(ctx, installer(), &models.JobAttachment{JobID: job.ID})
	assert.True(t, apperror.IsForbidden(err))

	list, err := f.svc.ListAttachments(ctx, admin(), job.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestJobService_ToggleBookmark(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	inst := installer()
	f.store.putUser(models.User{ID: inst.ID})
	job := f.store.putJob(models.Job{Title: "Open", Status: models.JobStatusOpen, JobGiverID: uuid.New()})

	on, err := f.svc.ToggleBookmark(ctx, inst, job.ID)
	require.NoError(t, err)
	assert.True(t, on)

	on, err = f.svc.ToggleBookmark(ctx, inst, job.ID)
	require.NoError(t, err)
	assert.False(t, on)

	_, err = f.svc.ToggleBookmark(ctx, inst, uuid.New())
	assert.True(t, apperror.IsNotFound(err))
}
