package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/team4job/marketplace-backend/internal/logger"
	"github.com/team4job/marketplace-backend/internal/metrics"
	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/payments"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
	"github.com/team4job/marketplace-backend/internal/repository"
	"github.com/team4job/marketplace-backend/internal/validation"
)

type TransactionRepository interface {
	Create(ctx context.Context, txn *models.Transaction) error
	FundJob(ctx context.Context, txn *models.Transaction, changedBy *uuid.UUID, fn repository.JobMutation) (*models.Job, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.Transaction, error)
	MarkFunded(ctx context.Context, orderID string, changedBy *uuid.UUID, fn repository.EscrowMutation) (*models.Job, *models.Transaction, error)
	Settle(ctx context.Context, jobID uuid.UUID, from []models.TransactionStatus, changedBy *uuid.UUID, reason string, fn repository.SettleMutation) (*models.Job, []models.Transaction, error)
	ListByPayer(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
	ListByPayee(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
}

type UserGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// FeeSettings ставки комиссий в долях: 0.05 означает 5%.
type FeeSettings struct {
	CommissionRate  float64
	JobGiverFeeRate float64
}

// Fees разбивка платежа. TotalPaidByGiver всегда равен PayoutToInstaller + PlatformFee.
type Fees struct {
	Commission        float64
	JobGiverFee       float64
	PlatformFee       float64
	TotalPaidByGiver  float64
	PayoutToInstaller float64
}

// CalculateFees считает в копейках, чтобы суммы сходились после округления до NUMERIC(12,2).
func CalculateFees(amount, tip float64, settings FeeSettings) Fees {
	amountC := toCents(amount)
	tipC := toCents(tip)
	commissionC := int64(math.Round(float64(amountC) * settings.CommissionRate))
	jobGiverFeeC := int64(math.Round(float64(amountC) * settings.JobGiverFeeRate))

	return Fees{
		Commission:        fromCents(commissionC),
		JobGiverFee:       fromCents(jobGiverFeeC),
		PlatformFee:       fromCents(commissionC + jobGiverFeeC),
		TotalPaidByGiver:  fromCents(amountC + jobGiverFeeC + tipC),
		PayoutToInstaller: fromCents(amountC - commissionC + tipC),
	}
}

func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

func fromCents(c int64) float64 {
	return float64(c) / 100
}

type PaymentService struct {
	txns    TransactionRepository
	jobs    JobGetter
	users   UserGetter
	gateway payments.Gateway
	flags   FlagChecker
	events  BusinessEventLogger
	metrics *metrics.Collector
	fees    FeeSettings
	now     func() time.Time
	otp     func() (string, error)
}

func NewPaymentService(
	txns TransactionRepository,
	jobs JobGetter,
	users UserGetter,
	gateway payments.Gateway,
	flags FlagChecker,
	events BusinessEventLogger,
	collector *metrics.Collector,
	fees FeeSettings,
) *PaymentService {
	return &PaymentService{
		txns:    txns,
		jobs:    jobs,
		users:   users,
		gateway: gateway,
		flags:   flags,
		events:  events,
		metrics: collector,
		fees:    fees,
		now:     time.Now,
		otp:     GenerateOTP,
	}
}

// GenerateOTP возвращает шестизначный код начала работ.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

type CreateOrderInput struct {
	JobID     uuid.UUID
	Amount    float64
	TravelTip *float64
}

// PaymentOrder данные для открытия оплаты на клиенте.
type PaymentOrder struct {
	OrderID     string              `json:"orderId"`
	OrderToken  string              `json:"orderToken"`
	Transaction *models.Transaction `json:"transaction"`
}

// CreatePaymentOrder создаёт заказ в шлюзе и транзакцию initiated.
// Деньги считаются поступившими только после VerifyPayment.
func (s *PaymentService) CreatePaymentOrder(ctx context.Context, actor models.Actor, in CreateOrderInput) (order *PaymentOrder, err error) {
	defer func() { s.metrics.RecordPayment("order", err) }()

	if !s.flags.IsEnabled(ctx, models.FlagPayments) {
		return nil, apperror.ErrPaymentsDisabled
	}
	if in.Amount <= 0 {
		return nil, apperror.Validation("сумма должна быть положительной")
	}
	if in.TravelTip != nil && *in.TravelTip < 0 {
		return nil, apperror.Validation("чаевые на дорогу не могут быть отрицательными")
	}

	job, err := s.jobs.GetByID(ctx, in.JobID)
	if err != nil {
		return nil, err
	}
	if job.JobGiverID != actor.ID {
		return nil, apperror.ErrForbidden
	}

	txnType := models.TransactionTypeJob
	tip := job.TravelTip
	switch job.Status {
	case models.JobStatusBidAccepted:
	case models.JobStatusInProgress:
		// доплата по ходу работ
		txnType = models.TransactionTypeAddOn
		tip = 0
	default:
		return nil, apperror.New(apperror.ErrCodeConflict, "оплата доступна после выбора исполнителя")
	}
	if in.TravelTip != nil {
		tip = *in.TravelTip
	}

	payer, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	fees := CalculateFees(in.Amount, tip, s.fees)
	orderID := fmt.Sprintf("order_%s_%d", job.ID, s.now().UnixMilli())

	gwOrder, err := s.gateway.CreateOrder(ctx, payments.OrderRequest{
		OrderID:       orderID,
		Amount:        fees.TotalPaidByGiver,
		Currency:      "INR",
		CustomerID:    payer.ID.String(),
		CustomerName:  payer.Name,
		CustomerEmail: payer.Email,
		Note:          "Payment for: " + job.Title,
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось создать платёж")
	}

	txn := &models.Transaction{
		JobID:             job.ID,
		JobTitle:          job.Title,
		PayerID:           actor.ID,
		PayeeID:           job.AwardedInstallerID,
		Type:              txnType,
		Amount:            models.RoundMoney(in.Amount),
		TravelTip:         models.RoundMoney(tip),
		Commission:        fees.Commission,
		JobGiverFee:       fees.JobGiverFee,
		PlatformFee:       fees.PlatformFee,
		TotalPaidByGiver:  fees.TotalPaidByGiver,
		PayoutToInstaller: fees.PayoutToInstaller,
		Status:            models.TransactionStatusInitiated,
		GatewayOrderID:    &gwOrder.OrderID,
	}
	if err := s.txns.Create(ctx, txn); err != nil {
		return nil, err
	}

	return &PaymentOrder{OrderID: gwOrder.OrderID, OrderToken: gwOrder.SessionID, Transaction: txn}, nil
}

// VerifyPayment сверяет статус заказа в шлюзе и, если он оплачен, переводит
// транзакцию в funded, а заказ в in_progress с новым кодом начала работ.
func (s *PaymentService) VerifyPayment(ctx context.Context, actor models.Actor, orderID string) (job *models.Job, txn *models.Transaction, err error) {
	defer func() { s.metrics.RecordPayment("verify", err) }()

	// чужие заказы отсекаем до обращения к шлюзу
	pending, err := s.txns.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if pending.PayerID != actor.ID && !actor.Roles.IsStaff() {
		return nil, nil, apperror.ErrForbidden
	}

	status, err := s.gateway.VerifyPayment(ctx, orderID)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось проверить платёж")
	}
	if !status.Paid {
		return nil, nil, apperror.New(apperror.ErrCodeConflict, fmt.Sprintf("платёж не завершён: %s", status.Status))
	}

	otp, err := s.otp()
	if err != nil {
		return nil, nil, apperror.Internal(err)
	}

	job, txn, err = s.txns.MarkFunded(ctx, orderID, actorIDPtr(actor), func(job *models.Job, txn *models.Transaction) error {
		if txn.PayerID != actor.ID && !actor.Roles.IsStaff() {
			return apperror.ErrForbidden
		}
		if txn.Status == models.TransactionStatusFunded {
			return nil
		}
		if !txn.Status.CanTransitionTo(models.TransactionStatusFunded) {
			return apperror.New(apperror.ErrCodeConflict, "транзакция уже обработана")
		}
		now := s.now()
		txn.Status = models.TransactionStatusFunded
		txn.FundedAt = &now
		if txn.Type == models.TransactionTypeJob {
			return startEscrow(job, otp)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.events.LogBusinessEvent(ctx, models.EventPaymentFunded, actorIDPtr(actor), job.ID.String(), map[string]interface{}{
		"order_id": orderID,
		"amount":   txn.TotalPaidByGiver,
	})
	s.metrics.RecordJobTransition(string(job.Status))
	return job, txn, nil
}

type FundJobInput struct {
	JobID       uuid.UUID
	Amount      float64
	PlatformFee float64
	// ChangedBy пусто при запуске из CLI.
	ChangedBy *uuid.UUID
}

// FundJob атомарно создаёт транзакцию funded и переводит заказ в in_progress с новым кодом.
// Выплата установщику равна amount - platformFee, заказчик платит amount.
func (s *PaymentService) FundJob(ctx context.Context, in FundJobInput) (job *models.Job, txn *models.Transaction, err error) {
	defer func() { s.metrics.RecordPayment("fund", err) }()

	if in.Amount <= 0 {
		return nil, nil, apperror.Validation("сумма должна быть положительной")
	}
	if in.PlatformFee < 0 || in.PlatformFee > in.Amount {
		return nil, nil, apperror.Validation("комиссия должна быть в диапазоне от 0 до суммы")
	}

	otp, err := s.otp()
	if err != nil {
		return nil, nil, apperror.Internal(err)
	}

	now := s.now()
	amountC, feeC := toCents(in.Amount), toCents(in.PlatformFee)
	txn = &models.Transaction{
		JobID:             in.JobID,
		Type:              models.TransactionTypeJob,
		Amount:            fromCents(amountC),
		Commission:        fromCents(feeC),
		PlatformFee:       fromCents(feeC),
		TotalPaidByGiver:  fromCents(amountC),
		PayoutToInstaller: fromCents(amountC - feeC),
		Status:            models.TransactionStatusFunded,
		FundedAt:          &now,
	}

	job, err = s.txns.FundJob(ctx, txn, in.ChangedBy, func(job *models.Job) error {
		txn.JobTitle = job.Title
		txn.PayerID = job.JobGiverID
		txn.PayeeID = job.AwardedInstallerID
		return startEscrow(job, otp)
	})
	if err != nil {
		return nil, nil, err
	}

	s.events.LogBusinessEvent(ctx, models.EventPaymentFunded, in.ChangedBy, job.ID.String(), map[string]interface{}{
		"transaction_id": txn.ID.String(),
		"amount":         txn.Amount,
		"platform_fee":   txn.PlatformFee,
	})
	s.metrics.RecordJobTransition(string(job.Status))
	return job, txn, nil
}

// startEscrow переводит заказ из bid_accepted (через funded) в in_progress и выдаёт код.
func startEscrow(job *models.Job, otp string) error {
	if job.Status == models.JobStatusBidAccepted {
		if err := transition(job, models.JobStatusFunded); err != nil {
			return err
		}
	}
	if err := transition(job, models.JobStatusInProgress); err != nil {
		return err
	}
	job.StartOTP = &otp
	job.FundingDeadline = nil
	return nil
}

var settleableStatuses = []models.TransactionStatus{
	models.TransactionStatusFunded,
	models.TransactionStatusDisputed,
}

// ReleaseFunds выплачивает установщику основную сумму и все оплаченные доплаты.
// Выплаты в шлюзе выполняются внутри транзакции БД: при ошибке шлюза статусы не меняются.
func (s *PaymentService) ReleaseFunds(ctx context.Context, actor models.Actor, jobID uuid.UUID) (job *models.Job, txns []models.Transaction, err error) {
	defer func() { s.metrics.RecordPayment("release", err) }()

	current, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if current.AwardedInstallerID == nil {
		return nil, nil, apperror.New(apperror.ErrCodeConflict, "у заказа нет исполнителя")
	}
	installer, err := s.users.GetByID(ctx, *current.AwardedInstallerID)
	if err != nil {
		return nil, nil, err
	}
	if installer.BeneficiaryID == nil || strings.TrimSpace(*installer.BeneficiaryID) == "" {
		return nil, nil, apperror.Validation("установщик не указал реквизиты для выплаты")
	}
	beneficiary := *installer.BeneficiaryID

	job, txns, err = s.txns.Settle(ctx, jobID, settleableStatuses, actorIDPtr(actor), "payment released", func(job *models.Job, open []*models.Transaction) error {
		if job.JobGiverID != actor.ID && !actor.Roles.IsStaff() {
			return apperror.ErrForbidden
		}
		if job.Status == models.JobStatusDisputed && !actor.Roles.IsStaff() {
			return apperror.New(apperror.ErrCodeForbidden, "по заказу открыт спор, решение принимает поддержка")
		}
		if err := transition(job, models.JobStatusCompleted); err != nil {
			return err
		}

		now := s.now()
		for _, txn := range open {
			if !txn.Status.CanTransitionTo(models.TransactionStatusReleased) {
				return apperror.New(apperror.ErrCodeConflict, "транзакция уже закрыта")
			}
			remarks := "Payout for job: " + job.Title
			if txn.Type == models.TransactionTypeAddOn {
				remarks = "Add-on payout for job: " + job.Title
			}
			// Идентификатор перевода привязан к транзакции: повтор не создаст второй выплаты.
			transfer, err := s.gateway.CreatePayout(ctx, payments.PayoutRequest{
				TransferID:    "transfer_" + txn.ID.String(),
				BeneficiaryID: beneficiary,
				Amount:        txn.PayoutToInstaller,
				Remarks:       remarks,
			})
			if err != nil {
				return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось выполнить выплату")
			}

			txn.Status = models.TransactionStatusReleased
			txn.PayoutTransferID = &transfer.TransferID
			txn.ReleasedAt = &now
		}
		job.PaymentReleasedAt = &now
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	for _, txn := range txns {
		s.events.LogBusinessEvent(ctx, models.EventPaymentReleased, actorIDPtr(actor), job.ID.String(), map[string]interface{}{
			"transaction_id": txn.ID.String(),
			"type":           string(txn.Type),
			"payout":         txn.PayoutToInstaller,
		})
	}
	s.metrics.RecordJobTransition(string(job.Status))
	return job, txns, nil
}

// RefundJob возвращает заказчику основную сумму и доплаты и отменяет заказ.
// Заказчик может вернуть деньги только до начала работ, персонал в любой момент.
func (s *PaymentService) RefundJob(ctx context.Context, actor models.Actor, jobID uuid.UUID, reason string) (job *models.Job, txns []models.Transaction, err error) {
	defer func() { s.metrics.RecordPayment("refund", err) }()

	if err := validation.ValidateReason(reason); err != nil {
		return nil, nil, validationErr(err)
	}
	reason = strings.TrimSpace(reason)

	job, txns, err = s.txns.Settle(ctx, jobID, settleableStatuses, actorIDPtr(actor), reason, func(job *models.Job, open []*models.Transaction) error {
		staff := actor.Roles.IsStaff()
		if job.JobGiverID != actor.ID && !staff {
			return apperror.ErrForbidden
		}
		if !staff && (job.WorkStartedAt != nil || job.Status == models.JobStatusDisputed) {
			return apperror.New(apperror.ErrCodeForbidden, "работы уже начаты, для возврата откройте спор")
		}
		if err := transition(job, models.JobStatusCancelled); err != nil {
			return err
		}

		now := s.now()
		for _, txn := range open {
			if !txn.Status.CanTransitionTo(models.TransactionStatusRefunded) {
				return apperror.New(apperror.ErrCodeConflict, "транзакция уже закрыта")
			}
			refundID := "refund_" + txn.ID.String()
			// Без заказа в шлюзе (служебное пополнение) возвращать через шлюз нечего.
			if txn.GatewayOrderID != nil {
				transfer, err := s.gateway.Refund(ctx, payments.RefundRequest{
					RefundID: refundID,
					OrderID:  *txn.GatewayOrderID,
					Amount:   txn.TotalPaidByGiver,
					Note:     reason,
				})
				if err != nil {
					return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось выполнить возврат")
				}
				refundID = transfer.TransferID
			}

			txn.Status = models.TransactionStatusRefunded
			txn.RefundTransferID = &refundID
			txn.RefundedAt = &now
		}
		job.CancellationReason = &reason
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	for _, txn := range txns {
		logger.Log.WithFields(logrus.Fields{
			"job_id":         jobID,
			"transaction_id": txn.ID,
			"amount":         txn.TotalPaidByGiver,
		}).Info("эскроу возвращён заказчику")
		s.events.LogBusinessEvent(ctx, models.EventPaymentRefunded, actorIDPtr(actor), job.ID.String(), map[string]interface{}{
			"transaction_id": txn.ID.String(),
			"reason":         reason,
		})
	}
	s.metrics.RecordJobTransition(string(job.Status))
	return job, txns, nil
}

// TransactionHistory транзакции, где пользователь плательщик или получатель, новые сверху.
func (s *PaymentService) TransactionHistory(ctx context.Context, actor models.Actor) ([]models.Transaction, error) {
	paid, err := s.txns.ListByPayer(ctx, actor.ID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	received, err := s.txns.ListByPayee(ctx, actor.ID)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	seen := make(map[uuid.UUID]bool, len(paid)+len(received))
	out := make([]models.Transaction, 0, len(paid)+len(received))
	for _, list := range [][]models.Transaction{paid, received} {
		for _, t := range list {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
