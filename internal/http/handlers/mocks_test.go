package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/team4job/marketplace-backend/internal/ai"
	"github.com/team4job/marketplace-backend/internal/http/middleware"
	"github.com/team4job/marketplace-backend/internal/logger"
	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Discard()
}

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	env := decodeEnvelope(t, w)
	require.True(t, env.Success, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, out))
}

// withActor подставляет участника так же, как AuthMiddleware.
func withActor(actor models.Actor) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, actor.ID)
		c.Set(middleware.ContextActorKey, actor)
	}
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch v := body.(type) {
	case nil:
	case string:
		buf.WriteString(v)
	default:
		_ = json.NewEncoder(&buf).Encode(v)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jobGiver() models.Actor {
	return models.Actor{ID: uuid.New(), Roles: models.Roles{models.RoleJobGiver}}
}

func installer() models.Actor {
	return models.Actor{ID: uuid.New(), Roles: models.Roles{models.RoleInstaller}}
}

func supportAgent() models.Actor {
	return models.Actor{ID: uuid.New(), Roles: models.Roles{models.RoleSupportTeam}}
}

func jobOrNil(args mock.Arguments) *models.Job {
	job, _ := args.Get(0).(*models.Job)
	return job
}

type mockJobs struct{ mock.Mock }

func (m *mockJobs) CreateJob(ctx context.Context, actor models.Actor, in service.CreateJobInput) (*models.Job, error) {
	args := m.Called(actor, in)
	return jobOrNil(args), args.Error(1)
}

func (m *mockJobs) PublishJob(ctx context.Context, actor models.Actor, jobID uuid.UUID) (*models.Job, error) {
	args := m.Called(actor, jobID)
	return jobOrNil(args), args.Error(1)
}

func (m *mockJobs) GetJob(ctx context.Context, viewer *models.Actor, jobID uuid.UUID) (*models.Job, error) {
	args := m.Called(viewer, jobID)
	return jobOrNil(args), args.Error(1)
}

func (m *mockJobs) ListOpenJobs(ctx context.Context, category string, limit, offset int) ([]models.Job, error) {
	args := m.Called(category, limit, offset)
	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *mockJobs) ListMyJobs(ctx context.Context, actor models.Actor, status string, limit, offset int) ([]models.Job, error) {
	args := m.Called(actor, status, limit, offset)
	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *mockJobs) AwardBid(ctx context.Context, actor models.Actor, jobID, bidID uuid.UUID) (*models.Job, error) {
	args := m.Called(actor, jobID, bidID)
	return jobOrNil(args), args.Error(1)
}

func (m *mockJobs) StartWork(ctx context.Context, actor models.Actor, jobID uuid.UUID, otp string) (*models.Job, error) {
	args := m.Called(actor, jobID, otp)
	return jobOrNil(args), args.Error(1)
}

func (m *mockJobs) SubmitWork(ctx context.Context, actor models.Actor, jobID uuid.UUID) (*models.Job, error) {
	args := m.Called(actor, jobID)
	return jobOrNil(args), args.Error(1)
}

func (m *mockJobs) ConfirmCompletion(ctx context.Context, actor models.Actor, jobID uuid.UUID) (*models.Job, error) {
	args := m.Called(actor, jobID)
	return jobOrNil(args), args.Error(1)
}

func (m *mockJobs) DeclineOffer(ctx context.Context, actor models.Actor, jobID uuid.UUID) (*models.Job, error) {
	args := m.Called(actor, jobID)
	return jobOrNil(args), args.Error(1)
}

func (m *mockJobs) CancelJob(ctx context.Context, actor models.Actor, jobID uuid.UUID, reason string) (*models.Job, error) {
	args := m.Called(actor, jobID, reason)
	return jobOrNil(args), args.Error(1)
}

func (m *mockJobs) ToggleBookmark(ctx context.Context, actor models.Actor, jobID uuid.UUID) (bool, error) {
	args := m.Called(actor, jobID)
	return args.Bool(0), args.Error(1)
}

func (m *mockJobs) AddAttachment(ctx context.Context, actor models.Actor, att *models.JobAttachment) error {
	return m.Called(actor, att).Error(0)
}

func (m *mockJobs) ListAttachments(ctx context.Context, actor models.Actor, jobID uuid.UUID) ([]models.JobAttachment, error) {
	args := m.Called(actor, jobID)
	list, _ := args.Get(0).([]models.JobAttachment)
	return list, args.Error(1)
}

func (m *mockJobs) History(ctx context.Context, actor models.Actor, jobID uuid.UUID) ([]models.JobStatusChange, error) {
	args := m.Called(actor, jobID)
	list, _ := args.Get(0).([]models.JobStatusChange)
	return list, args.Error(1)
}

type mockBids struct{ mock.Mock }

func (m *mockBids) PlaceBid(ctx context.Context, actor models.Actor, jobID uuid.UUID, amount float64, coverLetter *string) (*models.Bid, error) {
	args := m.Called(actor, jobID, amount, coverLetter)
	bid, _ := args.Get(0).(*models.Bid)
	return bid, args.Error(1)
}

func (m *mockBids) WithdrawBid(ctx context.Context, actor models.Actor, jobID, bidID uuid.UUID) error {
	return m.Called(actor, jobID, bidID).Error(0)
}

func (m *mockBids) ListBids(ctx context.Context, actor models.Actor, jobID uuid.UUID) ([]models.Bid, error) {
	args := m.Called(actor, jobID)
	bids, _ := args.Get(0).([]models.Bid)
	return bids, args.Error(1)
}

func (m *mockBids) ListMyBids(ctx context.Context, actor models.Actor, limit, offset int) ([]models.Bid, error) {
	args := m.Called(actor, limit, offset)
	bids, _ := args.Get(0).([]models.Bid)
	return bids, args.Error(1)
}

type mockPayments struct{ mock.Mock }

func escrowResult(args mock.Arguments) (*models.Job, *models.Transaction, error) {
	job, _ := args.Get(0).(*models.Job)
	txn, _ := args.Get(1).(*models.Transaction)
	return job, txn, args.Error(2)
}

func settleResult(args mock.Arguments) (*models.Job, []models.Transaction, error) {
	job, _ := args.Get(0).(*models.Job)
	txns, _ := args.Get(1).([]models.Transaction)
	return job, txns, args.Error(2)
}

func (m *mockPayments) CreatePaymentOrder(ctx context.Context, actor models.Actor, in service.CreateOrderInput) (*service.PaymentOrder, error) {
	args := m.Called(actor, in)
	order, _ := args.Get(0).(*service.PaymentOrder)
	return order, args.Error(1)
}

func (m *mockPayments) VerifyPayment(ctx context.Context, actor models.Actor, orderID string) (*models.Job, *models.Transaction, error) {
	return escrowResult(m.Called(actor, orderID))
}

func (m *mockPayments) FundJob(ctx context.Context, in service.FundJobInput) (*models.Job, *models.Transaction, error) {
	return escrowResult(m.Called(in))
}

func (m *mockPayments) ReleaseFunds(ctx context.Context, actor models.Actor, jobID uuid.UUID) (*models.Job, []models.Transaction, error) {
	return settleResult(m.Called(actor, jobID))
}

func (m *mockPayments) RefundJob(ctx context.Context, actor models.Actor, jobID uuid.UUID, reason string) (*models.Job, []models.Transaction, error) {
	return settleResult(m.Called(actor, jobID, reason))
}

func (m *mockPayments) TransactionHistory(ctx context.Context, actor models.Actor) ([]models.Transaction, error) {
	args := m.Called(actor)
	txns, _ := args.Get(0).([]models.Transaction)
	return txns, args.Error(1)
}

type mockDisputes struct{ mock.Mock }

func disputeOrNil(args mock.Arguments) *models.Dispute {
	d, _ := args.Get(0).(*models.Dispute)
	return d
}

func (m *mockDisputes) CreateDispute(ctx context.Context, actor models.Actor, in service.CreateDisputeInput) (*models.Dispute, error) {
	args := m.Called(actor, in)
	return disputeOrNil(args), args.Error(1)
}

func (m *mockDisputes) GetDispute(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Dispute, error) {
	args := m.Called(actor, id)
	return disputeOrNil(args), args.Error(1)
}

func (m *mockDisputes) ListMyDisputes(ctx context.Context, actor models.Actor) ([]models.Dispute, error) {
	args := m.Called(actor)
	items, _ := args.Get(0).([]models.Dispute)
	return items, args.Error(1)
}

func (m *mockDisputes) ListQueue(ctx context.Context, actor models.Actor, status models.DisputeStatus, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(actor, status, limit, offset)
	items, _ := args.Get(0).([]models.Dispute)
	return items, args.Error(1)
}

func (m *mockDisputes) AddMessage(ctx context.Context, actor models.Actor, id uuid.UUID, content string) (*models.Dispute, error) {
	args := m.Called(actor, id, content)
	return disputeOrNil(args), args.Error(1)
}

func (m *mockDisputes) ResolveDispute(ctx context.Context, actor models.Actor, id uuid.UUID, resolution string) (*models.Dispute, error) {
	args := m.Called(actor, id, resolution)
	return disputeOrNil(args), args.Error(1)
}

type mockMonitor struct{ mock.Mock }

func (m *mockMonitor) Run(ctx context.Context, now time.Time) ([]service.MonitorAlert, error) {
	args := m.Called(now)
	alerts, _ := args.Get(0).([]service.MonitorAlert)
	return alerts, args.Error(1)
}

type mockFlags struct{ mock.Mock }

func (m *mockFlags) List(ctx context.Context) ([]models.FeatureFlag, error) {
	args := m.Called()
	flags, _ := args.Get(0).([]models.FeatureFlag)
	return flags, args.Error(1)
}

func (m *mockFlags) Set(ctx context.Context, name string, enabled bool, description string) (*models.FeatureFlag, error) {
	args := m.Called(name, enabled, description)
	flag, _ := args.Get(0).(*models.FeatureFlag)
	return flag, args.Error(1)
}

type mockLogs struct{ mock.Mock }

func (m *mockLogs) ListSystemLogs(ctx context.Context, level string, limit int) ([]models.SystemLog, error) {
	args := m.Called(level, limit)
	logs, _ := args.Get(0).([]models.SystemLog)
	return logs, args.Error(1)
}

type mockReputation struct{ mock.Mock }

func (m *mockReputation) DeductPoints(ctx context.Context, actor models.Actor, in service.DeductPointsInput) (int, error) {
	args := m.Called(actor, in)
	return args.Int(0), args.Error(1)
}

func (m *mockReputation) Reapply(ctx context.Context, actor models.Actor, jobID uuid.UUID) (int, error) {
	args := m.Called(actor, jobID)
	return args.Int(0), args.Error(1)
}

type mockGenerator struct{ mock.Mock }

func (m *mockGenerator) GenerateJobDescription(ctx context.Context, actor models.Actor, jobTitle string) (*ai.JobDescription, error) {
	args := m.Called(actor, jobTitle)
	out, _ := args.Get(0).(*ai.JobDescription)
	return out, args.Error(1)
}

type mockEvents struct{ mock.Mock }

func (m *mockEvents) LogBusinessEvent(ctx context.Context, eventType models.BusinessEventType, actorID *uuid.UUID, entityID string, metadata map[string]interface{}) {
	m.Called(eventType, entityID, metadata)
}
