package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
	"github.com/team4job/marketplace-backend/internal/repository"
	"github.com/team4job/marketplace-backend/internal/service"
)

func TestBidHandler_PlaceBid(t *testing.T) {
	actor := installer()
	jobID := uuid.New()

	bids := &mockBids{}
	bids.On("PlaceBid", actor, jobID, 4500.0, mock.AnythingOfType("*string")).
		Return(&models.Bid{ID: uuid.New(), JobID: jobID, InstallerID: actor.ID, Amount: 4500, Status: models.BidStatusBidded}, nil).Once()
	bids.On("PlaceBid", actor, jobID, 4500.0, mock.Anything).Return(nil, repository.ErrDuplicateBid).Once()

	r := gin.New()
	r.POST("/jobs/:id/bids", withActor(actor), NewBidHandler(bids).PlaceBid)

	w := doJSON(r, http.MethodPost, "/jobs/"+jobID.String()+"/bids", map[string]interface{}{"amount": 4500, "coverLetter": "5 years of Hikvision installs"})
	require.Equal(t, http.StatusCreated, w.Code)
	var bid models.Bid
	decodeData(t, w, &bid)
	assert.Equal(t, models.BidStatusBidded, bid.Status)

	w = doJSON(r, http.MethodPost, "/jobs/"+jobID.String()+"/bids", map[string]interface{}{"amount": 4500})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, repository.ErrDuplicateBid.Message, decodeEnvelope(t, w).Error)

	w = doJSON(r, http.MethodPost, "/jobs/"+jobID.String()+"/bids", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	bids.AssertExpectations(t)
}

func TestBidHandler_WithdrawAndList(t *testing.T) {
	actor := installer()
	jobID, bidID := uuid.New(), uuid.New()

	bids := &mockBids{}
	bids.On("WithdrawBid", actor, jobID, bidID).Return(nil)
	bids.On("ListMyBids", actor, 20, 0).Return([]models.Bid{{ID: bidID}}, nil)

	h := NewBidHandler(bids)
	r := gin.New()
	r.Use(withActor(actor))
	r.DELETE("/jobs/:id/bids/:bidId", h.WithdrawBid)
	r.GET("/bids/my", h.ListMyBids)

	w := doJSON(r, http.MethodDelete, "/jobs/"+jobID.String()+"/bids/"+bidID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeEnvelope(t, w).Success)

	w = doJSON(r, http.MethodGet, "/bids/my", nil)
	var list []models.Bid
	decodeData(t, w, &list)
	assert.Len(t, list, 1)
}

func TestPaymentHandler_Unauthorized(t *testing.T) {
	h := NewPaymentHandler(nil)
	r := gin.New()
	r.POST("/payments/orders", h.CreateOrder)
	r.GET("/payments/transactions", h.ListTransactions)
	r.POST("/payments/jobs/:id/release", h.ReleaseFunds)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/payments/orders"},
		{http.MethodGet, "/payments/transactions"},
		{http.MethodPost, "/payments/jobs/" + uuid.NewString() + "/release"},
	} {
		w := doJSON(r, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.path)
	}
}

func TestPaymentHandler_CreateOrder(t *testing.T) {
	actor := jobGiver()
	jobID := uuid.New()
	tip := 150.0

	payments := &mockPayments{}
	payments.On("CreatePaymentOrder", actor, service.CreateOrderInput{JobID: jobID, Amount: 1000, TravelTip: &tip}).
		Return(&service.PaymentOrder{OrderID: "order_1", OrderToken: "session_1"}, nil)

	r := gin.New()
	r.POST("/payments/orders", withActor(actor), NewPaymentHandler(payments).CreateOrder)

	w := doJSON(r, http.MethodPost, "/payments/orders", map[string]interface{}{"jobId": jobID, "amount": 1000, "travelTip": 150})
	require.Equal(t, http.StatusCreated, w.Code)
	var order service.PaymentOrder
	decodeData(t, w, &order)
	assert.Equal(t, "session_1", order.OrderToken)

	w = doJSON(r, http.MethodPost, "/payments/orders", map[string]interface{}{"amount": 1000})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentHandler_CreateOrder_PaymentsDisabled(t *testing.T) {
	actor := jobGiver()
	payments := &mockPayments{}
	payments.On("CreatePaymentOrder", actor, mock.Anything).Return(nil, apperror.ErrPaymentsDisabled)

	r := gin.New()
	r.POST("/payments/orders", withActor(actor), NewPaymentHandler(payments).CreateOrder)
	w := doJSON(r, http.MethodPost, "/payments/orders", map[string]interface{}{"jobId": uuid.New(), "amount": 1000})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FEATURE_DISABLED", decodeEnvelope(t, w).Code)
}

func TestPaymentHandler_VerifyAndRelease(t *testing.T) {
	actor := jobGiver()
	job := fundedJob(actor.ID)
	txn := &models.Transaction{ID: uuid.New(), JobID: job.ID, Type: models.TransactionTypeJob, Status: models.TransactionStatusFunded, TotalPaidByGiver: 10200, PayoutToInstaller: 9500, PlatformFee: 700}
	addOn := models.Transaction{ID: uuid.New(), JobID: job.ID, Type: models.TransactionTypeAddOn, Status: models.TransactionStatusRefunded, TotalPaidByGiver: 2040, PayoutToInstaller: 1900, PlatformFee: 140}
	refunded := *txn
	refunded.Status = models.TransactionStatusRefunded

	payments := &mockPayments{}
	payments.On("VerifyPayment", actor, "order_1").Return(job, txn, nil)
	payments.On("ReleaseFunds", actor, job.ID).Return(nil, nil, apperror.ErrInvalidTransition)
	payments.On("RefundJob", actor, job.ID, "installer no-show").Return(job, []models.Transaction{refunded, addOn}, nil)

	h := NewPaymentHandler(payments)
	r := gin.New()
	r.Use(withActor(actor))
	r.POST("/payments/orders/:orderId/verify", h.VerifyPayment)
	r.POST("/payments/jobs/:id/release", h.ReleaseFunds)
	r.POST("/payments/jobs/:id/refund", h.RefundJob)

	w := doJSON(r, http.MethodPost, "/payments/orders/order_1/verify", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Job         map[string]interface{} `json:"job"`
		Transaction models.Transaction     `json:"transaction"`
	}
	decodeData(t, w, &data)
	assert.Equal(t, "482913", data.Job["startOtp"], "заказчик видит код после оплаты")
	assert.True(t, data.Transaction.Balanced())

	w = doJSON(r, http.MethodPost, "/payments/jobs/"+job.ID.String()+"/release", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(r, http.MethodPost, "/payments/jobs/"+job.ID.String()+"/refund", map[string]string{"reason": "installer no-show"})
	require.Equal(t, http.StatusOK, w.Code)
	var settled struct {
		Transaction  models.Transaction   `json:"transaction"`
		Transactions []models.Transaction `json:"transactions"`
	}
	decodeData(t, w, &settled)
	assert.Equal(t, txn.ID, settled.Transaction.ID, "основная транзакция выделена отдельно")
	assert.Len(t, settled.Transactions, 2, "доплата возвращается вместе с основной суммой")
	payments.AssertExpectations(t)
}

func TestE2EHandler_FundJob(t *testing.T) {
	job := fundedJob(uuid.New())
	txn := &models.Transaction{ID: uuid.New(), JobID: job.ID, Status: models.TransactionStatusFunded, TotalPaidByGiver: 10000, PayoutToInstaller: 10000}

	payments := &mockPayments{}
	payments.On("FundJob", service.FundJobInput{JobID: job.ID, Amount: 10000}).Return(job, txn, nil)

	r := gin.New()
	r.POST("/e2e/fund-job", NewE2EHandler(payments).FundJob)

	w := doJSON(r, http.MethodPost, "/e2e/fund-job", map[string]interface{}{"jobId": job.ID, "amount": 10000, "platformFee": 0})
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Job         map[string]interface{} `json:"job"`
		Transaction models.Transaction     `json:"transaction"`
	}
	decodeData(t, w, &data)
	assert.Equal(t, "In Progress", data.Job["statusLabel"])
	assert.Regexp(t, `^\d{6}$`, data.Job["startOtp"])
	assert.Equal(t, 10000.0, data.Transaction.PayoutToInstaller)
}
