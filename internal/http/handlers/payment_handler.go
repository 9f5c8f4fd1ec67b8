package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/team4job/marketplace-backend/internal/dto"
	"github.com/team4job/marketplace-backend/internal/http/handlers/common"
	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
	"github.com/team4job/marketplace-backend/internal/service"
)

type PaymentHandler struct {
	payments PaymentUseCases
}

func NewPaymentHandler(payments PaymentUseCases) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// CreateOrder POST /api/payments/orders
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.CreatePaymentOrderRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}
	if err := common.RequireID(req.JobID, "jobId"); err != nil {
		common.RespondError(c, err)
		return
	}

	order, err := h.payments.CreatePaymentOrder(c.Request.Context(), actor, service.CreateOrderInput{
		JobID:     req.JobID,
		Amount:    req.Amount,
		TravelTip: req.TravelTip,
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondCreated(c, order)
}

// VerifyPayment POST /api/payments/orders/:orderId/verify
// Клиент вызывает после возврата со страницы оплаты.
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	orderID := c.Param("orderId")
	if orderID == "" {
		common.RespondError(c, apperror.New(apperror.ErrCodeBadRequest, "параметр orderId отсутствует"))
		return
	}

	job, txn, err := h.payments.VerifyPayment(c.Request.Context(), actor, orderID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, escrowResponse(job, txn, &actor))
}

// ReleaseFunds POST /api/payments/jobs/:id/release
func (h *PaymentHandler) ReleaseFunds(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	job, txns, err := h.payments.ReleaseFunds(c.Request.Context(), actor, jobID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, settleResponse(job, txns, &actor))
}

// RefundJob POST /api/payments/jobs/:id/refund
func (h *PaymentHandler) RefundJob(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.ReasonRequest
	_ = c.ShouldBindJSON(&req)

	job, txns, err := h.payments.RefundJob(c.Request.Context(), actor, jobID, req.Reason)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, settleResponse(job, txns, &actor))
}

// ListTransactions GET /api/payments/transactions
func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	txns, err := h.payments.TransactionHistory(c.Request.Context(), actor)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, txns)
}

func escrowResponse(job *models.Job, txn *models.Transaction, viewer *models.Actor) dto.EscrowResponse {
	return dto.EscrowResponse{Job: dto.NewJobResponse(job, viewer), Transaction: txn}
}

func settleResponse(job *models.Job, txns []models.Transaction, viewer *models.Actor) dto.EscrowResponse {
	resp := dto.EscrowResponse{Job: dto.NewJobResponse(job, viewer), Transactions: txns}
	for i := range txns {
		if txns[i].Type == models.TransactionTypeJob {
			resp.Transaction = &txns[i]
			break
		}
	}
	return resp
}
