package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/team4job/marketplace-backend/internal/dto"
	"github.com/team4job/marketplace-backend/internal/http/handlers/common"
	"github.com/team4job/marketplace-backend/internal/logger"
	"github.com/team4job/marketplace-backend/internal/service"
)

// E2EHandler служебные маршруты для сквозных тестов. Регистрируется только в development.
type E2EHandler struct {
	payments PaymentUseCases
}

func NewE2EHandler(payments PaymentUseCases) *E2EHandler {
	return &E2EHandler{payments: payments}
}

// FundJob POST /api/e2e/fund-job
// Пополняет эскроу без шлюза, как это делает marketctl fund-job.
func (h *E2EHandler) FundJob(c *gin.Context) {
	var req dto.FundJobRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}
	if err := common.RequireID(req.JobID, "jobId"); err != nil {
		common.RespondError(c, err)
		return
	}

	job, txn, err := h.payments.FundJob(c.Request.Context(), service.FundJobInput{
		JobID:       req.JobID,
		Amount:      req.Amount,
		PlatformFee: req.PlatformFee,
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}

	logger.Log.WithFields(logrus.Fields{
		"job_id":         job.ID,
		"transaction_id": txn.ID,
		"amount":         txn.TotalPaidByGiver,
	}).Info("e2e: job funded")

	resp := dto.NewJobResponse(job, nil)
	// сквозному тесту нужен код, чтобы начать работы от имени установщика
	resp.StartOTP = job.StartOTP
	common.RespondOK(c, dto.EscrowResponse{Job: resp, Transaction: txn})
}
