package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/team4job/marketplace-backend/internal/dto"
	"github.com/team4job/marketplace-backend/internal/http/handlers/common"
	"github.com/team4job/marketplace-backend/internal/service"
)

type ReputationHandler struct {
	reputation ReputationUseCases
}

func NewReputationHandler(reputation ReputationUseCases) *ReputationHandler {
	return &ReputationHandler{reputation: reputation}
}

// DeductPoints POST /api/reputation/deduct
func (h *ReputationHandler) DeductPoints(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.DeductReputationRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}
	if err := common.RequireID(req.UserID, "userId"); err != nil {
		common.RespondError(c, err)
		return
	}

	points, err := h.reputation.DeductPoints(c.Request.Context(), actor, service.DeductPointsInput{
		UserID: req.UserID,
		Points: req.Points,
		Reason: req.Reason,
		JobID:  req.JobID,
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, dto.ReputationResponse{UserID: req.UserID, Points: points})
}

// Reapply POST /api/jobs/:id/reapply
func (h *ReputationHandler) Reapply(c *gin.Context) {
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

	points, err := h.reputation.Reapply(c.Request.Context(), actor, jobID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, dto.ReputationResponse{UserID: actor.ID, Points: points})
}
