package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/team4job/marketplace-backend/internal/dto"
	"github.com/team4job/marketplace-backend/internal/http/handlers/common"
	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
	"github.com/team4job/marketplace-backend/internal/service"
)

type DisputeHandler struct {
	svc DisputeUseCases
}

func NewDisputeHandler(s DisputeUseCases) *DisputeHandler {
	return &DisputeHandler{svc: s}
}

// CreateDispute POST /api/disputes
func (h *DisputeHandler) CreateDispute(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.CreateDisputeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}
	if err := common.RequireID(req.JobID, "jobId"); err != nil {
		common.RespondError(c, err)
		return
	}

	dispute, err := h.svc.CreateDispute(c.Request.Context(), actor, service.CreateDisputeInput{
		JobID:    req.JobID,
		Category: req.Category,
		Reason:   req.Reason,
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondCreated(c, dto.NewDisputeResponse(dispute))
}

// ListDisputes GET /api/disputes
// Персонал видит очередь по статусу, остальные только свои споры.
func (h *DisputeHandler) ListDisputes(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var items []models.Dispute
	if actor.Roles.IsStaff() && c.Query("scope") != "mine" {
		status := models.DisputeStatus(c.Query("status"))
		if status != "" && !isDisputeStatus(status) {
			common.RespondError(c, apperror.Validation("неизвестный статус спора: %s", status))
			return
		}
		limit, offset := common.GetPagination(c)
		items, err = h.svc.ListQueue(c.Request.Context(), actor, status, limit, offset)
	} else {
		items, err = h.svc.ListMyDisputes(c.Request.Context(), actor)
	}
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, dto.NewDisputeListResponse(items))
}

// GetDispute GET /api/disputes/:id
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	dispute, err := h.svc.GetDispute(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, dto.NewDisputeResponse(dispute))
}

// AddMessage POST /api/disputes/:id/messages
func (h *DisputeHandler) AddMessage(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.DisputeMessageRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}

	dispute, err := h.svc.AddMessage(c.Request.Context(), actor, id, req.Content)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondCreated(c, dto.NewDisputeResponse(dispute))
}

// ResolveDispute POST /api/disputes/:id/resolve
func (h *DisputeHandler) ResolveDispute(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.ResolveDisputeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}

	dispute, err := h.svc.ResolveDispute(c.Request.Context(), actor, id, req.Resolution)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, dto.NewDisputeResponse(dispute))
}

func isDisputeStatus(s models.DisputeStatus) bool {
	switch s {
	case models.DisputeStatusOpen, models.DisputeStatusUnderReview, models.DisputeStatusResolved:
		return true
	}
	return false
}
