package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/team4job/marketplace-backend/internal/dto"
	"github.com/team4job/marketplace-backend/internal/http/handlers/common"
	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/service"
)

type JobHandler struct {
	jobs JobUseCases
}

func NewJobHandler(jobs JobUseCases) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// ListOpenJobs GET /api/jobs
func (h *JobHandler) ListOpenJobs(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	jobs, err := h.jobs.ListOpenJobs(c.Request.Context(), c.Query("category"), limit, offset)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, dto.NewJobListResponse(jobs, common.OptionalActor(c)))
}

// GetJob GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	viewer := common.OptionalActor(c)
	job, err := h.jobs.GetJob(c.Request.Context(), viewer, jobID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, dto.NewJobResponse(job, viewer))
}

// CreateJob POST /api/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.CreateJobRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}

	job, err := h.jobs.CreateJob(c.Request.Context(), actor, service.CreateJobInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Skills:      req.Skills,
		Location:    req.Location,
		PriceMin:    req.PriceMin,
		PriceMax:    req.PriceMax,
		TravelTip:   req.TravelTip,
		IsUrgent:    req.IsUrgent,
		Deadline:    req.Deadline,
		Publish:     req.Publish,
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondCreated(c, dto.NewJobResponse(job, &actor))
}

// ListMyJobs GET /api/jobs/my?status=
func (h *JobHandler) ListMyJobs(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	jobs, err := h.jobs.ListMyJobs(c.Request.Context(), actor, c.Query("status"), limit, offset)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, dto.NewJobListResponse(jobs, &actor))
}

// PublishJob POST /api/jobs/:id/publish
func (h *JobHandler) PublishJob(c *gin.Context) {
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

	job, err := h.jobs.PublishJob(c.Request.Context(), actor, jobID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, dto.NewJobResponse(job, &actor))
}

// AwardBid POST /api/jobs/:id/award
func (h *JobHandler) AwardBid(c *gin.Context) {
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

	var req dto.AwardBidRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}
	if err := common.RequireID(req.BidID, "bidId"); err != nil {
		common.RespondError(c, err)
		return
	}

	job, err := h.jobs.AwardBid(c.Request.Context(), actor, jobID, req.BidID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, dto.NewJobResponse(job, &actor))
}

// StartWork POST /api/jobs/start-work
// Установщик вводит код, который заказчик сообщает ему на объекте.
func (h *JobHandler) StartWork(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.StartWorkRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}
	if err := common.RequireID(req.JobID, "jobId"); err != nil {
		common.RespondError(c, err)
		return
	}

	job, err := h.jobs.StartWork(c.Request.Context(), actor, req.JobID, req.OTP)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, dto.NewJobResponse(job, &actor))
}

// SubmitWork POST /api/jobs/:id/submit
func (h *JobHandler) SubmitWork(c *gin.Context) {
	h.transition(c, h.jobs.SubmitWork)
}

// ConfirmCompletion POST /api/jobs/:id/confirm
func (h *JobHandler) ConfirmCompletion(c *gin.Context) {
	h.transition(c, h.jobs.ConfirmCompletion)
}

// DeclineOffer POST /api/jobs/:id/decline
func (h *JobHandler) DeclineOffer(c *gin.Context) {
	h.transition(c, h.jobs.DeclineOffer)
}

// CancelJob POST /api/jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
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
	// тело необязательно
	_ = c.ShouldBindJSON(&req)

	job, err := h.jobs.CancelJob(c.Request.Context(), actor, jobID, req.Reason)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, dto.NewJobResponse(job, &actor))
}

// History GET /api/jobs/:id/history
func (h *JobHandler) History(c *gin.Context) {
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

	history, err := h.jobs.History(c.Request.Context(), actor, jobID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, history)
}

// ToggleBookmark POST /api/users/me/bookmarks/:jobId
func (h *JobHandler) ToggleBookmark(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	jobID, err := common.ParseUUIDParam(c, "jobId")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	bookmarked, err := h.jobs.ToggleBookmark(c.Request.Context(), actor, jobID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, dto.BookmarkResponse{JobID: jobID, Bookmarked: bookmarked})
}

type jobAction func(ctx context.Context, actor models.Actor, jobID uuid.UUID) (*models.Job, error)

// transition общий обработчик переходов без тела запроса.
func (h *JobHandler) transition(c *gin.Context, action jobAction) {
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

	job, err := action(c.Request.Context(), actor, jobID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, dto.NewJobResponse(job, &actor))
}
