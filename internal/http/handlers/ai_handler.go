package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/team4job/marketplace-backend/internal/dto"
	"github.com/team4job/marketplace-backend/internal/http/handlers/common"
)

type AIHandler struct {
	generator JobDescriptionGenerator
}

func NewAIHandler(generator JobDescriptionGenerator) *AIHandler {
	return &AIHandler{generator: generator}
}

// GenerateJobDescription POST /api/ai/job-description
func (h *AIHandler) GenerateJobDescription(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.JobDescriptionRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}

	out, err := h.generator.GenerateJobDescription(c.Request.Context(), actor, req.JobTitle)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, out)
}
