package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/team4job/marketplace-backend/internal/dto"
	"github.com/team4job/marketplace-backend/internal/http/handlers/common"
)

type BidHandler struct {
	bids BidUseCases
}

func NewBidHandler(bids BidUseCases) *BidHandler {
	return &BidHandler{bids: bids}
}

// PlaceBid POST /api/jobs/:id/bids
func (h *BidHandler) PlaceBid(c *gin.Context) {
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

	var req dto.PlaceBidRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}

	bid, err := h.bids.PlaceBid(c.Request.Context(), actor, jobID, req.Amount, req.CoverLetter)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondCreated(c, bid)
}

// ListBids GET /api/jobs/:id/bids
func (h *BidHandler) ListBids(c *gin.Context) {
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

	bids, err := h.bids.ListBids(c.Request.Context(), actor, jobID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, bids)
}

// WithdrawBid DELETE /api/jobs/:id/bids/:bidId
func (h *BidHandler) WithdrawBid(c *gin.Context) {
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
	bidID, err := common.ParseUUIDParam(c, "bidId")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	if err := h.bids.WithdrawBid(c.Request.Context(), actor, jobID, bidID); err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.Envelope{Success: true})
}

// ListMyBids GET /api/bids/my
func (h *BidHandler) ListMyBids(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	bids, err := h.bids.ListMyBids(c.Request.Context(), actor, limit, offset)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, bids)
}
