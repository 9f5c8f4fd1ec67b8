package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateJobRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description" binding:"required"`
	Category    string    `json:"category"`
	Skills      []string  `json:"skills"`
	Location    string    `json:"location"`
	PriceMin    float64   `json:"priceMin"`
	PriceMax    float64   `json:"priceMax"`
	TravelTip   float64   `json:"travelTip"`
	IsUrgent    bool      `json:"isUrgent"`
	Deadline    time.Time `json:"deadline" binding:"required"`
	Publish     bool      `json:"publish"`
}

type AwardBidRequest struct {
	BidID uuid.UUID `json:"bidId"`
}

type StartWorkRequest struct {
	JobID uuid.UUID `json:"jobId"`
	OTP   string    `json:"otp" binding:"required"`
}

// ReasonRequest тело для отмены заказа и возврата средств.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

type PlaceBidRequest struct {
	Amount      float64 `json:"amount" binding:"required"`
	CoverLetter *string `json:"coverLetter"`
}

type CreatePaymentOrderRequest struct {
	JobID     uuid.UUID `json:"jobId"`
	Amount    float64   `json:"amount" binding:"required"`
	TravelTip *float64  `json:"travelTip"`
}

type FundJobRequest struct {
	JobID       uuid.UUID `json:"jobId"`
	Amount      float64   `json:"amount" binding:"required"`
	PlatformFee float64   `json:"platformFee"`
}

type CreateDisputeRequest struct {
	JobID    uuid.UUID `json:"jobId"`
	Category string    `json:"category"`
	Reason   string    `json:"reason" binding:"required"`
}

type DisputeMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type ResolveDisputeRequest struct {
	Resolution string `json:"resolution" binding:"required"`
}

type DeductReputationRequest struct {
	UserID uuid.UUID  `json:"userId"`
	Points int        `json:"points"`
	Reason string     `json:"reason"`
	JobID  *uuid.UUID `json:"jobId"`
}

type JobDescriptionRequest struct {
	JobTitle string `json:"jobTitle" binding:"required"`
}

type SetFeatureFlagRequest struct {
	Name        string `json:"name" binding:"required"`
	Enabled     *bool  `json:"enabled" binding:"required"`
	Description string `json:"description"`
}
