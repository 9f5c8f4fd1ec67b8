package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Transaction одно событие пополнения эскроу по заказу.
type Transaction struct {
	ID                uuid.UUID         `db:"id" json:"id"`
	JobID             uuid.UUID         `db:"job_id" json:"jobId"`
	JobTitle          string            `db:"job_title" json:"jobTitle"`
	PayerID           uuid.UUID         `db:"payer_id" json:"payerId"`
	PayeeID           *uuid.UUID        `db:"payee_id" json:"payeeId,omitempty"`
	Type              TransactionType   `db:"type" json:"transactionType"`
	Amount            float64           `db:"amount" json:"amount"`
	TravelTip         float64           `db:"travel_tip" json:"travelTip"`
	Commission        float64           `db:"commission" json:"commission"`
	JobGiverFee       float64           `db:"job_giver_fee" json:"jobGiverFee"`
	PlatformFee       float64           `db:"platform_fee" json:"platformFee"`
	TotalPaidByGiver  float64           `db:"total_paid_by_giver" json:"totalPaidByGiver"`
	PayoutToInstaller float64           `db:"payout_to_installer" json:"payoutToInstaller"`
	Status            TransactionStatus `db:"status" json:"status"`
	GatewayOrderID    *string           `db:"gateway_order_id" json:"paymentGatewayOrderId,omitempty"`
	PayoutTransferID  *string           `db:"payout_transfer_id" json:"payoutTransferId,omitempty"`
	RefundTransferID  *string           `db:"refund_transfer_id" json:"refundTransferId,omitempty"`
	Description       *string           `db:"description" json:"description,omitempty"`
	CreatedAt         time.Time         `db:"created_at" json:"createdAt"`
	FundedAt          *time.Time        `db:"funded_at" json:"fundedAt,omitempty"`
	ReleasedAt        *time.Time        `db:"released_at" json:"releasedAt,omitempty"`
	RefundedAt        *time.Time        `db:"refunded_at" json:"refundedAt,omitempty"`
}

// Balanced проверяет инвариант totalPaidByGiver = payoutToInstaller + platformFee.
func (t *Transaction) Balanced() bool {
	return math.Abs(t.TotalPaidByGiver-(t.PayoutToInstaller+t.PlatformFee)) < 0.005
}

// RoundMoney округляет сумму до копеек.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
