package payments

import "context"

// Gateway операции платёжного шлюза, которые использует эскроу.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	VerifyPayment(ctx context.Context, orderID string) (*PaymentStatus, error)
	CreatePayout(ctx context.Context, req PayoutRequest) (*Transfer, error)
	Refund(ctx context.Context, req RefundRequest) (*Transfer, error)
}

type OrderRequest struct {
	OrderID       string
	Amount        float64
	Currency      string
	CustomerID    string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	ReturnURL     string
	Note          string
}

// Order созданный в шлюзе заказ. SessionID передаётся клиенту для открытия оплаты.
type Order struct {
	OrderID   string `json:"orderId"`
	SessionID string `json:"orderToken"`
}

type PaymentStatus struct {
	OrderID string
	Status  string
	Paid    bool
}

type PayoutRequest struct {
	TransferID    string
	BeneficiaryID string
	Amount        float64
	Remarks       string
}

type RefundRequest struct {
	RefundID string
	OrderID  string
	Amount   float64
	Note     string
}

type Transfer struct {
	TransferID string
	Status     string
}
