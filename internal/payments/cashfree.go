package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/team4job/marketplace-backend/internal/logger"
)

const (
	pgAPIVersion     = "2023-08-01"
	payoutAPIVersion = "2024-01-01"
)

// CashfreeClient клиент Cashfree PG и Payouts.
// Без ключей работает в mock режиме и возвращает фиктивные идентификаторы.
type CashfreeClient struct {
	baseURL    string
	appID      string
	secretKey  string
	httpClient *http.Client
}

func NewCashfreeClient(baseURL, appID, secretKey string) *CashfreeClient {
	return &CashfreeClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		appID:     appID,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Mock сообщает, что ключи не заданы и запросы в шлюз не отправляются.
func (c *CashfreeClient) Mock() bool {
	return c.appID == "" || c.secretKey == ""
}

func (c *CashfreeClient) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if c.Mock() {
		c.log().WithField("order_id", req.OrderID).Warn("cashfree: ключи не заданы, создан mock заказ")
		return &Order{OrderID: req.OrderID, SessionID: "mock_session_" + req.OrderID}, nil
	}

	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}
	payload := map[string]any{
		"order_id":       req.OrderID,
		"order_amount":   req.Amount,
		"order_currency": currency,
		"order_note":     req.Note,
		"customer_details": map[string]any{
			"customer_id":    req.CustomerID,
			"customer_name":  req.CustomerName,
			"customer_email": req.CustomerEmail,
			"customer_phone": req.CustomerPhone,
		},
	}
	if req.ReturnURL != "" {
		payload["order_meta"] = map[string]any{"return_url": req.ReturnURL}
	}

	var resp struct {
		OrderID          string `json:"order_id"`
		PaymentSessionID string `json:"payment_session_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/pg/orders", pgAPIVersion, payload, &resp); err != nil {
		return nil, err
	}
	if resp.PaymentSessionID == "" {
		return nil, fmt.Errorf("cashfree: в ответе нет payment_session_id")
	}
	return &Order{OrderID: resp.OrderID, SessionID: resp.PaymentSessionID}, nil
}

func (c *CashfreeClient) VerifyPayment(ctx context.Context, orderID string) (*PaymentStatus, error) {
	if c.Mock() {
		return &PaymentStatus{OrderID: orderID, Status: "PAID", Paid: true}, nil
	}

	var resp struct {
		OrderID     string `json:"order_id"`
		OrderStatus string `json:"order_status"`
	}
	if err := c.do(ctx, http.MethodGet, "/pg/orders/"+orderID, pgAPIVersion, nil, &resp); err != nil {
		return nil, err
	}
	return &PaymentStatus{
		OrderID: resp.OrderID,
		Status:  resp.OrderStatus,
		Paid:    resp.OrderStatus == "PAID",
	}, nil
}

func (c *CashfreeClient) CreatePayout(ctx context.Context, req PayoutRequest) (*Transfer, error) {
	if c.Mock() {
		c.log().WithField("transfer_id", req.TransferID).Warn("cashfree: ключи не заданы, mock выплата")
		return &Transfer{TransferID: req.TransferID, Status: "SUCCESS"}, nil
	}
	if req.BeneficiaryID == "" {
		return nil, fmt.Errorf("cashfree: у получателя не настроен beneficiary")
	}

	payload := map[string]any{
		"transfer_id":      req.TransferID,
		"transfer_amount":  req.Amount,
		"transfer_remarks": req.Remarks,
		"beneficiary_details": map[string]any{
			"beneficiary_id": req.BeneficiaryID,
		},
	}
	var resp struct {
		TransferID string `json:"transfer_id"`
		Status     string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/payout/transfers", payoutAPIVersion, payload, &resp); err != nil {
		return nil, err
	}
	return &Transfer{TransferID: resp.TransferID, Status: resp.Status}, nil
}

func (c *CashfreeClient) Refund(ctx context.Context, req RefundRequest) (*Transfer, error) {
	if c.Mock() {
		return &Transfer{TransferID: req.RefundID, Status: "SUCCESS"}, nil
	}

	payload := map[string]any{
		"refund_id":     req.RefundID,
		"refund_amount": req.Amount,
		"refund_note":   req.Note,
	}
	var resp struct {
		RefundID     string `json:"refund_id"`
		RefundStatus string `json:"refund_status"`
	}
	if err := c.do(ctx, http.MethodPost, "/pg/orders/"+req.OrderID+"/refunds", pgAPIVersion, payload, &resp); err != nil {
		return nil, err
	}
	return &Transfer{TransferID: resp.RefundID, Status: resp.RefundStatus}, nil
}

func (c *CashfreeClient) do(ctx context.Context, method, path, apiVersion string, payload, out any) error {
	body := bytes.NewReader(nil)
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-version", apiVersion)
	req.Header.Set("x-client-id", c.appID)
	req.Header.Set("x-client-secret", c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cashfree: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errorBody struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errorBody)
		return fmt.Errorf("cashfree: код ответа %d: %s", resp.StatusCode, errorBody.Message)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *CashfreeClient) log() *logrus.Entry {
	return logger.Component("cashfree")
}
