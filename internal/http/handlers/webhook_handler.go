package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/team4job/marketplace-backend/internal/dto"
	"github.com/team4job/marketplace-backend/internal/http/handlers/common"
	"github.com/team4job/marketplace-backend/internal/logger"
	"github.com/team4job/marketplace-backend/internal/metrics"
	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/payments"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
)

const (
	headerWebhookSignature = "x-webhook-signature"
	headerWebhookTimestamp = "x-webhook-timestamp"
	maxWebhookBody         = 1 << 20
)

var errInvalidSignature = apperror.New(apperror.ErrCodeUnauthorized, "неверная подпись вебхука")

// cashfreeEvent поля уведомления, которые попадают в журнал.
type cashfreeEvent struct {
	Type string `json:"type"`
	Data struct {
		Order struct {
			OrderID string `json:"order_id"`
		} `json:"order"`
		Payment struct {
			Status string `json:"payment_status"`
		} `json:"payment"`
	} `json:"data"`
}

// WebhookHandler принимает уведомления платёжного шлюза.
// Только проверка подписи и журнал: состояние заказов меняет VerifyPayment.
type WebhookHandler struct {
	secret  string
	events  BusinessEventLogger
	metrics *metrics.Collector
}

func NewWebhookHandler(secret string, events BusinessEventLogger, collector *metrics.Collector) *WebhookHandler {
	return &WebhookHandler{secret: secret, events: events, metrics: collector}
}

// Cashfree POST /api/webhooks/cashfree
func (h *WebhookHandler) Cashfree(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		common.RespondError(c, apperror.New(apperror.ErrCodeBadRequest, "не удалось прочитать тело запроса"))
		return
	}

	signature := c.GetHeader(headerWebhookSignature)
	timestamp := c.GetHeader(headerWebhookTimestamp)
	if !payments.VerifySignature(h.secret, timestamp, raw, signature) {
		h.metrics.RecordWebhook(false)
		logger.Log.WithFields(logrus.Fields{
			"remote_ip": c.ClientIP(),
			"timestamp": timestamp,
		}).Warn("webhook: invalid signature")
		common.RespondError(c, errInvalidSignature)
		return
	}
	h.metrics.RecordWebhook(true)

	var event cashfreeEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		// подпись верна, значит отправитель шлюз; сохраняем факт получения
		logger.Log.WithFields(logrus.Fields{"error": err.Error()}).Warn("webhook: payload is not JSON")
	}

	logger.Log.WithFields(logrus.Fields{
		"type":           event.Type,
		"order_id":       event.Data.Order.OrderID,
		"payment_status": event.Data.Payment.Status,
	}).Info("webhook: received")

	h.events.LogBusinessEvent(c.Request.Context(), models.EventWebhookReceived, nil, event.Data.Order.OrderID, map[string]interface{}{
		"type":           event.Type,
		"payment_status": event.Data.Payment.Status,
	})

	c.JSON(http.StatusOK, dto.Envelope{Success: true})
}
