package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/team4job/marketplace-backend/internal/dto"
	"github.com/team4job/marketplace-backend/internal/http/handlers/common"
	"github.com/team4job/marketplace-backend/internal/logger"
	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
	"github.com/team4job/marketplace-backend/internal/service"
)

// AdminHandler операции персонала: монитор, флаги, системный журнал.
type AdminHandler struct {
	monitor MonitorRunner
	flags   FeatureFlagManager
	logs    SystemLogReader
	now     func() time.Time
}

func NewAdminHandler(monitor MonitorRunner, flags FeatureFlagManager, logs SystemLogReader) *AdminHandler {
	return &AdminHandler{monitor: monitor, flags: flags, logs: logs, now: time.Now}
}

// MonitorRunResponse результат ручного запуска монитора.
type MonitorRunResponse struct {
	Alerts   []service.MonitorAlert `json:"alerts"`
	Messages []string               `json:"messages"`
	// Errors проверки, которые не удалось выполнить; остальные результаты валидны.
	Errors string `json:"errors,omitempty"`
}

// RunMonitor POST /api/admin/monitor/run
func (h *AdminHandler) RunMonitor(c *gin.Context) {
	alerts, err := h.monitor.Run(c.Request.Context(), h.now())
	resp := MonitorRunResponse{Alerts: alerts, Messages: service.AlertMessages(alerts)}
	if resp.Alerts == nil {
		resp.Alerts = []service.MonitorAlert{}
	}
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err.Error()}).Error("monitor run finished with errors")
		if len(alerts) == 0 {
			common.RespondError(c, apperror.Internal(err))
			return
		}
		resp.Errors = "часть проверок не выполнена"
	}
	common.RespondOK(c, resp)
}

// ListFeatureFlags GET /api/admin/feature-flags
func (h *AdminHandler) ListFeatureFlags(c *gin.Context) {
	flags, err := h.flags.List(c.Request.Context())
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, flags)
}

// SetFeatureFlag PUT /api/admin/feature-flags
func (h *AdminHandler) SetFeatureFlag(c *gin.Context) {
	var req dto.SetFeatureFlagRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}

	flag, err := h.flags.Set(c.Request.Context(), strings.TrimSpace(req.Name), *req.Enabled, req.Description)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	if actor, err := common.CurrentActor(c); err == nil {
		logger.Log.WithFields(logrus.Fields{
			"flag":     flag.Name,
			"enabled":  flag.IsEnabled,
			"actor_id": actor.ID,
		}).Info("feature flag updated")
	}
	common.RespondOK(c, flag)
}

// ListSystemLogs GET /api/admin/system-logs?level=ERROR&limit=100
func (h *AdminHandler) ListSystemLogs(c *gin.Context) {
	level := strings.ToUpper(c.Query("level"))
	switch level {
	case "", models.LogLevelInfo, models.LogLevelWarning, models.LogLevelError:
	default:
		common.RespondError(c, apperror.Validation("неизвестный уровень журнала: %s", level))
		return
	}

	logs, err := h.logs.ListSystemLogs(c.Request.Context(), level, common.ParseIntQuery(c, "limit", 100))
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, logs)
}
