package handlers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/team4job/marketplace-backend/internal/ai"
	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
	"github.com/team4job/marketplace-backend/internal/service"
)

func adminRouter(h *AdminHandler) *gin.Engine {
	r := gin.New()
	r.Use(withActor(models.Actor{ID: uuid.New(), Roles: models.Roles{models.RoleAdmin}}))
	r.POST("/admin/monitor/run", h.RunMonitor)
	r.GET("/admin/feature-flags", h.ListFeatureFlags)
	r.PUT("/admin/feature-flags", h.SetFeatureFlag)
	r.GET("/admin/system-logs", h.ListSystemLogs)
	return r
}

func TestAdminHandler_RunMonitor(t *testing.T) {
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	alert := service.MonitorAlert{Check: "hostage_funds", Level: models.LogLevelError, Message: "ALERT: 1 jobs ...", IDs: []string{"j1"}}

	t.Run("частичный результат", func(t *testing.T) {
		monitor := &mockMonitor{}
		monitor.On("Run", now).Return([]service.MonitorAlert{alert}, errors.New("stale_disputes: timeout"))
		h := NewAdminHandler(monitor, nil, nil)
		h.now = func() time.Time { return now }

		w := doJSON(adminRouter(h), http.MethodPost, "/admin/monitor/run", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp MonitorRunResponse
		decodeData(t, w, &resp)
		assert.Equal(t, []string{alert.Message}, resp.Messages)
		assert.NotEmpty(t, resp.Errors)
		assert.NotContains(t, w.Body.String(), "timeout")
	})

	t.Run("нет нарушений", func(t *testing.T) {
		monitor := &mockMonitor{}
		monitor.On("Run", now).Return(nil, nil)
		h := NewAdminHandler(monitor, nil, nil)
		h.now = func() time.Time { return now }

		w := doJSON(adminRouter(h), http.MethodPost, "/admin/monitor/run", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true,"data":{"alerts":[],"messages":[]}}`, w.Body.String())
	})

	t.Run("все проверки упали", func(t *testing.T) {
		monitor := &mockMonitor{}
		monitor.On("Run", now).Return(nil, errors.New("db down"))
		h := NewAdminHandler(monitor, nil, nil)
		h.now = func() time.Time { return now }

		w := doJSON(adminRouter(h), http.MethodPost, "/admin/monitor/run", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestAdminHandler_FeatureFlags(t *testing.T) {
	flags := &mockFlags{}
	flags.On("List").Return([]models.FeatureFlag{{Name: models.FlagPayments, IsEnabled: true}}, nil)
	flags.On("Set", models.FlagAIGeneration, false, "provider outage").
		Return(&models.FeatureFlag{Name: models.FlagAIGeneration, IsEnabled: false, Description: "provider outage"}, nil)
	r := adminRouter(NewAdminHandler(nil, flags, nil))

	w := doJSON(r, http.MethodGet, "/admin/feature-flags", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.FeatureFlag
	decodeData(t, w, &list)
	assert.Equal(t, models.FlagPayments, list[0].Name)

	w = doJSON(r, http.MethodPut, "/admin/feature-flags", map[string]interface{}{"name": " ENABLE_AI_GENERATION ", "enabled": false, "description": "provider outage"})
	require.Equal(t, http.StatusOK, w.Code)
	var flag models.FeatureFlag
	decodeData(t, w, &flag)
	assert.False(t, flag.IsEnabled)

	w = doJSON(r, http.MethodPut, "/admin/feature-flags", map[string]interface{}{"name": "ENABLE_PAYMENTS"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "enabled обязателен")
	flags.AssertExpectations(t)
}

func TestAdminHandler_SystemLogs(t *testing.T) {
	logs := &mockLogs{}
	logs.On("ListSystemLogs", models.LogLevelError, 50).Return([]models.SystemLog{{Message: "boom"}}, nil)
	r := adminRouter(NewAdminHandler(nil, nil, logs))

	w := doJSON(r, http.MethodGet, "/admin/system-logs?level=error&limit=50", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/admin/system-logs?level=debug", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReputationHandler_DeductPoints(t *testing.T) {
	actor := supportAgent()
	userID, jobID := uuid.New(), uuid.New()
	reputation := &mockReputation{}
	reputation.On("DeductPoints", actor, service.DeductPointsInput{UserID: userID, Points: 30, Reason: "no-show", JobID: &jobID}).Return(70, nil)
	reputation.On("DeductPoints", actor, mock.MatchedBy(func(in service.DeductPointsInput) bool { return in.Points < 0 })).
		Return(0, apperror.Validation("количество очков должно быть положительным"))

	r := gin.New()
	r.POST("/reputation/deduct", withActor(actor), NewReputationHandler(reputation).DeductPoints)

	w := doJSON(r, http.MethodPost, "/reputation/deduct", map[string]interface{}{"userId": userID, "points": 30, "reason": "no-show", "jobId": jobID})
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	decodeData(t, w, &resp)
	assert.Equal(t, 70.0, resp["reputationPoints"])

	w = doJSON(r, http.MethodPost, "/reputation/deduct", map[string]interface{}{"userId": userID, "points": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/reputation/deduct", map[string]interface{}{"points": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReputationHandler_Reapply(t *testing.T) {
	inst := installer()
	jobID, other := uuid.New(), uuid.New()
	reputation := &mockReputation{}
	reputation.On("Reapply", inst, jobID).Return(85, nil)
	reputation.On("Reapply", inst, other).Return(0, apperror.ErrNotDisqualified)

	r := gin.New()
	r.POST("/jobs/:id/reapply", withActor(inst), NewReputationHandler(reputation).Reapply)

	w := doJSON(r, http.MethodPost, "/jobs/"+jobID.String()+"/reapply", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	decodeData(t, w, &resp)
	assert.Equal(t, 85.0, resp["reputationPoints"])
	assert.Equal(t, inst.ID.String(), resp["userId"])

	w = doJSON(r, http.MethodPost, "/jobs/"+other.String()+"/reapply", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAIHandler_GenerateJobDescription(t *testing.T) {
	actor := jobGiver()
	gen := &mockGenerator{}
	gen.On("GenerateJobDescription", actor, "Install 8 IP cameras").Return(&ai.JobDescription{JobDescription: "We are looking for..."}, nil)
	gen.On("GenerateJobDescription", actor, "Install NVR").Return(nil, apperror.ErrAIQuotaExceeded)

	r := gin.New()
	r.POST("/ai/job-description", withActor(actor), NewAIHandler(gen).GenerateJobDescription)

	w := doJSON(r, http.MethodPost, "/ai/job-description", map[string]string{"jobTitle": "Install 8 IP cameras"})
	require.Equal(t, http.StatusOK, w.Code)
	var out ai.JobDescription
	decodeData(t, w, &out)
	assert.Equal(t, "We are looking for...", out.JobDescription)

	w = doJSON(r, http.MethodPost, "/ai/job-description", map[string]string{"jobTitle": "Install NVR"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
