package router

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fashion-feedback/internal/config"
	"fashion-feedback/internal/db"
	"fashion-feedback/internal/model"
	"fashion-feedback/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*gin.Engine, *service.ServiceContext) {
	t.Helper()
	cfg := config.Default()
	cfg.Database.LogLevel = "silent"
	cfg.Feedback.IdleInterval = 10 * time.Millisecond
	cfg.Services.AdaptTimeout = 200 * time.Millisecond

	gdb, err := db.Open(cfg.Database, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	svc := service.NewServiceContext(cfg, gdb, zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Processor.Shutdown(ctx)
	})
	return SetupRouter(svc, zap.NewNop()), svc
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func storeInsight(t *testing.T, svc *service.ServiceContext, id string, obj model.LearningObjective) {
	t.Helper()
	require.NoError(t, svc.Store.SaveInsight(context.Background(), &model.LearningInsight{
		InsightID:             id,
		LearningObjective:     obj,
		InsightData:           datatypes.JSONMap{"type": model.InsightTemporalPattern},
		ConfidenceScore:       0.9,
		ImpactEstimate:        0.3,
		ActionRecommendations: datatypes.JSONSlice[string]{"shift delivery"},
		CreatedAt:             time.Now(),
	}))
}

func TestHealthzAndMetrics(t *testing.T) {
	r, _ := newTestServer(t)

	w := do(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["accepting_feedback"])

	w = do(r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "feedback_queue_depth")

	w = do(r, http.MethodOptions, "/api/feedback", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCollectFeedback(t *testing.T) {
	r, svc := newTestServer(t)

	w := do(r, http.MethodPost, "/api/feedback", map[string]any{
		"user_id":            "u1",
		"feedback_type":      "explicit_rating",
		"learning_objective": "user_satisfaction",
		"service_source":     "recommendation_engine",
		"data":               map[string]any{"rating": 4},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id, _ := decode(t, w)["feedback_id"].(string)
	require.NotEmpty(t, id)

	entry, err := svc.Store.GetFeedback(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "u1", entry.UserID)

	w = do(r, http.MethodPost, "/api/feedback", map[string]any{
		"user_id":            "u1",
		"feedback_type":      "thumbs_up",
		"learning_objective": "user_satisfaction",
		"service_source":     "recommendation_engine",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/feedback", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCollectFeedback_AfterShutdown(t *testing.T) {
	r, svc := newTestServer(t)
	require.NoError(t, svc.Processor.Shutdown(context.Background()))

	w := do(r, http.MethodPost, "/api/feedback", map[string]any{
		"user_id":            "u1",
		"feedback_type":      "acceptance_feedback",
		"learning_objective": "combination_quality",
		"service_source":     "combination_engine",
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestInsightRoutes(t *testing.T) {
	r, svc := newTestServer(t)
	storeInsight(t, svc, "in-1", model.ObjectiveContextUnderstanding)
	storeInsight(t, svc, "in-2", model.ObjectiveRecommendationAccuracy)

	w := do(r, http.MethodGet, "/api/insights", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["total"])

	w = do(r, http.MethodGet, "/api/insights?objective=context_understanding&applied=false", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/insights?applied=maybe", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/insights?objective=world_domination", nil).Code)

	w = do(r, http.MethodGet, "/api/insights/in-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	insight := decode(t, w)["insight"].(map[string]any)
	assert.Equal(t, "context_understanding", insight["learning_objective"])

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/insights/missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/insights/missing/apply", nil).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(r, http.MethodPost, "/api/insights/in-1/apply", nil).Code)

	// 推荐引擎地址未配置：下发失败只记日志，洞察照样标记已下发
	w = do(r, http.MethodPost, "/api/insights/in-2/apply", nil)
	require.Equal(t, http.StatusOK, w.Code)
	applied := decode(t, w)["insight"].(map[string]any)
	assert.NotNil(t, applied["applied_at"])

	w = do(r, http.MethodGet, "/api/insights?applied=true", nil)
	assert.EqualValues(t, 1, decode(t, w)["total"])
}

func TestUserAdaptations(t *testing.T) {
	r, svc := newTestServer(t)
	require.NoError(t, svc.Store.SaveUserAdaptations(context.Background(), []model.UserAdaptation{
		{AdaptationID: "a1", UserID: "u9", AdaptationType: "segment_assignment", CreatedAt: time.Now()},
	}))

	w := do(r, http.MethodGet, "/api/users/u9/adaptations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["adaptations"], 1)
}

func TestAnalyticsRoutes(t *testing.T) {
	r, _ := newTestServer(t)

	w := do(r, http.MethodGet, "/api/analytics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Contains(t, body, "feedback_statistics")
	assert.Contains(t, body, "model_performance")
	rt := body["real_time_status"].(map[string]any)
	assert.Equal(t, true, rt["accepting_feedback"])

	w = do(r, http.MethodGet, "/api/analytics/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, w.Body.String(), "# 反馈学习运行报告")
}
