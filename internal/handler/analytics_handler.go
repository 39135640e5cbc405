package handler

import (
	"net/http"

	"fashion-feedback/internal/service"

	"github.com/gin-gonic/gin"
)

type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// GetLearningAnalytics 反馈、洞察、模型与运行状态的汇总
func (h *AnalyticsHandler) GetLearningAnalytics(c *gin.Context) {
	a, err := h.analytics.GetLearningAnalytics(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, a)
}

// GetReport 同样的数据渲染成 Markdown
func (h *AnalyticsHandler) GetReport(c *gin.Context) {
	a, err := h.analytics.GetLearningAnalytics(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(service.RenderAnalyticsMarkdown(a)))
}
