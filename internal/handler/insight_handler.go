package handler

import (
	"errors"
	"net/http"
	"strconv"

	"fashion-feedback/internal/model"
	"fashion-feedback/internal/service"

	"github.com/gin-gonic/gin"
)

type InsightHandler struct {
	store      *service.Store
	dispatcher *service.AdaptationDispatcher
}

func NewInsightHandler(store *service.Store, dispatcher *service.AdaptationDispatcher) *InsightHandler {
	return &InsightHandler{store: store, dispatcher: dispatcher}
}

// ListInsights 按学习目标、分群、是否已下发过滤，按创建时间倒序
func (h *InsightHandler) ListInsights(c *gin.Context) {
	filter := service.InsightFilter{
		Objective: model.LearningObjective(c.Query("objective")),
		Segment:   c.Query("segment"),
	}
	if filter.Objective != "" && !filter.Objective.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "未知学习目标: " + string(filter.Objective)})
		return
	}
	if applied := c.Query("applied"); applied != "" {
		v, err := strconv.ParseBool(applied)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "applied 参数无效"})
			return
		}
		filter.Applied = &v
	}
	if limit := c.Query("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			filter.Limit = l
		}
	}

	insights, err := h.store.ListInsights(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"insights": insights,
		"total":    len(insights),
	})
}

// GetInsight 获取单个洞察
func (h *InsightHandler) GetInsight(c *gin.Context) {
	insight, err := h.store.GetInsight(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"insight": insight,
	})
}

// ApplyInsight 手动下发洞察，下游失败不影响返回
func (h *InsightHandler) ApplyInsight(c *gin.Context) {
	insight, err := h.dispatcher.Apply(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"insight": insight,
		"targets": service.DispatchTargets(insight.LearningObjective),
	})
}

func (h *InsightHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInsightNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "洞察不存在"})
	case errors.Is(err, service.ErrNoAdaptationTarget):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
