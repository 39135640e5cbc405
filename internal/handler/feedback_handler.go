package handler

import (
	"errors"
	"net/http"

	"fashion-feedback/internal/service"

	"github.com/gin-gonic/gin"
)

type FeedbackHandler struct {
	processor *service.FeedbackProcessor
	store     *service.Store
}

func NewFeedbackHandler(processor *service.FeedbackProcessor, store *service.Store) *FeedbackHandler {
	return &FeedbackHandler{processor: processor, store: store}
}

// CollectFeedback 提交一条反馈，落库入队后立即返回
func (h *FeedbackHandler) CollectFeedback(c *gin.Context) {
	var req service.FeedbackSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.processor.CollectFeedback(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidFeedback):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrProcessorClosed):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feedback_id": id,
	})
}

// ListUserAdaptations 某个用户被记录的调整
func (h *FeedbackHandler) ListUserAdaptations(c *gin.Context) {
	adaptations, err := h.store.UserAdaptations(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":     c.Param("id"),
		"adaptations": adaptations,
	})
}
