package router

import (
	"net/http"

	"fashion-feedback/internal/handler"
	"fashion-feedback/internal/logger"
	"fashion-feedback/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func SetupRouter(svc *service.ServiceContext, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(logger.GinMiddleware(log.Named("http")), logger.Recovery(log))

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) {
		status := http.StatusOK
		if !svc.Processor.Accepting() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"accepting_feedback": svc.Processor.Accepting(),
			"worker_running":     svc.Processor.WorkerRunning(),
			"queue_depth":        svc.State.Queue.Len(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 初始化handlers
	feedbackHandler := handler.NewFeedbackHandler(svc.Processor, svc.Store)
	insightHandler := handler.NewInsightHandler(svc.Store, svc.Dispatcher)
	analyticsHandler := handler.NewAnalyticsHandler(svc.Analytics)

	// API路由
	api := r.Group("/api")
	{
		api.POST("/feedback", feedbackHandler.CollectFeedback)
		api.GET("/users/:id/adaptations", feedbackHandler.ListUserAdaptations)

		// 洞察相关
		insights := api.Group("/insights")
		{
			insights.GET("", insightHandler.ListInsights)
			insights.GET("/:id", insightHandler.GetInsight)
			insights.POST("/:id/apply", insightHandler.ApplyInsight)
		}

		// 分析报告
		analytics := api.Group("/analytics")
		{
			analytics.GET("", analyticsHandler.GetLearningAnalytics)
			analytics.GET("/report", analyticsHandler.GetReport)
		}
	}

	return r
}
