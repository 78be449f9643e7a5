package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"devamail/backend/internal/config"
	"devamail/backend/internal/health"
	"devamail/backend/internal/middleware"
	"devamail/backend/internal/monitoring"
	"devamail/backend/internal/service"
	"devamail/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	MailboxService *service.MailboxService
	MessageService *service.MessageService
	Metrics        *monitoring.Metrics
	HealthChecker  *health.HealthChecker
	WebSocketHub   *websocket.Hub
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	var mm *middleware.MonitoringMiddleware
	if deps.Metrics != nil {
		mm = middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
	}

	// 使用自定义中间件替代默认中间件。
	// 有监控时恢复中间件同时记录 panic 指标。
	if mm != nil {
		router.Use(mm.PanicRecovery())
	} else {
		router.Use(middleware.RecoveryHandler(deps.Logger))
	}
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(1 * 1024 * 1024))

	if mm != nil {
		router.Use(mm.HTTPMetrics())
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	emailHandler := NewEmailHandler(deps.MailboxService, deps.MessageService, deps.Metrics)

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		if deps.HealthChecker != nil {
			c.JSON(http.StatusOK, deps.HealthChecker.CheckHealth())
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.HealthChecker != nil {
		router.GET("/health/live", gin.WrapF(deps.HealthChecker.LiveHandler()))
		router.GET("/health/ready", gin.WrapF(deps.HealthChecker.ReadyHandler()))
	}

	// Prometheus 指标
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// WebSocket 新邮件推送
	if deps.WebSocketHub != nil {
		router.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
	}

	// ========== Email API ==========
	router.POST("/create-email", emailHandler.CreateEmail)

	emailRoutes := router.Group("/emails")
	{
		emailRoutes.GET("/list", emailHandler.ListEmails)
		emailRoutes.GET("/:email", emailHandler.ListMessages)
		emailRoutes.GET("/:email/:id", emailHandler.GetMessage)
		emailRoutes.DELETE("/:email", emailHandler.DeleteAllMessages)
		emailRoutes.DELETE("/:email/:id", emailHandler.DeleteMessage)
	}

	return router
}
