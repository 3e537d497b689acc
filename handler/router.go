package handler

import (
	"net/http"
	"time"

	"github.com/AnTengye/creditreport/config"
	"github.com/AnTengye/creditreport/middleware"
	"github.com/AnTengye/creditreport/pkg/metrics"
	"github.com/AnTengye/creditreport/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps are the services the HTTP layer is built from
type RouterDeps struct {
	Config  *config.Config
	Reports *service.ReportService
	Users   *service.UserService
	Metrics *metrics.Metrics
}

// NewRouter registers all routes and middleware
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	authHandler := NewAuthHandler(deps.Users, &cfg.Auth)
	reportHandler := NewReportHandler(deps.Reports, cfg.MaxUploadBytes())

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics(deps.Metrics))
	router.Use(middleware.CORS())
	router.Use(middleware.RateLimit(cfg.Server.RateLimit, time.Duration(cfg.Server.RateWindowSeconds)*time.Second))

	router.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "Route not found")
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   "Credit report API is running",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.Use(middleware.NoStore())
	{
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)
	}

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.PUT("/auth/profile", authHandler.UpdateProfile)

		upload := middleware.MaxBodySize(cfg.MaxUploadBytes() + multipartOverhead)
		protected.POST("/upload", upload, reportHandler.Upload)
		protected.POST("/debug-xml", upload, reportHandler.DebugXML)
		protected.POST("/test-upload", upload, reportHandler.TestUpload)

		protected.GET("/reports", reportHandler.List)
		protected.GET("/reports/:id", reportHandler.Get)
		protected.DELETE("/reports/:id", reportHandler.Delete)
		protected.GET("/reports/:id/download", reportHandler.Download)
		protected.GET("/reports/:id/archive-url", reportHandler.ArchiveURL)
	}

	return router
}
