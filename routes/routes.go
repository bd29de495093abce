package routes

import (
	"net/http"
	"time"

	"notifyhub/handlers"
	"notifyhub/middleware"
	"notifyhub/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// HandlerBundle groups the handlers the router needs.
type HandlerBundle struct {
	Notifications *handlers.NotificationHandler
	Admin         *handlers.AdminHandler
	Devices       *handlers.DeviceHandler
}

// RegisterNotificationRoutes registers the per-user notification endpoints.
func RegisterNotificationRoutes(r *gin.Engine, hb *HandlerBundle) {
	api := r.Group("/api/notifications")
	{
		api.Use(middleware.JWTAuthUserMiddleware())
		api.GET("", hb.Notifications.ListNotificationsHandler)
		api.GET("/unread-count", hb.Notifications.GetUnreadCountHandler)
		api.GET("/stream", hb.Notifications.StreamHandler)
		api.PATCH("/:id/read", hb.Notifications.MarkReadHandler)
		api.POST("/read-all", hb.Notifications.MarkAllReadHandler)
		api.DELETE("/read", hb.Notifications.ClearReadHandler)
	}
}

// RegisterDeviceRoutes registers device token management endpoints.
func RegisterDeviceRoutes(r *gin.Engine, hb *HandlerBundle) {
	api := r.Group("/api/devices")
	{
		api.Use(middleware.JWTAuthUserMiddleware())
		api.PUT("/fcm-token", hb.Devices.UpdateFCMTokenHandler)
	}
}

// RegisterAdminRoutes sets up endpoints for admin operations.
func RegisterAdminRoutes(r *gin.Engine, hb *HandlerBundle) {
	adminGroup := r.Group("/api/admin")
	{
		adminGroup.Use(middleware.JWTAuthUserMiddleware())
		adminGroup.Use(middleware.AdminOnlyMiddleware())
		adminGroup.POST("/notifications", hb.Admin.PublishNotificationHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "services": utils.GetHealthStatus()})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *HandlerBundle) {
	// Setup global middleware (e.g., CORS) here.
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterNotificationRoutes(r, hb)
	RegisterDeviceRoutes(r, hb)
	RegisterAdminRoutes(r, hb)
	RegisterHealthRoute(r)
}
