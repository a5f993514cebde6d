package api

import (
	"github.com/gin-gonic/gin"

	"github.com/harborcare/notify/internal/handlers"
)

func registerNotificationRoutes(api *gin.RouterGroup, notifications *handlers.NotificationHandler, dispatch *handlers.DispatchHandler) {
	group := api.Group("/notifications")
	{
		group.POST("", dispatch.Create)
		group.POST("/task", dispatch.CreateTask)
		group.POST("/alarm", dispatch.CreateAlarm)
		group.POST("/visit", dispatch.CreateVisit)
		group.POST("/medicine", dispatch.CreateMedicine)

		group.GET("/recipient/:id", notifications.List)
		group.GET("/recipient/:id/unread-count", notifications.UnreadCount)
		group.GET("/recipient/:id/stats", notifications.Stats)
		group.PUT("/recipient/:id/read-all", notifications.MarkAllRead)

		group.PUT("/:id/read", notifications.MarkRead)
		group.DELETE("/:id", notifications.Delete)
	}
}
