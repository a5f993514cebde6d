package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/harborcare/notify/internal/auth"
	"github.com/harborcare/notify/internal/handlers"
	"github.com/harborcare/notify/internal/middleware"
	"github.com/harborcare/notify/internal/realtime"
	"github.com/harborcare/notify/internal/services"
)

// ServiceName identifies this service in health payloads.
const ServiceName = "notify"

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, hub *realtime.Hub, dispatcher *services.Dispatcher) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	r.GET("/health", handlers.Health(ServiceName))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	notificationHandler, err := handlers.NewNotificationHandler(db, hub)
	if err != nil {
		return nil, err
	}
	dispatchHandler := handlers.NewDispatchHandler(dispatcher)

	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))

	registerNotificationRoutes(api, notificationHandler, dispatchHandler)

	if hub != nil {
		realtimeHandler := handlers.NewRealtimeHandler(hub, jwt)
		// Websocket upgrades carry the token in the query string, so the
		// stream endpoint authenticates itself instead of using the group
		// middleware.
		r.GET("/ws/notifications", realtimeHandler.Stream)
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
