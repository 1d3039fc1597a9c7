package handlers

import (
	"station_monitor/internal/logger"
	"station_monitor/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services  *service.Service
	log       *logger.Logger
	reconcile func()
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// SetReconcile installs the callback that nudges the connection supervisor
// after a configuration change.
func (h *Handler) SetReconcile(fn func()) {
	h.reconcile = fn
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Live station state over WebSocket (HTTP upgrade) on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.authRequired)
	{
		h.registerStationRoutes(api)
		h.registerBreachRoutes(api)
		h.registerControlRoutes(api)
	}
}

func (h *Handler) registerStationRoutes(api *gin.RouterGroup) {
	stations := api.Group("/stations")
	{
		stations.GET("/", h.listStations)
		stations.GET("/summary", h.stationSummary)
		stations.GET("/:id", h.getStation)
		stations.GET("/:id/tags", h.listStationTags)
		stations.POST("/reconcile", h.reconcileStations)
	}
	api.GET("/tags/:id/readings", h.listReadings)
}

func (h *Handler) registerBreachRoutes(api *gin.RouterGroup) {
	breaches := api.Group("/breaches")
	{
		breaches.GET("/", h.listBreaches)
		breaches.POST("/:id/acknowledge", h.acknowledgeBreach)
	}
}

func (h *Handler) registerControlRoutes(api *gin.RouterGroup) {
	controls := api.Group("/controls")
	{
		controls.GET("/", h.listControls)
		controls.POST("/request", h.requestControlChange)
		controls.POST("/confirm", h.confirmControlChange)
		controls.GET("/:id/history", h.controlHistory)
	}
}
