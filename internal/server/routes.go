package server

import (
	"net/http"

	"github.com/OFFIS-RIT/netswatch/internal/server/middleware"
	"github.com/OFFIS-RIT/netswatch/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, metricsHandler http.Handler) {
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	if metricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(metricsHandler))
	}

	e.GET("/topo", routes.GetTopologyHandler)
	e.GET("/topo/schema", routes.GetTopologySchemaHandler)

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)
	apiRoutes.POST("/sync", routes.PostSyncHandler, middleware.RequirePermission("topology.sync"))
}
