package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/netswatch/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

// GetTopologyHandler serves the graph document. When the store cannot be
// read it still answers with the empty document, marked 502.
func GetTopologyHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	topo, err := app.Topology.Topology(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusBadGateway, topo)
	}
	return c.JSON(http.StatusOK, topo)
}
