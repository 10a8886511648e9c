package routes

import (
	"net/http"
	"sync"

	"github.com/OFFIS-RIT/netswatch/pkg/common"

	"github.com/invopop/jsonschema"
	"github.com/labstack/echo/v4"
)

var topologySchema = sync.OnceValue(func() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	s := reflector.Reflect(&common.Topology{})
	s.Title = "netswatch topology"
	return s
})

// GetTopologySchemaHandler describes the document served by /topo.
func GetTopologySchemaHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, topologySchema())
}
