package middleware

import (
	"context"

	"github.com/OFFIS-RIT/netswatch/internal/queue"
	"github.com/OFFIS-RIT/netswatch/pkg/common"
	"github.com/OFFIS-RIT/netswatch/pkg/logger"
	"github.com/OFFIS-RIT/netswatch/pkg/reconcile"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// TopologySource builds the current topology document. On failure it still
// returns the empty document alongside the error.
type TopologySource interface {
	Topology(ctx context.Context) (common.Topology, error)
}

type SyncRunner interface {
	RunOnce(ctx context.Context) (*reconcile.Report, error)
}

// Caller is whoever authenticated against /api.
type Caller struct {
	Subject     string
	Role        string
	Permissions []string
}

type App struct {
	Topology TopologySource
	Syncer   SyncRunner
	// Queue is nil when no broker is configured; sync requests then run inline.
	Queue        queue.Publisher
	Keyfunc      jwt.Keyfunc
	MasterAPIKey string
	Logger       *logger.Logger
}

type AppContext struct {
	echo.Context
	App    *App
	Caller *Caller
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
