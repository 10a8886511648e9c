package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/netswatch/internal/queue"
	"github.com/OFFIS-RIT/netswatch/internal/scheduler"
	"github.com/OFFIS-RIT/netswatch/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

// PostSyncHandler triggers a reconcile pass. With a broker the request is
// queued and answered with 202; without one, or with mode "inline", the pass
// runs in the request and its report is returned.
func PostSyncHandler(c echo.Context) error {
	type syncBody struct {
		Mode string `json:"mode" validate:"omitempty,oneof=queue inline"`
	}

	ac := c.(*middleware.AppContext)
	app := ac.App

	body := new(syncBody)
	if c.Request().ContentLength > 0 {
		if err := c.Bind(body); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		}
	}
	if err := c.Validate(body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	ctx := c.Request().Context()

	if app.Queue != nil && body.Mode != "inline" {
		id, err := queue.PublishSync(ctx, app.Queue, ac.Caller.Subject)
		if err != nil {
			app.Logger.Error("[API] Failed to enqueue sync request", "err", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Failed to enqueue sync request"})
		}
		return c.JSON(http.StatusAccepted, map[string]string{"status": "queued", "request_id": id})
	}
	if body.Mode == "queue" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "No queue configured"})
	}

	report, err := app.Syncer.RunOnce(ctx)
	if errors.Is(err, scheduler.ErrSkipped) {
		return c.JSON(http.StatusConflict, map[string]string{"error": "A reconcile pass is already running"})
	}
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, report)
}
