package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

type RequestRecorder interface {
	RecordHTTPRequest(method, path, status string, duration time.Duration)
}

// MetricsMiddleware records every request under its route template, so
// unknown paths collapse into a single label.
func MetricsMiddleware(rec RequestRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			rec.RecordHTTPRequest(c.Request().Method, path, strconv.Itoa(c.Response().Status), time.Since(start))
			return nil
		}
	}
}
