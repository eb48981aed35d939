package middleware

import (
	"context"

	"github.com/jashinspires/WorkGrid/pkg/database"
	"github.com/labstack/echo/v4"
)

// DeadlineMiddleware bounds the request context with the configured
// query timeout. Every storage call made through database.WithContext
// inherits the deadline, so no operation blocks indefinitely.
func DeadlineMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), database.QueryTimeout)
		defer cancel()
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
