package handler

import (
	"net/http"

	"github.com/jashinspires/WorkGrid/pkg/database"
	"github.com/jashinspires/WorkGrid/prometheus"
	"github.com/labstack/echo/v4"
)

// Root returns a friendly service banner.
func Root(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"message":      "WorkGrid multi-tenant API is running",
		"version":      "1.0.0",
		"health_check": "/health",
	})
}

// HealthCheck reports service and database health.
func HealthCheck(c echo.Context) error {
	db := database.WithContext(c.Request().Context())
	if err := db.Exec("SELECT 1").Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"status":   "DOWN",
			"service":  "workgrid",
			"database": "disconnected",
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":   "UP",
		"service":  "workgrid",
		"database": "connected",
	})
}

// MetricsHandler exposes the Prometheus registry.
func MetricsHandler(c echo.Context) error {
	handler := prometheus.GetPrometheusHandler()
	handler.ServeHTTP(c.Response(), c.Request())
	return nil
}
