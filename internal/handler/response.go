package handler

import (
	"net/http"

	"github.com/jashinspires/WorkGrid/internal/apperr"
	"github.com/jashinspires/WorkGrid/internal/authz"
	"github.com/jashinspires/WorkGrid/internal/middleware"
	"github.com/jashinspires/WorkGrid/pkg/logger"
	"github.com/jashinspires/WorkGrid/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// principal returns the verified identity attached by the auth
// middleware. Routes registered behind AuthMiddleware always have one.
func principal(c echo.Context) *authz.Principal {
	return middleware.PrincipalFrom(c)
}

// envelope is the uniform response shape for every endpoint.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func ok(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, envelope{Success: true, Data: data})
}

func okMessage(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

var kindStatus = map[apperr.Kind]int{
	apperr.Validation:      http.StatusBadRequest,
	apperr.Unauthenticated: http.StatusUnauthorized,
	apperr.Forbidden:       http.StatusForbidden,
	apperr.QuotaExceeded:   http.StatusForbidden,
	apperr.NotFound:        http.StatusNotFound,
	apperr.Conflict:        http.StatusConflict,
	apperr.Unavailable:     http.StatusServiceUnavailable,
	apperr.Internal:        http.StatusInternalServerError,
}

var kindLabel = map[apperr.Kind]string{
	apperr.Validation:      "validation",
	apperr.Unauthenticated: "unauthenticated",
	apperr.Forbidden:       "forbidden",
	apperr.QuotaExceeded:   "quota_exceeded",
	apperr.NotFound:        "not_found",
	apperr.Conflict:        "conflict",
	apperr.Unavailable:     "unavailable",
	apperr.Internal:        "internal",
}

// fail renders an error through the taxonomy. The caller sees only the
// kind's status and the caller-safe message; the cause goes to the
// request log.
func fail(c echo.Context, err error) error {
	kind := apperr.KindOf(err)

	status, okStatus := kindStatus[kind]
	if !okStatus {
		status = http.StatusInternalServerError
	}

	prometheus.RecordError(kindLabel[kind])
	if kind == apperr.Internal || kind == apperr.Unavailable {
		logger.FromContext(c).Error("request failed", zap.Error(err))
	}

	return c.JSON(status, envelope{Success: false, Message: apperr.MessageOf(err)})
}
