package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/tradeflow/internal/service"
	"github.com/suteetoe/tradeflow/pkg/logger"
	"github.com/suteetoe/tradeflow/pkg/upstream"
	"go.uber.org/zap"
)

// statusForKind maps client error kinds to HTTP codes
var statusForKind = map[service.Kind]int{
	service.KindNotFound:     http.StatusNotFound,
	service.KindForbidden:    http.StatusForbidden,
	service.KindInvalidState: http.StatusBadRequest,
	service.KindExpired:      http.StatusBadRequest,
	service.KindValidation:   http.StatusBadRequest,
	service.KindConflict:     http.StatusConflict,
	service.KindUnauthorized: http.StatusUnauthorized,
	service.KindUnavailable:  http.StatusServiceUnavailable,
}

// respondError writes err as {"error", "code"}. Anything unclassified is logged and
// reported as a generic 500.
func respondError(c echo.Context, err error) error {
	log := logger.FromContext(c)

	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		status, ok := statusForKind[svcErr.Kind]
		if !ok {
			status = http.StatusBadRequest
		}
		log.Warn("Request failed", zap.String("code", string(svcErr.Kind)), zap.String("error", svcErr.Message))
		return c.JSON(status, echo.Map{"error": svcErr.Message, "code": svcErr.Kind})
	}

	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) {
		status := statusErr.StatusCode
		if status < http.StatusBadRequest || status > 599 {
			// only upstream 4xx/5xx are passed through
			log.Warn("Upstream answered with an unexpected status", zap.Int("status_code", status))
			status = http.StatusBadGateway
		}
		return c.JSON(status, echo.Map{"error": statusErr.Detail, "code": "upstream_error"})
	}

	if errors.Is(err, upstream.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		log.Error("Upstream unavailable", zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "Upstream service unavailable", "code": "upstream_unavailable"})
	}

	log.Error("Internal error", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal server error", "code": "internal"})
}

// callerFrom returns the identity the auth middleware stored
func callerFrom(c echo.Context) service.Caller {
	id, _ := c.Get("user_id").(string)
	role, _ := c.Get("role").(string)
	return service.Caller{ID: id, Role: role}
}

// requestContext carries the request logger into the service layer
func requestContext(c echo.Context) context.Context {
	return logger.WithLogger(c.Request().Context(), logger.FromContext(c))
}

// bind decodes and validates the request body into req
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		logger.FromContext(c).Warn("Invalid request data", zap.Error(err))
		return service.Validation("Invalid request data")
	}
	if err := c.Validate(req); err != nil {
		return service.Validation("%s", err.Error())
	}
	return nil
}
