package logger

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// EchoKey is the echo context key holding the request-scoped logger
const EchoKey = "logger"

type ctxKey struct{}

// WithLogger returns a copy of ctx carrying l
func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromCtx returns the logger carried by ctx, or the global one
func FromCtx(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.L()
}

// FromContext returns the request logger set by the request-id middleware
func FromContext(c echo.Context) *zap.Logger {
	if l, ok := c.Get(EchoKey).(*zap.Logger); ok {
		return l
	}
	return FromCtx(c.Request().Context())
}

// Attach stores l on the echo context and on the underlying request context
func Attach(c echo.Context, l *zap.Logger) {
	c.Set(EchoKey, l)
	c.SetRequest(c.Request().WithContext(WithLogger(c.Request().Context(), l)))
}
