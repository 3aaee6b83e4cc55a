package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/suteetoe/tradeflow/pkg/logger"
	"go.uber.org/zap"
)

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// Keep the caller's request ID when it sent one
		requestID := c.Request().Header.Get(echo.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
			c.Request().Header.Set(echo.HeaderXRequestID, requestID)
		}
		c.Response().Header().Set(echo.HeaderXRequestID, requestID)

		c.Set("request_id", requestID)

		// Add request ID to logger context
		log := logger.GetLogger().With(zap.String("request_id", requestID))
		logger.Attach(c, log)

		return next(c)
	}
}

// RequestLoggerMiddleware logs every request once it has been served
func RequestLoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		req := c.Request()
		res := c.Response()
		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("path", c.Path()),
			zap.String("uri", req.RequestURI),
			zap.Int("status", res.Status),
			zap.Int64("bytes_out", res.Size),
			zap.Duration("latency", time.Since(start)),
			zap.String("remote_ip", c.RealIP()),
		}

		log := logger.FromContext(c)
		switch {
		case res.Status >= 500:
			log.Error("Request failed", append(fields, zap.Error(err))...)
		case res.Status >= 400:
			log.Warn("Request rejected", fields...)
		default:
			log.Info("Request served", fields...)
		}
		return nil
	}
}
