package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/tradeflow/pkg/config"
	"github.com/suteetoe/tradeflow/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthCheck handles the health check endpoint
func (h *HealthHandler) HealthCheck(c echo.Context) error {
	log := logger.FromContext(c)

	response := map[string]interface{}{
		"status":  "ok",
		"service": config.ServiceName,
		"time":    time.Now().Format(time.RFC3339),
	}

	// Check database connection if requested
	if c.QueryParam("check") == "db" {
		sqlDB, err := h.db.DB()
		if err != nil {
			log.Error("Database connection error", zap.Error(err))
			response["status"] = "error"
			response["db_status"] = "error"
			return c.JSON(http.StatusServiceUnavailable, response)
		}
		if err := sqlDB.PingContext(c.Request().Context()); err != nil {
			log.Error("Database ping error", zap.Error(err))
			response["status"] = "error"
			response["db_status"] = "error"
			return c.JSON(http.StatusServiceUnavailable, response)
		}
		response["db_status"] = "ok"
	}

	return c.JSON(http.StatusOK, response)
}
