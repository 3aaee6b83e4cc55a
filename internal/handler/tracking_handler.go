package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/tradeflow/internal/service"
)

type TrackingHandler struct {
	tracking *service.TrackingService
}

func NewTrackingHandler(tracking *service.TrackingService) *TrackingHandler {
	return &TrackingHandler{tracking: tracking}
}

// CreateEvent handles the assigned forwarder posting a tracking update
func (h *TrackingHandler) CreateEvent(c echo.Context) error {
	var req service.TrackingEventInput
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	event, err := h.tracking.CreateEvent(requestContext(c), callerFrom(c), c.Param("id"), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, event)
}

// GetHistory handles retrieving a shipment's full tracking log
func (h *TrackingHandler) GetHistory(c echo.Context) error {
	history, err := h.tracking.History(requestContext(c), callerFrom(c), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, history)
}

// GetLatest handles retrieving a shipment's newest tracking event
func (h *TrackingHandler) GetLatest(c echo.Context) error {
	event, err := h.tracking.Latest(requestContext(c), callerFrom(c), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, event)
}
