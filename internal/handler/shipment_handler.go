package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/tradeflow/internal/service"
	"github.com/suteetoe/tradeflow/pkg/logger"
	"github.com/suteetoe/tradeflow/prometheus"
	"go.uber.org/zap"
)

type ShipmentHandler struct {
	shipments *service.ShipmentService
}

func NewShipmentHandler(shipments *service.ShipmentService) *ShipmentHandler {
	return &ShipmentHandler{shipments: shipments}
}

// CreateShipment handles creating a draft shipment
func (h *ShipmentHandler) CreateShipment(c echo.Context) error {
	log := logger.FromContext(c)

	var req service.CreateShipmentInput
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	log.Info("Shipment creation request",
		zap.String("origin_port", req.OriginPort),
		zap.String("destination_port", req.DestinationPort),
		zap.String("buyer_id", req.BuyerID))

	shipment, err := h.shipments.Create(requestContext(c), callerFrom(c), req)
	if err != nil {
		return respondError(c, err)
	}
	prometheus.RecordShipmentOperation("create")
	return c.JSON(http.StatusCreated, shipment)
}

// ListShipments handles listing the caller's shipments
func (h *ShipmentHandler) ListShipments(c echo.Context) error {
	shipments, err := h.shipments.List(requestContext(c), callerFrom(c), c.QueryParam("status"))
	if err != nil {
		return respondError(c, err)
	}
	logger.FromContext(c).Info("Shipments retrieved", zap.Int("count", len(shipments)))
	return c.JSON(http.StatusOK, shipments)
}

// ListOpenShipments handles listing shipments forwarders can still quote on
func (h *ShipmentHandler) ListOpenShipments(c echo.Context) error {
	shipments, err := h.shipments.ListOpen(requestContext(c), callerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, shipments)
}

// GetShipment handles retrieving a single shipment by ID
func (h *ShipmentHandler) GetShipment(c echo.Context) error {
	shipment, err := h.shipments.Get(requestContext(c), callerFrom(c), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, shipment)
}

// UpdateShipment handles a partial update by the owner
func (h *ShipmentHandler) UpdateShipment(c echo.Context) error {
	var req service.UpdateShipmentInput
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	shipment, err := h.shipments.Update(requestContext(c), callerFrom(c), c.Param("id"), req)
	if err != nil {
		return respondError(c, err)
	}
	prometheus.RecordShipmentOperation("update")
	return c.JSON(http.StatusOK, shipment)
}

// RequestQuotes opens a draft shipment to quotes
func (h *ShipmentHandler) RequestQuotes(c echo.Context) error {
	shipment, err := h.shipments.RequestQuotes(requestContext(c), callerFrom(c), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	prometheus.RecordShipmentOperation("request_quotes")
	return c.JSON(http.StatusOK, shipment)
}
