package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/tradeflow/internal/service"
)

// CarrierHandler relays carrier API calls
type CarrierHandler struct {
	carriers *service.CarrierService
}

func NewCarrierHandler(carriers *service.CarrierService) *CarrierHandler {
	return &CarrierHandler{carriers: carriers}
}

func (h *CarrierHandler) CreateBooking(c echo.Context) error {
	var req service.BookingRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	raw, err := h.carriers.CreateBooking(requestContext(c), callerFrom(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSONBlob(http.StatusCreated, raw)
}

func (h *CarrierHandler) BookingStatus(c echo.Context) error {
	raw, err := h.carriers.BookingStatus(requestContext(c), c.Param("booking_number"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSONBlob(http.StatusOK, raw)
}

func (h *CarrierHandler) SearchSchedule(c echo.Context) error {
	raw, err := h.carriers.SearchSchedule(requestContext(c), c.QueryParam("origin"), c.QueryParam("destination"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSONBlob(http.StatusOK, raw)
}

func (h *CarrierHandler) RateQuote(c echo.Context) error {
	var req service.RateRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	raw, err := h.carriers.RateQuote(requestContext(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSONBlob(http.StatusOK, raw)
}

func (h *CarrierHandler) TrackContainer(c echo.Context) error {
	raw, err := h.carriers.TrackContainer(requestContext(c), c.Param("container_number"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSONBlob(http.StatusOK, raw)
}

func (h *CarrierHandler) PredictRates(c echo.Context) error {
	var req service.RatePredictionRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	raw, err := h.carriers.PredictRates(requestContext(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSONBlob(http.StatusOK, raw)
}

// CustomsHandler relays customs API calls
type CustomsHandler struct {
	customs *service.CustomsService
}

func NewCustomsHandler(customs *service.CustomsService) *CustomsHandler {
	return &CustomsHandler{customs: customs}
}

func (h *CustomsHandler) SubmitShippingBill(c echo.Context) error {
	var req service.ShippingBillRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	raw, err := h.customs.SubmitShippingBill(requestContext(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSONBlob(http.StatusCreated, raw)
}

func (h *CustomsHandler) SubmitBillOfEntry(c echo.Context) error {
	var req service.BillOfEntryRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	raw, err := h.customs.SubmitBillOfEntry(requestContext(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSONBlob(http.StatusCreated, raw)
}

func (h *CustomsHandler) ClearanceStatus(c echo.Context) error {
	raw, err := h.customs.ClearanceStatus(requestContext(c), c.Param("shipment_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSONBlob(http.StatusOK, raw)
}

func (h *CustomsHandler) PredictDelay(c echo.Context) error {
	var req service.DelayPredictionRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	raw, err := h.customs.PredictDelay(requestContext(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSONBlob(http.StatusOK, raw)
}
