package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/tradeflow/internal/service"
	"github.com/suteetoe/tradeflow/pkg/logger"
	"go.uber.org/zap"
)

type QuoteHandler struct {
	quotes *service.QuoteService
}

func NewQuoteHandler(quotes *service.QuoteService) *QuoteHandler {
	return &QuoteHandler{quotes: quotes}
}

// SubmitQuote handles a forwarder's quote on a shipment
func (h *QuoteHandler) SubmitQuote(c echo.Context) error {
	var req service.SubmitQuoteInput
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	quote, err := h.quotes.Submit(requestContext(c), callerFrom(c), c.Param("id"), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, quote)
}

// ListQuotes handles listing the quotes on a shipment
func (h *QuoteHandler) ListQuotes(c echo.Context) error {
	quotes, err := h.quotes.List(requestContext(c), callerFrom(c), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, quotes)
}

// AcceptQuote handles the supplier accepting one quote
func (h *QuoteHandler) AcceptQuote(c echo.Context) error {
	log := logger.FromContext(c)

	quoteID := c.QueryParam("quote_id")
	if quoteID == "" {
		return respondError(c, service.Validation("quote_id is required"))
	}
	log.Info("Accepting quote", zap.String("shipment_id", c.Param("id")), zap.String("quote_id", quoteID))

	result, err := h.quotes.Accept(requestContext(c), callerFrom(c), c.Param("id"), quoteID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":         "Quote accepted successfully",
		"quote":           result.Quote,
		"shipment_status": result.ShipmentStatus,
		"rejected_count":  result.RejectedCount,
	})
}

// UpdateQuote handles a forwarder editing or withdrawing its pending quote
func (h *QuoteHandler) UpdateQuote(c echo.Context) error {
	var req service.UpdateQuoteInput
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	quote, err := h.quotes.Update(requestContext(c), callerFrom(c), c.Param("id"), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, quote)
}
