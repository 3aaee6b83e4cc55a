package handler

import (
	"github.com/labstack/echo/v4"
	mid "github.com/suteetoe/tradeflow/internal/middleware"
	"github.com/suteetoe/tradeflow/internal/model"
)

// Handlers groups every HTTP handler of the service
type Handlers struct {
	Health    *HealthHandler
	Auth      *AuthHandler
	Shipments *ShipmentHandler
	Quotes    *QuoteHandler
	Tracking  *TrackingHandler
	Documents *DocumentHandler
	Carriers  *CarrierHandler
	Customs   *CustomsHandler
}

// RegisterRoutes mounts the API. auth guards everything under /api.
func RegisterRoutes(e *echo.Echo, h *Handlers, auth echo.MiddlewareFunc) {
	supplierOnly := mid.RequireRole(model.RoleSupplier)
	forwarderOnly := mid.RequireRole(model.RoleForwarder)

	e.GET("/health", h.Health.HealthCheck)

	// Public auth routes
	e.POST("/auth/register", h.Auth.Register)
	e.POST("/auth/login", h.Auth.Login)

	api := e.Group("/api", auth)

	authAPI := api.Group("/auth")
	authAPI.GET("/me", h.Auth.Me)
	authAPI.POST("/logout", h.Auth.Logout)

	shipmentAPI := api.Group("/shipments")
	shipmentAPI.POST("", h.Shipments.CreateShipment, supplierOnly)
	shipmentAPI.GET("", h.Shipments.ListShipments)
	shipmentAPI.GET("/open", h.Shipments.ListOpenShipments, forwarderOnly)
	shipmentAPI.GET("/:id", h.Shipments.GetShipment)
	shipmentAPI.PATCH("/:id", h.Shipments.UpdateShipment, supplierOnly)
	shipmentAPI.POST("/:id/request-quotes", h.Shipments.RequestQuotes, supplierOnly)
	shipmentAPI.POST("/:id/quotes", h.Quotes.SubmitQuote, forwarderOnly)
	shipmentAPI.GET("/:id/quotes", h.Quotes.ListQuotes)
	shipmentAPI.POST("/:id/accept-quote", h.Quotes.AcceptQuote, supplierOnly)

	api.PUT("/quotes/:id", h.Quotes.UpdateQuote, forwarderOnly)

	trackingAPI := api.Group("/tracking/shipments")
	trackingAPI.POST("/:id/events", h.Tracking.CreateEvent, forwarderOnly)
	trackingAPI.GET("/:id", h.Tracking.GetHistory)
	trackingAPI.GET("/:id/events/latest", h.Tracking.GetLatest)

	documentAPI := api.Group("/documents")
	documentAPI.POST("/shipments/:id/upload", h.Documents.UploadDocument)
	documentAPI.GET("/shipments/:id/documents", h.Documents.ListDocuments)
	documentAPI.GET("/:id", h.Documents.GetDocument)
	documentAPI.POST("/:id/extract", h.Documents.ExtractDocument)
	documentAPI.POST("/:id/autofill", h.Documents.AutofillShipment, supplierOnly)

	carrierAPI := api.Group("/carriers")
	carrierAPI.POST("/booking/create", h.Carriers.CreateBooking)
	carrierAPI.GET("/booking/status/:booking_number", h.Carriers.BookingStatus)
	carrierAPI.GET("/schedule/search", h.Carriers.SearchSchedule)
	carrierAPI.POST("/rates/quote", h.Carriers.RateQuote)
	carrierAPI.GET("/tracking/container/:container_number", h.Carriers.TrackContainer)
	carrierAPI.POST("/ai/rates/predict", h.Carriers.PredictRates)

	customsAPI := api.Group("/customs")
	customsAPI.POST("/export/shipping-bill", h.Customs.SubmitShippingBill)
	customsAPI.POST("/import/bill-of-entry", h.Customs.SubmitBillOfEntry)
	customsAPI.GET("/clearance/status/:shipment_id", h.Customs.ClearanceStatus)
	customsAPI.POST("/ai/prediction", h.Customs.PredictDelay)
}
