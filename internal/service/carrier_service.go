package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/suteetoe/tradeflow/internal/model"
	"github.com/suteetoe/tradeflow/pkg/logger"
	"github.com/suteetoe/tradeflow/pkg/upstream"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BookingRequest asks a carrier for container space
type BookingRequest struct {
	Carrier       string  `json:"carrier" validate:"required"`
	Origin        string  `json:"origin" validate:"required"`
	Destination   string  `json:"destination" validate:"required"`
	ContainerType string  `json:"containerType" validate:"required"`
	Quantity      int     `json:"quantity" validate:"gte=1"`
	ShipmentID    *string `json:"shipmentId,omitempty"`
}

type RateRequest struct {
	Origin        string `json:"origin" validate:"required"`
	Destination   string `json:"destination" validate:"required"`
	ContainerType string `json:"containerType" validate:"required"`
}

type RatePredictionRequest struct {
	Origin         string  `json:"origin" validate:"required"`
	Destination    string  `json:"destination" validate:"required"`
	Carrier        string  `json:"carrier" validate:"required"`
	ContainerType  string  `json:"containerType" validate:"required"`
	CurrentRateUSD float64 `json:"currentRateUSD" validate:"gt=0"`
}

// CarrierService relays calls to the carrier API
type CarrierService struct {
	db     *gorm.DB
	client *upstream.Client
}

func NewCarrierService(db *gorm.DB, client *upstream.Client) *CarrierService {
	return &CarrierService{db: db, client: client}
}

// CreateBooking books space and keeps the carrier's confirmation keyed by booking number
func (s *CarrierService) CreateBooking(ctx context.Context, caller Caller, req BookingRequest) (json.RawMessage, error) {
	log := logger.FromCtx(ctx)

	if req.ShipmentID != nil && *req.ShipmentID != "" {
		if _, err := findShipment(ctx, s.db, *req.ShipmentID); err != nil {
			return nil, err
		}
	} else {
		req.ShipmentID = nil
	}

	outbound := req
	outbound.ShipmentID = nil
	raw, err := s.client.Do(ctx, http.MethodPost, "/booking/create", nil, outbound, http.StatusCreated)
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(raw, &result); err != nil {
		return raw, nil
	}
	bookingNumber, _ := result["bookingNumber"].(string)
	if bookingNumber == "" {
		log.Warn("Carrier booking response has no bookingNumber, not persisted")
		return raw, nil
	}

	carrier, _ := result["carrier"].(string)
	if carrier == "" {
		carrier = req.Carrier
	}
	status, _ := result["status"].(string)

	booking := &model.CarrierBooking{
		BookingNumber: bookingNumber,
		ShipmentID:    req.ShipmentID,
		CarrierName:   carrier,
		Status:        status,
		Metadata:      datatypes.JSONMap(result),
		CreatedBy:     caller.ID,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "booking_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"carrier_name", "status", "metadata", "updated_at"}),
	}).Create(booking).Error
	if err != nil {
		log.Error("Failed to persist carrier booking", zap.String("booking_number", bookingNumber), zap.Error(err))
		return nil, err
	}

	log.Info("Carrier booking created", zap.String("booking_number", bookingNumber), zap.String("carrier", carrier))
	return raw, nil
}

func (s *CarrierService) BookingStatus(ctx context.Context, bookingNumber string) (json.RawMessage, error) {
	return s.client.Do(ctx, http.MethodGet, "/booking/status/"+url.PathEscape(bookingNumber), nil, nil, http.StatusOK)
}

func (s *CarrierService) SearchSchedule(ctx context.Context, origin, destination string) (json.RawMessage, error) {
	if origin == "" || destination == "" {
		return nil, Validation("origin and destination are required")
	}
	query := url.Values{}
	query.Set("origin", origin)
	query.Set("destination", destination)
	return s.client.Do(ctx, http.MethodGet, "/schedule/search", query, nil, http.StatusOK)
}

func (s *CarrierService) RateQuote(ctx context.Context, req RateRequest) (json.RawMessage, error) {
	return s.client.Do(ctx, http.MethodPost, "/rates/quote", nil, req, http.StatusOK)
}

func (s *CarrierService) TrackContainer(ctx context.Context, containerNumber string) (json.RawMessage, error) {
	return s.client.Do(ctx, http.MethodGet, "/tracking/container/"+url.PathEscape(containerNumber), nil, nil, http.StatusOK)
}

func (s *CarrierService) PredictRates(ctx context.Context, req RatePredictionRequest) (json.RawMessage, error) {
	return s.client.Do(ctx, http.MethodPost, "/ai/rates/predict", nil, req, http.StatusOK)
}
