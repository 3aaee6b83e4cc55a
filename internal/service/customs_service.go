package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/suteetoe/tradeflow/internal/model"
	"github.com/suteetoe/tradeflow/pkg/logger"
	"github.com/suteetoe/tradeflow/pkg/upstream"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ShippingBillRequest is an export filing. ShipmentID links it locally and is not sent out.
type ShippingBillRequest struct {
	ExporterName  string  `json:"exporterName" validate:"required"`
	InvoiceNumber string  `json:"invoiceNumber" validate:"required"`
	PortOfLoading string  `json:"portOfLoading" validate:"required"`
	GoodsValue    float64 `json:"goodsValue" validate:"gt=0"`
	ShipmentID    string  `json:"shipmentId,omitempty" validate:"required,uuid"`
}

// BillOfEntryRequest is an import filing. ShipmentID links it locally and is not sent out.
type BillOfEntryRequest struct {
	ImporterName    string  `json:"importerName" validate:"required"`
	InvoiceNumber   string  `json:"invoiceNumber" validate:"required"`
	PortOfDischarge string  `json:"portOfDischarge" validate:"required"`
	DutyAmount      float64 `json:"dutyAmount" validate:"gte=0"`
	ShipmentID      string  `json:"shipmentId,omitempty" validate:"required,uuid"`
}

// DelayPredictionRequest asks for a clearance delay forecast
type DelayPredictionRequest struct {
	Port              string  `json:"port" validate:"required"`
	RMSExamination    bool    `json:"rmsExamination"`
	DutyAmount        float64 `json:"dutyAmount" validate:"gte=0"`
	DocumentsComplete bool    `json:"documentsComplete"`
	ShipmentID        string  `json:"shipmentId,omitempty" validate:"omitempty,uuid"`
}

// CustomsService relays filings to the customs API and records them against shipments
type CustomsService struct {
	db     *gorm.DB
	client *upstream.Client
}

func NewCustomsService(db *gorm.DB, client *upstream.Client) *CustomsService {
	return &CustomsService{db: db, client: client}
}

func (s *CustomsService) SubmitShippingBill(ctx context.Context, req ShippingBillRequest) (json.RawMessage, error) {
	shipmentID := req.ShipmentID
	req.ShipmentID = ""
	return s.submit(ctx, shipmentID, model.CustomsExport, "/export/shipping-bill", req)
}

func (s *CustomsService) SubmitBillOfEntry(ctx context.Context, req BillOfEntryRequest) (json.RawMessage, error) {
	shipmentID := req.ShipmentID
	req.ShipmentID = ""
	return s.submit(ctx, shipmentID, model.CustomsImport, "/import/bill-of-entry", req)
}

func (s *CustomsService) submit(ctx context.Context, shipmentID, entryType, path string, body interface{}) (json.RawMessage, error) {
	log := logger.FromCtx(ctx).With(zap.String("shipment_id", shipmentID), zap.String("entry_type", entryType))

	if _, err := findShipment(ctx, s.db, shipmentID); err != nil {
		return nil, err
	}

	raw, err := s.client.Do(ctx, http.MethodPost, path, nil, body, http.StatusCreated)
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{}
	if err := json.Unmarshal(raw, &result); err != nil {
		log.Warn("Customs response is not an object", zap.Error(err))
	}
	referenceID, _ := result["referenceId"].(string)

	entry := &model.CustomsEntry{
		ShipmentID:  shipmentID,
		EntryType:   entryType,
		ReferenceID: referenceID,
		Status:      model.CustomsStatusSubmitted,
		Metadata:    datatypes.JSONMap(result),
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		log.Error("Failed to persist customs entry", zap.Error(err))
		return nil, err
	}

	log.Info("Customs filing submitted", zap.String("reference_id", referenceID))
	return raw, nil
}

func (s *CustomsService) ClearanceStatus(ctx context.Context, shipmentID string) (json.RawMessage, error) {
	return s.client.Do(ctx, http.MethodGet, "/clearance/status/"+url.PathEscape(shipmentID), nil, nil, http.StatusOK)
}

// PredictDelay relays the request and, when a shipment is named, attaches the forecast to
// that shipment's latest customs entry
func (s *CustomsService) PredictDelay(ctx context.Context, req DelayPredictionRequest) (json.RawMessage, error) {
	shipmentID := req.ShipmentID
	req.ShipmentID = ""
	if shipmentID != "" {
		if _, err := findShipment(ctx, s.db, shipmentID); err != nil {
			return nil, err
		}
	}

	raw, err := s.client.Do(ctx, http.MethodPost, "/ai/clearance-delay-prediction", nil, req, http.StatusOK)
	if err != nil {
		return nil, err
	}
	if shipmentID == "" {
		return raw, nil
	}

	log := logger.FromCtx(ctx).With(zap.String("shipment_id", shipmentID))
	var prediction map[string]interface{}
	if err := json.Unmarshal(raw, &prediction); err != nil {
		log.Warn("Delay prediction is not an object, not recorded", zap.Error(err))
		return raw, nil
	}

	var entry model.CustomsEntry
	err = s.db.WithContext(ctx).Where("shipment_id = ?", shipmentID).Order("created_at DESC").First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Info("No customs entry to attach delay prediction to")
		return raw, nil
	}
	if err != nil {
		return nil, err
	}

	metadata := datatypes.JSONMap{}
	for k, v := range entry.Metadata {
		metadata[k] = v
	}
	metadata["delay_prediction"] = prediction
	metadata["delay_predicted_at"] = time.Now().UTC().Format(time.RFC3339)
	if err := s.db.WithContext(ctx).Model(&entry).Update("metadata", metadata).Error; err != nil {
		log.Error("Failed to record delay prediction", zap.Error(err))
		return nil, err
	}
	return raw, nil
}
