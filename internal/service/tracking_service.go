package service

import (
	"context"
	"errors"
	"time"

	"github.com/suteetoe/tradeflow/internal/model"
	"github.com/suteetoe/tradeflow/pkg/logger"
	"github.com/suteetoe/tradeflow/pkg/notify"
	"github.com/suteetoe/tradeflow/prometheus"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TrackingEventInput is a forwarder's status update
type TrackingEventInput struct {
	Status            string     `json:"status" validate:"required,oneof=booked gate_in vessel_departed in_transit port_arrival gate_out customs_clearance delivered held delayed"`
	Location          string     `json:"location" validate:"required,min=2,max=200"`
	VesselName        string     `json:"vessel_name" validate:"max=100"`
	VoyageNumber      string     `json:"voyage_number" validate:"max=50"`
	ContainerNumber   string     `json:"container_number" validate:"max=20"`
	Description       string     `json:"description" validate:"required,min=5"`
	Remarks           string     `json:"remarks"`
	EstimatedDatetime *time.Time `json:"estimated_datetime"`
	ActualDatetime    *time.Time `json:"actual_datetime"`
	Documents         []string   `json:"documents"`
	IsMilestone       bool       `json:"is_milestone"`
}

// TrackingHistory is the full event log of a shipment plus derived arrival times
type TrackingHistory struct {
	ShipmentID       string                `json:"shipment_id"`
	ShipmentNumber   string                `json:"shipment_number"`
	CurrentStatus    string                `json:"current_status"`
	OriginPort       string                `json:"origin_port"`
	DestinationPort  string                `json:"destination_port"`
	EstimatedArrival *time.Time            `json:"estimated_arrival"`
	ActualArrival    *time.Time            `json:"actual_arrival"`
	Events           []model.TrackingEvent `json:"events"`
}

// TrackingService appends and reads shipment tracking events
type TrackingService struct {
	db         *gorm.DB
	dispatcher *notify.Dispatcher
	now        func() time.Time
}

func NewTrackingService(db *gorm.DB, dispatcher *notify.Dispatcher) *TrackingService {
	return &TrackingService{db: db, dispatcher: dispatcher, now: time.Now}
}

// CreateEvent appends an event. Only the forwarder holding the accepted quote may post,
// and a milestone event overwrites the shipment status in the same transaction.
func (s *TrackingService) CreateEvent(ctx context.Context, caller Caller, shipmentID string, in TrackingEventInput) (*model.TrackingEvent, error) {
	log := logger.FromCtx(ctx).With(zap.String("shipment_id", shipmentID))

	if !caller.Is(model.RoleForwarder) {
		return nil, Forbidden("Only forwarders can create tracking events")
	}
	if !model.ValidTrackingStatus(in.Status) {
		return nil, Validation("status is not a valid tracking status")
	}
	shipment, err := findShipment(ctx, s.db, shipmentID)
	if err != nil {
		return nil, err
	}
	assigned, err := assignedForwarder(ctx, s.db, shipment.ID, caller.ID)
	if err != nil {
		return nil, err
	}
	if !assigned {
		return nil, Forbidden("Only the assigned forwarder can create tracking events")
	}

	now := s.now().UTC()
	actual := in.ActualDatetime
	if actual == nil {
		actual = &now
	}
	documents := in.Documents
	if documents == nil {
		documents = []string{}
	}

	event := &model.TrackingEvent{
		ShipmentID:        shipment.ID,
		CreatedBy:         caller.ID,
		Status:            in.Status,
		Location:          in.Location,
		VesselName:        in.VesselName,
		VoyageNumber:      in.VoyageNumber,
		ContainerNumber:   in.ContainerNumber,
		Description:       in.Description,
		Remarks:           in.Remarks,
		EstimatedDatetime: in.EstimatedDatetime,
		ActualDatetime:    actual,
		Documents:         datatypes.JSONSlice[string](documents),
		IsMilestone:       in.IsMilestone,
		Timestamp:         now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		if !event.IsMilestone {
			return nil
		}
		return tx.Model(&model.Shipment{}).Where("id = ?", shipment.ID).Update("status", event.Status).Error
	})
	if err != nil {
		log.Error("Failed to create tracking event", zap.Error(err))
		return nil, err
	}

	prometheus.RecordTrackingEvent(event.IsMilestone)
	log.Info("Tracking event created",
		zap.String("event_id", event.ID),
		zap.String("status", event.Status),
		zap.Bool("milestone", event.IsMilestone))

	s.dispatcher.Send(notify.Notification{
		Type:         notify.TypeTrackingUpdate,
		ShipmentID:   shipment.ID,
		RecipientIDs: []string{shipment.SupplierID, shipment.BuyerID},
		Payload: map[string]interface{}{
			"event_id": event.ID,
			"status":   event.Status,
			"location": event.Location,
		},
	})
	return event, nil
}

// History returns every event of a shipment in chronological order
func (s *TrackingService) History(ctx context.Context, caller Caller, shipmentID string) (*TrackingHistory, error) {
	shipment, err := findShipment(ctx, s.db, shipmentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, shipment, caller); err != nil {
		return nil, err
	}

	events := []model.TrackingEvent{}
	if err := s.db.WithContext(ctx).Where("shipment_id = ?", shipment.ID).
		Order("timestamp ASC").Find(&events).Error; err != nil {
		return nil, err
	}

	history := &TrackingHistory{
		ShipmentID:      shipment.ID,
		ShipmentNumber:  shipment.ShipmentNumber,
		CurrentStatus:   shipment.Status,
		OriginPort:      shipment.OriginPort,
		DestinationPort: shipment.DestinationPort,
		Events:          events,
	}
	for i := range events {
		e := &events[i]
		if history.EstimatedArrival == nil && e.EstimatedDatetime != nil && e.Status != model.TrackingDelivered {
			history.EstimatedArrival = e.EstimatedDatetime
		}
		if e.Status == model.TrackingDelivered {
			if e.ActualDatetime != nil {
				history.ActualArrival = e.ActualDatetime
			} else {
				ts := e.Timestamp
				history.ActualArrival = &ts
			}
		}
	}
	return history, nil
}

// Latest returns the newest event of a shipment
func (s *TrackingService) Latest(ctx context.Context, caller Caller, shipmentID string) (*model.TrackingEvent, error) {
	shipment, err := findShipment(ctx, s.db, shipmentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, shipment, caller); err != nil {
		return nil, err
	}

	var event model.TrackingEvent
	err = s.db.WithContext(ctx).Where("shipment_id = ?", shipment.ID).
		Order("timestamp DESC").First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("No tracking events found")
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// authorizeRead restricts suppliers and buyers to their own shipments and forwarders to the
// ones they quoted on
func (s *TrackingService) authorizeRead(ctx context.Context, shipment *model.Shipment, caller Caller) error {
	switch caller.Role {
	case model.RoleSupplier, model.RoleBuyer:
		return authorizeView(ctx, s.db, shipment, caller)
	case model.RoleForwarder:
		quoted, err := hasQuoted(ctx, s.db, shipment.ID, caller.ID)
		if err != nil {
			return err
		}
		if quoted {
			return nil
		}
	}
	return Forbidden("Not authorized to view tracking for this shipment")
}
