package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/suteetoe/tradeflow/internal/model"
	"github.com/suteetoe/tradeflow/pkg/logger"
	"github.com/suteetoe/tradeflow/pkg/notify"
	"github.com/suteetoe/tradeflow/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultFreeDays = 7

// SubmitQuoteInput is a forwarder's offer on a shipment
type SubmitQuoteInput struct {
	FreightAmountUSD      decimal.Decimal `json:"freight_amount_usd" validate:"gt=0"`
	FuelSurcharge         decimal.Decimal `json:"fuel_surcharge" validate:"gte=0"`
	THCCharges            decimal.Decimal `json:"thc_charges" validate:"gte=0"`
	DocumentationCharges  decimal.Decimal `json:"documentation_charges" validate:"gte=0"`
	OtherCharges          decimal.Decimal `json:"other_charges" validate:"gte=0"`
	ValidityDate          time.Time       `json:"validity_date" validate:"required"`
	TransitTimeDays       int             `json:"transit_time_days" validate:"gt=0"`
	FreeDaysAtDestination *int            `json:"free_days_at_destination" validate:"omitempty,gte=0"`
	Routing               string          `json:"routing" validate:"required,min=5"`
	VesselName            string          `json:"vessel_name" validate:"max=100"`
	VoyageNumber          string          `json:"voyage_number" validate:"max=50"`
	ContainerType         string          `json:"container_type" validate:"required,max=20"`
	ContainerQuantity     int             `json:"container_quantity" validate:"gte=1"`
	Remarks               string          `json:"remarks"`
	TermsAndConditions    string          `json:"terms_and_conditions"`
}

// UpdateQuoteInput lets a forwarder edit remarks or withdraw a pending quote
type UpdateQuoteInput struct {
	Status  string  `json:"status" validate:"required,oneof=pending rejected"`
	Remarks *string `json:"remarks"`
}

// QuoteView is a quote together with its forwarder's display names
type QuoteView struct {
	model.Quote
	ForwarderName    string `json:"forwarder_name"`
	ForwarderCompany string `json:"forwarder_company"`
}

// AcceptResult reports the outcome of an acceptance
type AcceptResult struct {
	Quote          *model.Quote `json:"quote"`
	ShipmentStatus string       `json:"shipment_status"`
	RejectedCount  int64        `json:"rejected_count"`
}

// QuoteService manages forwarder quotes and their acceptance
type QuoteService struct {
	db         *gorm.DB
	dispatcher *notify.Dispatcher
	now        func() time.Time
	number     func(time.Time) string
}

func NewQuoteService(db *gorm.DB, dispatcher *notify.Dispatcher) *QuoteService {
	return &QuoteService{db: db, dispatcher: dispatcher, now: time.Now, number: QuoteNumber}
}

func (s *QuoteService) findQuote(ctx context.Context, id string) (*model.Quote, error) {
	var quote model.Quote
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&quote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("Quote not found")
	}
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// Submit records a pending quote from the calling forwarder
func (s *QuoteService) Submit(ctx context.Context, caller Caller, shipmentID string, in SubmitQuoteInput) (*model.Quote, error) {
	log := logger.FromCtx(ctx)

	if !caller.Is(model.RoleForwarder) {
		return nil, Forbidden("Only forwarders can submit quotes")
	}
	shipment, err := findShipment(ctx, s.db, shipmentID)
	if err != nil {
		return nil, err
	}

	var accepted int64
	if err := s.db.WithContext(ctx).Model(&model.Quote{}).
		Where("shipment_id = ? AND status = ?", shipmentID, model.QuoteStatusAccepted).
		Count(&accepted).Error; err != nil {
		return nil, err
	}
	if accepted > 0 {
		return nil, InvalidState("Shipment already has an accepted quote")
	}

	now := s.now()
	if !in.ValidityDate.After(now) {
		return nil, Validation("validity_date must be in the future")
	}

	freeDays := defaultFreeDays
	if in.FreeDaysAtDestination != nil {
		freeDays = *in.FreeDaysAtDestination
	}

	quote := &model.Quote{
		QuoteNumber:           s.number(now),
		ShipmentID:            shipment.ID,
		ForwarderID:           caller.ID,
		FreightAmountUSD:      in.FreightAmountUSD,
		FuelSurcharge:         in.FuelSurcharge,
		THCCharges:            in.THCCharges,
		DocumentationCharges:  in.DocumentationCharges,
		OtherCharges:          in.OtherCharges,
		ValidityDate:          in.ValidityDate,
		TransitTimeDays:       in.TransitTimeDays,
		FreeDaysAtDestination: freeDays,
		Routing:               in.Routing,
		VesselName:            in.VesselName,
		VoyageNumber:          in.VoyageNumber,
		ContainerType:         in.ContainerType,
		ContainerQuantity:     in.ContainerQuantity,
		Status:                model.QuoteStatusPending,
		Remarks:               in.Remarks,
		TermsAndConditions:    in.TermsAndConditions,
	}
	quote.ComputeTotal()

	defer prometheus.TrackDBOperation("insert")(time.Now())
	err = createNumbered(ctx, s.db, quote, func() { quote.QuoteNumber = s.number(now) })
	if err != nil {
		log.Error("Failed to create quote", zap.Error(err))
		return nil, err
	}
	prometheus.RecordQuoteTransition(model.QuoteStatusPending, 1)

	log.Info("Quote submitted",
		zap.String("quote_id", quote.ID),
		zap.String("shipment_id", shipment.ID),
		zap.String("total", quote.TotalAmountUSD.StringFixed(2)))

	s.dispatcher.Send(notify.Notification{
		Type:         notify.TypeQuoteSubmitted,
		ShipmentID:   shipment.ID,
		RecipientIDs: []string{shipment.SupplierID},
		Payload: map[string]interface{}{
			"quote_id":     quote.ID,
			"quote_number": quote.QuoteNumber,
			"total":        quote.TotalAmountUSD.StringFixed(2),
		},
	})
	return quote, nil
}

// List returns the quotes on a shipment. Forwarders only see their own.
func (s *QuoteService) List(ctx context.Context, caller Caller, shipmentID string) ([]QuoteView, error) {
	shipment, err := findShipment(ctx, s.db, shipmentID)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Where("shipment_id = ?", shipment.ID)
	switch caller.Role {
	case model.RoleSupplier:
		if shipment.SupplierID != caller.ID {
			return nil, Forbidden("Not authorized to view quotes for this shipment")
		}
	case model.RoleBuyer:
		if shipment.BuyerID != caller.ID {
			return nil, Forbidden("Not authorized to view quotes for this shipment")
		}
	case model.RoleForwarder:
		query = query.Where("forwarder_id = ?", caller.ID)
	default:
		return nil, Forbidden("Not authorized to view quotes for this shipment")
	}

	var quotes []model.Quote
	if err := query.Order("created_at DESC").Find(&quotes).Error; err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(quotes))
	for _, q := range quotes {
		ids = append(ids, q.ForwarderID)
	}
	users, err := userNames(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	views := make([]QuoteView, 0, len(quotes))
	for _, q := range quotes {
		view := QuoteView{Quote: q, ForwarderName: "Unknown", ForwarderCompany: "Unknown"}
		if u, ok := users[q.ForwarderID]; ok {
			view.ForwarderName = u.FullName
			view.ForwarderCompany = u.CompanyName
		}
		views = append(views, view)
	}
	return views, nil
}

// Accept moves a pending quote to accepted, rejects its pending siblings and marks the
// shipment quoted, all in one transaction. A quote past its validity date is persisted as
// expired and reported as ErrExpired.
func (s *QuoteService) Accept(ctx context.Context, caller Caller, shipmentID, quoteID string) (*AcceptResult, error) {
	log := logger.FromCtx(ctx).With(zap.String("shipment_id", shipmentID), zap.String("quote_id", quoteID))

	shipment, err := findShipment(ctx, s.db, shipmentID)
	if err != nil {
		return nil, err
	}
	quote, err := s.findQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.ShipmentID != shipment.ID {
		return nil, NotFound("Quote not found")
	}
	if err := authorizeOwner(shipment, caller); err != nil {
		return nil, err
	}
	if quote.Status != model.QuoteStatusPending {
		return nil, InvalidState("Quote is %s and can no longer be accepted", quote.Status)
	}

	now := s.now()
	if quote.ValidityDate.Before(now) {
		res := s.db.WithContext(ctx).Model(&model.Quote{}).
			Where("id = ? AND status = ?", quote.ID, model.QuoteStatusPending).
			Update("status", model.QuoteStatusExpired)
		if res.Error != nil {
			return nil, res.Error
		}
		prometheus.RecordQuoteTransition(model.QuoteStatusExpired, int(res.RowsAffected))
		log.Info("Quote expired on accept")
		return nil, Expired("Quote has expired")
	}

	var rejected []model.Quote
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Quote{}).
			Where("id = ? AND status = ?", quote.ID, model.QuoteStatusPending).
			Updates(map[string]interface{}{"status": model.QuoteStatusAccepted, "accepted_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return InvalidState("Quote is no longer pending")
		}

		if err := tx.Where("shipment_id = ? AND id <> ? AND status = ?", shipment.ID, quote.ID, model.QuoteStatusPending).
			Find(&rejected).Error; err != nil {
			return err
		}
		if len(rejected) > 0 {
			if err := tx.Model(&model.Quote{}).
				Where("shipment_id = ? AND id <> ? AND status = ?", shipment.ID, quote.ID, model.QuoteStatusPending).
				Update("status", model.QuoteStatusRejected).Error; err != nil {
				return err
			}
		}

		return tx.Model(&model.Shipment{}).
			Where("id = ?", shipment.ID).
			Update("status", model.ShipmentStatusQuoted).Error
	})
	if err != nil {
		log.Error("Failed to accept quote", zap.Error(err))
		return nil, err
	}

	prometheus.RecordQuoteTransition(model.QuoteStatusAccepted, 1)
	prometheus.RecordQuoteTransition(model.QuoteStatusRejected, len(rejected))
	log.Info("Quote accepted", zap.Int("rejected", len(rejected)))

	quote.Status = model.QuoteStatusAccepted
	quote.AcceptedAt = &now

	s.dispatcher.Send(notify.Notification{
		Type:         notify.TypeQuoteAccepted,
		ShipmentID:   shipment.ID,
		RecipientIDs: []string{quote.ForwarderID},
		Payload: map[string]interface{}{
			"quote_id":        quote.ID,
			"shipment_number": shipment.ShipmentNumber,
		},
	})
	for _, r := range rejected {
		s.dispatcher.Send(notify.Notification{
			Type:         notify.TypeQuoteRejected,
			ShipmentID:   shipment.ID,
			RecipientIDs: []string{r.ForwarderID},
			Payload:      map[string]interface{}{"quote_id": r.ID},
		})
	}

	return &AcceptResult{
		Quote:          quote,
		ShipmentStatus: model.ShipmentStatusQuoted,
		RejectedCount:  int64(len(rejected)),
	}, nil
}

// Update edits the caller's own quote while it is still pending
func (s *QuoteService) Update(ctx context.Context, caller Caller, quoteID string, in UpdateQuoteInput) (*model.Quote, error) {
	quote, err := s.findQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !caller.Is(model.RoleForwarder) || quote.ForwarderID != caller.ID {
		return nil, Forbidden("Only the quoting forwarder can update this quote")
	}
	if quote.Status != model.QuoteStatusPending {
		return nil, InvalidState("Quote is %s and can no longer be changed", quote.Status)
	}
	if in.Status != model.QuoteStatusPending && in.Status != model.QuoteStatusRejected {
		return nil, Validation("status must be one of [pending rejected]")
	}

	updates := map[string]interface{}{"status": in.Status}
	if in.Remarks != nil {
		updates["remarks"] = *in.Remarks
	}
	res := s.db.WithContext(ctx).Model(&model.Quote{}).
		Where("id = ? AND status = ?", quote.ID, model.QuoteStatusPending).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, InvalidState("Quote is no longer pending")
	}
	if in.Status == model.QuoteStatusRejected {
		prometheus.RecordQuoteTransition(model.QuoteStatusRejected, 1)
		logger.FromCtx(ctx).Info("Quote withdrawn", zap.String("quote_id", quote.ID))
	}
	return s.findQuote(ctx, quote.ID)
}
