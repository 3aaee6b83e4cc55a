package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/suteetoe/tradeflow/internal/model"
	"github.com/suteetoe/tradeflow/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreateShipmentInput is the supplier's new shipment request
type CreateShipmentInput struct {
	BuyerID             string           `json:"buyer_id" validate:"required"`
	OriginPort          string           `json:"origin_port" validate:"required,min=2,max=100"`
	DestinationPort     string           `json:"destination_port" validate:"required,min=2,max=100"`
	Incoterm            string           `json:"incoterm" validate:"omitempty,oneof=EXW FCA FAS FOB CFR CIF CPT CIP DAP DPU DDP"`
	CargoType           string           `json:"cargo_type" validate:"omitempty,oneof=FCL LCL AIR BREAK_BULK"`
	ContainerType       string           `json:"container_type" validate:"omitempty,max=20"`
	ContainerQty        int              `json:"container_qty" validate:"gte=0"`
	GoodsDescription    string           `json:"goods_description" validate:"required,min=3"`
	HSCode              string           `json:"hs_code" validate:"omitempty,max=20"`
	GrossWeightKg       *float64         `json:"gross_weight_kg" validate:"omitempty,gt=0"`
	NetWeightKg         *float64         `json:"net_weight_kg" validate:"omitempty,gt=0"`
	VolumeCBM           *float64         `json:"volume_cbm" validate:"omitempty,gt=0"`
	TotalPackages       *int             `json:"total_packages" validate:"omitempty,gt=0"`
	PackageType         string           `json:"package_type" validate:"omitempty,max=50"`
	PreferredETD        *time.Time       `json:"preferred_etd"`
	PreferredETA        *time.Time       `json:"preferred_eta"`
	DeclaredValueUSD    *decimal.Decimal `json:"declared_value_usd" validate:"omitempty,gte=0"`
	InsuranceRequired   bool             `json:"insurance_required"`
	SpecialInstructions string           `json:"special_instructions"`
}

// UpdateShipmentInput carries a partial update; nil fields are left untouched
type UpdateShipmentInput struct {
	OriginPort       *string          `json:"origin_port" validate:"omitempty,min=2,max=100"`
	DestinationPort  *string          `json:"destination_port" validate:"omitempty,min=2,max=100"`
	Incoterm         *string          `json:"incoterm" validate:"omitempty,oneof=EXW FCA FAS FOB CFR CIF CPT CIP DAP DPU DDP"`
	ContainerType    *string          `json:"container_type" validate:"omitempty,max=20"`
	ContainerQty     *int             `json:"container_qty" validate:"omitempty,gte=0"`
	GoodsDescription *string          `json:"goods_description" validate:"omitempty,min=3"`
	HSCode           *string          `json:"hs_code" validate:"omitempty,max=20"`
	GrossWeightKg    *float64         `json:"gross_weight_kg" validate:"omitempty,gt=0"`
	NetWeightKg      *float64         `json:"net_weight_kg" validate:"omitempty,gt=0"`
	VolumeCBM        *float64         `json:"volume_cbm" validate:"omitempty,gt=0"`
	TotalPackages    *int             `json:"total_packages" validate:"omitempty,gt=0"`
	PackageType      *string          `json:"package_type" validate:"omitempty,max=50"`
	PreferredETD     *time.Time       `json:"preferred_etd"`
	PreferredETA     *time.Time       `json:"preferred_eta"`
	DeclaredValueUSD *decimal.Decimal `json:"declared_value_usd" validate:"omitempty,gte=0"`
}

// ShipmentService is the shipment registry
type ShipmentService struct {
	db     *gorm.DB
	now    func() time.Time
	number func(time.Time) string
}

func NewShipmentService(db *gorm.DB) *ShipmentService {
	return &ShipmentService{db: db, now: time.Now, number: ShipmentNumber}
}

// Create registers a draft shipment owned by the calling supplier
func (s *ShipmentService) Create(ctx context.Context, caller Caller, in CreateShipmentInput) (*model.Shipment, error) {
	if !caller.Is(model.RoleSupplier) {
		return nil, Forbidden("Only suppliers can create shipments")
	}
	if in.PreferredETD != nil && in.PreferredETA != nil && in.PreferredETA.Before(*in.PreferredETD) {
		return nil, Validation("preferred_eta must not be before preferred_etd")
	}

	var buyer model.User
	err := s.db.WithContext(ctx).Where("id = ? AND role = ?", in.BuyerID, model.RoleBuyer).First(&buyer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, Validation("buyer_id does not reference a buyer")
	}
	if err != nil {
		return nil, err
	}

	shipment := &model.Shipment{
		ShipmentNumber:    s.number(s.now()),
		SupplierID:        caller.ID,
		BuyerID:           buyer.ID,
		OriginPort:        in.OriginPort,
		DestinationPort:   in.DestinationPort,
		Incoterm:          in.Incoterm,
		CargoType:         in.CargoType,
		ContainerType:     in.ContainerType,
		ContainerQty:      in.ContainerQty,
		GoodsDescription:  in.GoodsDescription,
		HSCode:            in.HSCode,
		GrossWeightKg:     in.GrossWeightKg,
		NetWeightKg:       in.NetWeightKg,
		VolumeCBM:         in.VolumeCBM,
		TotalPackages:     in.TotalPackages,
		PackageType:       in.PackageType,
		PreferredETD:      in.PreferredETD,
		PreferredETA:      in.PreferredETA,
		InsuranceRequired: in.InsuranceRequired,
		Status:            model.ShipmentStatusDraft,
		Metadata: datatypes.JSONMap{
			"special_instructions": in.SpecialInstructions,
			"created_via":          "api",
		},
	}
	if in.DeclaredValueUSD != nil {
		shipment.DeclaredValueUSD = decimal.NewNullDecimal(*in.DeclaredValueUSD)
	}

	if err := createNumbered(ctx, s.db, shipment, func() { shipment.ShipmentNumber = s.number(s.now()) }); err != nil {
		return nil, err
	}

	logger.FromCtx(ctx).Info("Shipment created",
		zap.String("shipment_id", shipment.ID),
		zap.String("shipment_number", shipment.ShipmentNumber))
	return shipment, nil
}

// List returns the shipments visible to caller, newest first. Suppliers and buyers see their
// own; forwarders see the ones they quoted on.
func (s *ShipmentService) List(ctx context.Context, caller Caller, status string) ([]model.Shipment, error) {
	query := s.db.WithContext(ctx).Model(&model.Shipment{})
	switch caller.Role {
	case model.RoleSupplier:
		query = query.Where("supplier_id = ?", caller.ID)
	case model.RoleBuyer:
		query = query.Where("buyer_id = ?", caller.ID)
	case model.RoleForwarder:
		query = query.Where("id IN (?)",
			s.db.Model(&model.Quote{}).Select("shipment_id").Where("forwarder_id = ?", caller.ID))
	default:
		return nil, Forbidden("Unknown role")
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	shipments := []model.Shipment{}
	if err := query.Order("created_at DESC").Find(&shipments).Error; err != nil {
		return nil, err
	}
	return shipments, nil
}

// ListOpen returns shipments forwarders may still quote on
func (s *ShipmentService) ListOpen(ctx context.Context, caller Caller) ([]model.Shipment, error) {
	if !caller.Is(model.RoleForwarder) {
		return nil, Forbidden("Only forwarders can browse open shipments")
	}
	shipments := []model.Shipment{}
	err := s.db.WithContext(ctx).
		Where("status IN ?", []string{model.ShipmentStatusDraft, model.ShipmentStatusQuoteRequested}).
		Where("id NOT IN (?)", s.db.Model(&model.Quote{}).Select("shipment_id").Where("status = ?", model.QuoteStatusAccepted)).
		Order("created_at DESC").
		Find(&shipments).Error
	return shipments, err
}

// Get returns one shipment if caller may see it
func (s *ShipmentService) Get(ctx context.Context, caller Caller, id string) (*model.Shipment, error) {
	shipment, err := findShipment(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(ctx, s.db, shipment, caller); err != nil {
		return nil, err
	}
	return shipment, nil
}

// Update applies a partial update by the owning supplier
func (s *ShipmentService) Update(ctx context.Context, caller Caller, id string, in UpdateShipmentInput) (*model.Shipment, error) {
	shipment, err := findShipment(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwner(shipment, caller); err != nil {
		return nil, err
	}

	etd, eta := shipment.PreferredETD, shipment.PreferredETA
	if in.PreferredETD != nil {
		etd = in.PreferredETD
	}
	if in.PreferredETA != nil {
		eta = in.PreferredETA
	}
	if etd != nil && eta != nil && eta.Before(*etd) {
		return nil, Validation("preferred_eta must not be before preferred_etd")
	}

	updates := map[string]interface{}{}
	setString := func(column string, v *string) {
		if v != nil {
			updates[column] = *v
		}
	}
	setString("origin_port", in.OriginPort)
	setString("destination_port", in.DestinationPort)
	setString("incoterm", in.Incoterm)
	setString("container_type", in.ContainerType)
	setString("goods_description", in.GoodsDescription)
	setString("hs_code", in.HSCode)
	setString("package_type", in.PackageType)
	if in.ContainerQty != nil {
		updates["container_qty"] = *in.ContainerQty
	}
	if in.GrossWeightKg != nil {
		updates["gross_weight_kg"] = *in.GrossWeightKg
	}
	if in.NetWeightKg != nil {
		updates["net_weight_kg"] = *in.NetWeightKg
	}
	if in.VolumeCBM != nil {
		updates["volume_cbm"] = *in.VolumeCBM
	}
	if in.TotalPackages != nil {
		updates["total_packages"] = *in.TotalPackages
	}
	if in.PreferredETD != nil {
		updates["preferred_etd"] = *in.PreferredETD
	}
	if in.PreferredETA != nil {
		updates["preferred_eta"] = *in.PreferredETA
	}
	if in.DeclaredValueUSD != nil {
		updates["declared_value_usd"] = decimal.NewNullDecimal(*in.DeclaredValueUSD)
	}
	if len(updates) == 0 {
		return shipment, nil
	}

	if err := s.db.WithContext(ctx).Model(shipment).Updates(updates).Error; err != nil {
		return nil, err
	}
	return findShipment(ctx, s.db, id)
}

// RequestQuotes opens a draft shipment to forwarder quotes
func (s *ShipmentService) RequestQuotes(ctx context.Context, caller Caller, id string) (*model.Shipment, error) {
	shipment, err := findShipment(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwner(shipment, caller); err != nil {
		return nil, err
	}
	if shipment.Status != model.ShipmentStatusDraft {
		return nil, InvalidState("Shipment is %s, only draft shipments can request quotes", shipment.Status)
	}

	res := s.db.WithContext(ctx).Model(&model.Shipment{}).
		Where("id = ? AND status = ?", id, model.ShipmentStatusDraft).
		Update("status", model.ShipmentStatusQuoteRequested)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, InvalidState("Shipment status changed concurrently")
	}
	shipment.Status = model.ShipmentStatusQuoteRequested
	return shipment, nil
}
