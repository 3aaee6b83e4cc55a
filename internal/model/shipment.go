package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Shipment lifecycle labels. Tracking milestones may set any tracking status as well.
const (
	ShipmentStatusDraft          = "draft"
	ShipmentStatusQuoteRequested = "quote_requested"
	ShipmentStatusQuoted         = "quoted"
)

// Shipment is one cargo movement between a supplier and a buyer
type Shipment struct {
	ID                string              `gorm:"type:varchar(36);primaryKey" json:"id"`
	ShipmentNumber    string              `gorm:"type:varchar(32);uniqueIndex;not null" json:"shipment_number"`
	SupplierID        string              `gorm:"type:varchar(36);index;not null" json:"supplier_id"`
	BuyerID           string              `gorm:"type:varchar(36);index;not null" json:"buyer_id"`
	OriginPort        string              `gorm:"type:varchar(100);not null" json:"origin_port"`
	DestinationPort   string              `gorm:"type:varchar(100);not null" json:"destination_port"`
	Incoterm          string              `gorm:"type:varchar(10)" json:"incoterm"`
	CargoType         string              `gorm:"type:varchar(50)" json:"cargo_type"`
	ContainerType     string              `gorm:"type:varchar(20)" json:"container_type"`
	ContainerQty      int                 `json:"container_qty"`
	GoodsDescription  string              `gorm:"type:text" json:"goods_description"`
	HSCode            string              `gorm:"column:hs_code;type:varchar(20)" json:"hs_code"`
	GrossWeightKg     *float64            `json:"gross_weight_kg"`
	NetWeightKg       *float64            `json:"net_weight_kg"`
	VolumeCBM         *float64            `gorm:"column:volume_cbm" json:"volume_cbm"`
	TotalPackages     *int                `json:"total_packages"`
	PackageType       string              `gorm:"type:varchar(50)" json:"package_type"`
	PreferredETD      *time.Time          `gorm:"column:preferred_etd" json:"preferred_etd"`
	PreferredETA      *time.Time          `gorm:"column:preferred_eta" json:"preferred_eta"`
	DeclaredValueUSD  decimal.NullDecimal `gorm:"column:declared_value_usd;type:numeric(14,2)" json:"declared_value_usd"`
	InsuranceRequired bool                `json:"insurance_required"`
	Status            string              `gorm:"type:varchar(40);index;not null" json:"status"`
	Metadata          datatypes.JSONMap   `json:"metadata,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key
func (s *Shipment) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
