package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Quote statuses. pending is the only non-terminal state.
const (
	QuoteStatusPending  = "pending"
	QuoteStatusAccepted = "accepted"
	QuoteStatusRejected = "rejected"
	QuoteStatusExpired  = "expired"
)

// Quote is a forwarder's priced offer to move a shipment
type Quote struct {
	ID                    string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	QuoteNumber           string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"quote_number"`
	ShipmentID            string          `gorm:"type:varchar(36);index;not null" json:"shipment_id"`
	ForwarderID           string          `gorm:"type:varchar(36);index;not null" json:"forwarder_id"`
	FreightAmountUSD      decimal.Decimal `gorm:"column:freight_amount_usd;type:numeric(14,2);not null" json:"freight_amount_usd"`
	FuelSurcharge         decimal.Decimal `gorm:"type:numeric(14,2)" json:"fuel_surcharge"`
	THCCharges            decimal.Decimal `gorm:"column:thc_charges;type:numeric(14,2)" json:"thc_charges"`
	DocumentationCharges  decimal.Decimal `gorm:"type:numeric(14,2)" json:"documentation_charges"`
	OtherCharges          decimal.Decimal `gorm:"type:numeric(14,2)" json:"other_charges"`
	TotalAmountUSD        decimal.Decimal `gorm:"column:total_amount_usd;type:numeric(14,2);not null" json:"total_amount_usd"`
	ValidityDate          time.Time       `gorm:"not null" json:"validity_date"`
	TransitTimeDays       int             `json:"transit_time_days"`
	FreeDaysAtDestination int             `json:"free_days_at_destination"`
	Routing               string          `gorm:"type:text" json:"routing"`
	VesselName            string          `gorm:"type:varchar(100)" json:"vessel_name"`
	VoyageNumber          string          `gorm:"type:varchar(50)" json:"voyage_number"`
	ContainerType         string          `gorm:"type:varchar(20)" json:"container_type"`
	ContainerQuantity     int             `json:"container_quantity"`
	Status                string          `gorm:"type:varchar(20);index;not null" json:"status"`
	Remarks               string          `gorm:"type:text" json:"remarks"`
	TermsAndConditions    string          `gorm:"type:text" json:"terms_and_conditions"`
	AcceptedAt            *time.Time      `json:"accepted_at,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key
func (q *Quote) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

// ComputeTotal sums the line items into TotalAmountUSD
func (q *Quote) ComputeTotal() {
	q.TotalAmountUSD = q.FreightAmountUSD.
		Add(q.FuelSurcharge).
		Add(q.THCCharges).
		Add(q.DocumentationCharges).
		Add(q.OtherCharges)
}
