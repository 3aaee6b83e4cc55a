package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Customs entry types
const (
	CustomsExport = "EXPORT"
	CustomsImport = "IMPORT"

	CustomsStatusSubmitted = "SUBMITTED"
)

// CustomsEntry keeps the customs API response for a filing made on behalf of a shipment
type CustomsEntry struct {
	ID          string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	ShipmentID  string            `gorm:"type:varchar(36);index;not null" json:"shipment_id"`
	EntryType   string            `gorm:"type:varchar(10);not null" json:"entry_type"`
	ReferenceID string            `gorm:"type:varchar(100);index" json:"reference_id"`
	Status      string            `gorm:"type:varchar(40);not null" json:"status"`
	Metadata    datatypes.JSONMap `json:"metadata"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key
func (e *CustomsEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// CarrierBooking keeps the carrier API response for a booking
type CarrierBooking struct {
	ID            string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	BookingNumber string            `gorm:"type:varchar(100);uniqueIndex;not null" json:"booking_number"`
	ShipmentID    *string           `gorm:"type:varchar(36);index" json:"shipment_id,omitempty"`
	CarrierName   string            `gorm:"type:varchar(100)" json:"carrier_name,omitempty"`
	Status        string            `gorm:"type:varchar(40)" json:"status"`
	Metadata      datatypes.JSONMap `json:"metadata"`
	CreatedBy     string            `gorm:"type:varchar(36)" json:"created_by"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key
func (b *CarrierBooking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// All returns every persisted model, in migration order
func All() []interface{} {
	return []interface{}{
		&User{},
		&Shipment{},
		&Quote{},
		&TrackingEvent{},
		&Document{},
		&ExtractionJob{},
		&CustomsEntry{},
		&CarrierBooking{},
	}
}
