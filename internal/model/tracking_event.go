package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Tracking statuses a forwarder may post
const (
	TrackingBooked           = "booked"
	TrackingGateIn           = "gate_in"
	TrackingVesselDeparted   = "vessel_departed"
	TrackingInTransit        = "in_transit"
	TrackingPortArrival      = "port_arrival"
	TrackingGateOut          = "gate_out"
	TrackingCustomsClearance = "customs_clearance"
	TrackingDelivered        = "delivered"
	TrackingHeld             = "held"
	TrackingDelayed          = "delayed"
)

// TrackingEvent is one append-only entry in a shipment's tracking log
type TrackingEvent struct {
	ID                string                      `gorm:"type:varchar(36);primaryKey" json:"id"`
	ShipmentID        string                      `gorm:"type:varchar(36);index;not null" json:"shipment_id"`
	CreatedBy         string                      `gorm:"type:varchar(36);not null" json:"created_by"`
	Status            string                      `gorm:"type:varchar(40);not null" json:"status"`
	Location          string                      `gorm:"type:varchar(200);not null" json:"location"`
	VesselName        string                      `gorm:"type:varchar(100)" json:"vessel_name,omitempty"`
	VoyageNumber      string                      `gorm:"type:varchar(50)" json:"voyage_number,omitempty"`
	ContainerNumber   string                      `gorm:"type:varchar(20)" json:"container_number,omitempty"`
	Description       string                      `gorm:"type:text;not null" json:"description"`
	Remarks           string                      `gorm:"type:text" json:"remarks,omitempty"`
	EstimatedDatetime *time.Time                  `json:"estimated_datetime,omitempty"`
	ActualDatetime    *time.Time                  `json:"actual_datetime,omitempty"`
	Documents         datatypes.JSONSlice[string] `json:"documents"`
	IsMilestone       bool                        `json:"is_milestone"`
	Verified          bool                        `json:"verified"`
	Timestamp         time.Time                   `gorm:"index;not null" json:"timestamp"`
	CreatedAt         time.Time                   `json:"created_at"`
}

// BeforeCreate assigns a UUID primary key
func (e *TrackingEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// ValidTrackingStatus reports whether status is a known tracking status
func ValidTrackingStatus(status string) bool {
	switch status {
	case TrackingBooked, TrackingGateIn, TrackingVesselDeparted, TrackingInTransit,
		TrackingPortArrival, TrackingGateOut, TrackingCustomsClearance, TrackingDelivered,
		TrackingHeld, TrackingDelayed:
		return true
	}
	return false
}
