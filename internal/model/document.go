package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Document types accepted on upload
const (
	DocInvoice             = "invoice"
	DocPackingList         = "packing_list"
	DocCommercialInvoice   = "commercial_invoice"
	DocCertificateOfOrigin = "certificate_of_origin"
	DocBillOfLading        = "bill_of_lading"
	DocHouseBL             = "house_bl"
	DocMasterBL            = "master_bl"
	DocTelexRelease        = "telex_release"
	DocOther               = "other"
)

// Extraction statuses carried on both documents and extraction jobs
const (
	ExtractionPending    = "pending"
	ExtractionProcessing = "processing"
	ExtractionCompleted  = "completed"
	ExtractionFailed     = "failed"
	ExtractionSkipped    = "skipped"
)

// Document is an uploaded shipment file plus whatever was extracted from it.
// ExtractionVersion increases each time an extraction run claims the row; a run only
// writes its result while the row still carries the version it claimed.
type Document struct {
	ID                string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	ShipmentID        string            `gorm:"type:varchar(36);index;not null" json:"shipment_id"`
	UploadedBy        string            `gorm:"type:varchar(36);not null" json:"uploaded_by"`
	DocumentType      string            `gorm:"type:varchar(40);not null" json:"document_type"`
	FileName          string            `gorm:"type:varchar(255);not null" json:"file_name"`
	FileURL           string            `gorm:"type:text;not null" json:"file_url"`
	StorageKey        string            `gorm:"type:text;not null" json:"-"`
	FileSize          int64             `json:"file_size"`
	MimeType          string            `gorm:"type:varchar(100)" json:"mime_type"`
	ExtractedData     datatypes.JSONMap `json:"extracted_data"`
	ConfidenceScore   *float64          `json:"confidence_score"`
	ExtractionMethod  string            `gorm:"type:varchar(50)" json:"extraction_method,omitempty"`
	NeedsReview       bool              `json:"needs_review"`
	ExtractionStatus  string            `gorm:"type:varchar(20);index;not null" json:"extraction_status"`
	ExtractionVersion int               `gorm:"not null" json:"extraction_version"`
	ExtractedAt       *time.Time        `json:"extracted_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// ExtractionJob records one background extraction run for a document
type ExtractionJob struct {
	ID               string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	DocumentID       string    `gorm:"type:varchar(36);index;not null" json:"document_id"`
	Status           string    `gorm:"type:varchar(20);not null" json:"status"`
	ModelUsed        string    `gorm:"type:varchar(100)" json:"model_used,omitempty"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	ErrorMessage     string    `gorm:"type:text" json:"error_message,omitempty"`
	Attempts         int       `gorm:"not null" json:"attempts"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key
func (j *ExtractionJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

// ValidDocumentType reports whether t is an accepted document type
func ValidDocumentType(t string) bool {
	switch t {
	case DocInvoice, DocPackingList, DocCommercialInvoice, DocCertificateOfOrigin,
		DocBillOfLading, DocHouseBL, DocMasterBL, DocTelexRelease, DocOther:
		return true
	}
	return false
}
