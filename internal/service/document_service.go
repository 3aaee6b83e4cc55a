package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/suteetoe/tradeflow/internal/model"
	"github.com/suteetoe/tradeflow/pkg/logger"
	"github.com/suteetoe/tradeflow/pkg/storage"
	"github.com/suteetoe/tradeflow/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var allowedMimeTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DefaultAutofillFields are copied when the caller does not pick any
var DefaultAutofillFields = []string{
	"gross_weight_kg",
	"net_weight_kg",
	"volume_cbm",
	"total_packages",
	"hs_code",
	"goods_description",
}

type fieldKind int

const (
	kindString fieldKind = iota
	kindFloat
	kindInt
	kindDecimal
)

// autofillColumns lists the shipment columns extracted data may write
var autofillColumns = map[string]fieldKind{
	"gross_weight_kg":    kindFloat,
	"net_weight_kg":      kindFloat,
	"volume_cbm":         kindFloat,
	"total_packages":     kindInt,
	"container_qty":      kindInt,
	"hs_code":            kindString,
	"goods_description":  kindString,
	"package_type":       kindString,
	"container_type":     kindString,
	"incoterm":           kindString,
	"origin_port":        kindString,
	"destination_port":   kindString,
	"declared_value_usd": kindDecimal,
}

// UploadInput is one file being attached to a shipment
type UploadInput struct {
	DocumentType string
	FileName     string
	MimeType     string
	Size         int64
	Content      io.Reader
}

// ExtractionView is the response of a manual extraction
type ExtractionView struct {
	DocumentID       string                 `json:"document_id"`
	ExtractedData    map[string]interface{} `json:"extracted_data"`
	Confidence       float64                `json:"confidence"`
	NeedsReview      bool                   `json:"needs_review"`
	ExtractionMethod string                 `json:"extraction_method"`
	ProcessingTimeMs int64                  `json:"processing_time_ms"`
}

// AutofillResult reports which shipment fields were written from a document
type AutofillResult struct {
	DocumentID      string                 `json:"document_id"`
	ShipmentID      string                 `json:"shipment_id"`
	UpdatedFields   []string               `json:"updated_fields"`
	Confidence      *float64               `json:"confidence"`
	ExtractedValues map[string]interface{} `json:"extracted_values"`
}

// DocumentService stores shipment documents and applies their extracted data
type DocumentService struct {
	db       *gorm.DB
	store    storage.BlobStore
	runner   *ExtractionRunner
	maxBytes int64
	tempDir  string
}

func NewDocumentService(db *gorm.DB, store storage.BlobStore, runner *ExtractionRunner, maxBytes int64, tempDir string) *DocumentService {
	return &DocumentService{db: db, store: store, runner: runner, maxBytes: maxBytes, tempDir: tempDir}
}

func (s *DocumentService) findDocument(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("Document not found")
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// SanitizeFileName strips any path and replaces characters unsafe in storage keys
func SanitizeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	clean := strings.Trim(unsafeFileChars.ReplaceAllString(base, "_"), "._")
	if clean == "" {
		return "document"
	}
	return clean
}

// Upload stores the file and records the document. Extraction is scheduled in the
// background and the pending row is returned right away.
func (s *DocumentService) Upload(ctx context.Context, caller Caller, shipmentID string, in UploadInput) (*model.Document, error) {
	log := logger.FromCtx(ctx).With(zap.String("shipment_id", shipmentID))

	if !model.ValidDocumentType(in.DocumentType) {
		return nil, Validation("document_type is not a valid document type")
	}
	mimeType := strings.ToLower(strings.TrimSpace(strings.Split(in.MimeType, ";")[0]))
	if !allowedMimeTypes[mimeType] {
		return nil, Validation("File type %s not allowed", in.MimeType)
	}
	if s.maxBytes > 0 && in.Size > s.maxBytes {
		return nil, Validation("File exceeds the %d byte limit", s.maxBytes)
	}

	shipment, err := findShipment(ctx, s.db, shipmentID)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(ctx, s.db, shipment, caller); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(s.tempDir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	src := in.Content
	if s.maxBytes > 0 {
		src = io.LimitReader(in.Content, s.maxBytes+1)
	}
	written, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to buffer upload: %w", err)
	}
	if s.maxBytes > 0 && written > s.maxBytes {
		return nil, Validation("File exceeds the %d byte limit", s.maxBytes)
	}

	fileName := SanitizeFileName(in.FileName)
	key := fmt.Sprintf("shipments/%s/documents/%s_%s", shipment.ID, uuid.NewString(), fileName)
	url, err := s.store.UploadBlob(ctx, tmp.Name(), key, mimeType)
	if err != nil {
		log.Error("Failed to store document", zap.Error(err))
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	doc := &model.Document{
		ShipmentID:       shipment.ID,
		UploadedBy:       caller.ID,
		DocumentType:     in.DocumentType,
		FileName:         fileName,
		FileURL:          url,
		StorageKey:       key,
		FileSize:         written,
		MimeType:         mimeType,
		ExtractionStatus: model.ExtractionPending,
	}
	if s.runner == nil || !s.runner.Enabled() {
		doc.ExtractionStatus = model.ExtractionSkipped
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		log.Error("Failed to create document", zap.Error(err))
		return nil, err
	}
	log.Info("Document uploaded",
		zap.String("document_id", doc.ID),
		zap.String("document_type", doc.DocumentType),
		zap.Int64("size", doc.FileSize))

	if doc.ExtractionStatus == model.ExtractionPending {
		s.runner.Enqueue(doc.ID)
	}
	return doc, nil
}

// List returns the documents of a shipment, newest first
func (s *DocumentService) List(ctx context.Context, caller Caller, shipmentID string) ([]model.Document, error) {
	shipment, err := findShipment(ctx, s.db, shipmentID)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(ctx, s.db, shipment, caller); err != nil {
		return nil, err
	}

	docs := []model.Document{}
	err = s.db.WithContext(ctx).Where("shipment_id = ?", shipment.ID).Order("created_at DESC").Find(&docs).Error
	return docs, err
}

// Get returns one document if caller may see its shipment
func (s *DocumentService) Get(ctx context.Context, caller Caller, id string) (*model.Document, error) {
	doc, err := s.findDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	shipment, err := findShipment(ctx, s.db, doc.ShipmentID)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(ctx, s.db, shipment, caller); err != nil {
		return nil, err
	}
	return doc, nil
}

// Extract re-runs extraction synchronously from the stored blob
func (s *DocumentService) Extract(ctx context.Context, caller Caller, id string) (*ExtractionView, error) {
	doc, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if s.runner == nil || !s.runner.Enabled() {
		return nil, Unavailable("Document extraction is not configured")
	}

	updated, result, err := s.runner.Run(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	return &ExtractionView{
		DocumentID:       updated.ID,
		ExtractedData:    result.Fields,
		Confidence:       result.Confidence,
		NeedsReview:      result.NeedsReview,
		ExtractionMethod: result.Method,
		ProcessingTimeMs: result.ProcessingTimeMs,
	}, nil
}

// Autofill copies extracted values onto the document's shipment. Only whitelisted
// columns are written, and only when the extracted value is present, truthy, convertible
// and different from what the shipment already holds.
func (s *DocumentService) Autofill(ctx context.Context, caller Caller, id string, fields []string) (*AutofillResult, error) {
	doc, err := s.findDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	shipment, err := findShipment(ctx, s.db, doc.ShipmentID)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwner(shipment, caller); err != nil {
		return nil, err
	}
	if len(doc.ExtractedData) == 0 {
		return nil, Validation("No extracted data available")
	}
	if len(fields) == 0 {
		fields = DefaultAutofillFields
	}

	current := shipmentValues(shipment)
	updates := map[string]interface{}{}
	updated := []string{}
	extracted := map[string]interface{}{}
	for _, field := range fields {
		kind, ok := autofillColumns[field]
		if !ok {
			continue
		}
		raw, ok := doc.ExtractedData[field]
		if !ok || !truthy(raw) {
			continue
		}
		if _, seen := updates[field]; seen {
			continue
		}
		value, ok := coerce(raw, kind)
		if !ok || sameValue(current[field], value) {
			continue
		}
		updates[field] = value
		updated = append(updated, field)
		extracted[field] = raw
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&model.Shipment{}).Where("id = ?", shipment.ID).Updates(updates).Error; err != nil {
			return nil, err
		}
		logger.FromCtx(ctx).Info("Shipment auto-filled from document",
			zap.String("document_id", doc.ID),
			zap.String("shipment_id", shipment.ID),
			zap.Strings("fields", updated))
	}

	return &AutofillResult{
		DocumentID:      doc.ID,
		ShipmentID:      shipment.ID,
		UpdatedFields:   updated,
		Confidence:      doc.ConfidenceScore,
		ExtractedValues: extracted,
	}, nil
}

func shipmentValues(s *model.Shipment) map[string]interface{} {
	values := map[string]interface{}{
		"hs_code":           s.HSCode,
		"goods_description": s.GoodsDescription,
		"package_type":      s.PackageType,
		"container_type":    s.ContainerType,
		"incoterm":          s.Incoterm,
		"origin_port":       s.OriginPort,
		"destination_port":  s.DestinationPort,
		"container_qty":     s.ContainerQty,
	}
	if s.GrossWeightKg != nil {
		values["gross_weight_kg"] = *s.GrossWeightKg
	}
	if s.NetWeightKg != nil {
		values["net_weight_kg"] = *s.NetWeightKg
	}
	if s.VolumeCBM != nil {
		values["volume_cbm"] = *s.VolumeCBM
	}
	if s.TotalPackages != nil {
		values["total_packages"] = *s.TotalPackages
	}
	if s.DeclaredValueUSD.Valid {
		values["declared_value_usd"] = s.DeclaredValueUSD.Decimal
	}
	return values
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return strings.TrimSpace(t) != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	}
	return true
}

func coerce(v interface{}, kind fieldKind) (interface{}, bool) {
	switch kind {
	case kindString:
		switch t := v.(type) {
		case string:
			return strings.TrimSpace(t), true
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), true
		}
	case kindFloat:
		f, ok := toFloat(v)
		return f, ok
	case kindInt:
		f, ok := toFloat(v)
		if !ok || f != math.Trunc(f) {
			return nil, false
		}
		return int(f), true
	case kindDecimal:
		f, ok := toFloat(v)
		if !ok {
			return nil, false
		}
		return decimal.NewFromFloat(f).Round(2), true
	}
	return nil, false
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(t), ",", ""), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func sameValue(current, next interface{}) bool {
	if current == nil {
		return false
	}
	if d, ok := current.(decimal.Decimal); ok {
		n, ok := next.(decimal.Decimal)
		return ok && d.Equal(n)
	}
	return current == next
}
