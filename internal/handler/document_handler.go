package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/tradeflow/internal/service"
	"github.com/suteetoe/tradeflow/pkg/logger"
	"go.uber.org/zap"
)

// AutofillRequest selects the extracted fields to copy; empty means the defaults
type AutofillRequest struct {
	Fields []string `json:"fields"`
}

type DocumentHandler struct {
	documents *service.DocumentService
}

func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// UploadDocument handles a multipart upload with fields "file" and "document_type"
func (h *DocumentHandler) UploadDocument(c echo.Context) error {
	log := logger.FromContext(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		log.Warn("Missing upload file", zap.Error(err))
		return respondError(c, service.Validation("file is required"))
	}
	documentType := c.FormValue("document_type")
	if documentType == "" {
		return respondError(c, service.Validation("document_type is required"))
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Error("Failed to open upload", zap.Error(err))
		return respondError(c, err)
	}
	defer file.Close()

	log.Info("Document upload request",
		zap.String("shipment_id", c.Param("id")),
		zap.String("file_name", fileHeader.Filename),
		zap.Int64("size", fileHeader.Size))

	doc, err := h.documents.Upload(requestContext(c), callerFrom(c), c.Param("id"), service.UploadInput{
		DocumentType: documentType,
		FileName:     fileHeader.Filename,
		MimeType:     fileHeader.Header.Get(echo.HeaderContentType),
		Size:         fileHeader.Size,
		Content:      file,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, doc)
}

// ListDocuments handles listing a shipment's documents
func (h *DocumentHandler) ListDocuments(c echo.Context) error {
	docs, err := h.documents.List(requestContext(c), callerFrom(c), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, docs)
}

// GetDocument handles retrieving one document
func (h *DocumentHandler) GetDocument(c echo.Context) error {
	doc, err := h.documents.Get(requestContext(c), callerFrom(c), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, doc)
}

// ExtractDocument handles a synchronous re-extraction
func (h *DocumentHandler) ExtractDocument(c echo.Context) error {
	view, err := h.documents.Extract(requestContext(c), callerFrom(c), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// AutofillShipment handles copying extracted values onto the shipment
func (h *DocumentHandler) AutofillShipment(c echo.Context) error {
	var req AutofillRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	result, err := h.documents.Autofill(requestContext(c), callerFrom(c), c.Param("id"), req.Fields)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
