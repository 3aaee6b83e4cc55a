package extractor

import (
	"context"
	"fmt"
	"time"

	"github.com/suteetoe/tradeflow/pkg/config"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const methodGemini = "gemini"

// GeminiExtractor sends the document to a Gemini model and asks for JSON back
type GeminiExtractor struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewGeminiExtractor creates a Gemini-backed extractor
func NewGeminiExtractor(ctx context.Context, cfg *config.ExtractorConfig, log *zap.Logger) (*GeminiExtractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiExtractor{
		client:  client,
		model:   model,
		timeout: cfg.Timeout,
		logger:  log,
	}, nil
}

// Extract implements Extractor
func (g *GeminiExtractor) Extract(ctx context.Context, data []byte, mimeType, documentType string) (*Result, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	parts := []*genai.Part{
		genai.NewPartFromText(buildPrompt(documentType)),
		genai.NewPartFromBytes(data, mimeType),
	}
	resp, err := g.client.Models.GenerateContent(ctx,
		g.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			Temperature:      genai.Ptr[float32](0),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("GenAI extraction failed: %w", err)
	}

	res, err := ParseResponse(resp.Text())
	if err != nil {
		return nil, err
	}
	res.Method = methodGemini
	res.Model = g.model
	res.ProcessingTimeMs = time.Since(start).Milliseconds()

	g.logger.Debug("Document extracted",
		zap.String("document_type", documentType),
		zap.Int("fields", len(res.Fields)),
		zap.Float64("confidence", res.Confidence),
		zap.Int64("processing_time_ms", res.ProcessingTimeMs))
	return res, nil
}

func buildPrompt(documentType string) string {
	return fmt.Sprintf(`You are reading a %s issued for an international cargo shipment.
Return a single JSON object: {"fields": {...}, "confidence": <0..1>, "needs_review": <bool>}.
Use these keys inside "fields" when the document contains them, and null otherwise:
invoice_number, invoice_date, seller_name, buyer_name, port_of_loading, port_of_discharge,
incoterm, currency, total_value_usd, goods_description, hs_code, gross_weight_kg,
net_weight_kg, volume_cbm, total_packages, package_type, container_numbers, vessel_name,
voyage_number, bl_number.
Weights are kilograms, volume is cubic metres, numbers are plain JSON numbers.`, documentType)
}
