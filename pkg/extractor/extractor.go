// Package extractor turns uploaded shipping documents into structured key/value data.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/suteetoe/tradeflow/pkg/config"
	"go.uber.org/zap"
)

// ReviewThreshold is the confidence below which an extraction is flagged for human review
const ReviewThreshold = 0.85

// ErrDisabled is returned when no extraction backend is configured
var ErrDisabled = errors.New("document extraction is not configured")

// Result is the outcome of one extraction
type Result struct {
	Fields           map[string]interface{}
	Confidence       float64
	NeedsReview      bool
	Method           string
	Model            string
	ProcessingTimeMs int64
}

// Extractor pulls fields out of a document
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType, documentType string) (*Result, error)
}

// Disabled is the extractor used when no backend is configured
type Disabled struct{}

// Extract always fails with ErrDisabled
func (Disabled) Extract(context.Context, []byte, string, string) (*Result, error) {
	return nil, ErrDisabled
}

// New builds the extractor selected by cfg.Driver. A gemini driver without an API key
// falls back to Disabled.
func New(ctx context.Context, cfg *config.ExtractorConfig, log *zap.Logger) (Extractor, error) {
	switch cfg.Driver {
	case "gemini":
		if cfg.APIKey == "" {
			log.Warn("GEMINI_API_KEY not set, document extraction disabled")
			return Disabled{}, nil
		}
		return NewGeminiExtractor(ctx, cfg, log)
	case "none", "":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown extractor driver %q", cfg.Driver)
	}
}

type rawResponse struct {
	Fields      map[string]interface{} `json:"fields"`
	Confidence  *float64               `json:"confidence"`
	NeedsReview *bool                  `json:"needs_review"`
}

// ParseResponse decodes a model reply of the form {"fields": {...}, "confidence": 0.9}.
// A bare object is taken as the fields themselves. Without a reported confidence the
// share of non-empty fields is used.
func ParseResponse(text string) (*Result, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("empty extraction response")
	}

	var raw rawResponse
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("invalid extraction response: %w", err)
	}
	if raw.Fields == nil {
		var flat map[string]interface{}
		if err := json.Unmarshal([]byte(text), &flat); err != nil {
			return nil, fmt.Errorf("invalid extraction response: %w", err)
		}
		delete(flat, "confidence")
		delete(flat, "needs_review")
		raw.Fields = flat
	}

	res := &Result{Fields: raw.Fields}
	if raw.Confidence != nil {
		res.Confidence = clamp(*raw.Confidence)
	} else {
		res.Confidence = fillRatio(raw.Fields)
	}
	if raw.NeedsReview != nil {
		res.NeedsReview = *raw.NeedsReview
	} else {
		res.NeedsReview = res.Confidence < ReviewThreshold
	}
	return res, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func fillRatio(fields map[string]interface{}) float64 {
	if len(fields) == 0 {
		return 0
	}
	filled := 0
	for _, v := range fields {
		switch t := v.(type) {
		case nil:
		case string:
			if strings.TrimSpace(t) != "" {
				filled++
			}
		default:
			filled++
		}
	}
	return float64(filled) / float64(len(fields))
}
