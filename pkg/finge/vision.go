package finge

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Vision providers.
const (
	VisionProviderOpenAI    = "openai"
	VisionProviderAnthropic = "anthropic"
	VisionProviderGemini    = "gemini"
)

const tickerPrompt = "Identify the brand in this image and return only the associated " +
	"stock ticker symbol. If it is not a publicly traded company, return 'NULL'."

var defaultVisionModels = map[string]string{
	VisionProviderOpenAI:    "gpt-4o-mini",
	VisionProviderAnthropic: "claude-3-5-haiku-latest",
	VisionProviderGemini:    "gemini-2.0-flash",
}

// VisionConfig selects and configures the model that reads tickers from images.
type VisionConfig struct {
	Provider string
	BaseURL  string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// Image is an uploaded picture.
type Image struct {
	Data        []byte
	ContentType string
	Filename    string
}

// TickerExtractor asks a vision model which stock ticker an image shows.
// The answer is the model's raw text; see NormalizeTicker.
type TickerExtractor interface {
	ExtractTicker(ctx context.Context, img Image) (string, error)
}

// NewTickerExtractor builds the extractor for cfg.Provider. Without an API key
// the extractor is disabled and every call fails with ErrCodeUnsupported.
func NewTickerExtractor(cfg VisionConfig, logger *slog.Logger) (TickerExtractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = VisionProviderOpenAI
	}
	model, known := defaultVisionModels[provider]
	if !known {
		return nil, Errorf(ErrCodeUnsupported, "unsupported vision provider %q", cfg.Provider)
	}
	if strings.TrimSpace(cfg.Model) != "" {
		model = strings.TrimSpace(cfg.Model)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		logger.Warn("vision api key not configured; image scans are disabled", "provider", provider)
		return disabledExtractor{provider: provider}, nil
	}
	httpClient := &http.Client{Timeout: defaultDuration(cfg.Timeout, 60*time.Second)}

	switch provider {
	case VisionProviderAnthropic:
		return newAnthropicExtractor(cfg.APIKey, cfg.BaseURL, model, httpClient, logger), nil
	case VisionProviderGemini:
		return newGeminiExtractor(cfg.APIKey, cfg.BaseURL, model, httpClient, logger), nil
	default:
		return newOpenAIExtractor(cfg.APIKey, cfg.BaseURL, model, httpClient, logger), nil
	}
}

type disabledExtractor struct {
	provider string
}

func (d disabledExtractor) ExtractTicker(context.Context, Image) (string, error) {
	return "", Errorf(ErrCodeUnsupported, "vision provider %s has no api key", d.provider)
}

// ExtractTicker runs the configured vision model on img and normalizes its
// answer. It returns the ticker and the raw model text.
func (c *Core) ExtractTicker(ctx context.Context, img Image) (string, string, error) {
	start := time.Now()
	raw, err := c.vision.ExtractTicker(ctx, img)
	if err != nil {
		if _, ok := CodeOf(err); ok {
			return "", "", err
		}
		return "", "", WrapError(ErrCodeUpstream, "vision request failed", err)
	}
	ticker, err := NormalizeTicker(raw)
	c.logger.Info("vision ticker extracted",
		"raw", raw,
		"ticker", ticker,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ticker, raw, err
}
