package finge

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

type geminiExtractor struct {
	config *genai.ClientConfig
	model  string
	logger *slog.Logger
}

func newGeminiExtractor(apiKey, baseURL, model string, httpClient *http.Client, logger *slog.Logger) *geminiExtractor {
	config := &genai.ClientConfig{
		APIKey:     strings.TrimSpace(apiKey),
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if strings.TrimSpace(baseURL) != "" {
		config.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimSpace(baseURL)}
	}
	return &geminiExtractor{config: config, model: model, logger: logger}
}

func (e *geminiExtractor) ExtractTicker(ctx context.Context, img Image) (string, error) {
	client, err := genai.NewClient(ctx, e.config)
	if err != nil {
		return "", fmt.Errorf("create gemini client failed: %w", err)
	}
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: tickerPrompt},
			{InlineData: &genai.Blob{Data: img.Data, MIMEType: img.ContentType}},
		},
	}}
	response, err := client.Models.GenerateContent(ctx, e.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0)),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate content failed: %w", err)
	}
	content := strings.TrimSpace(response.Text())
	if content == "" {
		return "", fmt.Errorf("gemini response content is empty")
	}
	return content, nil
}
