package finge

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type anthropicExtractor struct {
	client anthropic.Client
	model  string
	logger *slog.Logger
}

func newAnthropicExtractor(apiKey, baseURL, model string, httpClient *http.Client, logger *slog.Logger) *anthropicExtractor {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
	}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &anthropicExtractor{
		client: anthropic.NewClient(opts...),
		model:  model,
		logger: logger,
	}
}

func (e *anthropicExtractor) ExtractTicker(ctx context.Context, img Image) (string, error) {
	message, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: 32,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(img.ContentType, base64.StdEncoding.EncodeToString(img.Data)),
				anthropic.NewTextBlock(tickerPrompt),
			),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}
	for _, block := range message.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return strings.TrimSpace(block.Text), nil
		}
	}
	return "", fmt.Errorf("no text in anthropic response")
}
