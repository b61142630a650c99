package scanning

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when no model name is configured
const DefaultAnthropicModel = "claude-sonnet-4-5-20250929"

// Anthropic implements the Scanner interface using the Claude Messages API
type Anthropic struct {
	client *anthropic.Client
	model  string
	opts   options
}

// NewAnthropic creates a new Anthropic Scanner instance
func NewAnthropic(apiKey string, modelName string, opts ...Option) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if modelName == "" {
		modelName = DefaultAnthropicModel
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	return &Anthropic{
		client: &client,
		model:  modelName,
		opts:   newOptions(opts),
	}, nil
}

// ScanReport analyzes a lab report and extracts its tests
func (a *Anthropic) ScanReport(ctx context.Context, data []byte, contentType string) (*ReportData, error) {
	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	pages, prompt, err := prepareRequest(ctx, a.opts, data, contentType)
	if err != nil {
		return nil, err
	}

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(pages)+1)
	for _, page := range pages {
		blocks = append(blocks, anthropic.NewImageBlockBase64("image/png", base64.StdEncoding.EncodeToString(page)))
	}
	blocks = append(blocks, anthropic.NewTextBlock(prompt))

	response, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 8192,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("calling anthropic API: %w", err)
	}

	var responseText strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			responseText.WriteString(block.Text)
		}
	}
	if responseText.Len() == 0 {
		return nil, fmt.Errorf("no response from anthropic")
	}

	report, err := parseReportJSON(responseText.String())
	if err != nil {
		return nil, fmt.Errorf("parsing report data: %w", err)
	}
	report.Pages = len(pages)

	return report, nil
}

// Close is a no-op; the SDK client holds no resources
func (a *Anthropic) Close() error {
	return nil
}
