package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/storyloom/storyloom/pkg/memory"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"

	DefaultAnthropicTemperature = 0.7
	DefaultAnthropicMaxTokens   = 2048
)

// AnthropicService implements Generator and memory.Summarizer against the
// Anthropic Messages API.
type AnthropicService struct {
	apiKey     string
	modelName  string
	httpClient *http.Client
	logger     *slog.Logger
}

var (
	_ Generator         = (*AnthropicService)(nil)
	_ memory.Summarizer = (*AnthropicService)(nil)
)

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicChatRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicChatResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Content    []anthropicContentBlock `json:"content"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewAnthropicService creates an Anthropic-backed generation/summarization
// client.
func NewAnthropicService(apiKey, modelName string, logger *slog.Logger) *AnthropicService {
	return &AnthropicService{
		apiKey:    apiKey,
		modelName: modelName,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

// chatCompletion makes a non-streaming completion request.
func (a *AnthropicService) chatCompletion(ctx context.Context, system, user string) (string, error) {
	temperature := DefaultAnthropicTemperature
	chatReq := anthropicChatRequest{
		Model:       a.modelName,
		MaxTokens:   DefaultAnthropicMaxTokens,
		Temperature: &temperature,
		System:      system,
		Messages: []anthropicMessage{
			{Role: "user", Content: user},
		},
	}

	reqBody, err := json.Marshal(chatReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", anthropicBaseURL+"/messages", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp anthropicChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}

	var responseText string
	for _, content := range chatResp.Content {
		if content.Type == "text" {
			responseText += content.Text
		}
	}
	if responseText == "" {
		return "", fmt.Errorf("empty response from model")
	}

	return responseText, nil
}

// Generate produces the structured result for one directive.
func (a *AnthropicService) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	system, user := buildGenerationPrompt(req)
	content, err := a.chatCompletion(ctx, system, user)
	if err != nil {
		return nil, err
	}

	result, err := parseGenerationResult(content)
	if err != nil {
		a.logger.Warn("discarding malformed generation response", "error", err)
		return nil, err
	}
	return result, nil
}

// Summarize condenses memory items for the memory store's compaction.
func (a *AnthropicService) Summarize(ctx context.Context, items []memory.Item) ([]memory.Item, error) {
	system, user := buildSummarizationPrompt(items)
	content, err := a.chatCompletion(ctx, system, user)
	if err != nil {
		return nil, err
	}
	return parseSummaryItems(content, len(items))
}
