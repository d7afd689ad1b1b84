package services

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/storyloom/storyloom/pkg/memory"
)

// OpenAIService implements Generator and memory.Summarizer on the OpenAI
// chat completions API.
type OpenAIService struct {
	client    *openai.Client
	modelName string
	logger    *slog.Logger
}

var (
	_ Generator         = (*OpenAIService)(nil)
	_ memory.Summarizer = (*OpenAIService)(nil)
)

// NewOpenAIService creates an OpenAI-backed generation/summarization client.
func NewOpenAIService(apiKey, modelName string, logger *slog.Logger) *OpenAIService {
	return &OpenAIService{
		client:    openai.NewClient(apiKey),
		modelName: modelName,
		logger:    logger,
	}
}

func (o *OpenAIService) chatCompletion(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	return resp.Choices[0].Message.Content, nil
}

// Generate produces the structured result for one directive.
func (o *OpenAIService) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	system, user := buildGenerationPrompt(req)
	content, err := o.chatCompletion(ctx, system, user)
	if err != nil {
		return nil, err
	}

	result, err := parseGenerationResult(content)
	if err != nil {
		o.logger.Warn("discarding malformed generation response", "error", err)
		return nil, err
	}
	return result, nil
}

// Summarize condenses memory items for the memory store's compaction.
func (o *OpenAIService) Summarize(ctx context.Context, items []memory.Item) ([]memory.Item, error) {
	system, user := buildSummarizationPrompt(items)
	content, err := o.chatCompletion(ctx, system, user)
	if err != nil {
		return nil, err
	}
	return parseSummaryItems(content, len(items))
}
