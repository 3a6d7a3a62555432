package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// AzureOpenAICaller generates through an Azure OpenAI deployment's chat
// completions endpoint with JSON response mode.
type AzureOpenAICaller struct {
	client     *openai.Client
	deployment string
}

func NewAzureOpenAICaller(cfg Config) (*AzureOpenAICaller, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("azure openai api key not configured")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("azure openai endpoint not configured")
	}
	if cfg.Deployment == "" {
		return nil, errors.New("azure openai deployment not configured")
	}
	clientConfig := openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
	if cfg.APIVersion != "" {
		clientConfig.APIVersion = cfg.APIVersion
	}
	deployment := cfg.Deployment
	clientConfig.AzureModelMapperFunc = func(string) string { return deployment }
	return &AzureOpenAICaller{
		client:     openai.NewClientWithConfig(clientConfig),
		deployment: deployment,
	}, nil
}

func (a *AzureOpenAICaller) GenerateJSON(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.User,
	})

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.deployment,
		Messages:    messages,
		MaxTokens:   int(maxTokens),
		Temperature: float32(req.Temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("azure openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("azure openai: empty choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
