package openai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/meysamhadeli/scaffai/logging"
	"github.com/meysamhadeli/scaffai/providers/contracts"
	contracts2 "github.com/meysamhadeli/scaffai/token_management/contracts"
	goopenai "github.com/sashabaranov/go-openai"
)

const (
	providerName   = "remote"
	defaultBaseURL = "https://api.openai.com/v1"
	systemPrompt   = "You are a code generator. Reply with source code only."
)

// OpenAIConfig configures the remote Generation Capability.
type OpenAIConfig struct {
	BaseURL         string
	ApiKey          string
	Model           string
	Temperature     *float32
	MaxTokens       int
	TokenManagement contracts2.ITokenManagement
	Logger          *logging.Logger
}

// OpenAIProvider talks to any OpenAI-compatible endpoint.
type OpenAIProvider struct {
	client          *goopenai.Client
	model           string
	temperature     *float32
	maxTokens       int
	tokenManagement contracts2.ITokenManagement
	logger          *logging.Logger
}

// NewOpenAIProvider validates credentials up front; a missing key is a configuration error.
func NewOpenAIProvider(config *OpenAIConfig) (*OpenAIProvider, error) {
	if strings.TrimSpace(config.ApiKey) == "" {
		return nil, contracts.Unavailable(providerName, errors.New("api key is required"))
	}

	clientConfig := goopenai.DefaultConfig(config.ApiKey)
	if baseURL := strings.TrimRight(config.BaseURL, "/"); baseURL != "" {
		clientConfig.BaseURL = baseURL
	} else {
		clientConfig.BaseURL = defaultBaseURL
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &OpenAIProvider{
		client:          goopenai.NewClientWithConfig(clientConfig),
		model:           config.Model,
		temperature:     config.Temperature,
		maxTokens:       config.MaxTokens,
		tokenManagement: config.TokenManagement,
		logger:          logger.Component("openai"),
	}, nil
}

func (p *OpenAIProvider) Name() string { return providerName }

// Model reports the configured model, which may be empty until one is selected.
func (p *OpenAIProvider) Model() string { return p.model }

// Generate sends one chat completion and returns the first choice.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if p.model == "" {
		return "", contracts.Unavailable(providerName, errors.New("no model selected"))
	}

	req := goopenai.ChatCompletionRequest{
		Model: p.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if p.temperature != nil {
		req.Temperature = *p.temperature
	}
	if p.maxTokens > 0 {
		req.MaxTokens = p.maxTokens
	}

	p.logger.Debug("sending chat completion", "model", p.model, "prompt_chars", len(prompt))

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", contracts.Unavailable(providerName, fmt.Errorf("chat completion failed: %w", err))
	}

	if p.tokenManagement != nil {
		p.tokenManagement.UsedTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	if len(resp.Choices) == 0 {
		return "", contracts.Unavailable(providerName, errors.New("no choices returned"))
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", contracts.Unavailable(providerName, errors.New("empty response"))
	}

	p.logger.Debug("chat completion finished",
		"finish_reason", resp.Choices[0].FinishReason,
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens)
	return content, nil
}

// ListModels returns the model ids the endpoint exposes, sorted.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]string, error) {
	list, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, contracts.Unavailable(providerName, fmt.Errorf("listing models failed: %w", err))
	}

	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	if len(ids) == 0 {
		return nil, contracts.Unavailable(providerName, errors.New("no models available"))
	}
	sort.Strings(ids)
	return ids, nil
}
