package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/meysamhadeli/scaffai/logging"
	"github.com/meysamhadeli/scaffai/providers/contracts"
	"github.com/meysamhadeli/scaffai/providers/models"
	ollama_models "github.com/meysamhadeli/scaffai/providers/ollama/models"
	contracts2 "github.com/meysamhadeli/scaffai/token_management/contracts"
)

const (
	providerName   = "local"
	defaultBaseURL = "http://localhost:11434/api"
	systemPrompt   = "You are a code generator. Reply with source code only."
)

// OllamaConfig implements the local Generation Capability against an Ollama server.
type OllamaConfig struct {
	BaseURL         string
	Model           string
	Temperature     *float32
	MaxTokens       int
	TokenManagement contracts2.ITokenManagement
	HTTPClient      *http.Client
	Logger          *logging.Logger
}

// NewOllamaProvider initializes a local provider. The model name is required.
func NewOllamaProvider(config *OllamaConfig) (*OllamaConfig, error) {
	if strings.TrimSpace(config.Model) == "" {
		return nil, contracts.Unavailable(providerName, errors.New("model name is required"))
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &OllamaConfig{
		BaseURL:         baseURL,
		Model:           config.Model,
		Temperature:     config.Temperature,
		MaxTokens:       config.MaxTokens,
		TokenManagement: config.TokenManagement,
		HTTPClient:      client,
		Logger:          logger.Component("ollama"),
	}, nil
}

// NewModelLister returns a provider for ListModels only; no model needs to be selected yet.
func NewModelLister(baseURL string, logger *logging.Logger) *OllamaConfig {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &OllamaConfig{BaseURL: baseURL, HTTPClient: &http.Client{}, Logger: logger.Component("ollama")}
}

func (ollamaProvider *OllamaConfig) Name() string { return providerName }

// Generate drains the chat stream into a single string.
func (ollamaProvider *OllamaConfig) Generate(ctx context.Context, prompt string) (string, error) {
	var builder strings.Builder
	for response := range ollamaProvider.ChatCompletionRequest(ctx, prompt, systemPrompt) {
		if response.Err != nil {
			return "", contracts.Unavailable(providerName, response.Err)
		}
		if response.Done {
			break
		}
		builder.WriteString(response.Content)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text := builder.String()
	if strings.TrimSpace(text) == "" {
		return "", contracts.Unavailable(providerName, errors.New("empty response"))
	}
	return text, nil
}

// ChatCompletionRequest streams the reply line by line.
func (ollamaProvider *OllamaConfig) ChatCompletionRequest(ctx context.Context, userInput string, prompt string) <-chan models.StreamResponse {
	responseChan := make(chan models.StreamResponse)
	var markdownBuffer strings.Builder

	go func() {
		defer close(responseChan)

		send := func(response models.StreamResponse) bool {
			select {
			case responseChan <- response:
				return true
			case <-ctx.Done():
				return false
			}
		}

		reqBody := ollama_models.OllamaChatCompletionRequest{
			Model: ollamaProvider.Model,
			Messages: []ollama_models.Message{
				{Role: "system", Content: prompt},
				{Role: "user", Content: userInput},
			},
			Stream: true,
		}
		if ollamaProvider.Temperature != nil || ollamaProvider.MaxTokens > 0 {
			reqBody.Options = &ollama_models.Options{
				Temperature: ollamaProvider.Temperature,
				NumPredict:  ollamaProvider.MaxTokens,
			}
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			send(models.StreamResponse{Err: fmt.Errorf("error marshalling request body: %w", err)})
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/chat", ollamaProvider.BaseURL), bytes.NewBuffer(jsonData))
		if err != nil {
			send(models.StreamResponse{Err: fmt.Errorf("error creating request: %w", err)})
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := ollamaProvider.HTTPClient.Do(req)
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				send(models.StreamResponse{Err: fmt.Errorf("request canceled: %w", err)})
				return
			}
			send(models.StreamResponse{Err: fmt.Errorf("error sending request: %w", err)})
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			send(models.StreamResponse{Err: fmt.Errorf("API request failed with status code '%d' - %s", resp.StatusCode, errorMessage(body))})
			return
		}

		reader := bufio.NewReader(resp.Body)
		for {
			line, readErr := reader.ReadString('\n')
			if readErr != nil && readErr != io.EOF {
				send(models.StreamResponse{Err: fmt.Errorf("error reading stream: %w", readErr)})
				return
			}

			if trimmed := strings.TrimSpace(line); trimmed != "" {
				var response ollama_models.OllamaChatCompletionResponse
				if err := json.Unmarshal([]byte(trimmed), &response); err != nil {
					send(models.StreamResponse{Err: fmt.Errorf("error unmarshalling chunk: %w", err)})
					return
				}

				if content := response.Message.Content; content != "" {
					markdownBuffer.WriteString(content)
					// Flush on newline so callers can render whole lines.
					if strings.Contains(content, "\n") {
						if !send(models.StreamResponse{Content: markdownBuffer.String()}) {
							return
						}
						markdownBuffer.Reset()
					}
				}

				if response.Done {
					if markdownBuffer.Len() > 0 && !send(models.StreamResponse{Content: markdownBuffer.String()}) {
						return
					}
					markdownBuffer.Reset()

					if response.PromptEvalCount > 0 && ollamaProvider.TokenManagement != nil {
						ollamaProvider.TokenManagement.UsedTokens(response.PromptEvalCount, response.EvalCount)
					}
					ollamaProvider.Logger.Debug("completion finished",
						"model", ollamaProvider.Model,
						"input_tokens", response.PromptEvalCount,
						"output_tokens", response.EvalCount)

					send(models.StreamResponse{Done: true})
					return
				}
			}

			if readErr == io.EOF {
				break
			}
		}

		if markdownBuffer.Len() > 0 {
			send(models.StreamResponse{Content: markdownBuffer.String()})
		}
	}()

	return responseChan
}

// ListModels returns the names of locally pulled models.
func (ollamaProvider *OllamaConfig) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/tags", ollamaProvider.BaseURL), nil)
	if err != nil {
		return nil, contracts.Unavailable(providerName, err)
	}

	resp, err := ollamaProvider.HTTPClient.Do(req)
	if err != nil {
		return nil, contracts.Unavailable(providerName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, contracts.Unavailable(providerName, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, contracts.Unavailable(providerName, fmt.Errorf("status %d - %s", resp.StatusCode, errorMessage(body)))
	}

	var tags ollama_models.OllamaTagsResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, contracts.Unavailable(providerName, fmt.Errorf("error parsing model list: %w", err))
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	if len(names) == 0 {
		return nil, contracts.Unavailable(providerName, errors.New("no models available"))
	}
	return names, nil
}

func errorMessage(body []byte) string {
	var flat ollama_models.OllamaError
	if err := json.Unmarshal(body, &flat); err == nil && flat.Error != "" {
		return flat.Error
	}
	var apiError models.AIError
	if err := json.Unmarshal(body, &apiError); err == nil && apiError.Error.Message != "" {
		return apiError.Error.Message
	}
	return strings.TrimSpace(string(body))
}
