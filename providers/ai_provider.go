package providers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meysamhadeli/scaffai/logging"
	"github.com/meysamhadeli/scaffai/providers/contracts"
	"github.com/meysamhadeli/scaffai/providers/middleware"
	"github.com/meysamhadeli/scaffai/providers/ollama"
	"github.com/meysamhadeli/scaffai/providers/openai"
	contracts2 "github.com/meysamhadeli/scaffai/token_management/contracts"
)

const (
	ProviderLocal  = "local"
	ProviderRemote = "remote"
)

// AIProviderConfig selects and parameterizes a Generation Capability.
type AIProviderConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	ApiKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Temperature *float32      `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// NormalizeProvider maps accepted aliases to ProviderLocal or ProviderRemote.
func NormalizeProvider(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProviderLocal, "ollama":
		return ProviderLocal, nil
	case ProviderRemote, "openai":
		return ProviderRemote, nil
	default:
		return "", fmt.Errorf("unsupported provider %q (expected %q or %q)", name, ProviderLocal, ProviderRemote)
	}
}

// ProviderFactory builds the bare provider selected by config.
func ProviderFactory(config *AIProviderConfig, tokenManagement contracts2.ITokenManagement, logger *logging.Logger) (contracts.IGenerator, error) {
	if config == nil {
		return nil, contracts.Unavailable("provider", errors.New("no provider configuration"))
	}

	provider, err := NormalizeProvider(config.Provider)
	if err != nil {
		return nil, contracts.Unavailable("provider", err)
	}

	switch provider {
	case ProviderLocal:
		local, err := ollama.NewOllamaProvider(&ollama.OllamaConfig{
			BaseURL:         config.BaseURL,
			Model:           config.Model,
			Temperature:     config.Temperature,
			MaxTokens:       config.MaxTokens,
			TokenManagement: tokenManagement,
			Logger:          logger,
		})
		if err != nil {
			return nil, err
		}
		return local, nil
	default:
		remote, err := openai.NewOpenAIProvider(&openai.OpenAIConfig{
			BaseURL:         config.BaseURL,
			ApiKey:          config.ApiKey,
			Model:           config.Model,
			Temperature:     config.Temperature,
			MaxTokens:       config.MaxTokens,
			TokenManagement: tokenManagement,
			Logger:          logger,
		})
		if err != nil {
			return nil, err
		}
		return remote, nil
	}
}

// NewGenerator builds the configured provider and wraps it with the standard
// middleware chain: logging, then optional cache, then the per-call timeout.
func NewGenerator(config *AIProviderConfig, tokenManagement contracts2.ITokenManagement, logger *logging.Logger, cache middleware.Middleware) (contracts.IGenerator, error) {
	provider, err := ProviderFactory(config, tokenManagement, logger)
	if err != nil {
		return nil, err
	}
	return middleware.Wrap(provider,
		middleware.WithLogging(logger),
		cache,
		middleware.Timeout(config.Timeout),
	), nil
}

// ModelLister returns the model-listing side of the configured provider.
// Unlike ProviderFactory it does not require a model to be selected.
func ModelLister(config *AIProviderConfig, logger *logging.Logger) (contracts.IModelLister, error) {
	if config == nil {
		return nil, contracts.Unavailable("provider", errors.New("no provider configuration"))
	}

	provider, err := NormalizeProvider(config.Provider)
	if err != nil {
		return nil, contracts.Unavailable("provider", err)
	}

	if provider == ProviderLocal {
		return ollama.NewModelLister(config.BaseURL, logger), nil
	}
	remote, err := openai.NewOpenAIProvider(&openai.OpenAIConfig{
		BaseURL: config.BaseURL,
		ApiKey:  config.ApiKey,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	return remote, nil
}
