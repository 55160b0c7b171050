package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/meysamhadeli/scaffai/providers"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ConfigName is the file stem searched for in the working directory.
const ConfigName = "scaffai-config"

// Config represents the structure of the configuration file
type Config struct {
	Version          string                      `mapstructure:"version"`
	Theme            string                      `mapstructure:"theme"`
	EnableCache      bool                        `mapstructure:"enable_cache"`
	CacheDir         string                      `mapstructure:"cache_dir"`
	LogLevel         string                      `mapstructure:"log_level"`
	LogFormat        string                      `mapstructure:"log_format"`
	WorkspaceRoot    string                      `mapstructure:"workspace_root"`
	Language         string                      `mapstructure:"language"`
	TestCommand      []string                    `mapstructure:"test_command"`
	MaxIterations    int                         `mapstructure:"max_iterations"`
	MaxDuration      time.Duration               `mapstructure:"max_duration"`
	GitCheckpoint    bool                        `mapstructure:"git_checkpoint"`
	AIProviderConfig *providers.AIProviderConfig `mapstructure:"ai_provider_config"`
}

// DefaultConfig values
var DefaultConfig = Config{
	Version:       "0.3.0",
	Theme:         "dracula",
	EnableCache:   true,
	LogLevel:      "info",
	LogFormat:     "text",
	WorkspaceRoot: "projects",
	Language:      "python",
	MaxIterations: 5,
	AIProviderConfig: &providers.AIProviderConfig{
		Provider: providers.ProviderLocal,
		BaseURL:  "http://localhost:11434/api",
		Model:    "llama3.1",
		Timeout:  2 * time.Minute,
	},
}

// flagKeys maps persistent flag names to configuration keys.
var flagKeys = map[string]string{
	"theme":          "theme",
	"enable_cache":   "enable_cache",
	"cache_dir":      "cache_dir",
	"log_level":      "log_level",
	"log_format":     "log_format",
	"workspace_root": "workspace_root",
	"language":       "language",
	"test_command":   "test_command",
	"max_iterations": "max_iterations",
	"max_duration":   "max_duration",
	"git_checkpoint": "git_checkpoint",
	"provider":       "ai_provider_config.provider",
	"base_url":       "ai_provider_config.base_url",
	"model":          "ai_provider_config.model",
	"temperature":    "ai_provider_config.temperature",
	"max_tokens":     "ai_provider_config.max_tokens",
	"api_key":        "ai_provider_config.api_key",
	"timeout":        "ai_provider_config.timeout",
}

// LoadConfigs builds the final config from defaults, the config file, .env,
// environment variables and changed CLI flags, in increasing precedence.
func LoadConfigs(rootCmd *cobra.Command, cwd string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	cfgFile := ""
	if rootCmd != nil {
		if flag := rootCmd.PersistentFlags().Lookup("config"); flag != nil {
			cfgFile = flag.Value.String()
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if configType := GetConfigFileType(cfgFile); configType != "" {
			v.SetConfigType(configType)
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else if path := findConfigFile(cwd); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(GetConfigFileType(path))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	if rootCmd != nil {
		if err := bindFlags(v, rootCmd); err != nil {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if config.AIProviderConfig == nil {
		config.AIProviderConfig = &providers.AIProviderConfig{}
	}

	return &config, config.Validate()
}

// Validate rejects values the rest of the program cannot work with.
func (c *Config) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", c.MaxIterations)
	}
	if c.MaxDuration < 0 {
		return fmt.Errorf("max_duration must not be negative, got %s", c.MaxDuration)
	}
	if _, err := providers.NormalizeProvider(c.AIProviderConfig.Provider); err != nil {
		return err
	}
	return nil
}

// ConfigSource returns the config file LoadConfigs would read, or "".
func ConfigSource(rootCmd *cobra.Command, cwd string) string {
	if rootCmd != nil {
		if flag := rootCmd.PersistentFlags().Lookup("config"); flag != nil && flag.Value.String() != "" {
			return flag.Value.String()
		}
	}
	return findConfigFile(cwd)
}

func findConfigFile(cwd string) string {
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		path := filepath.Join(cwd, ConfigName+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// setDefaults sets all default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("version", DefaultConfig.Version)
	v.SetDefault("theme", DefaultConfig.Theme)
	v.SetDefault("enable_cache", DefaultConfig.EnableCache)
	v.SetDefault("cache_dir", DefaultConfig.CacheDir)
	v.SetDefault("log_level", DefaultConfig.LogLevel)
	v.SetDefault("log_format", DefaultConfig.LogFormat)
	v.SetDefault("workspace_root", DefaultConfig.WorkspaceRoot)
	v.SetDefault("language", DefaultConfig.Language)
	v.SetDefault("max_iterations", DefaultConfig.MaxIterations)
	v.SetDefault("max_duration", DefaultConfig.MaxDuration)
	v.SetDefault("git_checkpoint", DefaultConfig.GitCheckpoint)
	v.SetDefault("ai_provider_config.provider", DefaultConfig.AIProviderConfig.Provider)
	v.SetDefault("ai_provider_config.base_url", DefaultConfig.AIProviderConfig.BaseURL)
	v.SetDefault("ai_provider_config.model", DefaultConfig.AIProviderConfig.Model)
	v.SetDefault("ai_provider_config.max_tokens", DefaultConfig.AIProviderConfig.MaxTokens)
	v.SetDefault("ai_provider_config.api_key", DefaultConfig.AIProviderConfig.ApiKey)
	v.SetDefault("ai_provider_config.timeout", DefaultConfig.AIProviderConfig.Timeout)
}

// bindEnv explicitly binds environment variables to configuration keys
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("theme", "THEME")
	_ = v.BindEnv("enable_cache", "ENABLE_CACHE")
	_ = v.BindEnv("cache_dir", "SCAFFAI_CACHE_DIR")
	_ = v.BindEnv("log_level", "LOG_LEVEL")
	_ = v.BindEnv("log_format", "LOG_FORMAT")
	_ = v.BindEnv("workspace_root", "WORKSPACE_ROOT")
	_ = v.BindEnv("language", "SCAFFAI_LANGUAGE")
	_ = v.BindEnv("max_iterations", "MAX_ITERATIONS")
	_ = v.BindEnv("max_duration", "MAX_DURATION")
	_ = v.BindEnv("git_checkpoint", "GIT_CHECKPOINT")
	_ = v.BindEnv("ai_provider_config.provider", "PROVIDER")
	_ = v.BindEnv("ai_provider_config.base_url", "BASE_URL")
	_ = v.BindEnv("ai_provider_config.model", "MODEL")
	_ = v.BindEnv("ai_provider_config.temperature", "TEMPERATURE")
	_ = v.BindEnv("ai_provider_config.max_tokens", "MAX_TOKENS")
	_ = v.BindEnv("ai_provider_config.api_key", "API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("ai_provider_config.timeout", "PROVIDER_TIMEOUT")
}

// bindFlags binds the CLI flags the user actually set, so flag defaults never
// shadow the config file or the environment.
func bindFlags(v *viper.Viper, rootCmd *cobra.Command) error {
	flags := rootCmd.PersistentFlags()
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding flag --%s: %w", name, err)
		}
	}
	return nil
}

// InitFlags initializes the flags for the root command.
func InitFlags(rootCmd *cobra.Command) {
	// Use PersistentFlags so that these flags are available in all subcommands
	rootCmd.PersistentFlags().StringP("config", "c", "", "Specifies the path to a configuration file (JSON or YAML) that contains all the settings for the application.")

	rootCmd.PersistentFlags().String("theme", DefaultConfig.Theme, "Set the syntax highlighting theme for generated code (e.g., 'dracula', 'monokai', 'github').")
	rootCmd.PersistentFlags().Bool("enable_cache", DefaultConfig.EnableCache, "Enable or disable the skeleton generation cache.")
	rootCmd.PersistentFlags().String("cache_dir", DefaultConfig.CacheDir, "Directory of the skeleton generation cache (default './.scaffai-cache').")
	rootCmd.PersistentFlags().String("log_level", DefaultConfig.LogLevel, "Log level: trace, debug, info, warn, error or disabled.")
	rootCmd.PersistentFlags().String("log_format", DefaultConfig.LogFormat, "Log format: 'text' or 'json'.")

	rootCmd.PersistentFlags().String("workspace_root", DefaultConfig.WorkspaceRoot, "Directory under which project workspaces are created.")
	rootCmd.PersistentFlags().String("language", DefaultConfig.Language, "Target language of generated projects ('python' or 'go').")
	rootCmd.PersistentFlags().StringSlice("test_command", nil, "Override the test command; '{report}' is replaced by the report path.")
	rootCmd.PersistentFlags().Int("max_iterations", DefaultConfig.MaxIterations, "Maximum number of test runs in the improvement loop.")
	rootCmd.PersistentFlags().Duration("max_duration", DefaultConfig.MaxDuration, "Wall-clock budget of the improvement loop (0 means none).")
	rootCmd.PersistentFlags().Bool("git_checkpoint", DefaultConfig.GitCheckpoint, "Commit the workspace before each patch batch.")

	// Version flag
	rootCmd.Flags().BoolP("version", "v", false, "Specifies the version of the application.")

	// AI Provider configuration
	rootCmd.PersistentFlags().String("provider", DefaultConfig.AIProviderConfig.Provider, "The generation provider: 'local' (Ollama) or 'remote' (OpenAI-compatible).")
	rootCmd.PersistentFlags().String("base_url", DefaultConfig.AIProviderConfig.BaseURL, "The base URL of the AI provider.")
	rootCmd.PersistentFlags().String("model", DefaultConfig.AIProviderConfig.Model, "The name of the model used for generation.")
	rootCmd.PersistentFlags().Float32("temperature", 0, "Adjusts the model's creativity (0-1).")
	rootCmd.PersistentFlags().Int("max_tokens", 0, "Upper bound on tokens generated per request (0 means provider default).")
	rootCmd.PersistentFlags().String("api_key", DefaultConfig.AIProviderConfig.ApiKey, "The API key used to authenticate with the remote provider.")
	rootCmd.PersistentFlags().Duration("timeout", DefaultConfig.AIProviderConfig.Timeout, "Per-request generation timeout.")
}

// GetConfigFileType returns the type of the configuration file based on its extension
func GetConfigFileType(filename string) string {
	if strings.HasSuffix(filename, ".json") {
		return "json"
	} else if strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml") {
		return "yaml"
	}
	return ""
}
