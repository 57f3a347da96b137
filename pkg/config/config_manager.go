package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Configuration keys read by the Manager.
const (
	KeyModelName           = "TUBECHAN_MODEL_NAME"
	KeyModelMaxTokens      = "TUBECHAN_MODEL_MAX_TOKENS"
	KeyModelTemperature    = "TUBECHAN_MODEL_TEMPERATURE"
	KeyModelTopP           = "TUBECHAN_MODEL_TOP_P"
	KeyMaxContextTokens    = "TUBECHAN_MAX_TOKENS"
	KeyTokenCounter        = "TUBECHAN_TOKEN_COUNTER"
	KeyTokenCounterURL     = "TUBECHAN_TOKEN_COUNTER_URL"
	KeyTokenCounterModel   = "TUBECHAN_TOKEN_COUNTER_MODEL"
	KeyTokenCounterTimeout = "TUBECHAN_TOKEN_COUNTER_TIMEOUT"
	KeyBaseURL             = "TUBECHAN_BASE_URL"
	KeyAPIKey              = "TUBECHAN_API_KEY"
	KeySessionDir          = "TUBECHAN_SESSION_DIR"
	KeyTranscriptDir       = "TUBECHAN_TRANSCRIPT_DIR"
	KeyCharacter           = "TUBECHAN_CHARACTER"
	KeyUserName            = "TUBECHAN_USER_NAME"
)

// Defaults applied when neither the environment nor the config file set a key.
const (
	DefaultModelName        = "Sao10K-70B-L3.3-Cirrus-x1"
	DefaultMaxContextTokens = 30000
	DefaultTokenCounter     = "api"
	DefaultBaseURL          = "https://api.arliai.com"
	DefaultConfigPath       = "~/.tubechan/config.yaml"
	DefaultSessionDir       = "~/.tubechan/sessions"
	DefaultTranscriptDir    = "~/.tubechan/transcripts"
	DefaultHistoryPath      = "~/.tubechan/history"
)

// ModelConfig represents the completion model configuration
type ModelConfig struct {
	ModelName   string
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// MemoryConfig configures the context-window memory manager.
type MemoryConfig struct {
	MaxTokens int
}

// TokenCounterConfig selects and configures the token counting backend.
type TokenCounterConfig struct {
	Backend string
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Manager provides configuration management functionality
type Manager interface {
	GetString(key string) (string, error)
	GetStringWithDefault(key, defaultValue string) string
	RequireString(key string) string
	GetInt(key string) (int, error)
	GetIntWithDefault(key string, defaultValue int) int
	GetBoolWithDefault(key string, defaultValue bool) bool
	GetDurationWithDefault(key string, defaultValue time.Duration) time.Duration
	GetModelConfig() ModelConfig
	GetMemoryConfig() MemoryConfig
	GetTokenCounterConfig() TokenCounterConfig
}

// DefaultManager reads the environment first and falls back to values
// loaded from a YAML file.
type DefaultManager struct {
	fileValues map[string]string
}

// NewConfigManager creates a manager backed by the environment only
func NewConfigManager() Manager {
	return &DefaultManager{fileValues: map[string]string{}}
}

// NewConfigManagerFromFile creates a manager whose defaults come from a flat
// YAML map of keys to scalars. A missing file is not an error.
func NewConfigManagerFromFile(path string) (Manager, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expanding config path %s: %w", path, err)
	}

	data, err := os.ReadFile(expanded)
	if errors.Is(err, fs.ErrNotExist) {
		return NewConfigManager(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", expanded, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", expanded, err)
	}

	values := make(map[string]string, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		values[strings.ToUpper(key)] = fmt.Sprint(value)
	}
	return &DefaultManager{fileValues: values}, nil
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// ExpandPath resolves a leading ~ and cleans the path.
func ExpandPath(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(expanded), nil
}

func (m *DefaultManager) lookup(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return m.fileValues[key]
}

// GetString gets a configuration value by key, returns error if not found
func (m *DefaultManager) GetString(key string) (string, error) {
	value := m.lookup(key)
	if value == "" {
		return "", fmt.Errorf("configuration key %s not found", key)
	}
	return value, nil
}

// GetStringWithDefault gets a configuration value by key, returns default if not found
func (m *DefaultManager) GetStringWithDefault(key, defaultValue string) string {
	value := m.lookup(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// RequireString gets a configuration value by key, panics if not found
func (m *DefaultManager) RequireString(key string) string {
	value := m.lookup(key)
	if value == "" {
		panic(fmt.Sprintf("required configuration key %s not found", key))
	}
	return value
}

// GetInt gets an integer configuration value by key, returns error if not found or invalid
func (m *DefaultManager) GetInt(key string) (int, error) {
	value := m.lookup(key)
	if value == "" {
		return 0, fmt.Errorf("configuration key %s not found", key)
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("configuration key %s has invalid integer value: %s", key, value)
	}
	return intValue, nil
}

// GetIntWithDefault gets an integer configuration value by key, returns default if not found or invalid
func (m *DefaultManager) GetIntWithDefault(key string, defaultValue int) int {
	intValue, err := m.GetInt(key)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// GetBoolWithDefault gets a boolean configuration value by key, returns default if not found or invalid
func (m *DefaultManager) GetBoolWithDefault(key string, defaultValue bool) bool {
	boolValue, err := strconv.ParseBool(m.lookup(key))
	if err != nil {
		return defaultValue
	}
	return boolValue
}

// GetDurationWithDefault parses values like "5s" or "250ms".
func (m *DefaultManager) GetDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	duration, err := time.ParseDuration(m.lookup(key))
	if err != nil || duration <= 0 {
		return defaultValue
	}
	return duration
}

// GetModelConfig returns the completion model configuration
func (m *DefaultManager) GetModelConfig() ModelConfig {
	maxTokens, err := strconv.ParseInt(m.GetStringWithDefault(KeyModelMaxTokens, "2048"), 10, 32)
	if err != nil {
		maxTokens = 2048
	}

	temperature, err := strconv.ParseFloat(m.GetStringWithDefault(KeyModelTemperature, "0.7"), 32)
	if err != nil {
		temperature = 0.7
	}

	topP, err := strconv.ParseFloat(m.GetStringWithDefault(KeyModelTopP, "0.95"), 32)
	if err != nil {
		topP = 0.95
	}

	return ModelConfig{
		ModelName:   m.GetStringWithDefault(KeyModelName, DefaultModelName),
		MaxTokens:   int32(maxTokens),
		Temperature: float32(temperature),
		TopP:        float32(topP),
	}
}

// GetMemoryConfig returns the context budget. Non-positive values fall back
// to DefaultMaxContextTokens.
func (m *DefaultManager) GetMemoryConfig() MemoryConfig {
	maxTokens := m.GetIntWithDefault(KeyMaxContextTokens, DefaultMaxContextTokens)
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	return MemoryConfig{MaxTokens: maxTokens}
}

// GetTokenCounterConfig returns the token counting backend settings. The
// counting model defaults to the completion model.
func (m *DefaultManager) GetTokenCounterConfig() TokenCounterConfig {
	return TokenCounterConfig{
		Backend: strings.ToLower(m.GetStringWithDefault(KeyTokenCounter, DefaultTokenCounter)),
		BaseURL: m.GetStringWithDefault(KeyTokenCounterURL, m.GetStringWithDefault(KeyBaseURL, DefaultBaseURL)),
		APIKey:  m.GetStringWithDefault(KeyAPIKey, ""),
		Model:   m.GetStringWithDefault(KeyTokenCounterModel, m.GetStringWithDefault(KeyModelName, DefaultModelName)),
		Timeout: m.GetDurationWithDefault(KeyTokenCounterTimeout, 10*time.Second),
	}
}
