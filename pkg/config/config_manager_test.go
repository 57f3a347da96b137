package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_GetString(t *testing.T) {
	manager := NewConfigManager()
	t.Setenv("TEST_KEY", "test_value")

	value, err := manager.GetString("TEST_KEY")
	require.NoError(t, err)
	assert.Equal(t, "test_value", value)

	_, err = manager.GetString("NON_EXISTENT_KEY")
	assert.Error(t, err)
}

func TestManager_GetStringWithDefault(t *testing.T) {
	manager := NewConfigManager()
	t.Setenv("TEST_KEY", "test_value")

	assert.Equal(t, "test_value", manager.GetStringWithDefault("TEST_KEY", "default_value"))
	assert.Equal(t, "default_value", manager.GetStringWithDefault("NON_EXISTENT_KEY", "default_value"))
}

func TestManager_RequireString_Panics(t *testing.T) {
	manager := NewConfigManager()

	assert.Panics(t, func() {
		manager.RequireString("NON_EXISTENT_KEY")
	})
}

func TestManager_GetIntWithDefault(t *testing.T) {
	manager := NewConfigManager()
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_INVALID", "forty-two")

	assert.Equal(t, 42, manager.GetIntWithDefault("TEST_INT", 7))
	assert.Equal(t, 7, manager.GetIntWithDefault("TEST_INT_INVALID", 7))
	assert.Equal(t, 7, manager.GetIntWithDefault("NON_EXISTENT_INT", 7))

	_, err := manager.GetInt("TEST_INT_INVALID")
	assert.Error(t, err)
}

func TestManager_GetBoolWithDefault(t *testing.T) {
	manager := NewConfigManager()
	t.Setenv("TEST_BOOL_TRUE", "true")
	t.Setenv("TEST_BOOL_INVALID", "not-a-bool")

	assert.True(t, manager.GetBoolWithDefault("TEST_BOOL_TRUE", false))
	assert.True(t, manager.GetBoolWithDefault("TEST_BOOL_INVALID", true))
	assert.False(t, manager.GetBoolWithDefault("NON_EXISTENT_BOOL_KEY", false))
}

func TestManager_GetDurationWithDefault(t *testing.T) {
	manager := NewConfigManager()
	t.Setenv("TEST_DURATION", "250ms")
	t.Setenv("TEST_DURATION_NEGATIVE", "-1s")

	assert.Equal(t, 250*time.Millisecond, manager.GetDurationWithDefault("TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, manager.GetDurationWithDefault("TEST_DURATION_NEGATIVE", time.Second))
	assert.Equal(t, time.Second, manager.GetDurationWithDefault("NON_EXISTENT_DURATION", time.Second))
}

func TestManager_GetMemoryConfig(t *testing.T) {
	manager := NewConfigManager()
	assert.Equal(t, DefaultMaxContextTokens, manager.GetMemoryConfig().MaxTokens)

	t.Setenv(KeyMaxContextTokens, "1000")
	assert.Equal(t, 1000, manager.GetMemoryConfig().MaxTokens)

	t.Setenv(KeyMaxContextTokens, "0")
	assert.Equal(t, DefaultMaxContextTokens, manager.GetMemoryConfig().MaxTokens)
}

func TestManager_GetModelConfig_Defaults(t *testing.T) {
	cfg := NewConfigManager().GetModelConfig()

	assert.Equal(t, DefaultModelName, cfg.ModelName)
	assert.Equal(t, int32(2048), cfg.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-6)
	assert.InDelta(t, 0.95, cfg.TopP, 1e-6)
}

func TestManager_GetTokenCounterConfig(t *testing.T) {
	t.Setenv(KeyTokenCounter, "TikToken")
	t.Setenv(KeyBaseURL, "http://localhost:9000")
	t.Setenv(KeyModelName, "my-model")

	cfg := NewConfigManager().GetTokenCounterConfig()

	assert.Equal(t, "tiktoken", cfg.Backend)
	assert.Equal(t, "http://localhost:9000", cfg.BaseURL)
	assert.Equal(t, "my-model", cfg.Model)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestNewConfigManagerFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tubechan_max_tokens: 1234\nTUBECHAN_TOKEN_COUNTER: estimate\n"), 0644))

	manager, err := NewConfigManagerFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 1234, manager.GetMemoryConfig().MaxTokens)
	assert.Equal(t, "estimate", manager.GetTokenCounterConfig().Backend)

	t.Setenv(KeyMaxContextTokens, "99")
	assert.Equal(t, 99, manager.GetMemoryConfig().MaxTokens, "environment wins over the file")
}

func TestNewConfigManagerFromFile_Missing(t *testing.T) {
	manager, err := NewConfigManagerFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.NotNil(t, manager)
}

func TestNewConfigManagerFromFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("key: [unterminated"), 0644))

	_, err := NewConfigManagerFromFile(path)
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TUBECHAN_TEST_DOTENV=loaded\n"), 0644))
	t.Setenv("TUBECHAN_TEST_DOTENV", "")
	os.Unsetenv("TUBECHAN_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "loaded", os.Getenv("TUBECHAN_TEST_DOTENV"))
}
