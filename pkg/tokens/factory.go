package tokens

import (
	"context"
	"fmt"

	"github.com/kcaldas/tubechan/pkg/config"
)

// Backend names accepted by NewServiceFromConfig.
const (
	BackendAPI       = "api"
	BackendTiktoken  = "tiktoken"
	BackendAnthropic = "anthropic"
	BackendGenAI     = "genai"
	BackendEstimate  = "estimate"
)

// NewServiceFromConfig selects the counting backend named by
// TUBECHAN_TOKEN_COUNTER.
func NewServiceFromConfig(ctx context.Context, manager config.Manager) (Service, error) {
	cfg := manager.GetTokenCounterConfig()
	switch cfg.Backend {
	case BackendAPI, "":
		return NewHTTPService(cfg.BaseURL, WithAPIKey(cfg.APIKey)), nil
	case BackendTiktoken:
		return NewTiktokenService(), nil
	case BackendAnthropic:
		service, err := NewAnthropicService(
			manager.GetStringWithDefault("ANTHROPIC_API_KEY", ""),
			manager.GetStringWithDefault("ANTHROPIC_BASE_URL", ""),
		)
		if err != nil {
			return nil, err
		}
		return service, nil
	case BackendGenAI:
		service, err := NewGenAIService(ctx, manager.GetStringWithDefault("GEMINI_API_KEY", ""))
		if err != nil {
			return nil, err
		}
		return service, nil
	case BackendEstimate:
		return EstimateService{}, nil
	default:
		return nil, fmt.Errorf("unknown token counter backend %q", cfg.Backend)
	}
}

// NewCounterFromConfig builds the service and wraps it in a Counter.
func NewCounterFromConfig(ctx context.Context, manager config.Manager, opts ...Option) (*Counter, error) {
	service, err := NewServiceFromConfig(ctx, manager)
	if err != nil {
		return nil, err
	}

	cfg := manager.GetTokenCounterConfig()
	backend := cfg.Backend
	if backend == "" {
		backend = BackendAPI
	}
	base := []Option{
		WithModel(cfg.Model),
		WithTimeout(cfg.Timeout),
		WithBackendName(backend),
	}
	return NewCounter(service, append(base, opts...)...), nil
}
