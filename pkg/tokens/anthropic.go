package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic_sdk "github.com/anthropics/anthropic-sdk-go"
	anthropic_option "github.com/anthropics/anthropic-sdk-go/option"
)

const defaultClaudeModel = "claude-3-5-sonnet-20241022"

var errMissingAnthropicKey = errors.New("anthropic token counting not configured")

type messageCounter interface {
	CountTokens(ctx context.Context, body anthropic_sdk.MessageCountTokensParams, opts ...anthropic_option.RequestOption) (*anthropic_sdk.MessageTokensCount, error)
}

// AnthropicService counts through the Messages count_tokens API. The text is
// sent as a single user message.
type AnthropicService struct {
	messages messageCounter
}

// NewAnthropicService builds the SDK client from an API key and optional
// base URL.
func NewAnthropicService(apiKey, baseURL string) (*AnthropicService, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: please export ANTHROPIC_API_KEY", errMissingAnthropicKey)
	}

	opts := []anthropic_option.RequestOption{anthropic_option.WithAPIKey(apiKey)}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		opts = append(opts, anthropic_option.WithBaseURL(baseURL))
	}

	client := anthropic_sdk.NewClient(opts...)
	service := client.Messages
	return &AnthropicService{messages: &service}, nil
}

func newAnthropicServiceWithClient(messages messageCounter) *AnthropicService {
	return &AnthropicService{messages: messages}
}

// CountTokens implements Service.
func (s *AnthropicService) CountTokens(ctx context.Context, model, text string) (*TokenCount, error) {
	if strings.TrimSpace(model) == "" {
		model = defaultClaudeModel
	}

	params := anthropic_sdk.MessageCountTokensParams{
		Model: anthropic_sdk.Model(model),
		Messages: []anthropic_sdk.MessageParam{
			anthropic_sdk.NewUserMessage(anthropic_sdk.NewTextBlock(text)),
		},
	}

	result, err := s.messages.CountTokens(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic count tokens: %w", err)
	}
	return &TokenCount{TotalTokens: int(result.InputTokens)}, nil
}
