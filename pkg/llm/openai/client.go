package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/kcaldas/tubechan/pkg/config"
	"github.com/kcaldas/tubechan/pkg/events"
	"github.com/kcaldas/tubechan/pkg/llm"
	"github.com/kcaldas/tubechan/pkg/logging"
	"github.com/kcaldas/tubechan/pkg/memory"
)

const clientHeaderValue = "tubechan"

var _ llm.Completer = (*Client)(nil)

type chatCompletionClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Option configures the OpenAI client.
type Option func(*Client)

// WithConfigManager injects a custom configuration manager (useful for tests).
func WithConfigManager(manager config.Manager) Option {
	return func(c *Client) {
		if manager != nil {
			c.config = manager
		}
	}
}

// WithLogger injects a custom logger implementation.
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEventBus publishes the usage reported with every completion.
func WithEventBus(publisher events.Publisher) Option {
	return func(c *Client) {
		if publisher != nil {
			c.publisher = publisher
		}
	}
}

// WithChatClient injects a custom Chat Completions client (primarily for tests).
func WithChatClient(chat chatCompletionClient) Option {
	return func(c *Client) {
		if chat != nil {
			c.chatCompletions = chat
		}
	}
}

// Client is an llm.Completer backed by an OpenAI-compatible Chat Completions
// endpoint, configured through TUBECHAN_BASE_URL and TUBECHAN_API_KEY.
type Client struct {
	mu sync.Mutex

	config    config.Manager
	publisher events.Publisher
	logger    logging.Logger

	chatCompletions chatCompletionClient

	initialized bool
	initErr     error
}

// NewClient builds the completer. Credentials are checked on first use.
func NewClient(opts ...Option) *Client {
	client := &Client{
		config:    config.NewConfigManager(),
		publisher: &events.NoOpEventBus{},
		logger:    logging.NewServiceLogger("openai"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Complete implements llm.Completer.
func (c *Client) Complete(ctx context.Context, model string, turns memory.Transcript) (string, error) {
	if err := c.ensureInitialized(); err != nil {
		return "", err
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.resolveModelName(model)),
		Messages: buildMessages(turns),
	}
	c.applyGenerationConfig(&params)

	resp, err := c.chatCompletions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	c.publishUsage(string(params.Model), resp.Usage)

	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat completion returned no choices")
	}

	response := strings.TrimSpace(resp.Choices[0].Message.Content)
	if response == "" {
		return "", llm.ErrEmptyResponse
	}
	return response, nil
}

func (c *Client) ensureInitialized() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return c.initErr
	}

	if c.chatCompletions != nil {
		c.initialized = true
		return nil
	}

	apiKey := strings.TrimSpace(c.config.GetStringWithDefault(config.KeyAPIKey, ""))
	if apiKey == "" {
		c.initErr = fmt.Errorf("%w: please export %s (and optionally %s)", llm.ErrMissingAPIKey, config.KeyAPIKey, config.KeyBaseURL)
		c.initialized = true
		return c.initErr
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHeaderAdd("X-Client", clientHeaderValue),
	}
	if baseURL := strings.TrimSpace(c.config.GetStringWithDefault(config.KeyBaseURL, config.DefaultBaseURL)); baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/v1"))
	}

	client := openai.NewClient(opts...)
	service := client.Chat.Completions

	c.chatCompletions = &service
	c.initialized = true
	c.initErr = nil
	return nil
}

func (c *Client) resolveModelName(model string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	return c.config.GetModelConfig().ModelName
}

func buildMessages(turns memory.Transcript) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case memory.RoleSystem:
			messages = append(messages, openai.SystemMessage(turn.Content))
		case memory.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}
	return messages
}

func (c *Client) applyGenerationConfig(params *openai.ChatCompletionNewParams) {
	modelCfg := c.config.GetModelConfig()

	if modelCfg.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(modelCfg.MaxTokens))
	}
	if modelCfg.Temperature > 0 {
		params.Temperature = openai.Float(float64(modelCfg.Temperature))
	}
	if modelCfg.TopP > 0 && modelCfg.TopP < 1 {
		params.TopP = openai.Float(float64(modelCfg.TopP))
	}
}

func (c *Client) publishUsage(model string, usage openai.CompletionUsage) {
	if usage.TotalTokens == 0 && usage.PromptTokens == 0 && usage.CompletionTokens == 0 {
		return
	}

	c.logger.Debug("completion usage",
		"model", model,
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens,
	)
	events.Emit(c.publisher, events.CompletionUsageEvent{
		Model:            model,
		PromptTokens:     int(usage.PromptTokens),
		CompletionTokens: int(usage.CompletionTokens),
		TotalTokens:      int(usage.TotalTokens),
	})
}
