// Package di assembles the chat stack from configuration.
package di

import (
	"context"
	"fmt"

	"github.com/kcaldas/tubechan/pkg/config"
	"github.com/kcaldas/tubechan/pkg/events"
	"github.com/kcaldas/tubechan/pkg/heavy"
	"github.com/kcaldas/tubechan/pkg/llm"
	"github.com/kcaldas/tubechan/pkg/llm/openai"
	"github.com/kcaldas/tubechan/pkg/logging"
	"github.com/kcaldas/tubechan/pkg/session"
	"github.com/kcaldas/tubechan/pkg/tokens"
)

// Shared event bus instance
var eventBus = events.NewEventBus()

func ProvideEventBus() events.EventBus {
	return eventBus
}

// ProvideConfigManager loads .env from the working directory and then the
// YAML config file at path (DefaultConfigPath when empty).
func ProvideConfigManager(path string) (config.Manager, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	if path == "" {
		path = config.DefaultConfigPath
	}
	return config.NewConfigManagerFromFile(path)
}

func ProvideTokenCounter(ctx context.Context, cfg config.Manager, bus events.EventBus) (*tokens.Counter, error) {
	return tokens.NewCounterFromConfig(ctx, cfg,
		tokens.WithPublisher(bus),
		tokens.WithLogger(logging.NewServiceLogger("token_counter")),
	)
}

func ProvideCompleter(cfg config.Manager, bus events.EventBus) llm.Completer {
	return openai.NewClient(
		openai.WithConfigManager(cfg),
		openai.WithEventBus(bus),
		openai.WithLogger(logging.NewServiceLogger("completion")),
	)
}

// ProvideDetector reads saved transcripts from dir, or from the configured
// transcript directory when dir is empty.
func ProvideDetector(cfg config.Manager, dir string) (heavy.Detector, error) {
	if dir == "" {
		dir = cfg.GetStringWithDefault(config.KeyTranscriptDir, config.DefaultTranscriptDir)
	}
	expanded, err := config.ExpandPath(dir)
	if err != nil {
		return nil, fmt.Errorf("transcript directory %s: %w", dir, err)
	}
	return heavy.NewLinkDetector(heavy.NewDirSource(expanded),
		heavy.WithLogger(logging.NewComponentLogger("heavy")),
	), nil
}

// SessionOptions are the command line overrides for ProvideSessionManager.
type SessionOptions struct {
	TranscriptDir string
	MaxTokens     int
	Model         string
}

// ProvideSessionManager wires the token counter, completer, detector and
// store into a session manager. The returned cleanup releases the store.
func ProvideSessionManager(ctx context.Context, cfg config.Manager, opts SessionOptions) (*session.Manager, func(), error) {
	bus := ProvideEventBus()

	counter, err := ProvideTokenCounter(ctx, cfg, bus)
	if err != nil {
		return nil, nil, fmt.Errorf("token counter: %w", err)
	}
	detector, err := ProvideDetector(cfg, opts.TranscriptDir)
	if err != nil {
		return nil, nil, err
	}
	store, err := session.NewStore(logging.NewComponentLogger("store"))
	if err != nil {
		return nil, nil, err
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = cfg.GetMemoryConfig().MaxTokens
	}

	manager := session.NewSessionManager(session.Dependencies{
		Counter:   counter,
		Completer: ProvideCompleter(cfg, bus),
		Detector:  detector,
		Store:     store,
		EventBus:  bus,
		MaxTokens: maxTokens,
		Model:     opts.Model,
		Logger:    logging.NewComponentLogger("session"),
	})
	return manager, store.Close, nil
}
