package memory

import (
	"context"
	"sync"

	"github.com/kcaldas/tubechan/pkg/events"
	"github.com/kcaldas/tubechan/pkg/logging"
	"github.com/kcaldas/tubechan/pkg/tokens"
)

// Report describes one prepare pass.
type Report struct {
	MaxTokens    int        `json:"max_tokens"`
	TokensBefore int        `json:"tokens_before"`
	TokensAfter  int        `json:"tokens_after"`
	TurnsBefore  int        `json:"turns_before"`
	TurnsAfter   int        `json:"turns_after"`
	Expanded     []int      `json:"expanded"`
	Compacted    []int      `json:"compacted"`
	Evictions    []Eviction `json:"evictions"`
	Infeasible   bool       `json:"infeasible"`
	// Degraded is set when the pass was measured with the length estimate.
	Degraded bool `json:"degraded"`
	// Entries is the registry as renumbered for the prepared transcript.
	Entries map[int]HeavyEntry `json:"entries"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxTokens sets the token budget. Non-positive values keep the default.
func WithMaxTokens(maxTokens int) Option {
	return func(m *Manager) {
		if maxTokens > 0 {
			m.maxTokens = maxTokens
		}
	}
}

// WithLogger injects a custom logger implementation.
func WithLogger(logger logging.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithEventBus publishes prepare reports, evictions and budget warnings.
func WithEventBus(publisher events.Publisher) Option {
	return func(m *Manager) {
		if publisher != nil {
			m.publisher = publisher
		}
	}
}

// WithSessionID tags published events.
func WithSessionID(id string) Option {
	return func(m *Manager) {
		m.sessionID = id
	}
}

// Manager keeps one session's transcript within the token budget. It owns the
// heavy content registry, which stays aligned with the stored transcript the
// host passes to Prepare.
type Manager struct {
	mu        sync.Mutex
	counter   *tokens.Counter
	registry  *Registry
	expander  *Expander
	optimizer *Optimizer
	maxTokens int
	sessionID string
	logger    logging.Logger
	publisher events.Publisher
}

// NewManager creates a manager measuring with counter.
func NewManager(counter *tokens.Counter, opts ...Option) *Manager {
	m := &Manager{
		counter:   counter,
		maxTokens: DefaultMaxTokens,
		logger:    logging.NewComponentLogger("memory"),
		publisher: &events.NoOpEventBus{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.counter == nil {
		m.counter = tokens.NewCounter(nil, tokens.WithLogger(m.logger))
	}
	m.registry = NewRegistry(m.logger.With("part", "registry"))
	m.expander = NewExpander(m.logger.With("part", "expander"))
	m.optimizer = NewOptimizer(m.logger.With("part", "optimizer"))

	m.logger.Debug("memory manager initialized", "max_tokens", m.maxTokens)
	return m
}

func (m *Manager) MaxTokens() int {
	return m.maxTokens
}

// RegisterHeavyContent records the two renderings of the turn at index.
func (m *Manager) RegisterHeavyContent(index int, compact, full, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Register(index, compact, full, label)
}

// Clear forgets every heavy entry. Used on session reset.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry.Clear()
}

// Entries returns a snapshot of the registry.
func (m *Manager) Entries() map[int]HeavyEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.All()
}

// RestoreEntries replaces the registry, typically with a saved snapshot.
func (m *Manager) RestoreEntries(entries map[int]HeavyEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Restore(entries)
}

// Prepare returns the transcript to send to the model: heavy content is
// expanded while it fits, then compacted or old exchanges are dropped if the
// result is over budget. The input transcript is not modified.
func (m *Manager) Prepare(ctx context.Context, transcript Transcript) Transcript {
	prepared, _ := m.PrepareWithReport(ctx, transcript)
	return prepared
}

// PrepareWithReport is Prepare plus a description of what the pass did.
func (m *Manager) PrepareWithReport(ctx context.Context, transcript Transcript) (Transcript, Report) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pass := m.counter.Pass()
	report := Report{
		MaxTokens:   m.maxTokens,
		TurnsBefore: len(transcript),
	}

	expanded := m.expander.Expand(ctx, transcript, m.registry, m.maxTokens, pass)
	m.syncStates(expanded.Transcript, expanded.Expanded)
	report.Expanded = expanded.Expanded
	report.TokensBefore = expanded.Tokens

	prepared := expanded.Transcript
	report.TokensAfter = expanded.Tokens
	report.Entries = m.registry.All()

	if expanded.Tokens > m.maxTokens {
		working := m.registry.Clone()
		optimized := m.optimizer.Optimize(ctx, prepared, working, m.maxTokens, pass)
		for _, index := range optimized.Compacted {
			m.registry.SetState(index, RepresentationCompact)
		}

		prepared = optimized.Transcript
		report.TokensAfter = optimized.Tokens
		report.Compacted = optimized.Compacted
		report.Evictions = optimized.Evictions
		report.Infeasible = optimized.Infeasible
		report.Entries = working.All()
	}

	report.TurnsAfter = len(prepared)
	report.Degraded = pass.Degraded()
	m.publish(report)

	m.logger.Info("context prepared",
		"tokens", report.TokensAfter,
		"max_tokens", m.maxTokens,
		"turns", report.TurnsAfter,
		"expanded", len(report.Expanded),
		"compacted", len(report.Compacted),
		"evicted_pairs", len(report.Evictions),
	)
	return prepared, report
}

// syncStates records, for every in-range entry, whether the expanded
// transcript carries its full rendering.
func (m *Manager) syncStates(transcript Transcript, expanded []int) {
	full := make(map[int]bool, len(expanded))
	for _, index := range expanded {
		full[index] = true
	}
	for _, index := range m.registry.Indices() {
		if index >= len(transcript) {
			continue
		}
		state := RepresentationCompact
		if full[index] {
			state = RepresentationFull
		}
		m.registry.SetState(index, state)
	}
}

func (m *Manager) publish(report Report) {
	for _, eviction := range report.Evictions {
		events.Emit(m.publisher, events.PairEvictedEvent{
			SessionID:    m.sessionID,
			UserIndex:    eviction.UserIndex,
			RemovedTurns: eviction.RemovedTurns,
			TokensAfter:  eviction.TokensAfter,
			UserPreview:  eviction.UserPreview,
			ReplyPreview: eviction.ReplyPreview,
		})
	}

	if report.Infeasible {
		events.Emit(m.publisher, events.BudgetExceededEvent{
			SessionID: m.sessionID,
			MaxTokens: report.MaxTokens,
			Tokens:    report.TokensAfter,
			Turns:     report.TurnsAfter,
		})
	}

	events.Emit(m.publisher, events.ContextPreparedEvent{
		SessionID:    m.sessionID,
		MaxTokens:    report.MaxTokens,
		TokensBefore: report.TokensBefore,
		TokensAfter:  report.TokensAfter,
		TurnsBefore:  report.TurnsBefore,
		TurnsAfter:   report.TurnsAfter,
		Expanded:     report.Expanded,
		Compacted:    report.Compacted,
		EvictedPairs: len(report.Evictions),
		Infeasible:   report.Infeasible,
	})
}
