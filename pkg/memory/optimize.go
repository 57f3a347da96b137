package memory

import (
	"context"

	"github.com/kcaldas/tubechan/pkg/logging"
)

const (
	smallSessionTurns = 4
	longHistoryTurns  = 8
	previewRunes      = 15
)

// Eviction describes one dropped user/assistant exchange.
type Eviction struct {
	UserIndex    int    `json:"user_index"`
	RemovedTurns int    `json:"removed_turns"`
	TokensAfter  int    `json:"tokens_after"`
	UserPreview  string `json:"user_preview"`
	ReplyPreview string `json:"reply_preview"`
}

// OptimizeResult is the outcome of a compression/eviction pass.
type OptimizeResult struct {
	Transcript Transcript
	Tokens     int
	// Compacted lists indices switched to their compact rendering, in the
	// numbering they had when compacted.
	Compacted []int
	Evictions []Eviction
	// Infeasible is set when nothing more could be removed and the
	// transcript is still over budget.
	Infeasible bool
}

// Optimizer brings an over-budget transcript under budget by compacting heavy
// content and then dropping the oldest exchanges. The newest registered heavy
// entry in the transcript is never compacted; history is trimmed instead.
type Optimizer struct {
	logger logging.Logger
}

func NewOptimizer(logger logging.Logger) *Optimizer {
	if logger == nil {
		logger = logging.NewComponentLogger("optimizer")
	}
	return &Optimizer{logger: logger}
}

func (o *Optimizer) Name() string {
	return "compact_then_evict"
}

// Optimize returns a transcript that fits budget whenever that is reachable.
// Compactions are recorded in the registry, and evictions renumber it.
func (o *Optimizer) Optimize(ctx context.Context, transcript Transcript, registry *Registry, budget int, counter TokenCounter) OptimizeResult {
	result := OptimizeResult{Transcript: transcript.Clone()}
	result.Tokens = countTranscript(ctx, counter, result.Transcript)
	if result.Tokens <= budget {
		return result
	}

	original := result.Tokens
	o.logger.Debug("context over budget", "tokens", result.Tokens, "budget", budget, "heavy", registry.Count())

	if len(result.Transcript) <= smallSessionTurns && registry.Count() == 1 {
		index := registry.Indices()[0]
		if index < len(result.Transcript) && o.compact(ctx, &result, registry, index, counter) {
			if result.Tokens <= budget {
				o.logger.Debug("compacted the only heavy entry of a small session", "index", index, "from", original, "to", result.Tokens)
				return result
			}
		}
	}

	pending := uncompressed(result.Transcript, registry)

	if len(pending) <= 1 && len(result.Transcript) >= longHistoryTurns {
		o.logger.Debug("at most one heavy entry left in a long history, evicting oldest exchanges", "turns", len(result.Transcript))
		return o.evict(ctx, result, registry, budget, counter)
	}

	protected := newestInRange(result.Transcript, registry)
	for _, index := range pending {
		if index == protected {
			o.logger.Debug("reached the newest heavy entry, evicting oldest exchanges", "index", index)
			break
		}
		if !o.compact(ctx, &result, registry, index, counter) {
			continue
		}
		if result.Tokens <= budget {
			o.logger.Debug("context fits after compaction", "compacted", len(result.Compacted), "from", original, "to", result.Tokens)
			return result
		}
	}

	return o.evict(ctx, result, registry, budget, counter)
}

// compact swaps the turn at index to its compact rendering and recounts. It
// reports false when the turn already carried it.
func (o *Optimizer) compact(ctx context.Context, result *OptimizeResult, registry *Registry, index int, counter TokenCounter) bool {
	entry, ok := registry.Get(index)
	if !ok {
		return false
	}
	if result.Transcript[index].Content == entry.Compact {
		registry.SetState(index, RepresentationCompact)
		o.logger.Debug("heavy entry already compact", "index", index)
		return false
	}

	result.Transcript[index].Content = entry.Compact
	registry.SetState(index, RepresentationCompact)
	result.Compacted = append(result.Compacted, index)
	result.Tokens = countTranscript(ctx, counter, result.Transcript)

	o.logger.Debug("compacted heavy entry", "index", index, "label", entry.Label, "tokens", result.Tokens)
	return true
}

// evict drops the oldest exchange until the transcript fits or no user turn
// is left.
func (o *Optimizer) evict(ctx context.Context, result OptimizeResult, registry *Registry, budget int, counter TokenCounter) OptimizeResult {
	for result.Tokens > budget {
		trimmed, eviction, replyIndex, ok := removeOldestPair(result.Transcript)
		if !ok {
			break
		}
		if replyIndex > eviction.UserIndex+1 {
			// Turns between the pair moved down by one only.
			registry.RemoveRangeAndShift(replyIndex, 1)
			registry.RemoveRangeAndShift(eviction.UserIndex, 1)
		} else {
			registry.RemoveRangeAndShift(eviction.UserIndex, eviction.RemovedTurns)
		}

		result.Transcript = trimmed
		result.Tokens = countTranscript(ctx, counter, trimmed)
		eviction.TokensAfter = result.Tokens
		result.Evictions = append(result.Evictions, eviction)

		o.logger.Debug("evicted oldest exchange",
			"user_index", eviction.UserIndex,
			"user", eviction.UserPreview,
			"assistant", eviction.ReplyPreview,
			"tokens", result.Tokens,
		)
	}

	if result.Tokens > budget {
		result.Infeasible = true
		o.logger.Warn("context still exceeds token budget after optimization",
			"tokens", result.Tokens,
			"budget", budget,
			"over", result.Tokens-budget,
			"turns", len(result.Transcript),
		)
	}
	return result
}

// removeOldestPair removes the first user turn and the first assistant turn
// after it, returning the reply's index or -1. It reports false when the
// transcript has no user turn.
func removeOldestPair(transcript Transcript) (Transcript, Eviction, int, bool) {
	userIndex := -1
	for i, turn := range transcript {
		if turn.Role == RoleUser {
			userIndex = i
			break
		}
	}
	if userIndex < 0 {
		return transcript, Eviction{}, -1, false
	}

	eviction := Eviction{
		UserIndex:    userIndex,
		RemovedTurns: 1,
		UserPreview:  preview(transcript[userIndex].Content),
	}

	replyIndex := -1
	for i := userIndex + 1; i < len(transcript); i++ {
		if transcript[i].Role == RoleAssistant {
			replyIndex = i
			break
		}
	}

	trimmed := make(Transcript, 0, len(transcript))
	for i, turn := range transcript {
		if i == userIndex || i == replyIndex {
			continue
		}
		trimmed = append(trimmed, turn)
	}
	if replyIndex >= 0 {
		eviction.RemovedTurns = 2
		eviction.ReplyPreview = preview(transcript[replyIndex].Content)
	}
	return trimmed, eviction, replyIndex, true
}

// uncompressed returns, ascending, the in-range registered indices whose turn
// does not carry the compact rendering.
func uncompressed(transcript Transcript, registry *Registry) []int {
	var pending []int
	for _, index := range registry.Indices() {
		if index >= len(transcript) {
			continue
		}
		entry, ok := registry.Get(index)
		if !ok || entry.State == RepresentationCompact {
			continue
		}
		pending = append(pending, index)
	}
	return pending
}

// newestInRange returns the highest registered index inside the transcript,
// whatever its state, or -1.
func newestInRange(transcript Transcript, registry *Registry) int {
	newest := -1
	for _, index := range registry.Indices() {
		if index < len(transcript) {
			newest = index
		}
	}
	return newest
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes]) + "..."
}
