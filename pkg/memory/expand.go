package memory

import (
	"context"

	"github.com/kcaldas/tubechan/pkg/logging"
)

// ExpandResult is the outcome of an expansion pass.
type ExpandResult struct {
	Transcript Transcript
	// Expanded lists the indices now carrying their full rendering, newest first.
	Expanded []int
	Tokens   int
}

// Expander restores full renderings of heavy content while the budget allows.
// The most recent entries are tried first.
type Expander struct {
	logger logging.Logger
}

func NewExpander(logger logging.Logger) *Expander {
	if logger == nil {
		logger = logging.NewComponentLogger("expander")
	}
	return &Expander{logger: logger}
}

func (e *Expander) Name() string {
	return "expand_newest_first"
}

// Expand tries each registered index from highest to lowest: the turn gets the
// full rendering, the transcript is recounted, and the change is reverted if
// it no longer fits budget. Out-of-range indices are skipped. The registry
// and the input transcript are left untouched.
func (e *Expander) Expand(ctx context.Context, transcript Transcript, registry *Registry, budget int, counter TokenCounter) ExpandResult {
	expanded := transcript.Clone()
	current := countTranscript(ctx, counter, expanded)
	original := current

	indices := registry.Indices()
	var kept []int
	for i := len(indices) - 1; i >= 0; i-- {
		index := indices[i]
		if index >= len(expanded) {
			e.logger.Debug("skipping heavy content outside transcript", "index", index, "turns", len(expanded))
			continue
		}
		entry, ok := registry.Get(index)
		if !ok {
			continue
		}

		previous := expanded[index].Content
		if previous == entry.Full {
			kept = append(kept, index)
			continue
		}

		expanded[index].Content = entry.Full
		tokens := countTranscript(ctx, counter, expanded)
		if tokens > budget {
			e.logger.Debug("cannot expand heavy content", "index", index, "label", entry.Label, "tokens", tokens, "budget", budget)
			expanded[index].Content = previous
			continue
		}

		e.logger.Debug("expanded heavy content", "index", index, "label", entry.Label, "from", current, "to", tokens)
		current = tokens
		kept = append(kept, index)
	}

	e.logger.Debug("expansion complete", "expanded", len(kept), "tokens_before", original, "tokens_after", current)
	return ExpandResult{Transcript: expanded, Expanded: kept, Tokens: current}
}
