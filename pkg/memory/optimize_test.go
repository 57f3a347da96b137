package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcaldas/tubechan/pkg/logging"
	"github.com/kcaldas/tubechan/pkg/tokens"
)

func newTestOptimizer() *Optimizer {
	return NewOptimizer(logging.NewDisabledLogger())
}

func TestOptimizer_Name(t *testing.T) {
	assert.Equal(t, "compact_then_evict", newTestOptimizer().Name())
}

func TestOptimizer_UnderBudgetIsUnchanged(t *testing.T) {
	transcript := Transcript{turn(RoleSystem, "sys"), turn(RoleUser, "hello")}

	result := newTestOptimizer().Optimize(context.Background(), transcript, quietRegistry(), 100, estimateCounter())

	assert.Equal(t, transcript, result.Transcript)
	assert.Empty(t, result.Compacted)
	assert.Empty(t, result.Evictions)
	assert.False(t, result.Infeasible)
}

func TestOptimizer_SmallSessionCompactsSingleEntry(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Register(1, "Source: youtu.be/abc", filler("x", 4000), "Video"))

	transcript := Transcript{
		turn(RoleSystem, "You are Rumi."),
		turn(RoleUser, filler("x", 4000)),
		turn(RoleAssistant, "A1"),
		turn(RoleUser, "Q2"),
	}

	result := newTestOptimizer().Optimize(context.Background(), transcript, registry, 50, estimateCounter())

	assert.Equal(t, "Source: youtu.be/abc", result.Transcript[1].Content)
	assert.Equal(t, []int{1}, result.Compacted)
	assert.Len(t, result.Transcript, 4)
	assert.LessOrEqual(t, result.Tokens, 50)

	entry, _ := registry.Get(1)
	assert.Equal(t, RepresentationCompact, entry.State)
}

func TestOptimizer_ProtectsNewestHeavyEntry(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Register(1, filler("l", 20), filler("a", 400), "Older"))
	require.NoError(t, registry.Register(3, filler("m", 20), filler("b", 400), "Newer"))

	transcript := Transcript{
		turn(RoleSystem, filler("s", 10)),
		turn(RoleUser, filler("a", 400)),
		turn(RoleAssistant, "ok"),
		turn(RoleUser, filler("b", 400)),
		turn(RoleAssistant, "ok"),
	}

	result := newTestOptimizer().Optimize(context.Background(), transcript, registry, 150, estimateCounter())

	assert.Equal(t, []int{1}, result.Compacted)
	assert.Equal(t, filler("l", 20), result.Transcript[1].Content)
	assert.Equal(t, filler("b", 400), result.Transcript[3].Content)
	assert.Empty(t, result.Evictions)
	assert.LessOrEqual(t, result.Tokens, 150)
}

func TestOptimizer_NewestHeavyEntryFallsThroughToEviction(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Register(1, filler("l", 20), filler("a", 400), "Older"))
	require.NoError(t, registry.Register(3, filler("m", 20), filler("b", 400), "Newer"))

	transcript := Transcript{
		turn(RoleSystem, filler("s", 10)),
		turn(RoleUser, filler("a", 400)),
		turn(RoleAssistant, "ok"),
		turn(RoleUser, filler("b", 400)),
		turn(RoleAssistant, "ok"),
	}

	result := newTestOptimizer().Optimize(context.Background(), transcript, registry, 50, estimateCounter())

	assert.Equal(t, []int{1}, result.Compacted, "the newest entry is never compacted")
	assert.NotEmpty(t, result.Evictions)
	assert.LessOrEqual(t, result.Tokens, 50)
	assert.False(t, result.Infeasible)
	for _, turn := range result.Transcript {
		assert.NotEqual(t, filler("m", 20), turn.Content)
	}
}

func TestOptimizer_ProtectsNewestRegisteredEvenWhenCompact(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Register(1, filler("l", 8), filler("a", 200), "First"))
	require.NoError(t, registry.Register(3, filler("m", 8), filler("b", 200), "Second"))
	require.NoError(t, registry.Register(5, filler("n", 8), filler("c", 200), "Third"))
	require.True(t, registry.SetState(5, RepresentationCompact))

	transcript := Transcript{
		turn(RoleSystem, filler("s", 10)),
		turn(RoleUser, filler("a", 200)),
		turn(RoleAssistant, "ok"),
		turn(RoleUser, filler("b", 200)),
		turn(RoleAssistant, "ok"),
		turn(RoleUser, filler("n", 8)),
		turn(RoleAssistant, "ok"),
	}

	result := newTestOptimizer().Optimize(context.Background(), transcript, registry, 60, estimateCounter())

	assert.Equal(t, []int{1, 3}, result.Compacted)
	assert.Empty(t, result.Evictions)
	assert.Len(t, result.Transcript, 7)
	assert.Equal(t, filler("m", 8), result.Transcript[3].Content)
	assert.Equal(t, filler("n", 8), result.Transcript[5].Content)
	assert.LessOrEqual(t, result.Tokens, 60)
}

func TestOptimizer_EvictionWithUnansweredUserTurnShiftsByOne(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Register(2, filler("k", 4), filler("h", 20), "Video"))

	transcript := Transcript{
		turn(RoleSystem, filler("s", 10)),
		turn(RoleUser, filler("u", 400)),
		turn(RoleUser, filler("h", 20)),
		turn(RoleAssistant, "ok"),
		turn(RoleUser, "q"),
		turn(RoleAssistant, "ok"),
	}

	result := newTestOptimizer().Optimize(context.Background(), transcript, registry, 20, estimateCounter())

	require.Len(t, result.Evictions, 1)
	assert.Equal(t, 2, result.Evictions[0].RemovedTurns)
	assert.Empty(t, result.Compacted)
	require.Len(t, result.Transcript, 4)
	assert.Equal(t, filler("h", 20), result.Transcript[1].Content)
	assert.Equal(t, []int{1}, registry.Indices())
	entry, ok := registry.Get(1)
	require.True(t, ok)
	assert.Equal(t, filler("h", 20), entry.Full)
}

func TestOptimizer_LongHistoryEvictsOldestPair(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Register(7, "Source: youtu.be/abc", filler("f", 400), "Video"))

	transcript := nineTurnTranscript()
	counter := estimateCounter()
	require.Greater(t, counter.Count(context.Background(), transcript.Contents()...), 170)

	result := newTestOptimizer().Optimize(context.Background(), transcript, registry, 170, counter)

	require.Len(t, result.Evictions, 1)
	assert.Equal(t, Eviction{UserIndex: 1, RemovedTurns: 2, TokensAfter: result.Tokens, UserPreview: filler("u", 15) + "...", ReplyPreview: filler("a", 15) + "..."}, result.Evictions[0])
	assert.Len(t, result.Transcript, 7)
	assert.Equal(t, filler("f", 400), result.Transcript[5].Content)
	assert.Equal(t, []int{5}, registry.Indices())
	assert.Empty(t, result.Compacted)
}

func TestOptimizer_InfeasibleBudgetTerminates(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Register(1, "link", filler("x", 400), ""))

	transcript := Transcript{
		turn(RoleSystem, filler("s", 40)),
		turn(RoleUser, filler("x", 400)),
		turn(RoleAssistant, "reply"),
		turn(RoleUser, "again"),
		turn(RoleAssistant, "reply"),
	}

	result := newTestOptimizer().Optimize(context.Background(), transcript, registry, 1, estimateCounter())

	assert.True(t, result.Infeasible)
	assert.Equal(t, Transcript{turn(RoleSystem, filler("s", 40))}, result.Transcript)
	assert.Len(t, result.Evictions, 2)
	assert.Equal(t, 0, registry.Count())
}

func TestOptimizer_UserWithoutReply(t *testing.T) {
	transcript := Transcript{
		turn(RoleSystem, "sys"),
		turn(RoleUser, filler("q", 400)),
	}

	result := newTestOptimizer().Optimize(context.Background(), transcript, quietRegistry(), 5, estimateCounter())

	require.Len(t, result.Evictions, 1)
	assert.Equal(t, 1, result.Evictions[0].RemovedTurns)
	assert.Empty(t, result.Evictions[0].ReplyPreview)
	assert.Len(t, result.Transcript, 1)
}

func TestOptimizer_SkipsOutOfRangeEntries(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Register(1, "c1", filler("a", 400), ""))
	require.NoError(t, registry.Register(2, "c2", filler("b", 400), ""))
	require.NoError(t, registry.Register(40, "c40", "f40", ""))

	transcript := Transcript{
		turn(RoleSystem, "sys"),
		turn(RoleUser, filler("a", 400)),
		turn(RoleUser, filler("b", 400)),
	}

	assert.NotPanics(t, func() {
		newTestOptimizer().Optimize(context.Background(), transcript, registry, 110, estimateCounter())
	})
}

func TestOptimizer_AlreadyCompactEntryIsSkipped(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Register(1, "c1", filler("a", 400), ""))
	require.NoError(t, registry.Register(3, "c3", filler("b", 400), ""))
	require.NoError(t, registry.Register(5, "c5", filler("c", 400), ""))

	transcript := Transcript{
		turn(RoleSystem, "sys"),
		turn(RoleUser, "c1"),
		turn(RoleAssistant, "ok"),
		turn(RoleUser, filler("b", 400)),
		turn(RoleAssistant, "ok"),
		turn(RoleUser, filler("c", 400)),
	}

	result := newTestOptimizer().Optimize(context.Background(), transcript, registry, 110, estimateCounter())

	assert.Equal(t, []int{3}, result.Compacted)
	assert.Equal(t, filler("c", 400), result.Transcript[5].Content)
	entry, _ := registry.Get(1)
	assert.Equal(t, RepresentationCompact, entry.State)
}

func TestOptimizer_DegradedPassStaysOnEstimate(t *testing.T) {
	calls := 0
	service := tokens.ServiceFunc(func(ctx context.Context, model, text string) (*tokens.TokenCount, error) {
		calls++
		if calls == 1 {
			return &tokens.TokenCount{TotalTokens: 10_000}, nil
		}
		return nil, assert.AnError
	})
	counter := tokens.NewCounter(service, tokens.WithLogger(logging.NewDisabledLogger()))
	pass := counter.Pass()

	transcript := Transcript{turn(RoleSystem, "sys"), turn(RoleUser, filler("q", 400)), turn(RoleAssistant, "ok")}

	result := newTestOptimizer().Optimize(context.Background(), transcript, quietRegistry(), 50, pass)

	assert.True(t, pass.Degraded())
	assert.Equal(t, 2, calls)
	assert.Equal(t, tokens.Estimate("sys"), result.Tokens)
}

func nineTurnTranscript() Transcript {
	return Transcript{
		turn(RoleSystem, filler("s", 40)),
		turn(RoleUser, filler("u", 40)),
		turn(RoleAssistant, filler("a", 40)),
		turn(RoleUser, filler("v", 40)),
		turn(RoleAssistant, filler("b", 40)),
		turn(RoleUser, filler("w", 40)),
		turn(RoleAssistant, filler("c", 40)),
		turn(RoleUser, filler("f", 400)),
		turn(RoleAssistant, filler("d", 40)),
	}
}
