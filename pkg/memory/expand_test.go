package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcaldas/tubechan/pkg/logging"
)

func TestExpander_Name(t *testing.T) {
	assert.Equal(t, "expand_newest_first", NewExpander(nil).Name())
}

func TestExpander_ExpandsEverythingThatFits(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Register(1, "link one", filler("a", 100), "One"))
	require.NoError(t, registry.Register(3, "link two", filler("b", 100), "Two"))

	transcript := Transcript{
		turn(RoleSystem, "sys"),
		turn(RoleUser, "link one"),
		turn(RoleAssistant, "ok"),
		turn(RoleUser, "link two"),
	}

	result := NewExpander(logging.NewDisabledLogger()).Expand(context.Background(), transcript, registry, 1000, estimateCounter())

	assert.Equal(t, []int{3, 1}, result.Expanded)
	assert.Equal(t, filler("a", 100), result.Transcript[1].Content)
	assert.Equal(t, filler("b", 100), result.Transcript[3].Content)
	assert.Equal(t, "link one", transcript[1].Content, "input transcript is not modified")
}

func TestExpander_NewestFirstUnderTightBudget(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Register(1, "link one", filler("a", 400), "One"))
	require.NoError(t, registry.Register(3, "link two", filler("b", 400), "Two"))

	transcript := Transcript{
		turn(RoleSystem, "sys"),
		turn(RoleUser, "link one"),
		turn(RoleAssistant, "ok"),
		turn(RoleUser, "link two"),
	}

	// One full rendering costs ~100 tokens; two do not fit in 150.
	result := NewExpander(logging.NewDisabledLogger()).Expand(context.Background(), transcript, registry, 150, estimateCounter())

	assert.Equal(t, []int{3}, result.Expanded)
	assert.Equal(t, "link one", result.Transcript[1].Content)
	assert.Equal(t, filler("b", 400), result.Transcript[3].Content)
	assert.LessOrEqual(t, result.Tokens, 150)
}

func TestExpander_SkipsOutOfRangeIndices(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Register(10, "link", "full", ""))

	transcript := Transcript{turn(RoleSystem, "sys"), turn(RoleUser, "hi")}

	var result ExpandResult
	assert.NotPanics(t, func() {
		result = NewExpander(logging.NewDisabledLogger()).Expand(context.Background(), transcript, registry, 10, estimateCounter())
	})
	assert.Empty(t, result.Expanded)
	assert.Equal(t, transcript, result.Transcript)
}

func TestExpander_DoesNotTouchRegistry(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Register(1, "link", filler("a", 4000), ""))
	before := registry.All()

	transcript := Transcript{turn(RoleSystem, "sys"), turn(RoleUser, "link")}
	NewExpander(logging.NewDisabledLogger()).Expand(context.Background(), transcript, registry, 10, estimateCounter())

	assert.Equal(t, before, registry.All())
}
