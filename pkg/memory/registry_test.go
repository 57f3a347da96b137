package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	registry := quietRegistry()

	require.NoError(t, registry.Register(3, "Source: youtu.be/x", "full transcript", "Video"))

	entry, ok := registry.Get(3)
	require.True(t, ok)
	assert.Equal(t, HeavyEntry{Compact: "Source: youtu.be/x", Full: "full transcript", Label: "Video", State: RepresentationFull}, entry)
	assert.Equal(t, 1, registry.Count())

	_, ok = registry.Get(4)
	assert.False(t, ok)
}

func TestRegistry_RegisterOverwrites(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Register(1, "old", "old full", "Old"))
	require.NoError(t, registry.Register(1, "new", "new full", "New"))

	entry, _ := registry.Get(1)
	assert.Equal(t, "new full", entry.Full)
	assert.Equal(t, 1, registry.Count())
}

func TestRegistry_RegisterNegativeIndex(t *testing.T) {
	err := quietRegistry().Register(-1, "c", "f", "")
	assert.ErrorIs(t, err, ErrInvalidIndex)
}

func TestRegistry_AllIsACopy(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Register(1, "c", "f", ""))

	snapshot := registry.All()
	delete(snapshot, 1)

	assert.Equal(t, 1, registry.Count())
}

func TestRegistry_IndicesSorted(t *testing.T) {
	registry := quietRegistry()
	for _, index := range []int{7, 1, 4} {
		require.NoError(t, registry.Register(index, "c", "f", ""))
	}

	assert.Equal(t, []int{1, 4, 7}, registry.Indices())
}

func TestRegistry_ClearAndSetState(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Register(1, "c", "f", ""))

	assert.True(t, registry.SetState(1, RepresentationCompact))
	assert.False(t, registry.SetState(2, RepresentationCompact))
	entry, _ := registry.Get(1)
	assert.Equal(t, RepresentationCompact, entry.State)

	registry.Clear()
	assert.Equal(t, 0, registry.Count())
}

func TestRegistry_RemoveRangeAndShift_Pairs(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Register(0, "c0", "f0", "zero"))
	require.NoError(t, registry.Register(2, "c2", "f2", "two"))
	require.NoError(t, registry.Register(4, "c4", "f4", "four"))

	registry.RemoveRangeAndShift(0, 2)

	assert.Equal(t, []int{0, 2}, registry.Indices())
	first, _ := registry.Get(0)
	second, _ := registry.Get(2)
	assert.Equal(t, "f2", first.Full)
	assert.Equal(t, "two", first.Label)
	assert.Equal(t, "f4", second.Full)
	assert.Equal(t, "four", second.Label)
}

func TestRegistry_RemoveRangeAndShift_KeepsEarlierKeys(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Register(1, "c1", "f1", ""))
	require.NoError(t, registry.Register(5, "c5", "f5", ""))
	require.NoError(t, registry.Register(9, "c9", "f9", ""))

	registry.RemoveRangeAndShift(5, 2)

	assert.Equal(t, []int{1, 7}, registry.Indices())
	entry, _ := registry.Get(7)
	assert.Equal(t, "f9", entry.Full)
}

func TestRegistry_RemoveRangeAndShift_SingleTurn(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Register(4, "c4", "f4", ""))

	registry.RemoveRangeAndShift(2, 1)

	assert.Equal(t, []int{3}, registry.Indices())
}

func TestRegistry_RemoveRangeAndShift_CollisionMergesHigherKeyFirst(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Restore(map[int]HeavyEntry{
		1: {Compact: "c1", Full: "f1", Label: "kept label", State: RepresentationCompact},
		3: {Compact: "c3", Full: "f3", State: RepresentationFull},
	}))

	registry.RemoveRangeAndShift(2, 2)

	assert.Equal(t, []int{1}, registry.Indices())
	merged, _ := registry.Get(1)
	assert.Equal(t, HeavyEntry{Compact: "c3", Full: "f3", Label: "kept label", State: RepresentationFull}, merged)
}

func TestRegistry_RemoveRangeAndShift_DropsNegativeKeys(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Register(1, "c1", "f1", ""))
	require.NoError(t, registry.Register(3, "c3", "f3", ""))

	registry.RemoveRangeAndShift(0, 2)

	assert.Equal(t, []int{1}, registry.Indices())
	entry, _ := registry.Get(1)
	assert.Equal(t, "f3", entry.Full)
}

func TestRegistry_Restore(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Register(8, "c", "f", ""))

	require.NoError(t, registry.Restore(map[int]HeavyEntry{2: {Compact: "c2", Full: "f2"}}))

	assert.Equal(t, []int{2}, registry.Indices())
	entry, _ := registry.Get(2)
	assert.Equal(t, RepresentationFull, entry.State)

	err := registry.Restore(map[int]HeavyEntry{-3: {}})
	assert.ErrorIs(t, err, ErrInvalidIndex)
	assert.Equal(t, []int{2}, registry.Indices(), "a rejected restore leaves the registry alone")
}

func TestRegistry_CloneIsIndependent(t *testing.T) {
	registry := quietRegistry()
	require.NoError(t, registry.Register(4, "c", "f", ""))

	clone := registry.Clone()
	clone.RemoveRangeAndShift(0, 2)

	assert.Equal(t, []int{4}, registry.Indices())
	assert.Equal(t, []int{2}, clone.Indices())
}
