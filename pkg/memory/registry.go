package memory

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kcaldas/tubechan/pkg/logging"
	"github.com/kcaldas/tubechan/pkg/tokens"
)

// ErrInvalidIndex is returned for negative transcript positions.
var ErrInvalidIndex = errors.New("invalid heavy content index")

// Registry maps transcript positions to heavy entries. One registry belongs
// to one session.
type Registry struct {
	mu      sync.RWMutex
	entries map[int]HeavyEntry
	logger  logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewComponentLogger("registry")
	}
	return &Registry{
		entries: make(map[int]HeavyEntry),
		logger:  logger,
	}
}

// Register inserts or overwrites the entry at index. The host appends the turn
// carrying the full form, so new entries start as RepresentationFull.
func (r *Registry) Register(index int, compact, full, label string) error {
	if index < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}

	r.mu.Lock()
	r.entries[index] = HeavyEntry{
		Compact: compact,
		Full:    full,
		Label:   label,
		State:   RepresentationFull,
	}
	r.mu.Unlock()

	compactTokens := tokens.Estimate(compact)
	fullTokens := tokens.Estimate(full)
	r.logger.Debug("registered heavy content",
		"index", index,
		"label", label,
		"compact_tokens", compactTokens,
		"full_tokens", fullTokens,
		"delta", fullTokens-compactTokens,
	)
	return nil
}

// Get returns the entry at index.
func (r *Registry) Get(index int) (HeavyEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[index]
	return entry, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// All returns a snapshot copy of the entries.
func (r *Registry) All() map[int]HeavyEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int]HeavyEntry, len(r.entries))
	for index, entry := range r.entries {
		out[index] = entry
	}
	return out
}

// Clone returns an independent registry with the same entries.
func (r *Registry) Clone() *Registry {
	return &Registry{entries: r.All(), logger: r.logger}
}

// Indices returns the registered positions in ascending order.
func (r *Registry) Indices() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.entries)
}

// SetState records which rendering the transcript now carries at index.
// It reports false when nothing is registered there.
func (r *Registry) SetState(index int, state Representation) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[index]
	if !ok {
		return false
	}
	entry.State = state
	r.entries[index] = entry
	return true
}

func (r *Registry) Clear() {
	r.mu.Lock()
	previous := len(r.entries)
	r.entries = make(map[int]HeavyEntry)
	r.mu.Unlock()

	r.logger.Info("cleared heavy content", "removed", previous)
}

// Restore replaces the registry contents, typically from a saved session.
func (r *Registry) Restore(entries map[int]HeavyEntry) error {
	restored := make(map[int]HeavyEntry, len(entries))
	for index, entry := range entries {
		if index < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
		}
		if entry.State == "" {
			entry.State = RepresentationFull
		}
		restored[index] = entry
	}

	r.mu.Lock()
	r.entries = restored
	r.mu.Unlock()
	return nil
}

// RemoveRangeAndShift renumbers the registry after count turns starting at
// removedIndex were deleted from the transcript. The entry at removedIndex is
// dropped, every later key moves down by count, and keys that would become
// negative are dropped. When two keys land on the same position their entries
// are merged field by field, the higher original key winning.
func (r *Registry) RemoveRangeAndShift(removedIndex, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	shifted := make(map[int]HeavyEntry, len(r.entries))
	for _, index := range sortedKeys(r.entries) {
		entry := r.entries[index]

		target := index
		switch {
		case index == removedIndex:
			continue
		case index > removedIndex:
			target = index - count
		}
		if target < 0 {
			r.logger.Debug("dropping heavy content shifted below zero", "index", index)
			continue
		}

		if existing, ok := shifted[target]; ok {
			entry = mergeEntries(existing, entry)
		}
		shifted[target] = entry
	}

	r.entries = shifted
}

// mergeEntries overlays the non-empty fields of newer onto older.
func mergeEntries(older, newer HeavyEntry) HeavyEntry {
	merged := older
	if newer.Compact != "" {
		merged.Compact = newer.Compact
	}
	if newer.Full != "" {
		merged.Full = newer.Full
	}
	if newer.Label != "" {
		merged.Label = newer.Label
	}
	if newer.State != "" {
		merged.State = newer.State
	}
	return merged
}

func sortedKeys(entries map[int]HeavyEntry) []int {
	keys := make([]int, 0, len(entries))
	for index := range entries {
		keys = append(keys, index)
	}
	sort.Ints(keys)
	return keys
}
