package session

import (
	"github.com/kcaldas/tubechan/pkg/heavy"
	"github.com/kcaldas/tubechan/pkg/memory"
)

// Recoverer rebuilds heavy content from a stored message.
type Recoverer interface {
	Recover(text string) (*heavy.Content, bool)
}

// Rescan finds user turns that still carry a full rendering and returns
// registry entries for them, keyed by their position in transcript.
func Rescan(transcript memory.Transcript, recoverer Recoverer) map[int]memory.HeavyEntry {
	entries := make(map[int]memory.HeavyEntry)
	for index, turn := range transcript {
		if turn.Role != memory.RoleUser {
			continue
		}
		content, ok := recoverer.Recover(turn.Content)
		if !ok {
			continue
		}
		entries[index] = memory.HeavyEntry{
			Compact: content.Compact,
			Full:    content.Full,
			Label:   content.Label,
			State:   memory.RepresentationFull,
		}
	}
	return entries
}
