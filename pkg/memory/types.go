package memory

import "context"

// DefaultMaxTokens is the budget used when none is configured.
const DefaultMaxTokens = 30000

// Role tags a turn with its speaker.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript is an ordered conversation. Index 0 is normally the system turn.
type Transcript []Turn

// Clone returns an independent copy.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}

// Contents returns the turn contents in order.
func (t Transcript) Contents() []string {
	contents := make([]string, len(t))
	for i, turn := range t {
		contents[i] = turn.Content
	}
	return contents
}

// Representation records which form of a heavy entry the transcript carries.
type Representation string

const (
	RepresentationCompact Representation = "compact"
	RepresentationFull    Representation = "full"
)

// HeavyEntry holds the two interchangeable renderings of a turn that embeds
// large content. Compact is never more expensive than Full.
type HeavyEntry struct {
	Compact string         `json:"compact"`
	Full    string         `json:"full"`
	Label   string         `json:"label,omitempty"`
	State   Representation `json:"state,omitempty"`
}

// Content returns the rendering for r.
func (e HeavyEntry) Content(r Representation) string {
	if r == RepresentationCompact {
		return e.Compact
	}
	return e.Full
}

// TokenCounter measures the joined contents of a transcript. It never fails.
// Both *tokens.Counter and *tokens.Pass satisfy it.
type TokenCounter interface {
	Count(ctx context.Context, contents ...string) int
}

func countTranscript(ctx context.Context, counter TokenCounter, transcript Transcript) int {
	return counter.Count(ctx, transcript.Contents()...)
}
