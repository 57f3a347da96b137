package events

// Topics published by the token counter, the memory manager and the chat session.
const (
	TopicTokenFallback   = "tokens.fallback"
	TopicContextPrepared = "memory.prepared"
	TopicBudgetExceeded  = "memory.infeasible"
	TopicPairEvicted     = "memory.evicted"
	TopicChatResponse    = "chat.response"
	TopicCompletionUsage = "llm.usage"
)

// TokenFallbackEvent is published when the counting service failed and the
// length estimate was used instead.
type TokenFallbackEvent struct {
	Backend string
	Reason  string
	Tokens  int
}

func (e TokenFallbackEvent) Topic() string {
	return TopicTokenFallback
}

// ContextPreparedEvent summarizes one prepare pass.
type ContextPreparedEvent struct {
	SessionID    string
	MaxTokens    int
	TokensBefore int
	TokensAfter  int
	TurnsBefore  int
	TurnsAfter   int
	Expanded     []int
	Compacted    []int
	EvictedPairs int
	Infeasible   bool
}

func (e ContextPreparedEvent) Topic() string {
	return TopicContextPrepared
}

// BudgetExceededEvent reports a context that is still over budget after every
// compression and eviction was applied.
type BudgetExceededEvent struct {
	SessionID string
	MaxTokens int
	Tokens    int
	Turns     int
}

func (e BudgetExceededEvent) Topic() string {
	return TopicBudgetExceeded
}

// PairEvictedEvent is published for each user/assistant exchange dropped from
// the context.
type PairEvictedEvent struct {
	SessionID    string
	UserIndex    int
	RemovedTurns int
	TokensAfter  int
	UserPreview  string
	ReplyPreview string
}

func (e PairEvictedEvent) Topic() string {
	return TopicPairEvicted
}

// ChatResponseEvent is published after a completed exchange.
type ChatResponseEvent struct {
	SessionID string
	Message   string
	Response  string
	Heavy     string
}

func (e ChatResponseEvent) Topic() string {
	return TopicChatResponse
}

// CompletionUsageEvent carries the token usage reported by the completion API.
type CompletionUsageEvent struct {
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func (e CompletionUsageEvent) Topic() string {
	return TopicCompletionUsage
}
