package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kcaldas/tubechan/pkg/events"
	"github.com/kcaldas/tubechan/pkg/heavy"
	"github.com/kcaldas/tubechan/pkg/llm"
	"github.com/kcaldas/tubechan/pkg/logging"
	"github.com/kcaldas/tubechan/pkg/memory"
)

// ErrEmptyMessage is returned by Send for blank input.
var ErrEmptyMessage = errors.New("message is empty")

// Option configures a Session.
type Option func(*Session)

// WithID sets the session id instead of generating one.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithDetector enables heavy content detection on user messages.
func WithDetector(detector heavy.Detector) Option {
	return func(s *Session) {
		s.detector = detector
	}
}

// WithModel selects the completion model. Empty means the configured default.
func WithModel(model string) Option {
	return func(s *Session) {
		s.model = model
	}
}

// WithCharacter records who the assistant plays and who the user is.
func WithCharacter(character, userName string) Option {
	return func(s *Session) {
		s.character = character
		s.userName = userName
	}
}

// WithEventBus publishes completed exchanges.
func WithEventBus(publisher events.Publisher) Option {
	return func(s *Session) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// WithLogger injects a custom logger implementation.
func WithLogger(logger logging.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Session is one conversation. The stored transcript keeps heavy messages in
// their compact form; the memory manager decides what the model sees.
type Session struct {
	mu sync.Mutex

	id         string
	character  string
	userName   string
	model      string
	transcript memory.Transcript

	memory    *memory.Manager
	detector  heavy.Detector
	completer llm.Completer
	publisher events.Publisher
	logger    logging.Logger
}

// New starts a session whose transcript holds only systemPrompt.
func New(systemPrompt string, manager *memory.Manager, completer llm.Completer, opts ...Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		userName:  "User",
		memory:    manager,
		completer: completer,
		publisher: &events.NoOpEventBus{},
		logger:    logging.NewComponentLogger("session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.transcript = memory.Transcript{{Role: memory.RoleSystem, Content: systemPrompt}}
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Transcript returns a copy of the stored transcript.
func (s *Session) Transcript() memory.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Clone()
}

// Send runs one exchange: detect heavy content, prepare the context, ask the
// model and append the exchange. The whole sequence holds the session lock so
// registry indices stay valid for the transcript they were computed on. On
// failure nothing is appended.
func (s *Session) Send(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, outgoing := message, message
	content := s.detect(ctx, message)
	if content != nil {
		stored, outgoing = content.Compact, content.Full
	}

	prepared := s.memory.Prepare(ctx, s.transcript)
	prepared = append(prepared, memory.Turn{Role: memory.RoleUser, Content: outgoing})

	reply, err := s.completer.Complete(ctx, s.model, prepared)
	if err != nil {
		return "", fmt.Errorf("completing message: %w", err)
	}

	index := len(s.transcript)
	s.transcript = append(s.transcript,
		memory.Turn{Role: memory.RoleUser, Content: stored},
		memory.Turn{Role: memory.RoleAssistant, Content: reply},
	)

	event := events.ChatResponseEvent{SessionID: s.id, Message: message, Response: reply}
	if content != nil {
		if err := s.memory.RegisterHeavyContent(index, content.Compact, content.Full, content.Label); err != nil {
			s.logger.Warn("could not register heavy content", "index", index, "error", err)
		}
		event.Heavy = content.Label
	}
	events.Emit(s.publisher, event)

	return reply, nil
}

func (s *Session) detect(ctx context.Context, message string) *heavy.Content {
	if s.detector == nil {
		return nil
	}
	content, err := s.detector.Detect(ctx, message)
	if err != nil {
		s.logger.Warn("heavy content detection failed, sending message as is", "error", err)
		return nil
	}
	return content
}

// Reset drops the conversation and every heavy entry.
func (s *Session) Reset(systemPrompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcript = memory.Transcript{{Role: memory.RoleSystem, Content: systemPrompt}}
	s.memory.Clear()
	s.logger.Info("session reset", "session_id", s.id)
}

// Snapshot captures the session for persistence.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		ID:         s.id,
		Character:  s.character,
		UserName:   s.userName,
		Transcript: s.transcript.Clone(),
		Heavy:      s.memory.Entries(),
	}
}

// Restore replaces the conversation with a saved one. Snapshots saved without
// heavy entries are rescanned when the detector can recover them.
func (s *Session) Restore(snapshot Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := snapshot.Heavy
	if len(entries) == 0 {
		if recoverer, ok := s.detector.(Recoverer); ok {
			entries = Rescan(snapshot.Transcript, recoverer)
		}
	}
	if err := s.memory.RestoreEntries(entries); err != nil {
		return fmt.Errorf("restoring heavy content: %w", err)
	}

	if snapshot.ID != "" {
		s.id = snapshot.ID
	}
	if snapshot.Character != "" {
		s.character = snapshot.Character
	}
	if snapshot.UserName != "" {
		s.userName = snapshot.UserName
	}
	s.transcript = snapshot.Transcript.Clone()

	s.logger.Info("session restored", "session_id", s.id, "turns", len(s.transcript), "heavy", len(entries))
	return nil
}
