package session

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kcaldas/tubechan/pkg/events"
	"github.com/kcaldas/tubechan/pkg/heavy"
	"github.com/kcaldas/tubechan/pkg/llm"
	"github.com/kcaldas/tubechan/pkg/logging"
	"github.com/kcaldas/tubechan/pkg/memory"
	"github.com/kcaldas/tubechan/pkg/tokens"
)

// ErrNoSession is returned by GetSession before a session exists.
var ErrNoSession = errors.New("no session exists, please create one first")

// Dependencies are shared by every session a Manager creates.
type Dependencies struct {
	Counter   *tokens.Counter
	Completer llm.Completer
	Detector  heavy.Detector
	Store     *Store
	EventBus  events.EventBus
	MaxTokens int
	Model     string
	Logger    logging.Logger
}

// SessionManager creates, loads and saves the current session.
type SessionManager interface {
	CreateSession(systemPrompt string, opts ...Option) *Session
	GetSession() (*Session, error)
	LoadSession(path string) (*Session, error)
	SaveSession(path string) error
}

// Manager implements SessionManager. Each session gets its own memory
// manager and therefore its own heavy content registry.
type Manager struct {
	deps    Dependencies
	session *Session
}

func NewSessionManager(deps Dependencies) *Manager {
	if deps.EventBus == nil {
		deps.EventBus = &events.NoOpEventBus{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewComponentLogger("session")
	}
	return &Manager{deps: deps}
}

// CreateSession starts a fresh session and makes it current.
func (m *Manager) CreateSession(systemPrompt string, opts ...Option) *Session {
	m.session = m.newSession(uuid.NewString(), systemPrompt, opts...)
	return m.session
}

func (m *Manager) GetSession() (*Session, error) {
	if m.session == nil {
		return nil, ErrNoSession
	}
	return m.session, nil
}

// LoadSession restores a saved session and makes it current.
func (m *Manager) LoadSession(path string) (*Session, error) {
	if m.deps.Store == nil {
		return nil, errors.New("session store not configured")
	}
	snapshot, err := m.deps.Store.Load(path)
	if err != nil {
		return nil, err
	}

	id := snapshot.ID
	if id == "" {
		id = uuid.NewString()
	}
	systemPrompt := ""
	if len(snapshot.Transcript) > 0 && snapshot.Transcript[0].Role == memory.RoleSystem {
		systemPrompt = snapshot.Transcript[0].Content
	}

	s := m.newSession(id, systemPrompt)
	if err := s.Restore(snapshot); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	m.session = s
	return s, nil
}

// SaveSession writes the current session to path.
func (m *Manager) SaveSession(path string) error {
	if m.deps.Store == nil {
		return errors.New("session store not configured")
	}
	s, err := m.GetSession()
	if err != nil {
		return err
	}
	return m.deps.Store.Save(path, s.Snapshot())
}

func (m *Manager) newSession(id, systemPrompt string, opts ...Option) *Session {
	logger := m.deps.Logger.With("session_id", id)

	manager := memory.NewManager(m.deps.Counter,
		memory.WithMaxTokens(m.deps.MaxTokens),
		memory.WithLogger(logger),
		memory.WithEventBus(m.deps.EventBus),
		memory.WithSessionID(id),
	)

	base := []Option{
		WithID(id),
		WithDetector(m.deps.Detector),
		WithModel(m.deps.Model),
		WithEventBus(m.deps.EventBus),
		WithLogger(logger),
	}
	return New(systemPrompt, manager, m.deps.Completer, append(base, opts...)...)
}
