package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kcaldas/tubechan/pkg/config"
	"github.com/kcaldas/tubechan/pkg/logging"
	"github.com/kcaldas/tubechan/pkg/memory"
	"github.com/kcaldas/tubechan/pkg/persona"
	"github.com/kcaldas/tubechan/pkg/session"
	"github.com/kcaldas/tubechan/pkg/tokens"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, model string, turns memory.Transcript) (string, error) {
	args := m.Called(ctx, model, turns)
	return args.String(0), args.Error(1)
}

func newMockCompleter(reply string, err error) *mockCompleter {
	completer := new(mockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(reply, err)
	return completer
}

// newTestSessions builds a session manager that never leaves the process.
// Sessions saved by bare name land in a temporary directory.
func newTestSessions(t *testing.T, completer *mockCompleter) (*session.Manager, config.Manager) {
	t.Setenv(config.KeySessionDir, t.TempDir())

	store, err := session.NewStore(logging.NewDisabledLogger())
	require.NoError(t, err)
	t.Cleanup(store.Close)

	manager := session.NewSessionManager(session.Dependencies{
		Counter:   tokens.NewCounter(nil, tokens.WithLogger(logging.NewDisabledLogger())),
		Completer: completer,
		Store:     store,
		MaxTokens: 30000,
		Logger:    logging.NewDisabledLogger(),
	})
	return manager, config.NewConfigManager()
}

func newTestCharacters(t *testing.T) *persona.Loader {
	return persona.NewLoader(persona.WithProjectDir(t.TempDir()), persona.WithUserDir(t.TempDir()))
}
