package cli

import (
	"fmt"

	"github.com/kcaldas/tubechan/pkg/config"
	"github.com/kcaldas/tubechan/pkg/persona"
	"github.com/kcaldas/tubechan/pkg/session"
)

// sessionFlags are shared by chat and ask.
type sessionFlags struct {
	character string
	userName  string
	load      string
	save      string
}

// openSession loads flags.load, or starts a session with the requested
// character. It returns the session and the name replies are shown under.
func openSession(sessions session.SessionManager, characters *persona.Loader, cfg config.Manager, flags sessionFlags) (*session.Session, string, error) {
	if flags.load != "" {
		path, err := resolveSessionPath(cfg, flags.load)
		if err != nil {
			return nil, "", err
		}
		s, err := sessions.LoadSession(path)
		if err != nil {
			return nil, "", err
		}
		return s, displayName(s.Snapshot().Character), nil
	}

	userName := flags.userName
	if userName == "" {
		userName = cfg.GetStringWithDefault(config.KeyUserName, "User")
	}
	name := flags.character
	if name == "" {
		name = cfg.GetStringWithDefault(config.KeyCharacter, persona.DefaultCharacter)
	}
	character, err := characters.Load(name)
	if err != nil {
		return nil, "", fmt.Errorf("loading character: %w", err)
	}

	s := sessions.CreateSession(characters.SystemPrompt(character, userName), session.WithCharacter(character.Name, userName))
	return s, displayName(character.Name), nil
}

func displayName(character string) string {
	if character == "" {
		return "Assistant"
	}
	return character
}
