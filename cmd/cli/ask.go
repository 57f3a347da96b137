package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kcaldas/tubechan/internal/di"
	"github.com/kcaldas/tubechan/pkg/config"
	"github.com/kcaldas/tubechan/pkg/persona"
	"github.com/kcaldas/tubechan/pkg/session"
)

var errNoMessage = errors.New("no message given: pass it as arguments or pipe it on stdin")

func newAskCommand() *cobra.Command {
	var flags sessionFlags
	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send one message and print the reply",
		Long: `Send one message and print the reply. The message comes from the arguments
or, when there are none, from stdin. Use --load and --save to continue a saved
session from scripts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			message, err := askMessage(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			sessions, cleanup, err := di.ProvideSessionManager(cmd.Context(), configManager, sessionOptions())
			if err != nil {
				return err
			}
			defer cleanup()

			return runAsk(cmd.Context(), cmd.OutOrStdout(), sessions, persona.NewLoader(), configManager, message, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.character, "character", "c", "", "character to talk to")
	cmd.Flags().StringVarP(&flags.userName, "user", "u", "", "your name, as the character sees it")
	cmd.Flags().StringVar(&flags.load, "load", "", "continue a saved session")
	cmd.Flags().StringVar(&flags.save, "save", "", "save the session after the reply")

	return cmd
}

func askMessage(in io.Reader, args []string) (string, error) {
	message := strings.TrimSpace(strings.Join(args, " "))
	if message == "" && hasPipedInput(in) {
		piped, err := readAllInput(in)
		if err != nil {
			return "", err
		}
		message = strings.TrimSpace(piped)
	}
	if message == "" {
		return "", errNoMessage
	}
	return message, nil
}

func runAsk(ctx context.Context, out io.Writer, sessions session.SessionManager, characters *persona.Loader, cfg config.Manager, message string, flags sessionFlags) error {
	s, _, err := openSession(sessions, characters, cfg, flags)
	if err != nil {
		return err
	}

	reply, err := s.Send(ctx, message)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, reply)

	if flags.save == "" {
		return nil
	}
	path, err := resolveSessionPath(cfg, flags.save)
	if err != nil {
		return err
	}
	return sessions.SaveSession(path)
}
