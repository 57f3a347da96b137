package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kcaldas/tubechan/cmd/history"
	"github.com/kcaldas/tubechan/internal/di"
	"github.com/kcaldas/tubechan/pkg/config"
	"github.com/kcaldas/tubechan/pkg/logging"
	"github.com/kcaldas/tubechan/pkg/memory"
	"github.com/kcaldas/tubechan/pkg/persona"
	"github.com/kcaldas/tubechan/pkg/session"
)

const chatHelp = `/help              show this help
/reset             start the conversation over
/save [file]       save the session
/load <file>       load a saved session
/character <name>  switch character (starts over)
/characters        list characters
/history           show recent inputs
/quit              leave
!!                 send the previous message again
End a line with \ to keep typing on the next one.`

type chatFlags struct {
	sessionFlags
	noHistory bool
}

func newChatCommand() *cobra.Command {
	var flags chatFlags
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat (the default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.character, "character", "c", "", "character to talk to")
	cmd.Flags().StringVarP(&flags.userName, "user", "u", "", "your name, as the character sees it")
	cmd.Flags().StringVar(&flags.load, "load", "", "resume a saved session")
	cmd.Flags().StringVar(&flags.save, "save", "", "save the session to this file on exit")
	cmd.Flags().BoolVar(&flags.noHistory, "no-history", false, "do not record input history")

	return cmd
}

func runChat(cmd *cobra.Command, flags chatFlags) error {
	ctx := cmd.Context()
	sessions, cleanup, err := di.ProvideSessionManager(ctx, configManager, sessionOptions())
	if err != nil {
		return err
	}
	defer cleanup()

	inputs := history.New("", 0)
	if !flags.noHistory {
		if path, err := config.ExpandPath(config.DefaultHistoryPath); err == nil {
			inputs = history.New(path, history.DefaultMaxEntries)
		}
	}
	if err := inputs.Load(); err != nil {
		logging.Warn("could not load input history", "error", err)
	}

	repl := &chatREPL{
		in:          cmd.InOrStdin(),
		out:         cmd.OutOrStdout(),
		interactive: isTerminal(cmd.InOrStdin()),
		sessions:    sessions,
		characters:  persona.NewLoader(),
		history:     inputs,
		render:      newRenderer(cmd.OutOrStdout()),
		cfg:         configManager,
		savePath:    flags.save,
	}
	if err := repl.open(flags.sessionFlags); err != nil {
		return err
	}
	return repl.run(ctx)
}

// chatREPL reads one message per line and prints the replies.
type chatREPL struct {
	in          io.Reader
	out         io.Writer
	interactive bool
	sessions    session.SessionManager
	characters  *persona.Loader
	history     *history.InputHistory
	render      *renderer
	cfg         config.Manager
	savePath    string

	name     string
	userName string
}

func (r *chatREPL) open(flags sessionFlags) error {
	s, name, err := openSession(r.sessions, r.characters, r.cfg, flags)
	if err != nil {
		return err
	}
	r.name = name
	r.userName = s.Snapshot().UserName
	if flags.load != "" {
		r.printf("%s\n", r.render.info(fmt.Sprintf("Resumed session with %d messages.", len(s.Transcript())-1)))
	}
	if r.interactive {
		r.printf("%s\n", r.render.info(fmt.Sprintf("Talking to %s. Type /help for commands.", r.name)))
	}
	return nil
}

func (r *chatREPL) run(ctx context.Context) error {
	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var pending []string
	for {
		if r.interactive && len(pending) == 0 {
			r.printf("%s", r.render.prompt(r.userName))
		}
		if !scanner.Scan() {
			break
		}

		line := scanner.Text()
		if strings.HasSuffix(line, `\`) {
			pending = append(pending, strings.TrimSuffix(line, `\`))
			continue
		}
		input := strings.TrimSpace(strings.Join(append(pending, line), "\n"))
		pending = nil
		if input == "" {
			continue
		}

		if input == "!!" {
			input = r.history.Last()
			if input == "" {
				continue
			}
			r.printf("%s\n", r.render.info(input))
		}

		if strings.HasPrefix(input, "/") {
			if quit := r.command(ctx, input); quit {
				break
			}
			continue
		}

		if err := r.history.Add(input); err != nil {
			logging.Debug("input history not saved", "error", err)
		}
		r.send(ctx, input)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	if r.savePath != "" {
		return r.save(r.savePath)
	}
	return nil
}

func (r *chatREPL) send(ctx context.Context, message string) {
	s, err := r.sessions.GetSession()
	if err != nil {
		r.printf("%s\n", r.render.failure(err))
		return
	}
	reply, err := s.Send(ctx, message)
	if err != nil {
		r.printf("%s\n", r.render.failure(err))
		return
	}
	r.printf("%s\n", r.render.reply(r.name, reply))
}

// command runs a slash command and reports whether the REPL should stop.
func (r *chatREPL) command(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	arg := strings.TrimSpace(strings.TrimPrefix(input, parts[0]))

	switch parts[0] {
	case "/help":
		r.printf("%s\n", r.render.info(chatHelp))

	case "/quit", "/exit":
		return true

	case "/reset":
		s, err := r.sessions.GetSession()
		if err != nil {
			r.printf("%s\n", r.render.failure(err))
			return false
		}
		s.Reset(systemPrompt(s.Transcript()))
		r.printf("%s\n", r.render.info("Conversation cleared."))

	case "/save":
		path := arg
		if path == "" {
			path = r.savePath
		}
		if path == "" {
			r.printf("%s\n", r.render.info("Usage: /save <file>"))
			return false
		}
		if err := r.save(path); err != nil {
			r.printf("%s\n", r.render.failure(err))
		}

	case "/load":
		if arg == "" {
			r.printf("%s\n", r.render.info("Usage: /load <file>"))
			return false
		}
		if err := r.open(sessionFlags{load: arg}); err != nil {
			r.printf("%s\n", r.render.failure(err))
		}

	case "/character":
		if arg == "" {
			r.printf("%s\n", r.render.info("Usage: /character <name>"))
			return false
		}
		if err := r.open(sessionFlags{character: arg, userName: r.userName}); err != nil {
			r.printf("%s\n", r.render.failure(err))
			return false
		}
		r.printf("%s\n", r.render.info("Now talking to "+r.name+"."))

	case "/characters":
		r.printf("%s\n", r.render.info(strings.Join(r.characters.List(), "\n")))

	case "/history":
		entries := r.history.Entries()
		if len(entries) > 10 {
			entries = entries[len(entries)-10:]
		}
		r.printf("%s\n", r.render.info(strings.Join(entries, "\n")))

	default:
		r.printf("%s\n", r.render.info("Unknown command. Type /help"))
	}

	return false
}

func (r *chatREPL) save(name string) error {
	path, err := resolveSessionPath(r.cfg, name)
	if err != nil {
		return err
	}
	if err := r.sessions.SaveSession(path); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	r.printf("%s\n", r.render.info("Session saved to "+path))
	return nil
}

func (r *chatREPL) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func systemPrompt(transcript memory.Transcript) string {
	if len(transcript) > 0 && transcript[0].Role == memory.RoleSystem {
		return transcript[0].Content
	}
	return ""
}
