package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kcaldas/tubechan/internal/di"
	"github.com/kcaldas/tubechan/pkg/config"
	"github.com/kcaldas/tubechan/pkg/logging"
	"github.com/kcaldas/tubechan/pkg/version"
)

var (
	// Global flags
	verbose       bool
	quiet         bool
	configPath    string
	maxTokens     int
	transcriptDir string
	modelName     string

	// Loaded once in PersistentPreRunE and shared by every command
	configManager config.Manager
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "tubechan",
	Short: "Chat with a character about YouTube videos",
	Long: `tubechan is a terminal chat client. Paste a YouTube link and the video transcript
is sent along with your message; older transcripts are shrunk back to their link
and old exchanges are dropped so the conversation always fits the model's context window.`,
	Version:       version.GetInfo().Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var logger logging.Logger
		if quiet {
			logger = logging.NewQuietLogger()
		} else if verbose {
			logger = logging.NewVerboseLogger()
		} else {
			logger = logging.NewLogger(logging.Config{Level: slog.LevelWarn, Format: logging.FormatText, Output: cmd.ErrOrStderr()})
		}
		logging.SetGlobalLogger(logger)

		cfg, err := di.ProvideConfigManager(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		configManager = cfg
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, chatFlags{})
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug level)")
	RootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "quiet output (errors only)")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+config.DefaultConfigPath+")")
	RootCmd.PersistentFlags().IntVar(&maxTokens, "max-tokens", 0, "context window budget in tokens (default from config)")
	RootCmd.PersistentFlags().StringVar(&transcriptDir, "transcripts", "", "directory of saved video transcripts (default "+config.DefaultTranscriptDir+")")
	RootCmd.PersistentFlags().StringVar(&modelName, "model", "", "completion model (default from config)")

	addCommands()
}

// addCommands adds all CLI subcommands to the root command
func addCommands() {
	RootCmd.AddCommand(newChatCommand())
	RootCmd.AddCommand(newAskCommand())
	RootCmd.AddCommand(newPrepareCommand())
	RootCmd.AddCommand(newCountCommand())
	RootCmd.AddCommand(newVersionCommand())
}

func sessionOptions() di.SessionOptions {
	return di.SessionOptions{
		TranscriptDir: transcriptDir,
		MaxTokens:     maxTokens,
		Model:         modelName,
	}
}

// resolveSessionPath places bare file names in the configured session
// directory. Paths with a directory part are used as given.
func resolveSessionPath(cfg config.Manager, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("session file name is empty")
	}
	if filepath.Base(name) != name {
		return config.ExpandPath(name)
	}
	dir, err := config.ExpandPath(cfg.GetStringWithDefault(config.KeySessionDir, config.DefaultSessionDir))
	if err != nil {
		return "", err
	}
	if filepath.Ext(name) == "" {
		name += ".json"
	}
	return filepath.Join(dir, name), nil
}
