package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kcaldas/tubechan/internal/di"
	"github.com/kcaldas/tubechan/pkg/heavy"
	"github.com/kcaldas/tubechan/pkg/logging"
	"github.com/kcaldas/tubechan/pkg/memory"
	"github.com/kcaldas/tubechan/pkg/session"
	"github.com/kcaldas/tubechan/pkg/tokens"
)

func newPrepareCommand() *cobra.Command {
	var asJSON, show bool
	cmd := &cobra.Command{
		Use:   "prepare <session-file>",
		Short: "Show what the model would receive for a saved session",
		Long: `Run one context preparation pass over a saved session without sending anything,
and report which transcripts were expanded or compacted and which exchanges were
dropped to fit the budget.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path, err := resolveSessionPath(configManager, args[0])
			if err != nil {
				return err
			}

			store, err := session.NewStore(logging.NewComponentLogger("store"))
			if err != nil {
				return err
			}
			defer store.Close()

			snapshot, err := store.Load(path)
			if err != nil {
				return err
			}

			counter, err := di.ProvideTokenCounter(ctx, configManager, di.ProvideEventBus())
			if err != nil {
				return err
			}
			budget := maxTokens
			if budget <= 0 {
				budget = configManager.GetMemoryConfig().MaxTokens
			}

			prepared, report, err := prepareSnapshot(ctx, counter, budget, snapshot)
			if err != nil {
				return err
			}
			if asJSON {
				return writePrepareJSON(cmd.OutOrStdout(), report, prepared, show)
			}
			writePrepareReport(cmd.OutOrStdout(), report, prepared, show)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&show, "show", false, "include the prepared transcript")

	return cmd
}

// prepareSnapshot runs a pass over snapshot with a throwaway memory manager.
// Snapshots saved without heavy entries are rescanned first.
func prepareSnapshot(ctx context.Context, counter *tokens.Counter, budget int, snapshot session.Snapshot) (memory.Transcript, memory.Report, error) {
	manager := memory.NewManager(counter,
		memory.WithMaxTokens(budget),
		memory.WithLogger(logging.NewComponentLogger("memory")),
		memory.WithSessionID(snapshot.ID),
	)

	entries := snapshot.Heavy
	if len(entries) == 0 {
		entries = session.Rescan(snapshot.Transcript, heavy.NewLinkDetector(nil))
	}
	if err := manager.RestoreEntries(entries); err != nil {
		return nil, memory.Report{}, err
	}

	prepared, report := manager.PrepareWithReport(ctx, snapshot.Transcript)
	return prepared, report, nil
}

func writePrepareReport(out io.Writer, report memory.Report, prepared memory.Transcript, show bool) {
	fmt.Fprintf(out, "budget:     %d tokens\n", report.MaxTokens)
	fmt.Fprintf(out, "before:     %d turns, %d tokens\n", report.TurnsBefore, report.TokensBefore)
	fmt.Fprintf(out, "after:      %d turns, %d tokens\n", report.TurnsAfter, report.TokensAfter)
	fmt.Fprintf(out, "expanded:   %s\n", formatIndices(report.Expanded))
	fmt.Fprintf(out, "compacted:  %s\n", formatIndices(report.Compacted))
	fmt.Fprintf(out, "evicted:    %d exchange(s)\n", len(report.Evictions))
	for _, eviction := range report.Evictions {
		fmt.Fprintf(out, "  - turn %d (%d turns) %q / %q\n", eviction.UserIndex, eviction.RemovedTurns, eviction.UserPreview, eviction.ReplyPreview)
	}
	if report.Infeasible {
		fmt.Fprintln(out, "warning:    the transcript does not fit even with every exchange dropped")
	}
	if report.Degraded {
		fmt.Fprintln(out, "note:       token service unavailable, counts are estimates")
	}

	if !show {
		return
	}
	fmt.Fprintln(out)
	for i, turn := range prepared {
		fmt.Fprintf(out, "[%d] %s: %s\n", i, turn.Role, turn.Content)
	}
}

func writePrepareJSON(out io.Writer, report memory.Report, prepared memory.Transcript, show bool) error {
	payload := struct {
		Report     memory.Report     `json:"report"`
		Transcript memory.Transcript `json:"transcript,omitempty"`
	}{Report: report}
	if show {
		payload.Transcript = prepared
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(payload)
}

func formatIndices(indices []int) string {
	if len(indices) == 0 {
		return "none"
	}
	parts := make([]string, len(indices))
	for i, index := range indices {
		parts[i] = fmt.Sprint(index)
	}
	return strings.Join(parts, ", ")
}
