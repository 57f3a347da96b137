package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kcaldas/tubechan/internal/di"
)

func newCountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "count [file...]",
		Short: "Count tokens with the configured counter",
		Long: `Count the tokens of the given files, joined the same way transcript turns are,
or of stdin when no file is given. Falls back to the length estimate when the
token service is unavailable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var contents []string
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				contents = append(contents, string(data))
			}
			if len(args) == 0 {
				input, err := readAllInput(cmd.InOrStdin())
				if err != nil {
					return err
				}
				contents = append(contents, input)
			}

			counter, err := di.ProvideTokenCounter(cmd.Context(), configManager, di.ProvideEventBus())
			if err != nil {
				return err
			}

			total := counter.Count(cmd.Context(), contents...)
			fmt.Fprintf(cmd.OutOrStdout(), "%d tokens (%s)\n", total, counter.Backend())
			if counter.Fallbacks() > 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "token service unavailable, this is an estimate")
			}
			return nil
		},
	}
}
