package cmd

import (
	"github.com/spf13/cobra"

	"trellis.dev/pkg/trellis/internal/domain"
)

// listCmd represents the list command.
var listCmd = newListCmd()

func newListCmd() *cobra.Command {
	flags := &selectFlags{}

	cmd := &cobra.Command{
		Use:   "list [sources...]",
		Short: "List suites, case counts and categories",
		Long:  listLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			return workflowFor(cmd, false).List(cmd.Context(), domain.ListArgs{
				SelectArgs: flags.args(sourcesOrDefault(args)),
			})
		},
	}

	flags.register(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(listCmd)
}
