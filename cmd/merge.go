package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"trellis.dev/pkg/trellis/internal/domain"
)

// mergeCmd represents the merge command.
var mergeCmd = newMergeCmd()

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge RUN_ID RUN_ID...",
		Short: "Merge the reports of sharded runs into a single report",
		Long: `Merge saved reports of runs over the same tree, such as the shards of one
run, into a new report with its own run ID. Each case keeps the outcome of the
last listed run that executed it.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := workflowFor(cmd, false).Merge(cmd.Context(), domain.MergeArgs{
				Reports: viper.GetString(reportDirKey),
				RunIDs:  args,
			})

			return err
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
