package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"trellis.dev/pkg/trellis/internal/adapter"
	"trellis.dev/pkg/trellis/internal/domain"
)

// viewCmd represents the view command.
var viewCmd = newViewCmd()

func newViewCmd() *cobra.Command {
	var runID, compare string

	cmd := &cobra.Command{
		Use:   "view",
		Short: "View a saved run report",
		Long: `View the summary of a saved run report, the latest one by default. With
--compare, also print how the outcome of each case changed since another run.`,
		Args: cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return workflowFor(cmd, false).View(cmd.Context(), domain.ViewArgs{
				Reports: viper.GetString(reportDirKey),
				RunID:   runID,
				Compare: compare,
			})
		},
	}

	cmd.Flags().StringVar(&runID, "run", adapter.LatestRun, "run ID of the report to show")
	cmd.Flags().StringVar(&compare, "compare", "", "run ID to compare the report with")

	return cmd
}

func init() {
	rootCmd.AddCommand(viewCmd)
}
