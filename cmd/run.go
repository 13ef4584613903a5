package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"trellis.dev/pkg/trellis/internal/controller"
	"trellis.dev/pkg/trellis/internal/domain"
)

const (
	tuiFlagName        = "tui"
	noReportFlagName   = "no-report"
	metricsFlagName    = "metrics-file"
	verboseFlagName    = "verbose"
	shardFlagName      = "shard"
	nameFlagName       = "name"
	testFlagName       = "test"
	selectFlagName     = "select"
	categoryFlagName   = "category"
	excludeCatFlagName = "exclude-category"
)

// selectFlags are the flags run and list share to choose tests.
type selectFlags struct {
	name              string
	test              string
	names             []string
	categories        []string
	excludeCategories []string
	verbose           bool
}

func (f *selectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, nameFlagName, "", "name of the suite wrapping several sources")
	cmd.Flags().StringVar(&f.test, testFlagName, "", "load only the test with this full name")
	cmd.Flags().StringSliceVar(&f.names, selectFlagName, nil, "select tests by full name (can be repeated)")
	cmd.Flags().StringSliceVarP(&f.categories, categoryFlagName, "c", nil, "select tests in these categories (can be repeated)")
	cmd.Flags().StringSliceVarP(&f.excludeCategories, excludeCatFlagName, "x", nil, "skip tests in these categories (can be repeated)")
	cmd.Flags().BoolVarP(&f.verbose, verboseFlagName, "v", false, "show every test and its output")
}

func (f *selectFlags) args(sources []string) domain.SelectArgs {
	return domain.SelectArgs{
		Sources:           sources,
		Name:              f.name,
		TestName:          f.test,
		Names:             f.names,
		Categories:        f.categories,
		ExcludeCategories: f.excludeCategories,
		Verbose:           f.verbose,
	}
}

type runFlags struct {
	selectFlags

	isolated      bool
	timeout       string
	caseTimeout   string
	stopOnFailure bool
	shard         string
	tui           bool
	noReport      bool
	metricsFile   string
}

// runCmd represents the run command.
var runCmd = newRunCmd()

func newRunCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [sources...]",
		Short: "Run test plans",
		Long:  runLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			shardIndex, totalShards := parseShardFlag(flags.shard)

			selection := flags.args(sourcesOrDefault(args))
			selection.ShardIndex = shardIndex
			selection.TotalShardCount = totalShards

			tty := controller.IsTTY(cmd.OutOrStdout())
			if cmd.Flags().Changed(tuiFlagName) {
				tty = flags.tui
			}

			_, err := workflowFor(cmd, tty).Run(cmd.Context(), domain.RunArgs{
				SelectArgs:    selection,
				Isolated:      viper.GetBool(runIsolatedKey),
				Timeout:       viper.GetDuration(runTimeoutKey),
				CaseTimeout:   viper.GetDuration(caseTimeoutKey),
				StopOnFailure: viper.GetBool(stopOnFailureKey),
				Reports:       viper.GetString(reportDirKey),
				SaveReport:    !flags.noReport,
				MetricsFile:   flags.metricsFile,
			})

			return err
		},
	}

	configureRunFlags(cmd, flags)

	return cmd
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func configureRunFlags(cmd *cobra.Command, flags *runFlags) {
	flags.register(cmd)

	cmd.Flags().BoolVar(&flags.isolated, isolatedFlagName, viper.GetBool(runIsolatedKey), "run on a dedicated isolated worker")
	bindConfig(cmd.Flags(), isolatedFlagName, runIsolatedKey)

	cmd.Flags().StringVar(&flags.timeout, timeoutFlagName, viper.GetString(runTimeoutKey), "stop the run after this duration (0 disables)")
	bindConfig(cmd.Flags(), timeoutFlagName, runTimeoutKey)

	cmd.Flags().StringVar(&flags.caseTimeout, caseTimeoutFlagName, viper.GetString(caseTimeoutKey), "default timeout of a case command (0 uses the runner default)")
	bindConfig(cmd.Flags(), caseTimeoutFlagName, caseTimeoutKey)

	cmd.Flags().BoolVar(&flags.stopOnFailure, stopOnFailureFlagName, viper.GetBool(stopOnFailureKey), "stop after the first failing test")
	bindConfig(cmd.Flags(), stopOnFailureFlagName, stopOnFailureKey)

	cmd.Flags().StringVarP(&flags.shard, shardFlagName, "s", "", "shard index and total shard count in the format INDEX/TOTAL (e.g., 0/3)")
	cmd.Flags().BoolVar(&flags.tui, tuiFlagName, false, "force the interactive display on or off (default: on for terminals)")
	cmd.Flags().BoolVar(&flags.noReport, noReportFlagName, false, "do not save a report of the run")
	cmd.Flags().StringVar(&flags.metricsFile, metricsFlagName, "", "write run metrics in the Prometheus textfile format")
}

func parseShardFlag(shard string) (int, int) {
	if shard == "" {
		return 0, 1
	}

	var index, total int

	_, err := fmt.Sscanf(shard, "%d/%d", &index, &total)
	if err != nil || total <= 0 || index < 0 || index >= total {
		return 0, 1
	}

	return index, total
}
