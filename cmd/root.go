// Package cmd provides the root command and CLI setup for trellis.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"trellis.dev/pkg/trellis/internal/adapter"
	"trellis.dev/pkg/trellis/internal/controller"
	"trellis.dev/pkg/trellis/internal/domain"
)

// workflow overrides the workflow built per command; tests set it.
var workflow domain.Workflow

// reportsOutputDirFlag is a root-level flag shared by commands that read/write reports.
var reportsOutputDirFlag string

var logFileFlag string
var debugFlag bool
var loadParallelFlag int

const sourcesHelp = `Sources are plan files, directories holding plan files (searched
recursively for *.yaml and *.yml) or doublestar glob patterns:
  - plans/smoke.yaml     one plan
  - plans                every plan below plans/
  - 'plans/**/api*.yaml' every matching plan`

const rootLongDescription = `Trellis runs trees of test suites described by YAML plans. Each case runs a
shell command; suites group cases, share setup and teardown commands and can
be selected by name or category.

` + sourcesHelp

const runLongDescription = `Run the cases of the given plans and print a summary (default: plans in the
current directory).

` + sourcesHelp

const listLongDescription = `List the suites of the given plans with their case counts and categories.

` + sourcesHelp

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func init() {
	configureRootFlags(rootCmd)
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "trellis",
		Short:         "Run trees of command-line test suites",
		Long:          rootLongDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			installLogger(readLogSettings())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&reportsOutputDirFlag, outputFlagName, "o",
			viper.GetString(reportDirKey),
			"directory holding saved run reports",
		)
	bindConfig(cmd.PersistentFlags(), outputFlagName, reportDirKey)

	cmd.PersistentFlags().IntVar(&loadParallelFlag, parallelFlagName, viper.GetInt(loadParallelKey), "number of plan files parsed concurrently")
	bindConfig(cmd.PersistentFlags(), parallelFlagName, loadParallelKey)

	cmd.PersistentFlags().StringVar(&logFileFlag, logFileFlagName, viper.GetString(logFilenameKey), "log file path")
	bindConfig(cmd.PersistentFlags(), logFileFlagName, logFilenameKey)

	cmd.PersistentFlags().BoolVar(&debugFlag, debugFlagName, viper.GetBool(logVerboseKey), "log at debug level")
	bindConfig(cmd.PersistentFlags(), debugFlagName, logVerboseKey)
}

// bindConfig lets the config key feed the named flag and the flag, when set, override the key.
func bindConfig(flags *pflag.FlagSet, name, key string) {
	flag := flags.Lookup(name)
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("no flag %q for config key %q", name, key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// workflowFor returns the workflow a command runs, displaying on cmd's output
// with a TUI when tty is set.
func workflowFor(cmd *cobra.Command, tty bool) domain.Workflow {
	if workflow != nil {
		return workflow
	}

	loader := adapter.NewPlanLoader(adapter.NewLocalCommandRunner())
	loader.SetParallel(viper.GetInt(loadParallelKey))

	return domain.NewWorkflow(
		loader,
		controller.NewUI(cmd, tty),
		func(dir string) adapter.ReportStore { return adapter.NewReportStore(dir) },
	)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}

	if !domain.IsTestFailure(err) {
		rootCmd.PrintErrln("Error:", err)
	}

	stop()
	os.Exit(1)
}

func sourcesOrDefault(args []string) []string {
	if len(args) == 0 {
		return []string{"."}
	}

	return args
}
