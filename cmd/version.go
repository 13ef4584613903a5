package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

const develVersion = "(devel)"

// versionLines describes the build: module version, VCS revision when
// stamped, Go version and the config file version this binary writes.
func versionLines(info *debug.BuildInfo, ok bool) []string {
	if !ok || info == nil {
		return []string{"trellis version unknown"}
	}

	version := info.Main.Version
	if version == "" {
		version = develVersion
	}

	lines := []string{"trellis " + version}

	var revision, modified string

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value
		}
	}

	if revision != "" {
		if modified == "true" {
			revision += " (modified)"
		}

		lines = append(lines, "commit\t"+revision)
	}

	return append(lines,
		"go\t"+info.GoVersion,
		fmt.Sprintf("config\tversion %d", currentConfigVersion),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the version information",
		Long:  "Displays the trellis build version, its commit and the Go version used to build it.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, line := range versionLines(debug.ReadBuildInfo()) {
				cmd.Println(line)
			}
		},
	}
}

// versionCmd represents the version command.
var versionCmd = newVersionCmd()

func init() {
	rootCmd.AddCommand(versionCmd)
}
