package cmd

import (
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestConfigConstants(t *testing.T) {
	assert.Equal(t, "trellis", configBaseName)
	assert.Equal(t, "trellis.yaml", configFileName)
	assert.Equal(t, ".", configFolderPath)
	assert.Equal(t, "output", outputFlagName)
	assert.Equal(t, "report.dir", reportDirKey)
	assert.Equal(t, ".trellis-reports", defaultReportsDir)
	assert.Equal(t, "TRELLIS", envPrefix)
}

func TestConfigVersionConstants(t *testing.T) {
	assert.Equal(t, "version", configVersionKey)
	assert.Equal(t, 1, currentConfigVersion)
}

func TestConfigDefaults(t *testing.T) {
	newTestRoot(t)

	assert.Equal(t, defaultReportsDir, viper.GetString(reportDirKey))
	assert.False(t, viper.GetBool(runIsolatedKey))
	assert.Equal(t, time.Duration(0), viper.GetDuration(runTimeoutKey))
	assert.Equal(t, defaultLoadParallel, viper.GetInt(loadParallelKey))
	assert.Equal(t, defaultLogMaxSize, viper.GetInt(logMaxSizeKey))
}

func TestConfigFromEnvironment(t *testing.T) {
	t.Setenv("TRELLIS_RUN_TIMEOUT", "90s")
	t.Setenv("TRELLIS_RUN_ISOLATED", "true")

	newTestRoot(t)

	assert.Equal(t, 90*time.Second, viper.GetDuration(runTimeoutKey))
	assert.True(t, viper.GetBool(runIsolatedKey))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		value string
		want  slog.Level
	}{
		{"", slog.LevelWarn},
		{"debug", slog.LevelDebug},
		{" INFO ", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"-4", slog.LevelDebug},
		{"warn+2", slog.LevelWarn + 2},
		{"loud", slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.value, slog.LevelWarn))
		})
	}
}

func TestReadLogSettings(t *testing.T) {
	tests := []struct {
		name      string
		values    map[string]any
		wantFile  string
		wantLevel slog.Level
	}{
		{name: "defaults", wantFile: defaultLogFilename, wantLevel: slog.LevelInfo},
		{name: "configured level", values: map[string]any{logLevelKey: "error"}, wantFile: defaultLogFilename, wantLevel: slog.LevelError},
		{name: "debug wins over level", values: map[string]any{logLevelKey: "error", logVerboseKey: true}, wantFile: defaultLogFilename, wantLevel: slog.LevelDebug},
		{name: "blank file falls back", values: map[string]any{logFilenameKey: "  "}, wantFile: defaultLogFilename, wantLevel: slog.LevelInfo},
		{name: "configured file", values: map[string]any{logFilenameKey: "logs/run.log"}, wantFile: "logs/run.log", wantLevel: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			initConfig()
			t.Cleanup(viper.Reset)

			for key, value := range tt.values {
				viper.Set(key, value)
			}

			settings := readLogSettings()

			assert.Equal(t, tt.wantFile, settings.filename)
			assert.Equal(t, tt.wantLevel, settings.level)
			assert.Equal(t, defaultLogMaxSize, settings.maxSize)
			assert.True(t, settings.compress)
		})
	}
}

func TestBindConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("known", "", "")

	bindConfig(flags, "known", "test.known")
	require.NoError(t, flags.Set("known", "from flag"))
	assert.Equal(t, "from flag", viper.GetString("test.known"))
}

func TestRootFlags_OverrideConfig(t *testing.T) {
	useWorkflow(t).On("List", mock.Anything, mock.Anything).Return(nil).Once()

	cmd, _ := newTestRoot(t, newListCmd)
	cmd.SetArgs([]string{"list", "--parallel", "8", "--debug", "--output", "elsewhere"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, 8, viper.GetInt(loadParallelKey))
	assert.True(t, viper.GetBool(logVerboseKey))
	assert.Equal(t, "elsewhere", viper.GetString(reportDirKey))
}
