package cmd

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config file.
const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "trellis"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	envPrefix = "TRELLIS"
)

// Flags shared with config keys.
const (
	outputFlagName        = "output"
	isolatedFlagName      = "isolated"
	timeoutFlagName       = "timeout"
	caseTimeoutFlagName   = "case-timeout"
	stopOnFailureFlagName = "stop-on-failure"
	parallelFlagName      = "parallel"
	logFileFlagName       = "log-file"
	debugFlagName         = "debug"
)

// Run and report keys.
const (
	reportDirKey     = "report.dir"
	runIsolatedKey   = "run.isolated"
	runTimeoutKey    = "run.timeout"
	caseTimeoutKey   = "run.case_timeout"
	stopOnFailureKey = "run.stop_on_failure"
	loadParallelKey  = "load.parallel"

	defaultReportsDir   = ".trellis-reports"
	defaultLoadParallel = 4
)

// Log keys. Files rotate through lumberjack; sizes are in megabytes and ages in days.
const (
	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".trellis.log"
	defaultLogLevel      = "info"
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
)

func init() {
	initConfig()
}

// initConfig points viper at trellis.yaml and TRELLIS_* variables, then
// registers every default.
func initConfig() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	for key, value := range configDefaults() {
		viper.SetDefault(key, value)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Debug("no config file read", "path", configFileName, "error", err)
		}
	}
}

func configDefaults() map[string]any {
	return map[string]any{
		configVersionKey: currentConfigVersion,

		reportDirKey:     defaultReportsDir,
		runIsolatedKey:   false,
		runTimeoutKey:    "0s",
		caseTimeoutKey:   "0s",
		stopOnFailureKey: false,
		loadParallelKey:  defaultLoadParallel,

		logFilenameKey:   defaultLogFilename,
		logLevelKey:      defaultLogLevel,
		logVerboseKey:    false,
		logMaxSizeKey:    defaultLogMaxSize,
		logMaxBackupsKey: defaultLogMaxBackups,
		logMaxAgeKey:     defaultLogMaxAge,
		logCompressKey:   true,
	}
}

// logSettings is the log section of the configuration after flags and
// environment have been applied.
type logSettings struct {
	filename   string
	level      slog.Level
	maxSize    int
	maxBackups int
	maxAge     int
	compress   bool
}

// readLogSettings reads the log section. --debug wins over log.level.
func readLogSettings() logSettings {
	settings := logSettings{
		filename:   strings.TrimSpace(viper.GetString(logFilenameKey)),
		level:      parseLogLevel(viper.GetString(logLevelKey), slog.LevelInfo),
		maxSize:    viper.GetInt(logMaxSizeKey),
		maxBackups: viper.GetInt(logMaxBackupsKey),
		maxAge:     viper.GetInt(logMaxAgeKey),
		compress:   viper.GetBool(logCompressKey),
	}

	if settings.filename == "" {
		settings.filename = defaultLogFilename
	}

	if viper.GetBool(logVerboseKey) {
		settings.level = slog.LevelDebug
	}

	return settings
}

// parseLogLevel accepts slog level names ("warn", "ERROR+2"), the "warning"
// alias and plain numbers.
func parseLogLevel(value string, fallback slog.Level) slog.Level {
	value = strings.TrimSpace(value)

	switch {
	case value == "":
		return fallback
	case strings.EqualFold(value, "warning"):
		return slog.LevelWarn
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err == nil {
		return level
	}

	if n, err := strconv.Atoi(value); err == nil {
		return slog.Level(n)
	}

	return fallback
}

// installLogger makes a text logger writing to a rotated file the default
// slog logger and returns it.
func installLogger(settings logSettings) *slog.Logger {
	out := &lumberjack.Logger{
		Filename:   settings.filename,
		MaxSize:    settings.maxSize,
		MaxBackups: settings.maxBackups,
		MaxAge:     settings.maxAge,
		Compress:   settings.compress,
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		AddSource: true,
		Level:     settings.level,
	}))
	slog.SetDefault(logger)

	return logger
}
