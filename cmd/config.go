package cmd

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"paratest.dev/pkg/paratest/internal/domain"
	m "paratest.dev/pkg/paratest/internal/model"
)

const (
	configBaseName   = "paratest"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	threadsFlagName    = "parallel-threads"
	iterationsFlagName = "iterations"
	outputFlagName     = "output"
	verboseFlagName    = "verbose"

	threadsConfigKey    = "run.parallel_threads"
	iterationsConfigKey = "run.iterations"
	skipUnsafeKey       = "run.skip_thread_unsafe"
	ignoreViolationsKey = "run.ignore_runtime_violations"

	unsafeFunctionsKey  = "safety.thread_unsafe_functions"
	unsafeFixturesKey   = "safety.thread_unsafe_fixtures"
	warningsSafeKey     = "safety.warnings_capture_safe"
	ffiSafeKey          = "safety.ffi_safe"
	propertyUnsafeKey   = "safety.property_tests_unsafe"

	defaultThreads    = "1"
	defaultIterations = 1
	defaultReportsDir = ".paratest-reports"

	// autoThreads resolves to one worker per usable logical CPU.
	autoThreads = "auto"

	envPrefix = "PARATEST"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".paratest.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(threadsConfigKey, defaultThreads)
	viper.SetDefault(iterationsConfigKey, defaultIterations)
	viper.SetDefault(skipUnsafeKey, false)
	viper.SetDefault(ignoreViolationsKey, false)
	viper.SetDefault(outputFlagName, defaultReportsDir)
	viper.SetDefault(unsafeFunctionsKey, []string{})
	viper.SetDefault(unsafeFixturesKey, []string{})
	viper.SetDefault(warningsSafeKey, false)
	viper.SetDefault(ffiSafeKey, false)
	viper.SetDefault(propertyUnsafeKey, false)

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}

// resolveThreads turns the configured thread setting ("auto" or an integer)
// into a concrete worker count.
func resolveThreads(value string, detected int) int {
	if value == autoThreads {
		if detected > 0 {
			return detected
		}

		return 1
	}

	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 1
	}

	return n
}

// suiteConfigFromViper assembles the effective suite configuration from the
// bound flags, the config file and the environment. detected is the logical
// CPU count used to resolve the "auto" thread setting.
func suiteConfigFromViper(detected int) (domain.SuiteConfig, error) {
	flags := m.Flags{
		WarningsCaptureSafe: viper.GetBool(warningsSafeKey),
		FFISafe:             viper.GetBool(ffiSafeKey),
		PropertyTestsUnsafe: viper.GetBool(propertyUnsafeKey),
	}

	var extra []m.Entry

	for _, raw := range viper.GetStringSlice(unsafeFunctionsKey) {
		entry, err := m.ParseEntry(raw)
		if err != nil {
			return domain.SuiteConfig{}, err
		}

		extra = append(extra, entry)
	}

	var fixtures []string
	if configured := viper.GetStringSlice(unsafeFixturesKey); len(configured) > 0 {
		fixtures = configured
	}

	return domain.SuiteConfig{
		Workers:          resolveThreads(viper.GetString(threadsConfigKey), detected),
		Iterations:       viper.GetInt(iterationsConfigKey),
		SkipUnsafe:       viper.GetBool(skipUnsafeKey),
		Flags:            flags,
		ExtraBlocklist:   extra,
		UnsafeFixtures:   fixtures,
		ReportsDir:       m.Path(viper.GetString(outputFlagName)),
		IgnoreViolations: viper.GetBool(ignoreViolationsKey),
	}, nil
}
