package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", appName, sessionStart.Format("20060102_150405")),
	)
}

// Level maps the configured logLevel string to a zerolog level, defaulting
// to info for anything unrecognized.
func Level(s string) zerolog.Level {
	switch strings.ToUpper(s) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Setup builds the process logger: colored console output, a plain console
// format in the session log file, and optionally a GELF writer when graylog
// is enabled. The file is owned by the returned logger for the process
// lifetime; no close handle is returned.
func Setup(appName string, sessionStart time.Time) (zerolog.Logger, error) {
	zerolog.SetGlobalLevel(Level(viper.GetString("logLevel")))
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return zerolog.Nop(), fmt.Errorf("creating logs dir: %w", err)
	}
	file, err := os.OpenFile(
		LogFilePath(logsDir, appName, sessionStart),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("opening log file: %w", err)
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		},
		zerolog.ConsoleWriter{
			Out:        file,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		},
	}

	if viper.GetBool("graylog.enabled") {
		gw, err := gelf.NewWriter(viper.GetString("graylog.address"))
		if err != nil {
			// Graylog being down must not stop the simulator.
			fmt.Fprintf(os.Stderr, "graylog writer unavailable: %v\n", err)
		} else {
			writers = append(writers, gw)
		}
	}

	log := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().Timestamp().Str("app", appName).Logger()
	log.Info().Str("loglevel", log.GetLevel().String()).Msg("Logging set up")
	return log, nil
}
