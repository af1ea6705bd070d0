package log

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// The default logger writes to the console only, so library use and tests
// need no Init call.
var logger = newConsoleLogger()

const (
	defaultLogLevel = InfoLevel
	FileName        = "binlog-undo.log"
	DebugLevel      = "debug"
	InfoLevel       = "info"
	WarnLevel       = "warn"
)

func Init(level, path string) {
	// log level
	if level == "" {
		level = defaultLogLevel
	}
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	default:
		panic(fmt.Sprintf("unknown log level: %s", level))
	}
	// log file; empty path keeps console-only output
	if path == "" {
		logger = newConsoleLogger()
		return
	}
	logFile := GetFullLogPath(path, FileName)
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}
	fileWriter, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		panic(fmt.Sprintf("open log file failed: %s", err))
	}
	multi := zerolog.MultiLevelWriter(consoleWriter, fileWriter)
	logger = zerolog.New(multi).With().Timestamp().Logger()
}

func newConsoleLogger() zerolog.Logger {
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}
	return zerolog.New(consoleWriter).With().Timestamp().Logger()
}

func GetFullLogPath(path, fileName string) string {
	return filepath.Join(path, fileName)
}
