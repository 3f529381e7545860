// Package logger provides leveled logging for the service.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

type leveledLogger struct {
	level  Level
	logger *log.Logger
}

var std *leveledLogger

// Init initializes the package logger with the given level and format.
// Unknown levels fall back to info; the "text" format adds caller locations.
func Init(level string, format string) {
	var l Level
	switch strings.ToLower(level) {
	case "debug":
		l = DebugLevel
	case "info":
		l = InfoLevel
	case "warn":
		l = WarnLevel
	case "error":
		l = ErrorLevel
	default:
		l = InfoLevel
	}

	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}

	std = &leveledLogger{
		level:  l,
		logger: log.New(os.Stderr, "", flags),
	}
}

func output(min Level, prefix, format string, args []interface{}) {
	if std == nil || std.level > min {
		return
	}
	msg := fmt.Sprintf(prefix+format, args...)
	_ = std.logger.Output(3, msg)
}

func Debug(format string, args ...interface{}) {
	output(DebugLevel, "[DEBUG] ", format, args)
}

func Info(format string, args ...interface{}) {
	output(InfoLevel, "[INFO] ", format, args)
}

func Warn(format string, args ...interface{}) {
	output(WarnLevel, "[WARN] ", format, args)
}

func Error(format string, args ...interface{}) {
	output(ErrorLevel, "[ERROR] ", format, args)
}

func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf("[FATAL] "+format, args...)
	if std != nil {
		_ = std.logger.Output(3, msg)
	}
	os.Exit(1)
}
