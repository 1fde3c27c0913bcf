package common

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// LogOutput receives the lines of all loggers created by CreateLogger.
var LogOutput io.Writer = os.Stdout

// dColLogger writes "LEVEL | name | message" lines. The level can be changed
// while other goroutines log.
type dColLogger struct {
	name  string
	level atomic.Int32
	out   *log.Logger
}

var levelNames = map[logger.LogLevel]string{
	logger.DEBUG:   "DEBUG",
	logger.INFO:    "INFO",
	logger.WARNING: "WARN",
	logger.ERROR:   "ERROR",
}

func (l *dColLogger) SetLevel(level logger.LogLevel) {
	l.level.Store(int32(level))
}

func (l *dColLogger) Debugf(format string, args ...interface{}) {
	l.logf(logger.DEBUG, format, args...)
}

func (l *dColLogger) Infof(format string, args ...interface{}) {
	l.logf(logger.INFO, format, args...)
}

func (l *dColLogger) Warningf(format string, args ...interface{}) {
	l.logf(logger.WARNING, format, args...)
}

func (l *dColLogger) Errorf(format string, args ...interface{}) {
	l.logf(logger.ERROR, format, args...)
}

// Panicf panics regardless of the level, dragonboat relies on it.
func (l *dColLogger) Panicf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.out.Printf("%-5s | %-15s | %s", "PANIC", l.name, message)
	panic(message)
}

func (l *dColLogger) logf(level logger.LogLevel, format string, args ...interface{}) {
	if logger.LogLevel(l.level.Load()) < level {
		return
	}
	l.out.Printf("%-5s | %-15s | %s", levelNames[level], l.name, fmt.Sprintf(format, args...))
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger is the logger.Factory installed by InitLoggers.
func CreateLogger(pkgName string) logger.ILogger {
	l := &dColLogger{
		name: pkgName,
		out:  log.New(LogOutput, "", log.Ldate|log.Ltime),
	}
	l.SetLevel(logger.INFO)
	return l
}

// ParseLogLevel converts debug, info, warn(ing) or error to a logger.LogLevel.
// The empty string is info.
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info", "":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// loggerNames are the Dragonboat loggers followed by the dCol loggers
var loggerNames = []string{
	"raft", "raftdb", "rsm", "transport", "dragonboat", "grpc", "util", "logdb",
	"collection", "cache", "provider", "database", "rpc", "transport/rpc",
}

// InitLoggers installs CreateLogger as dragonboats logger factory and sets
// the level of all known loggers. It must run before the first GetLogger call
// of any package that should use the custom format.
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	logger.SetLoggerFactory(CreateLogger)
	for _, name := range loggerNames {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}
