//nolint:gochecknoglobals
package logx

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config - the subset of the application configuration the logger needs.
type Config interface {
	GetServiceName() string
	GetVersion() string
	GetEnvironment() string
	GetLogLevel() string
}

type ServiceContext struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
}

// Logger - logger interface.
type Logger interface {
	// LogInfo logs a message at Info level.
	LogInfo(ctx context.Context, msg string)
	// LogDebug logs a message at Debug level.
	LogDebug(ctx context.Context, msg string)
	// LogWarning logs a message at Warning level.
	LogWarning(ctx context.Context, msg string, errs ...error)
	// LogError logs a message at Error level.
	LogError(ctx context.Context, msg string, errs ...error)
	// LogPanic logs a message at Panic level then panics.
	LogPanic(ctx context.Context, msg string, errs ...error)
	// LogFatal logs a message at Fatal severity. It never terminates the process:
	// a failed MongoDB connection is reported at this level and the caller decides what to do.
	LogFatal(ctx context.Context, msg string, errs ...error)

	GetLogger() interface{}
}

var (
	lock          sync.RWMutex
	logger        Logger
	defaultLogger Logger
	defaultOnce   sync.Once
)

// GetLogger - returns an instance of the Logger.
// If called before SetupLogger a console logger at debug level is returned.
func GetLogger() Logger {
	lock.RLock()
	defer lock.RUnlock()

	if logger == nil {
		defaultOnce.Do(func() {
			zLog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
				With().Timestamp().Logger()
			defaultLogger = &ZeroLogWrapper{zeroLog: &zLog, isLocalEnvironment: true}
		})

		return defaultLogger
	}

	return logger
}

// SetLogger - replaces the global logger (tests and embedding applications).
func SetLogger(l Logger) {
	lock.Lock()
	defer lock.Unlock()
	logger = l
}
