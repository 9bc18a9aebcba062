package console

import (
	"os"

	"github.com/charmbracelet/log"
)

// ConsoleLogger writes structured logs to stderr via charmbracelet/log.
type ConsoleLogger struct {
	logger *log.Logger
}

// Params configures a ConsoleLogger.
type Params struct {
	Debug bool
}

// New creates a console logger that writes to stderr.
func New(params Params) *ConsoleLogger {
	level := log.InfoLevel
	if params.Debug {
		level = log.DebugLevel
	}
	return &ConsoleLogger{
		logger: log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			Level:           level,
		}),
	}
}

// Debug writes a message at DEBUG level.
func (c *ConsoleLogger) Debug(message string, keyvals ...any) {
	c.logger.Debug(message, keyvals...)
}

// Info writes a message at INFO level.
func (c *ConsoleLogger) Info(message string, keyvals ...any) {
	c.logger.Info(message, keyvals...)
}

// Warn writes a message at WARN level.
func (c *ConsoleLogger) Warn(message string, keyvals ...any) {
	c.logger.Warn(message, keyvals...)
}

// Error writes a message at ERROR level.
func (c *ConsoleLogger) Error(message string, keyvals ...any) {
	c.logger.Error(message, keyvals...)
}

// Fatal writes a message at FATAL level and terminates the program.
func (c *ConsoleLogger) Fatal(message string, keyvals ...any) {
	c.logger.Fatal(message, keyvals...)
}
