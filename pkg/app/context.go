package app

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chenyuwen/myf2fs/internal/device"
)

// Context holds application-wide configuration and state
type Context struct {
	context.Context

	// Output preferences
	OutputFormat string
	Verbose      bool
	Quiet        bool

	// Out receives formatted results; os.Stdout when nil
	Out io.Writer

	// Config is the effective image configuration
	Config *device.Config

	// Metrics collects block device statistics when enabled
	Metrics *device.Metrics

	// Logger receives diagnostics
	Logger *logrus.Entry

	// Common timeouts
	DefaultTimeout time.Duration

	// Progress reporting
	ProgressCallback func(message string, percent int)
}

// NewContext creates a new application context
func NewContext() *Context {
	return &Context{
		Context:        context.Background(),
		Config:         device.DefaultConfig(),
		Logger:         logrus.NewEntry(logrus.StandardLogger()),
		DefaultTimeout: 30 * time.Second,
	}
}

// WithTimeout creates a context with timeout
func (c *Context) WithTimeout(timeout time.Duration) (*Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(c.Context, timeout)
	newCtx := *c
	newCtx.Context = ctx
	return &newCtx, cancel
}

// WithCancel creates a cancellable context
func (c *Context) WithCancel() (*Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(c.Context)
	newCtx := *c
	newCtx.Context = ctx
	return &newCtx, cancel
}

// SetProgress sets the progress callback function
func (c *Context) SetProgress(callback func(string, int)) {
	c.ProgressCallback = callback
}

// Progress reports progress if callback is set
func (c *Context) Progress(message string, percent int) {
	if c.ProgressCallback != nil {
		c.ProgressCallback(message, percent)
	}
}

// Writer returns where results are written
func (c *Context) Writer() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// Log outputs a message at debug level
func (c *Context) Log(message string) {
	c.logger().Debug(message)
}

// Error outputs an error message unless quiet
func (c *Context) Error(message string) {
	if !c.Quiet {
		c.logger().Error(message)
	}
}

func (c *Context) logger() *logrus.Entry {
	if c.Logger == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return c.Logger
}

// ConfigureLogger sets the level of the context's logger from the verbosity
// flags, falling back to the configured log level
func (c *Context) ConfigureLogger() error {
	level := logrus.WarnLevel
	switch {
	case c.Verbose:
		level = logrus.DebugLevel
	case c.Quiet:
		level = logrus.ErrorLevel
	case c.Config != nil && c.Config.LogLevel != "":
		parsed, err := logrus.ParseLevel(c.Config.LogLevel)
		if err != nil {
			return NewError(ErrCodeInvalidInput, "invalid log level", err)
		}
		level = parsed
	}
	c.logger().Logger.SetLevel(level)
	return nil
}
