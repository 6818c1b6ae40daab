// Package logging sets up jarvish's process-wide logger: a file sink named
// jarvish.YYYY-MM-DD.log after the day Init runs, optionally mirrored to
// stderr in verbose mode. The file is rotated by size (50 MB) only; a
// process that runs past midnight keeps writing to the same file.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var std = logrus.New()

// Options configures the process logger.
type Options struct {
	// Dir is the directory under which the dated log file is written.
	Dir string

	// Verbose additionally mirrors logs to stderr.
	Verbose bool
}

// Init installs the process-wide logger. Safe to call once at startup;
// later calls replace the sink.
func Init(opts Options) error {
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
	}

	std = logrus.New()
	std.SetLevel(logrus.DebugLevel)
	std.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	if opts.Dir == "" {
		std.SetOutput(os.Stderr)
		return nil
	}

	fileName := fmt.Sprintf("jarvish.%s.log", time.Now().Format("2006-01-02"))
	rotator := &lumberjack.Logger{
		Filename:  filepath.Join(opts.Dir, fileName),
		MaxSize:   50, // MB
		MaxAge:    14, // days
		LocalTime: true,
	}

	if opts.Verbose {
		std.SetOutput(rotator)
		std.AddHook(&stderrMirrorHook{})
	} else {
		std.SetOutput(rotator)
	}

	return nil
}

// stderrMirrorHook mirrors every log entry to stderr in addition to the
// rotating file sink, used when --verbose is passed.
type stderrMirrorHook struct{}

func (h *stderrMirrorHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *stderrMirrorHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}
	_, err = os.Stderr.WriteString(line)
	return err
}

// DebugX logs a debug-level message tagged with a component name.
func DebugX(component, format string, args ...interface{}) {
	std.WithField("component", component).Debugf(format, args...)
}

// InfoX logs an info-level message tagged with a component name.
func InfoX(component, format string, args ...interface{}) {
	std.WithField("component", component).Infof(format, args...)
}

// WarnX logs a warn-level message tagged with a component name.
func WarnX(component, format string, args ...interface{}) {
	std.WithField("component", component).Warnf(format, args...)
}

// ErrorX logs an error-level message tagged with a component name.
func ErrorX(component, format string, args ...interface{}) {
	std.WithField("component", component).Errorf(format, args...)
}
