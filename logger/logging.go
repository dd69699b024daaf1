// Package logger manages the configuration of logging for hosts
// embedding the supervisor. The library itself only ever writes through
// the logrus standard logger; hosts that want different levels, formats,
// or outputs configure them here.
package logger

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/client9/reopen"
	"github.com/sirupsen/logrus"
)

// Config configures the log level, format, and output destination.
type Config struct {
	Level  string
	Format string
	Output string
}

// DefaultConfig is what you get without calling Init: INFO-level JSON
// logs on stderr, which suits a library running inside another service.
func DefaultConfig() *Config {
	return &Config{
		Level:  "INFO",
		Format: "json",
		Output: "stderr",
	}
}

// Init applies the Config to the logrus standard logger, filling unset
// fields from DefaultConfig. An Output other than stdout/stderr names a
// log file, which is reopened on SIGUSR1 so external log rotation works.
func (l *Config) Init() error {
	defaults := DefaultConfig()
	if l.Level == "" {
		l.Level = defaults.Level
	}
	if l.Format == "" {
		l.Format = defaults.Format
	}
	if l.Output == "" {
		l.Output = defaults.Output
	}

	level, err := logrus.ParseLevel(strings.ToLower(l.Level))
	if err != nil {
		return fmt.Errorf("unknown log level '%s': %s", l.Level, err)
	}

	var formatter logrus.Formatter
	switch strings.ToLower(l.Format) {
	case "text":
		formatter = &logrus.TextFormatter{}
	case "json":
		formatter = &logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano}
	default:
		return fmt.Errorf("unknown log format '%s'", l.Format)
	}

	var output io.Writer
	switch strings.ToLower(l.Output) {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := reopen.NewFileWriter(l.Output)
		if err != nil {
			return fmt.Errorf("error initializing log file '%s': %s", l.Output, err)
		}
		reopenOnSignal(f)
		output = f
	}

	logrus.SetLevel(level)
	logrus.SetFormatter(formatter)
	logrus.SetOutput(output)
	return nil
}

func reopenOnSignal(f *reopen.FileWriter) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)
	go func() {
		for {
			<-sig
			f.Reopen()
		}
	}()
}
