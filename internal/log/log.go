// Package log provides the leveled logging backend, based around the
// go-logging package. Every component obtains a per-module logger from one
// shared backend so output format and level are configured in one place.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/op/go-logging.v1"
)

// Backend is a configured log backend handing out per-module loggers.
type Backend struct {
	inner logging.LeveledBackend
	w     io.WriteCloser
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// New initializes a logging backend. An empty file logs to stdout; disable
// discards everything.
func New(file, level string, disable bool) (*Backend, error) {
	lvl, err := levelFromString(level)
	if err != nil {
		return nil, err
	}

	var w io.WriteCloser
	switch {
	case disable:
		w = nopCloser{io.Discard}
	case file == "":
		w = nopCloser{os.Stdout}
	default:
		w, err = os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("logging: failed to create log file: %w", err)
		}
	}

	format := logging.MustStringFormatter("%{time:15:04:05.000} %{level:.4s} %{module}: %{message}")
	base := logging.NewLogBackend(w, "", 0)
	leveled := logging.AddModuleLevel(logging.NewBackendFormatter(base, format))
	leveled.SetLevel(lvl, "")

	return &Backend{inner: leveled, w: w}, nil
}

// GetLogger returns a per-module logger that writes to the backend.
func (b *Backend) GetLogger(module string) *logging.Logger {
	l := logging.MustGetLogger(module)
	l.SetBackend(b.inner)
	return l
}

// Close releases the underlying log file, if any.
func (b *Backend) Close() error { return b.w.Close() }

func levelFromString(l string) (logging.Level, error) {
	switch strings.ToUpper(l) {
	case "ERROR":
		return logging.ERROR, nil
	case "WARNING":
		return logging.WARNING, nil
	case "NOTICE", "":
		return logging.NOTICE, nil
	case "INFO":
		return logging.INFO, nil
	case "DEBUG":
		return logging.DEBUG, nil
	default:
		return logging.CRITICAL, fmt.Errorf("logging: invalid level: %q", l)
	}
}
