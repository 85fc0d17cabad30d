package app

import (
	"cryptex/internal/domain"
	"cryptex/internal/log"
	"cryptex/internal/session"
)

// Wire bundles the constructed dependency graph for the CLI.
type Wire struct {
	Log     *log.Backend
	Session *session.Session
}

// NewWire builds the log backend and dials the relay session with the given
// event observer.
func NewWire(cfg Config, events domain.Events) (*Wire, error) {
	backend, err := log.New(cfg.LogFile, cfg.LogLevel, false)
	if err != nil {
		return nil, err
	}

	sess, err := session.Dial(cfg.RelayAddr, domain.Username(cfg.Username), events, backend)
	if err != nil {
		return nil, err
	}

	return &Wire{Log: backend, Session: sess}, nil
}

// Close tears down the session and releases the log backend.
func (w *Wire) Close() {
	w.Session.Close()
	w.Log.Close()
}
