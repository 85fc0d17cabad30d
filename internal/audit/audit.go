// Package audit implements the structured security-event sink: a file-backed
// log of authentications, key exchanges and message routing decisions kept
// separate from the operational log for forensic review.
package audit

import (
	"gopkg.in/op/go-logging.v1"

	"cryptex/internal/domain"
	"cryptex/internal/log"
)

// Log writes the audit event vocabulary through a dedicated logger module.
type Log struct {
	log *logging.Logger
}

// New builds an auditor writing to its own backend, typically bound to the
// audit file from the relay config.
func New(backend *log.Backend) *Log {
	return &Log{log: backend.GetLogger("audit")}
}

var _ domain.Auditor = (*Log)(nil)

func (a *Log) AuthSuccess(identity domain.Username, address string) {
	a.log.Infof("AUTH_SUCCESS | User: %s | Addr: %s", identity, address)
}

func (a *Log) AuthFailure(identity domain.Username, address, reason string) {
	a.log.Warningf("AUTH_FAILED | User: %s | Addr: %s | Reason: %s", identity, address, reason)
}

func (a *Log) KeyExchange(from, to domain.Username) {
	a.log.Infof("KEY_EXCHANGE | %s -> %s", from, to)
}

func (a *Log) MessageRouted(sender, recipient domain.Username) {
	a.log.Infof("MESSAGE_SENT | From: %s | To: %s | Encrypted: yes", sender, recipient)
}

func (a *Log) Suspicious(identity domain.Username, activity string) {
	a.log.Critical("SUSPICIOUS_ACTIVITY | User: %s | Activity: %s", identity, activity)
}
