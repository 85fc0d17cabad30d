package domain

// Events is the observer interface the core pushes onto. Implementations
// receive values from the session's receive loop and must not block it;
// marshalling onto a rendering context is the consumer's problem.
type Events interface {
	// OnMessage delivers a decrypted plaintext from sender.
	OnMessage(sender Username, plaintext []byte)
	// OnDirectoryChanged delivers the current set of online identities.
	OnDirectoryChanged(identities []Username)
	// OnConnectionState reports connect/disconnect transitions.
	OnConnectionState(connected bool, reason string)
	// OnError reports a non-fatal, user-visible failure such as a message
	// that could not be decrypted.
	OnError(msg string)
}

// Auditor is the structured security-event sink consumed by the audit-log
// collaborator.
type Auditor interface {
	AuthSuccess(identity Username, address string)
	AuthFailure(identity Username, address, reason string)
	KeyExchange(a, b Username)
	MessageRouted(sender, recipient Username)
	Suspicious(identity Username, activity string)
}

// NopEvents discards every event.
type NopEvents struct{}

func (NopEvents) OnMessage(Username, []byte)     {}
func (NopEvents) OnDirectoryChanged([]Username)  {}
func (NopEvents) OnConnectionState(bool, string) {}
func (NopEvents) OnError(string)                 {}

var _ Events = NopEvents{}

// NopAuditor discards every audit event.
type NopAuditor struct{}

func (NopAuditor) AuthSuccess(Username, string)         {}
func (NopAuditor) AuthFailure(Username, string, string) {}
func (NopAuditor) KeyExchange(Username, Username)       {}
func (NopAuditor) MessageRouted(Username, Username)     {}
func (NopAuditor) Suspicious(Username, string)          {}

var _ Auditor = NopAuditor{}
