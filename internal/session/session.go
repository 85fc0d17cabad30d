package session

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"

	"gopkg.in/op/go-logging.v1"

	"cryptex/internal/crypto"
	"cryptex/internal/domain"
	"cryptex/internal/log"
	"cryptex/internal/protocol/seal"
	"cryptex/internal/protocol/wire"
)

// State is the client session lifecycle. A session that reaches Closed is
// terminal; reconnection means a new session with a fresh key pair.
type State int

const (
	Disconnected State = iota
	Authenticating
	Authenticated
	Active
	Closed
)

// Session holds one connection, one identity and the local cache of peer
// public keys. The receive loop and the send path run independently; shared
// state is guarded by the session mutex.
type Session struct {
	username domain.Username
	events   domain.Events
	log      *logging.Logger

	conn   net.Conn
	reader *wire.Reader
	keys   *crypto.KeyPair

	mu       sync.Mutex
	state    State
	peerKeys map[domain.Username]*rsa.PublicKey

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial connects to the relay, generates a fresh key pair, authenticates and
// starts the receive loop. It blocks until the relay's explicit success or
// rejection reply.
func Dial(addr string, username domain.Username, events domain.Events, backend *log.Backend) (*Session, error) {
	if err := username.Validate(); err != nil {
		return nil, err
	}
	if events == nil {
		events = domain.NopEvents{}
	}

	keys, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		events.OnConnectionState(false, err.Error())
		return nil, fmt.Errorf("session: dial %s: %w", addr, err)
	}

	s := &Session{
		username: username,
		events:   events,
		log:      backend.GetLogger("session"),
		conn:     conn,
		reader:   wire.NewReader(conn, 0),
		keys:     keys,
		state:    Authenticating,
		peerKeys: make(map[domain.Username]*rsa.PublicKey),
	}

	if err := s.authenticate(); err != nil {
		conn.Close()
		s.setState(Closed)
		events.OnConnectionState(false, err.Error())
		return nil, err
	}

	s.setState(Active)
	events.OnConnectionState(true, "connected")
	go s.receiveLoop()
	return s, nil
}

func (s *Session) authenticate() error {
	auth := wire.New(wire.TypeAuth, s.username.String(), crypto.ExportPublic(s.keys.Public))
	if err := s.write(auth.Encode()); err != nil {
		return fmt.Errorf("session: auth send: %w", err)
	}

	// The reply is a bare delimiter-terminated line, not an envelope.
	reply, err := s.reader.Next()
	if err != nil {
		return fmt.Errorf("session: auth reply: %w", err)
	}
	line := string(reply)
	if line != wire.AuthOK {
		return fmt.Errorf("session: rejected: %s", strings.TrimPrefix(line, wire.AuthErrPrefix))
	}
	s.setState(Authenticated)
	return nil
}

// Username returns the session's authenticated identity.
func (s *Session) Username() domain.Username { return s.username }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Peers returns the identities whose public keys are cached.
func (s *Session) Peers() []domain.Username {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Username, 0, len(s.peerKeys))
	for name := range s.peerKeys {
		out = append(out, name)
	}
	return out
}

// Send encrypts plaintext and hands the envelope to the relay. The
// recipient domain.Broadcast fans out to every peer with a cached key. It
// fails fast when the session is not Active.
func (s *Session) Send(recipient domain.Username, plaintext []byte) error {
	s.mu.Lock()
	if s.state != Active {
		s.mu.Unlock()
		return domain.ErrNotConnected
	}
	recipients := make(map[domain.Username]*rsa.PublicKey)
	if recipient == domain.Broadcast {
		for name, pub := range s.peerKeys {
			recipients[name] = pub
		}
	} else if pub, ok := s.peerKeys[recipient]; ok {
		recipients[recipient] = pub
	}
	s.mu.Unlock()

	if len(recipients) == 0 {
		return domain.ErrNoKeyForPeer
	}

	payload, err := seal.Seal(plaintext, s.keys, recipients)
	if err != nil {
		return err
	}

	var env wire.Envelope
	if recipient == domain.Broadcast {
		env = wire.New(wire.TypeBroadcast, payload)
	} else {
		env = wire.New(wire.TypeMessage, recipient.String(), payload)
	}
	return s.write(env.Encode())
}

// Close sends DISCONNECT and tears the connection down. The receive loop
// observes end-of-stream and exits without touching the session mutex.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.State() == Active {
			s.write(wire.New(wire.TypeDisconnect).Encode())
		}
		s.setState(Closed)
		s.conn.Close()
	})
	return nil
}

func (s *Session) write(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.conn.Write(frame)
	return err
}

// receiveLoop processes server pushes until the transport fails. A crypto
// failure drops that one message and surfaces a notice; it never terminates
// the loop.
func (s *Session) receiveLoop() {
	for {
		env, err := s.reader.NextEnvelope()
		if err != nil {
			switch err {
			case domain.ErrUnknownType, domain.ErrBadFieldCount:
				s.log.Warningf("dropped malformed envelope: %v", err)
				continue
			default:
				s.setState(Closed)
				s.events.OnConnectionState(false, "disconnected")
				return
			}
		}

		switch env.Type {
		case wire.TypeUserList:
			s.handleUserList(env)
		case wire.TypeKeyExchange:
			s.handleKeyExchange(env)
		case wire.TypeMessage, wire.TypeBroadcast:
			s.handleCiphertext(env)
		case wire.TypeDisconnect:
			s.setState(Closed)
			s.conn.Close()
			s.events.OnConnectionState(false, "server closed session")
			return
		}
	}
}

func (s *Session) handleUserList(env wire.Envelope) {
	if len(env.Fields) != 1 {
		return
	}
	var names []string
	if err := json.Unmarshal([]byte(env.Fields[0]), &names); err != nil {
		s.log.Warningf("bad user list: %v", err)
		return
	}
	identities := make([]domain.Username, len(names))
	for i, n := range names {
		identities[i] = domain.Username(n)
	}
	s.events.OnDirectoryChanged(identities)
}

func (s *Session) handleKeyExchange(env wire.Envelope) {
	if len(env.Fields) != 2 {
		return
	}
	peer := domain.Username(env.Fields[0])
	pub, err := crypto.ImportPublic(env.Fields[1])
	if err != nil {
		s.events.OnError(fmt.Sprintf("rejected malformed public key for %s", peer))
		return
	}
	s.mu.Lock()
	s.peerKeys[peer] = pub
	s.mu.Unlock()
	s.log.Debugf("cached public key for %q", peer)
}

func (s *Session) handleCiphertext(env wire.Envelope) {
	if len(env.Fields) != 2 {
		return
	}
	sender := domain.Username(env.Fields[0])

	s.mu.Lock()
	senderPub := s.peerKeys[sender]
	s.mu.Unlock()

	plaintext, err := seal.Open(env.Fields[1], s.username, s.keys.Private, senderPub)
	if err != nil {
		s.events.OnError(fmt.Sprintf("could not decrypt message from %s", sender))
		return
	}
	s.events.OnMessage(sender, plaintext)
}
