package relay

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/op/go-logging.v1"

	"cryptex/internal/crypto"
	"cryptex/internal/domain"
	"cryptex/internal/log"
	"cryptex/internal/protocol/wire"
)

const (
	keepAliveInterval = 3 * time.Minute
	// authTimeout bounds how long an accepted connection may sit without
	// completing authentication.
	authTimeout = 5 * time.Minute
)

// Server is the relay: it authenticates connections, maintains the session
// directory and forwards opaque encrypted payloads. It never decrypts them.
type Server struct {
	cfg     *Config
	log     *logging.Logger
	auditor domain.Auditor
	dir     *Directory

	ln        net.Listener
	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
}

// New constructs a server from cfg. The auditor may be domain.NopAuditor.
func New(cfg *Config, backend *log.Backend, auditor domain.Auditor) *Server {
	return &Server{
		cfg:     cfg,
		log:     backend.GetLogger("relay"),
		auditor: auditor,
		dir:     NewDirectory(),
		closeCh: make(chan struct{}),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Directory exposes the live session directory.
func (s *Server) Directory() *Directory { return s.dir }

// Addr returns the bound listen address, valid after Start.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Start binds the listen address and launches the accept loop. A bind
// failure is fatal to the process.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("relay: bind %s: %w", s.cfg.Addr, err)
	}
	s.ln = ln

	if s.cfg.Metrics.Enable {
		serveMetrics(s.cfg.Metrics.Addr)
	}

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Halt closes the listener and every connection, then waits for all
// connection handlers to return.
func (s *Server) Halt() {
	s.closeOnce.Do(func() {
		close(s.closeCh)
		if s.ln != nil {
			s.ln.Close()
		}
	})
	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	s.log.Noticef("Listening on: %v", s.ln.Addr())
	defer s.log.Noticef("Stopped listening on: %v", s.ln.Addr())

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
			}
			if e, ok := err.(net.Error); ok && e.Timeout() {
				continue
			}
			s.log.Errorf("accept failure: %v", err)
			return
		}
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			tcpConn.SetKeepAlive(true)
			tcpConn.SetKeepAlivePeriod(keepAliveInterval)
		}
		s.connsMu.Lock()
		s.conns[conn] = struct{}{}
		s.connsMu.Unlock()
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// handleConn owns one client connection: authentication, registration
// fan-out, then the pure forwarding phase until EOF or DISCONNECT.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.connsMu.Lock()
		delete(s.conns, conn)
		s.connsMu.Unlock()
	}()

	connID := uuid.NewString()[:8]
	addr := conn.RemoteAddr().String()
	s.log.Debugf("conn %s: accepted from %v", connID, addr)

	reader := wire.NewReader(conn, s.cfg.MaxFrameBytes)

	conn.SetReadDeadline(time.Now().Add(authTimeout))
	entry, err := s.authenticate(connID, conn, reader, addr)
	if err != nil {
		s.log.Infof("conn %s: rejected: %v", connID, err)
		return
	}
	conn.SetReadDeadline(time.Time{})
	identity := entry.Identity
	connectedSessions.Inc()

	defer func() {
		s.dir.Remove(identity)
		connectedSessions.Dec()
		s.log.Infof("conn %s: user %q disconnected", connID, identity)
		s.broadcastUserList()
	}()

	// Registration fan-out: membership to everyone, keys both ways.
	s.broadcastUserList()
	s.sendExistingKeys(entry)
	s.announceKey(entry)

	for {
		env, err := reader.NextEnvelope()
		if err != nil {
			switch err {
			case domain.ErrUnknownType, domain.ErrBadFieldCount:
				envelopesDropped.Inc()
				s.log.Warningf("conn %s: dropped malformed envelope: %v", connID, err)
				continue
			case domain.ErrFrameTooLarge:
				s.auditor.Suspicious(identity, "oversized frame")
				return
			default:
				return
			}
		}

		switch env.Type {
		case wire.TypeMessage:
			if len(env.Fields) != 2 {
				envelopesDropped.Inc()
				continue
			}
			s.unicast(identity, domain.Username(env.Fields[0]), env.Fields[1])
		case wire.TypeBroadcast:
			if len(env.Fields) != 1 {
				envelopesDropped.Inc()
				continue
			}
			s.broadcast(identity, env.Fields[0])
		case wire.TypeDisconnect:
			return
		case wire.TypeAuth:
			// A second AUTH on a registered connection is hostile.
			s.auditor.Suspicious(identity, "AUTH after registration")
			envelopesDropped.Inc()
		default:
			envelopesDropped.Inc()
		}
	}
}

// authenticate runs the registration state machine: the first envelope must
// be a well-formed AUTH, the identity valid, unique and its key parseable.
// The rejection reason is written before the transport is closed.
func (s *Server) authenticate(connID string, conn net.Conn, reader *wire.Reader, addr string) (*Entry, error) {
	env, err := reader.NextEnvelope()
	if err != nil || env.Type != wire.TypeAuth || len(env.Fields) != 2 {
		s.auditor.AuthFailure("UNKNOWN", addr, "invalid authentication format")
		authFailures.Inc()
		s.reject(conn, "Invalid authentication")
		if err == nil {
			err = fmt.Errorf("malformed AUTH envelope")
		}
		return nil, err
	}

	identity := domain.Username(env.Fields[0])
	pemText := env.Fields[1]

	if verr := identity.Validate(); verr != nil {
		s.auditor.AuthFailure(identity, addr, verr.Error())
		authFailures.Inc()
		s.reject(conn, "Invalid username")
		return nil, verr
	}

	pub, err := crypto.ImportPublic(pemText)
	if err != nil {
		s.auditor.AuthFailure(identity, addr, "malformed public key")
		authFailures.Inc()
		s.reject(conn, "Malformed public key")
		return nil, err
	}

	entry := &Entry{
		Identity:     identity,
		Conn:         conn,
		PublicKey:    pub,
		PublicKeyPEM: pemText,
		RemoteAddr:   addr,
	}
	// The entry is visible to fan-outs as soon as it is registered. Holding
	// the write lock until the ack is out keeps SUCCESS the first frame the
	// client ever reads, ahead of any concurrent USER_LIST or KEY_EXCHANGE.
	entry.writeMu.Lock()
	if err := s.dir.TryRegister(entry); err != nil {
		entry.writeMu.Unlock()
		s.auditor.AuthFailure(identity, addr, "username already taken")
		authFailures.Inc()
		s.reject(conn, fmt.Sprintf("Username %q already taken", identity))
		return nil, err
	}
	_, err = conn.Write([]byte(wire.AuthOK + wire.Delimiter))
	entry.writeMu.Unlock()
	if err != nil {
		s.dir.Remove(identity)
		return nil, err
	}

	s.log.Infof("conn %s: user %q authenticated from %s", connID, identity, addr)
	s.auditor.AuthSuccess(identity, addr)
	return entry, nil
}

// reject delivers the reason and then closes; the deferred close in
// handleConn must not race this write, so the write completes first.
func (s *Server) reject(conn net.Conn, reason string) {
	conn.Write([]byte(wire.AuthErrPrefix + reason + wire.Delimiter))
}

// unicast forwards a MESSAGE payload to the named recipient only. An absent
// recipient drops the envelope silently.
func (s *Server) unicast(sender, recipient domain.Username, payload string) {
	target, ok := s.dir.Lookup(recipient)
	if !ok {
		envelopesDropped.Inc()
		s.log.Debugf("message %s -> %s dropped: recipient offline", sender, recipient)
		return
	}
	env := wire.New(wire.TypeMessage, sender.String(), payload)
	if err := target.send(env.Encode()); err != nil {
		s.evict(target)
		return
	}
	envelopesRouted.WithLabelValues(string(wire.TypeMessage)).Inc()
	s.auditor.MessageRouted(sender, recipient)
}

// broadcast fans a payload out to every registered session except the
// sender. A failed send evicts that one target and the fan-out continues.
func (s *Server) broadcast(sender domain.Username, payload string) {
	env := wire.New(wire.TypeBroadcast, sender.String(), payload)
	frame := env.Encode()
	for _, e := range s.dir.Snapshot() {
		if e.Identity == sender {
			continue
		}
		if err := e.send(frame); err != nil {
			s.log.Warningf("broadcast to %q failed: %v", e.Identity, err)
			s.evict(e)
		}
	}
	envelopesRouted.WithLabelValues(string(wire.TypeBroadcast)).Inc()
	s.auditor.MessageRouted(sender, domain.Broadcast)
}

// broadcastUserList pushes the current membership to every session.
func (s *Server) broadcastUserList() {
	identities := s.dir.Identities()
	names := make([]string, len(identities))
	for i, id := range identities {
		names[i] = id.String()
	}
	body, err := json.Marshal(names)
	if err != nil {
		return
	}
	frame := wire.New(wire.TypeUserList, string(body)).Encode()
	for _, e := range s.dir.Snapshot() {
		if err := e.send(frame); err != nil {
			s.evict(e)
		}
	}
}

// sendExistingKeys delivers every other session's public key to a newcomer,
// one KEY_EXCHANGE envelope per peer.
func (s *Server) sendExistingKeys(newcomer *Entry) {
	for _, peer := range s.dir.PublicKeysExcluding(newcomer.Identity) {
		env := wire.New(wire.TypeKeyExchange, peer.Identity.String(), peer.PublicKeyPEM)
		if err := newcomer.send(env.Encode()); err != nil {
			s.evict(newcomer)
			return
		}
		s.auditor.KeyExchange(peer.Identity, newcomer.Identity)
	}
}

// announceKey delivers the newcomer's public key to every other session.
func (s *Server) announceKey(newcomer *Entry) {
	env := wire.New(wire.TypeKeyExchange, newcomer.Identity.String(), newcomer.PublicKeyPEM)
	frame := env.Encode()
	for _, peer := range s.dir.PublicKeysExcluding(newcomer.Identity) {
		if err := peer.send(frame); err != nil {
			s.evict(peer)
			continue
		}
		s.auditor.KeyExchange(newcomer.Identity, peer.Identity)
	}
}

// evict removes a peer whose transport failed and closes it; the peer's own
// handler observes the close and runs the usual disconnect path.
func (s *Server) evict(e *Entry) {
	s.dir.Remove(e.Identity)
	e.Conn.Close()
}

// send serialises writes per connection so concurrent fan-outs cannot
// interleave partial frames.
func (e *Entry) send(frame []byte) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	_, err := e.Conn.Write(frame)
	return err
}
