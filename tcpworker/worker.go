// Package tcpworker provides the connection lifecycle engine of the chat
// transport. A Worker plays either the Server role (listen and serve one
// client at a time) or the Client role (connect outward), tracks its
// running and connected state, drives the receive loop and reports what
// happens through a status handler and a message handler.
//
// Received data is not framed: every read of up to ReadBufferSize bytes is
// delivered as one message event, so a single event may hold a fragment of
// a chat message or several messages back to back.
package tcpworker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/cyberinferno/tcpchat/endpoint"
	"github.com/cyberinferno/tcpchat/logger"
)

var (
	// ErrAlreadyDisposed is returned by Start after Close.
	ErrAlreadyDisposed = errors.New("worker has already been disposed")
	// ErrNotImplemented is returned when an Undefined worker is asked to
	// start or send.
	ErrNotImplemented = errors.New("operation is not implemented for the undefined role")
)

// StatusHandler receives human-readable status lines. Handlers run on the
// goroutine that observed the change and must not call Close.
type StatusHandler func(status string)

// MessageHandler receives the text of each read. Handlers run on the
// receive loop goroutine and must not call Close.
type MessageHandler func(message string)

// roleStrategy holds the role-specific part of a session.
type roleStrategy interface {
	// open performs the role-specific setup for a fresh session on the
	// caller's goroutine. Returning an error aborts Start.
	open(w *Worker, s *session) error

	// serve drives the session until it ends. It runs on its own goroutine.
	serve(w *Worker, s *session)

	// peerClosedStatus is reported when the peer closes the stream.
	peerClosedStatus() string
}

// session holds the resources owned by one start-to-stop run.
type session struct {
	id       uint32
	endpoint endpoint.Endpoint
	ctx      context.Context
	cancel   context.CancelFunc
	listener net.Listener
	socket   net.Conn
	stream   *stream
}

// Worker is the connection lifecycle engine. Create it with NewServer,
// NewClient or New, call Start, and make sure Close runs on every exit path.
// It is safe for concurrent use.
type Worker struct {
	role     Role
	strategy roleStrategy
	config   Config
	log      logger.Logger

	mu        sync.RWMutex
	session   *session
	state     State
	endpoint  endpoint.Endpoint
	disposed  bool
	onStatus  StatusHandler
	onMessage MessageHandler
	onStarted func()
	onStopped func()

	wg         sync.WaitGroup
	sessionIDs atomic.Uint32
}

// New creates a Worker for the given role. The worker starts Idle; call
// Start to open a session.
//
// Parameters:
//   - role: Server, Client or Undefined
//   - config: Endpoint and socket settings (e.g. from DefaultConfig)
//   - onStatus: Receives status lines; may be nil
//   - onMessage: Receives the text of each read; may be nil
//
// Returns:
//   - A new *Worker; call Close when done to release resources
func New(role Role, config Config, onStatus StatusHandler, onMessage MessageHandler) *Worker {
	config = config.withDefaults()
	w := &Worker{
		role:      role,
		config:    config,
		log:       config.Logger.With(logger.Field{Key: "role", Value: role.String()}, logger.Field{Key: "addr", Value: config.Address}),
		state:     Idle,
		onStatus:  onStatus,
		onMessage: onMessage,
	}

	switch role {
	case Server:
		w.strategy = serverRole{}
	case Client:
		w.strategy = clientRole{}
	default:
		w.strategy = undefinedRole{}
	}

	w.armNotifiers()
	return w
}

// NewServer creates a Worker in the Server role.
func NewServer(config Config, onStatus StatusHandler, onMessage MessageHandler) *Worker {
	return New(Server, config, onStatus, onMessage)
}

// NewClient creates a Worker in the Client role.
func NewClient(config Config, onStatus StatusHandler, onMessage MessageHandler) *Worker {
	return New(Client, config, onStatus, onMessage)
}

// OnStatus registers the status handler, replacing the previous one.
// Stop detaches all handlers; register again before restarting a stopped
// worker to keep receiving notifications.
func (w *Worker) OnStatus(handler StatusHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onStatus = handler
}

// OnMessage registers the message handler, replacing the previous one.
func (w *Worker) OnMessage(handler MessageHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onMessage = handler
}

// OnStarted registers the handler called once the role-specific setup has
// succeeded. It replaces the default handler, which reports the
// "<Role> started" and "<Role> connected <endpoint>" status lines.
func (w *Worker) OnStarted(handler func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onStarted = handler
}

// OnStopped registers the handler called at the end of a teardown. It
// replaces the default handler, which reports "<Role> stopped".
func (w *Worker) OnStopped(handler func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onStopped = handler
}

// Start opens a new session. The endpoint is parsed first; then the
// role-specific setup runs on the calling goroutine (the server binds, the
// client connects) and the session continues on a background goroutine.
// Canceling ctx stops the session.
//
// Calling Start on a running worker is a no-op. Connection failures of the
// client are reported through the status handler and are not returned.
//
// Returns:
//   - ErrAlreadyDisposed after Close
//   - An error wrapping endpoint.ErrInvalidEndpoint for a malformed address
//   - ErrNotImplemented for the Undefined role
//   - The listen error when the server cannot bind
func (w *Worker) Start(ctx context.Context) error {
	ep, parseErr := endpoint.Parse(w.config.Address)

	w.mu.Lock()
	if w.disposed {
		w.mu.Unlock()
		return ErrAlreadyDisposed
	}

	if w.state.running() {
		w.mu.Unlock()
		return nil
	}

	if parseErr != nil {
		w.mu.Unlock()
		return fmt.Errorf("%s failed to start: %w", w.role, parseErr)
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &session{
		id:       w.sessionIDs.Add(1),
		endpoint: ep,
		ctx:      sctx,
		cancel:   cancel,
	}
	w.session = s
	w.endpoint = ep
	w.state = Starting
	w.armNotifiers()
	w.mu.Unlock()

	w.log.Debug("session starting", logger.Field{Key: "session", Value: s.id})

	if err := w.strategy.open(w, s); err != nil {
		w.stopSession(s)
		return err
	}

	w.mu.Lock()
	if w.session != s {
		w.mu.Unlock()
		return nil
	}

	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		w.strategy.serve(w, s)
	}()

	return nil
}

// Stop tears down the current session: the server's listener is closed,
// then the session is canceled, then the stream and the socket are closed.
// A failing step is reported through the status handler and does not skip
// the following ones. The running and connected flags are cleared before
// the first step, so Start may be called again while Stop is still running.
// Stop then fires the stopped notification and detaches every handler,
// unless a new session was started meanwhile.
//
// Stop never fails and is safe to call any number of times. Without an
// active session it only detaches the handlers.
func (w *Worker) Stop() {
	w.mu.RLock()
	s := w.session
	w.mu.RUnlock()

	if s == nil {
		w.detachHandlers()
		return
	}

	w.stopSession(s)
}

// Close stops the worker, marks it disposed so that Start returns
// ErrAlreadyDisposed, and waits for the session goroutines to exit. It is
// idempotent. Close must not be called from a handler.
func (w *Worker) Close() error {
	w.mu.Lock()
	if w.disposed {
		w.mu.Unlock()
		return nil
	}

	w.disposed = true
	s := w.session
	w.mu.Unlock()

	// A session already ending on its own still runs its stopped handler.
	if s != nil {
		w.stopSession(s)
	}

	w.wg.Wait()
	w.detachHandlers()
	return nil
}

// Wait blocks until the goroutines of the sessions started so far exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// SendMessage writes message as UTF-8 to the attached peer. Without a
// writable stream it does nothing. Write failures are reported through the
// status handler and are not returned. Concurrent calls are not ordered
// against each other.
//
// Returns:
//   - ErrNotImplemented for the Undefined role, nil otherwise
func (w *Worker) SendMessage(message string) error {
	if w.role == Undefined {
		return fmt.Errorf("send message: %w", ErrNotImplemented)
	}

	w.mu.RLock()
	var st *stream
	if w.session != nil {
		st = w.session.stream
	}
	w.mu.RUnlock()

	if st == nil || !st.writable() {
		return nil
	}

	if _, err := st.Write(encodeText(message)); err != nil {
		w.log.Warn("message sending failed", logger.Field{Key: "error", Value: err})
		w.emitStatus(fmt.Sprintf("Message sending error: %v", err))
	}

	return nil
}

// Role returns the role of the worker.
func (w *Worker) Role() Role {
	return w.role
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Running reports whether a session is active.
func (w *Worker) Running() bool {
	return w.State().running()
}

// Connected reports whether a peer is attached and usable.
func (w *Worker) Connected() bool {
	return w.State() == Connected
}

// Addr returns the bound listener address of a running server or the remote
// address of a connected client, or nil.
func (w *Worker) Addr() net.Addr {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.session == nil {
		return nil
	}

	if w.session.listener != nil {
		return w.session.listener.Addr()
	}

	if w.session.socket != nil {
		return w.session.socket.RemoteAddr()
	}

	return nil
}

// receiveLoop reads from the session stream until the session is canceled,
// the peer closes the stream or a read fails. Each read is delivered
// verbatim as one message event.
func (w *Worker) receiveLoop(s *session) {
	w.mu.RLock()
	st := s.stream
	w.mu.RUnlock()

	if st == nil {
		return
	}

	stopInterrupt := context.AfterFunc(s.ctx, st.interrupt)
	defer stopInterrupt()

	buffer := make([]byte, w.config.ReadBufferSize)
	for s.ctx.Err() == nil {
		if !st.readable() {
			break
		}

		n, err := st.Read(buffer)
		if n > 0 {
			w.emitMessage(decodeText(buffer[:n]))
		}

		if err == nil {
			continue
		}

		if s.ctx.Err() != nil {
			break
		}

		if errors.Is(err, io.EOF) {
			w.log.Info("peer closed the connection", logger.Field{Key: "session", Value: s.id})
			w.emitStatus(w.strategy.peerClosedStatus())
			break
		}

		w.log.Warn("connection interrupted", logger.Field{Key: "session", Value: s.id}, logger.Field{Key: "error", Value: err})
		w.emitStatus("Connection interrupted")
		break
	}
}

// attach makes conn the socket and stream of s. It returns false when s is
// no longer the current session.
func (w *Worker) attach(s *session, conn net.Conn) bool {
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.SetNoDelay(w.config.NoDelay); err != nil {
			w.log.Warn("failed to configure socket", logger.Field{Key: "error", Value: err})
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.session != s {
		return false
	}

	s.socket = conn
	s.stream = newStream(conn, w.config.ReadTimeout, w.config.WriteTimeout)
	w.state = Connected
	return true
}

// detach closes the peer attached to s and returns the worker to Waiting.
// It is a no-op when s has been stopped meanwhile.
func (w *Worker) detach(s *session) {
	w.mu.Lock()
	if w.session != s {
		w.mu.Unlock()
		return
	}

	st, socket := s.stream, s.socket
	s.stream, s.socket = nil, nil
	w.state = Waiting
	w.mu.Unlock()

	if st != nil {
		if err := st.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			w.log.Debug("stream close failed", logger.Field{Key: "error", Value: err})
		}
	}

	if socket != nil {
		if err := socket.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			w.log.Debug("socket close failed", logger.Field{Key: "error", Value: err})
		}
	}
}

// stopSession tears down s if it is still the current session.
func (w *Worker) stopSession(s *session) {
	w.mu.Lock()
	if w.session != s {
		w.mu.Unlock()
		return
	}

	w.session = nil
	w.state = Stopped
	listener, st, socket := s.listener, s.stream, s.socket
	s.listener, s.stream, s.socket = nil, nil, nil
	w.mu.Unlock()

	if listener != nil {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			w.log.Warn("listener close failed", logger.Field{Key: "error", Value: err})
			w.emitStatus(fmt.Sprintf("Listener closing error: %v", err))
		}
	}

	s.cancel()

	if st != nil {
		if err := st.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			w.log.Warn("stream close failed", logger.Field{Key: "error", Value: err})
			w.emitStatus(fmt.Sprintf("Network stream closing error: %v", err))
		}
	}

	if socket != nil {
		if err := socket.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			w.log.Warn("socket close failed", logger.Field{Key: "error", Value: err})
			w.emitStatus(fmt.Sprintf("Client closing error: %v", err))
		}
	}

	w.log.Info("session stopped", logger.Field{Key: "session", Value: s.id})

	// Handlers registered for a session started during this teardown
	// belong to that session.
	w.mu.RLock()
	var onStopped func()
	if w.latest(s) {
		onStopped = w.onStopped
	}
	w.mu.RUnlock()

	if onStopped != nil {
		onStopped()
	}

	w.mu.Lock()
	if w.latest(s) {
		w.clearHandlers()
	}
	w.mu.Unlock()
}

// latest reports whether no session has been started after s. Caller must
// hold w.mu.
func (w *Worker) latest(s *session) bool {
	return w.session == nil && w.sessionIDs.Load() == s.id
}

// armNotifiers installs the default started and stopped handlers in empty
// slots. Caller must hold w.mu or own w exclusively.
func (w *Worker) armNotifiers() {
	if w.onStarted == nil {
		w.onStarted = w.announceStarted
	}

	if w.onStopped == nil {
		w.onStopped = w.announceStopped
	}
}

func (w *Worker) announceStarted() {
	if w.role == Undefined {
		return
	}

	w.mu.RLock()
	state, ep := w.state, w.endpoint
	w.mu.RUnlock()

	if state.running() {
		w.emitStatus(fmt.Sprintf("%s started", w.role))
	}

	if state == Connected {
		w.emitStatus(fmt.Sprintf("%s connected %s", w.role, ep))
	}
}

func (w *Worker) announceStopped() {
	if w.role == Undefined {
		return
	}

	w.emitStatus(fmt.Sprintf("%s stopped", w.role))
}

func (w *Worker) detachHandlers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clearHandlers()
}

// clearHandlers empties every handler slot. Caller must hold w.mu.
func (w *Worker) clearHandlers() {
	w.onStatus = nil
	w.onMessage = nil
	w.onStarted = nil
	w.onStopped = nil
}

func (w *Worker) emitStarted() {
	w.mu.RLock()
	handler := w.onStarted
	w.mu.RUnlock()

	if handler != nil {
		handler()
	}
}

func (w *Worker) emitStatus(status string) {
	w.mu.RLock()
	handler := w.onStatus
	w.mu.RUnlock()

	if handler != nil {
		handler(status)
	}
}

func (w *Worker) emitMessage(message string) {
	w.mu.RLock()
	handler := w.onMessage
	w.mu.RUnlock()

	if handler != nil {
		handler(message)
	}
}
