package tcpworker

import (
	"fmt"
	"net"

	"github.com/cyberinferno/tcpchat/logger"
)

// clientRole connects to the endpoint and reads from it until the session
// ends. Losing the server stops the worker.
type clientRole struct{}

func (clientRole) open(w *Worker, s *session) error {
	dialer := net.Dialer{
		Timeout: w.config.ConnectionTimeout,
	}

	conn, err := dialer.DialContext(s.ctx, "tcp", s.endpoint.String())
	if err != nil {
		w.log.Warn("client failed to connect", logger.Field{Key: "session", Value: s.id}, logger.Field{Key: "error", Value: err})
		w.emitStatus(fmt.Sprintf("Connection error: %v", err))
		w.stopSession(s)
		return nil
	}

	if !w.attach(s, conn) {
		_ = conn.Close()
		return nil
	}

	w.log.Info("client connected", logger.Field{Key: "session", Value: s.id}, logger.Field{Key: "remote", Value: conn.RemoteAddr().String()})
	w.emitStarted()
	return nil
}

func (clientRole) serve(w *Worker, s *session) {
	defer w.stopSession(s)
	w.receiveLoop(s)
}

func (clientRole) peerClosedStatus() string {
	return "The server has disconnected the connection"
}

// undefinedRole backs workers created without a concrete role.
type undefinedRole struct{}

func (undefinedRole) open(*Worker, *session) error {
	return fmt.Errorf("start: %w", ErrNotImplemented)
}

func (undefinedRole) serve(*Worker, *session) {}

func (undefinedRole) peerClosedStatus() string {
	return "The peer has disconnected"
}
