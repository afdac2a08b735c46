package tcpworker

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/cyberinferno/tcpchat/logger"
)

// serverRole listens on the endpoint and serves accepted connections one at
// a time: the next Accept happens only after the previous receive loop has
// exited. Losing a client returns the worker to Waiting.
type serverRole struct{}

func (serverRole) open(w *Worker, s *session) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(s.ctx, "tcp", s.endpoint.String())
	if err != nil {
		w.log.Error("server failed to start", logger.Field{Key: "session", Value: s.id}, logger.Field{Key: "error", Value: err})
		return fmt.Errorf("server failed to start: %w", err)
	}

	w.mu.Lock()
	if w.session != s {
		w.mu.Unlock()
		_ = ln.Close()
		return nil
	}

	s.listener = ln
	w.state = Waiting
	w.mu.Unlock()

	w.log.Info("server started", logger.Field{Key: "session", Value: s.id}, logger.Field{Key: "listen", Value: ln.Addr().String()})
	w.emitStarted()
	return nil
}

func (serverRole) serve(w *Worker, s *session) {
	defer w.stopSession(s)

	w.mu.RLock()
	ln := s.listener
	w.mu.RUnlock()

	if ln == nil {
		return
	}

	stopAccept := context.AfterFunc(s.ctx, func() {
		_ = ln.Close()
	})
	defer stopAccept()

	for s.ctx.Err() == nil {
		w.emitStatus("Waiting for client connection ...")

		conn, err := ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				w.log.Debug("accept loop stopped", logger.Field{Key: "session", Value: s.id})
				return
			}

			w.log.Error("server accept error", logger.Field{Key: "session", Value: s.id}, logger.Field{Key: "error", Value: err})
			w.emitStatus(fmt.Sprintf("Server error: %v", err))
			return
		}

		if !w.attach(s, conn) {
			_ = conn.Close()
			return
		}

		remote := conn.RemoteAddr().String()
		w.log.Info("client connected", logger.Field{Key: "session", Value: s.id}, logger.Field{Key: "remote", Value: remote})
		w.emitStatus(fmt.Sprintf("The client has connected %s", remote))

		w.receiveLoop(s)
		w.detach(s)

		w.log.Info("client session ended", logger.Field{Key: "session", Value: s.id}, logger.Field{Key: "remote", Value: remote})
	}
}

func (serverRole) peerClosedStatus() string {
	return "The client has disconnected"
}
