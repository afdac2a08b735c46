// Package chat is the consuming layer of the chat transport. A Controller
// switches between the server and client roles, turns typed input into
// encoded chat messages, decodes what the peer sends and keeps the
// resulting display lines in a transcript.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cyberinferno/tcpchat/chatmessage"
	"github.com/cyberinferno/tcpchat/logger"
	"github.com/cyberinferno/tcpchat/tcpworker"
	"github.com/cyberinferno/tcpchat/transcript"
)

// DefaultAddress is the endpoint used when Config.Address is empty.
const DefaultAddress = "127.0.0.1:12345"

// Config holds configuration for a Controller.
type Config struct {
	// Address is the "ip:port" endpoint used by both roles.
	Address string
	// Worker is the template for worker settings; its Address and Logger
	// are overridden by the controller. Zero value means tcpworker defaults.
	Worker *tcpworker.Config
	// Transcript stores the display lines. Nil creates one without retention.
	Transcript *transcript.Transcript
	// Logger receives controller and worker log entries. Nil means no logging.
	Logger logger.Logger
}

// Controller drives one worker at a time on behalf of a front end.
type Controller struct {
	cfg        Config
	log        logger.Logger
	transcript *transcript.Transcript

	mu     sync.Mutex
	role   tcpworker.Role
	worker *tcpworker.Worker
	onLine func(line string)
}

// NewController creates a Controller with no active worker.
func NewController(cfg Config) *Controller {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}

	if cfg.Transcript == nil {
		cfg.Transcript = transcript.New(0, 0)
	}

	return &Controller{
		cfg:        cfg,
		log:        cfg.Logger.With(logger.Field{Key: "component", Value: "chat"}),
		transcript: cfg.Transcript,
		role:       tcpworker.Undefined,
	}
}

// OnLine registers a sink that receives every line added to the
// transcript, in order. Pass nil to remove it.
func (c *Controller) OnLine(fn func(line string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLine = fn
}

// StartServer replaces the current worker with a server on the configured
// endpoint. Errors are also added to the transcript.
func (c *Controller) StartServer(ctx context.Context) error {
	return c.start(ctx, tcpworker.Server)
}

// StartClient replaces the current worker with a client connected to the
// configured endpoint. Errors are also added to the transcript.
func (c *Controller) StartClient(ctx context.Context) error {
	return c.start(ctx, tcpworker.Client)
}

func (c *Controller) start(ctx context.Context, role tcpworker.Role) error {
	c.Clear()
	c.Stop()

	wcfg := tcpworker.DefaultConfig(c.cfg.Address)
	if c.cfg.Worker != nil {
		wcfg = *c.cfg.Worker
	}
	wcfg.Address = c.cfg.Address
	wcfg.Logger = c.cfg.Logger

	w := tcpworker.New(role, wcfg, c.addStatus, c.receive)

	c.mu.Lock()
	c.role = role
	c.worker = w
	c.mu.Unlock()

	c.log.Info("starting worker", logger.Field{Key: "role", Value: role.String()}, logger.Field{Key: "addr", Value: c.cfg.Address})

	if err := w.Start(ctx); err != nil {
		c.log.Error("worker failed to start", logger.Field{Key: "role", Value: role.String()}, logger.Field{Key: "error", Value: err})
		c.addStatus(fmt.Sprintf("%s error: %v", role, err))
		return err
	}

	return nil
}

// Stop stops and disposes the current worker, if any.
func (c *Controller) Stop() {
	c.mu.Lock()
	w := c.worker
	c.worker = nil
	c.mu.Unlock()

	if w != nil {
		_ = w.Close()
	}
}

// Send trims input and, unless it is blank, sends it as a Message from
// "Server" or "Client" when a peer is connected. The line "You: <input>" is
// added to the transcript whenever a worker exists.
func (c *Controller) Send(input string) {
	text := strings.TrimSpace(input)
	if text == "" {
		return
	}

	c.mu.Lock()
	w, role := c.worker, c.role
	c.mu.Unlock()

	if w == nil {
		return
	}

	encoded, err := chatmessage.Encode(chatmessage.New(chatmessage.Message, text, senderName(role)))
	if err != nil {
		c.addStatus(fmt.Sprintf("Sending error: %v", err))
	} else if w.Connected() {
		if err := w.SendMessage(encoded); err != nil {
			c.addStatus(fmt.Sprintf("Sending error: %v", err))
		}
	}

	c.add("You: " + text)
}

// Lines returns the transcript lines in order.
func (c *Controller) Lines() []string {
	return c.transcript.Lines()
}

// Clear empties the transcript.
func (c *Controller) Clear() {
	c.transcript.Clear()
}

// Role returns the role of the current or last worker.
func (c *Controller) Role() tcpworker.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// Running reports whether the current worker has an active session.
func (c *Controller) Running() bool {
	w := c.current()
	return w != nil && w.Running()
}

// Connected reports whether the current worker has a peer attached.
func (c *Controller) Connected() bool {
	w := c.current()
	return w != nil && w.Connected()
}

// Wait blocks until the current worker's session goroutines exit.
func (c *Controller) Wait() {
	if w := c.current(); w != nil {
		w.Wait()
	}
}

func (c *Controller) current() *tcpworker.Worker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.worker
}

// receive handles the raw text of one read.
func (c *Controller) receive(raw string) {
	msg := chatmessage.Decode(raw)
	if msg == nil {
		c.log.Debug("undecodable payload", logger.Field{Key: "bytes", Value: len(raw)})
		c.addStatus("Incorrect message received")
		return
	}

	switch msg.Type {
	case chatmessage.Message:
		c.add(fmt.Sprintf("%s: %s", msg.Sender, msg.Content))
	default:
		c.addStatus(msg.Content)
	}
}

func (c *Controller) addStatus(text string) {
	c.add("[System]: " + text)
}

func (c *Controller) add(line string) {
	c.transcript.Add(line)

	c.mu.Lock()
	sink := c.onLine
	c.mu.Unlock()

	if sink != nil {
		sink(line)
	}
}

func senderName(role tcpworker.Role) string {
	switch role {
	case tcpworker.Server, tcpworker.Client:
		return role.String()
	default:
		return "Unknown"
	}
}
