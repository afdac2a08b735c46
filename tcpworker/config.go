package tcpworker

import (
	"time"

	"github.com/cyberinferno/tcpchat/logger"
)

// DefaultReadBufferSize is the size of the chunk handed to each read of the
// receive loop.
const DefaultReadBufferSize = 4096

// Config holds configuration for a Worker.
type Config struct {
	// Address is the "ip:port" endpoint to listen on (Server) or connect to (Client).
	Address string
	// ConnectionTimeout is the max duration for establishing an outbound connection.
	ConnectionTimeout time.Duration
	// ReadTimeout is the max duration to wait for read data; 0 means no timeout.
	// A timed out read ends the receive loop as an interrupted connection.
	ReadTimeout time.Duration
	// WriteTimeout is the max duration for a single write; 0 means no timeout.
	WriteTimeout time.Duration
	// ReadBufferSize is the size of each read chunk.
	ReadBufferSize int
	// NoDelay disables output coalescing (Nagle's algorithm) on attached sockets.
	NoDelay bool
	// Logger receives lifecycle log entries. Nil means no logging.
	Logger logger.Logger
}

// DefaultConfig returns a Config with default values for the given address.
//
// Parameters:
//   - address: The "ip:port" endpoint
//
// Returns:
//   - A Config with defaults: ConnectionTimeout 5s, ReadTimeout 0,
//     WriteTimeout 5s, ReadBufferSize 4096, NoDelay true, no Logger.
func DefaultConfig(address string) Config {
	return Config{
		Address:           address,
		ConnectionTimeout: 5 * time.Second,
		ReadTimeout:       0,
		WriteTimeout:      5 * time.Second,
		ReadBufferSize:    DefaultReadBufferSize,
		NoDelay:           true,
	}
}

func (c Config) withDefaults() Config {
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}

	if c.Logger == nil {
		c.Logger = logger.NewNopLogger()
	}

	return c
}
