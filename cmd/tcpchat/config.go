package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cyberinferno/tcpchat/chat"
	"github.com/cyberinferno/tcpchat/endpoint"
	"github.com/cyberinferno/tcpchat/logger"
	"github.com/rs/zerolog"
)

// Mode selects the role the front end starts with.
type Mode string

const (
	ModeServer Mode = "server"
	ModeClient Mode = "client"
)

var errInvalidMode = errors.New("mode must be server or client")

type config struct {
	Mode      Mode
	Address   string
	LogLevel  zerolog.Level
	LogFile   string
	Retention time.Duration
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadConfig parses args, falling back to TCPCHAT_* environment variables
// for anything not given on the command line. lookupLAN resolves the local
// IPv4 address when -lan is set.
func loadConfig(args []string, output io.Writer, lookupLAN func() (string, error)) (*config, error) {
	fs := flag.NewFlagSet("tcpchat", flag.ContinueOnError)
	fs.SetOutput(output)

	mode := fs.String("mode", getEnv("TCPCHAT_MODE", string(ModeServer)), "Role to start: server or client")
	addr := fs.String("addr", getEnv("TCPCHAT_ADDR", chat.DefaultAddress), "Endpoint as ip:port")
	lan := fs.Bool("lan", false, "Replace the ip of -addr with this machine's LAN IPv4 address")
	level := fs.String("log-level", getEnv("TCPCHAT_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	logFile := fs.String("log-file", "", "Write logs to this file instead of stderr")
	retention := fs.Duration("retention", 0, "Drop transcript lines older than this (0 keeps them)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &config{
		Mode:      Mode(strings.ToLower(strings.TrimSpace(*mode))),
		Address:   *addr,
		LogFile:   *logFile,
		Retention: *retention,
	}

	if cfg.Mode != ModeServer && cfg.Mode != ModeClient {
		return nil, fmt.Errorf("%w: %q", errInvalidMode, *mode)
	}

	ep, err := endpoint.Parse(cfg.Address)
	if err != nil {
		return nil, err
	}

	if *lan {
		ip, err := lookupLAN()
		if err != nil {
			return nil, err
		}
		ep.Address = ip
	}
	cfg.Address = ep.String()

	cfg.LogLevel, err = logger.ParseLevel(*level)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *config) newLogger(stderr io.Writer) (logger.Logger, error) {
	if c.LogFile != "" {
		return logger.NewFileLogger(c.LogFile, "tcpchat", c.LogLevel)
	}
	return logger.NewConsoleLogger(stderr, "tcpchat", c.LogLevel), nil
}
