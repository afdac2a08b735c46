// Command tcpchat is a terminal front end for the one-to-one TCP chat. It
// starts as a server or a client, prints the chat transcript to stdout and
// sends every line typed on stdin.
//
// Commands typed on stdin:
//
//	/quit   stop the worker and exit
//	/clear  clear the transcript
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cyberinferno/tcpchat/chat"
	"github.com/cyberinferno/tcpchat/endpoint"
	"github.com/cyberinferno/tcpchat/logger"
	"github.com/cyberinferno/tcpchat/transcript"
	"golang.org/x/sync/errgroup"
)

var errNotConnected = errors.New("no session could be established")

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "tcpchat: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(args, stderr, endpoint.LocalIPv4)
	if err != nil {
		return err
	}

	log, err := cfg.newLogger(stderr)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr := transcript.New(cfg.Retention, 0)
	ctrl := chat.NewController(chat.Config{
		Address:    cfg.Address,
		Transcript: tr,
		Logger:     log,
	})
	ctrl.OnLine(func(line string) {
		fmt.Fprintln(stdout, line)
	})

	log.Info("starting",
		logger.Field{Key: "mode", Value: string(cfg.Mode)},
		logger.Field{Key: "addr", Value: cfg.Address},
		logger.Field{Key: "retention", Value: tr.Retention().String()})

	if cfg.Mode == ModeServer {
		err = ctrl.StartServer(ctx)
	} else {
		err = ctrl.StartClient(ctx)
	}
	if err != nil {
		ctrl.Stop()
		return err
	}

	if !ctrl.Running() {
		ctrl.Stop()
		return fmt.Errorf("%w: %s", errNotConnected, cfg.Address)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		return readInput(gctx, ctrl, stdin, stdout)
	})
	g.Go(func() error {
		<-gctx.Done()
		ctrl.Stop()
		return nil
	})
	g.Go(func() error {
		// The session ends on its own when the peer leaves a client or
		// the server fails; there is nothing left to type into.
		ctrl.Wait()
		stop()
		return nil
	})
	g.Go(func() error {
		return pruneTranscript(gctx, tr, log)
	})

	err = g.Wait()
	log.Info("stopped")
	return err
}

// readInput forwards stdin lines to ctrl until ctx is done, stdin ends or
// "/quit" is typed.
func readInput(ctx context.Context, ctrl *chat.Controller, stdin io.Reader, stdout io.Writer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read input: %w", err)
					}
				default:
				}
				return nil
			}

			switch text := strings.TrimSpace(line); text {
			case "":
			case "/quit":
				return nil
			case "/clear":
				n := len(ctrl.Lines())
				ctrl.Clear()
				fmt.Fprintf(stdout, "--- transcript cleared (%d lines) ---\n", n)
			default:
				if !ctrl.Connected() {
					fmt.Fprintln(stdout, "--- no peer connected, message not sent ---")
				}
				ctrl.Send(text)
			}
		}
	}
}

// pruneTranscript drops expired transcript lines until ctx is done. It
// returns at once when the transcript keeps lines forever.
func pruneTranscript(ctx context.Context, tr *transcript.Transcript, log logger.Logger) error {
	retention := tr.Retention()
	if retention <= 0 {
		return nil
	}

	ticker := time.NewTicker(min(retention, time.Minute))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := tr.Prune(ctx); err != nil {
				return nil
			}
			log.Debug("transcript pruned", logger.Field{Key: "lines", Value: tr.Len()})
		}
	}
}
