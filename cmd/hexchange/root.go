package main

import (
	"io"
	"log/slog"
	"os"

	"http-exchange/transport"
	"http-exchange/transport/netconn"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Exit codes for hexchange.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitConfigError  = 3
	ExitNetworkError = 4
)

var (
	errConfig  = errors.New("configuration error")
	errNetwork = errors.New("network error")
)

// env is what commands need from the outside world.
type env struct {
	dialer func(cfg dialConfig) transport.ConnDialer
	clock  clock.Clock
	stderr io.Writer
}

func defaultEnv() env {
	return env{
		dialer: func(cfg dialConfig) transport.ConnDialer {
			return netconn.NewDialer(cfg.timeout, nil)
		},
		clock:  clock.New(),
		stderr: os.Stderr,
	}
}

func newRootCmd(e env) *cobra.Command {
	root := &cobra.Command{
		Use:   "hexchange",
		Short: "Run HTTP/1.x exchanges with explicit redirect and keep-alive control",
		Long: `hexchange sends one request, follows redirects as configured and
reports the final response with the connection reuse verdict.`,
		SilenceUsage: true,
	}

	root.AddCommand(newFetchCmd(e))
	return root
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, errConfig):
		return ExitConfigError
	case errors.Is(err, errNetwork):
		return ExitNetworkError
	}
	return ExitFailure
}
