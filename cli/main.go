// Command watchlater appends recent uploads from your YouTube subscriptions
// to a playlist, oldest first.
//
// Usage:
//
//	watchlater auth                       # sign in and cache the token
//	watchlater preview --since 2023-08-30 # show what would be added
//	watchlater run --since 2023-08-30 --playlist PL...
//
// Settings come from watchlater.yaml (or .json) in the working directory or
// ~/.config/watchlater, WATCHLATER_* environment variables and flags, in
// increasing priority.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type globalOptions struct {
	Config    string `short:"c" long:"config" env:"WATCHLATER_CONFIG" value-name:"FILE" description:"Config file (YAML or JSON)"`
	LogLevel  string `long:"log-level" env:"WATCHLATER_LOG_LEVEL" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Log level"`
	LogFormat string `long:"log-format" env:"WATCHLATER_LOG_FORMAT" default:"console" choice:"console" choice:"json" description:"Log output format"`
}

type app struct {
	ctx    context.Context
	opts   globalOptions
	stdout io.Writer
	stderr io.Writer
	log    zerolog.Logger

	// apiOptions are appended to the YouTube client options.
	apiOptions []option.ClientOption
}

func newApp(ctx context.Context, stdout, stderr io.Writer) *app {
	return &app{
		ctx:    ctx,
		stdout: stdout,
		stderr: stderr,
		log:    zerolog.New(zerolog.ConsoleWriter{Out: stderr}).With().Timestamp().Logger(),
	}
}

func (a *app) parser() *flags.Parser {
	p := flags.NewParser(&a.opts, flags.HelpFlag|flags.PassDoubleDash)
	p.Name = "watchlater"
	p.LongDescription = "Curates a playlist from the recent uploads of your YouTube subscriptions."

	p.AddCommand("run", "Append new uploads to the playlist",
		"Collects uploads published since the cutoff from every subscribed channel, "+
			"drops blocklisted channels and titles, and appends the rest oldest first.",
		&runCommand{app: a})
	p.AddCommand("preview", "Show the videos a run would append",
		"Runs the collection stages without modifying any playlist and prints the result as a table.",
		&previewCommand{app: a})
	p.AddCommand("auth", "Sign in and cache the OAuth token",
		"Runs the browser consent flow and stores the token for later runs.",
		&authCommand{app: a})
	p.AddCommand("version", "Print the version", "", &versionCommand{app: a})
	return p
}

// execute parses args, runs the selected command and returns the exit code.
func (a *app) execute(args []string) int {
	_, err := a.parser().ParseArgs(args)
	if err == nil {
		return 0
	}

	var flagsErr *flags.Error
	if errors.As(err, &flagsErr) {
		if flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(a.stdout, flagsErr.Message)
			return 0
		}
		fmt.Fprintln(a.stderr, flagsErr.Message)
		return 2
	}

	a.log.Error().Err(err).Msg("watchlater failed")
	return 1
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := newApp(ctx, os.Stdout, os.Stderr).execute(os.Args[1:])
	stop()
	os.Exit(code)
}
