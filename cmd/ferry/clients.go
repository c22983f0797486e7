package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/steveyegge/ferry/internal/config"
	"github.com/steveyegge/ferry/internal/debug"
	"github.com/steveyegge/ferry/internal/progress"
	"github.com/steveyegge/ferry/internal/remote"
	"github.com/steveyegge/ferry/internal/telemetry"
	"github.com/steveyegge/ferry/internal/ui"
)

// newClient connects to the source or target environment. Tests replace it
// with an in-memory repository.
var newClient = func(role config.Role) (remote.Client, string, error) {
	cfg, err := config.Environment(role)
	if err != nil {
		return nil, "", err
	}
	debug.Logf("%s environment %s via %s\n", role, cfg.Environment, cfg.BaseURL)
	return telemetry.WrapClient(remote.NewHTTPClient(cfg), string(role)), cfg.Environment, nil
}

// mustClient is newClient for commands, exiting with a hint on failure.
func mustClient(role config.Role) (remote.Client, string) {
	c, env, err := newClient(role)
	if err != nil {
		FatalErrorWithHint(err.Error(),
			fmt.Sprintf("set %s.environment in ferry.yaml or pass --%s-environment", role, role))
	}
	return c, env
}

// newProgress returns the progress sink for this invocation: nothing in quiet
// or JSON mode, a redrawn status line on a terminal, plain lines otherwise.
func newProgress() (progress.Sink, func()) {
	if quietFlag || jsonOutput {
		return progress.Discard, func() {}
	}
	p := ui.NewProgressWriter(os.Stderr, ui.IsStderrTerminal())
	return p, p.Done
}

func newLogger() *slog.Logger {
	return debug.Logger()
}
