// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package localserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/tessera-engine/tessera/lib/clock"
	"github.com/tessera-engine/tessera/lib/scenario"
)

// Defaults for zero Config fields.
const (
	DefaultAddress       = "127.0.0.1:28787"
	DefaultReadyAttempts = 20
	DefaultPollInterval  = time.Second
	DefaultStopTimeout   = 5 * time.Second
)

var (
	// ErrNotReady means the server never reported a loaded scenario
	// within the allowed attempts.
	ErrNotReady = errors.New("local server did not become ready")

	// ErrExited means the server process ended before becoming ready.
	ErrExited = errors.New("local server exited")

	// ErrNotStarted is returned by operations that need a running
	// process.
	ErrNotStarted = errors.New("local server not started")
)

// Config describes the child server.
type Config struct {
	// Binary is the tessera-server executable.
	Binary string

	// Home is passed as the server's home directory.
	Home string

	// ConfigFile, when set, is passed with --config.
	ConfigFile string

	// Location is the scenario to pin, as a map name under base/
	// ("forest" runs base/forest.tar.gz) or a full location.
	Location string

	// Address is the listen address. Default: DefaultAddress.
	Address string

	// OutputFile receives the child's stdout and stderr.
	OutputFile string

	// ExtraArgs are appended to the command line.
	ExtraArgs []string

	ReadyAttempts int
	PollInterval  time.Duration
	StopTimeout   time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Runner supervises one child server.
type Runner struct {
	config Config
	clock  clock.Clock
	logger *slog.Logger

	mu      sync.Mutex
	command *exec.Cmd
	exited  chan struct{}
	waitErr error
}

// New returns a Runner. Nothing is started until Start.
func New(config Config) *Runner {
	if config.Address == "" {
		config.Address = DefaultAddress
	}
	if config.ReadyAttempts <= 0 {
		config.ReadyAttempts = DefaultReadyAttempts
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = DefaultStopTimeout
	}
	runner := &Runner{config: config, clock: config.Clock, logger: config.Logger}
	if runner.clock == nil {
		runner.clock = clock.Real()
	}
	if runner.logger == nil {
		runner.logger = slog.Default()
	}
	return runner
}

// MapLocation expands a bare map name to its archive under base/.
// Names that already contain a slash are returned unchanged.
func MapLocation(name string) string {
	if name == "" || strings.Contains(name, "/") {
		return name
	}
	return "base/" + name + ".tar.gz"
}

// Command returns the argument list and extra environment the child
// is started with.
func (r *Runner) Command() (args []string, env []string) {
	if r.config.Home != "" {
		args = append(args, r.config.Home)
	}
	args = append(args, "--shutdown-if-idle", "--shutdown-if-empty")
	if r.config.ConfigFile != "" {
		args = append(args, "--config", r.config.ConfigFile)
	}
	args = append(args, r.config.ExtraArgs...)

	env = append(env, "TESSERA_NETWORK_ADDRESS="+r.config.Address)
	if location := MapLocation(r.config.Location); location != "" {
		env = append(env, "TESSERA_ACTIVITY_FORCE_LOCATION="+location)
	}
	return args, env
}

// Start launches the child, truncating the output file.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.command != nil {
		return fmt.Errorf("local server already started (pid %d)", r.command.Process.Pid)
	}

	if err := os.MkdirAll(filepath.Dir(r.config.OutputFile), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	output, err := os.Create(r.config.OutputFile)
	if err != nil {
		return fmt.Errorf("creating server output file: %w", err)
	}

	args, env := r.Command()
	command := exec.Command(r.config.Binary, args...)
	command.Env = append(os.Environ(), env...)
	command.Stdout = output
	command.Stderr = output
	if err := command.Start(); err != nil {
		output.Close()
		return fmt.Errorf("starting %s: %w", r.config.Binary, err)
	}

	exited := make(chan struct{})
	r.command = command
	r.exited = exited
	r.logger.Info("local server started",
		"pid", command.Process.Pid,
		"binary", r.config.Binary,
		"location", MapLocation(r.config.Location),
		"output", r.config.OutputFile,
	)

	go func() {
		err := command.Wait()
		output.Close()
		r.mu.Lock()
		r.waitErr = err
		r.mu.Unlock()
		close(exited)
	}()
	return nil
}

// Ready reports whether the child has logged a successful map load.
func (r *Runner) Ready() (bool, error) {
	data, err := os.ReadFile(r.config.OutputFile)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading server output: %w", err)
	}
	return bytes.Contains(data, []byte(scenario.ReadyIndicator)), nil
}

// WaitReady polls Ready once per poll interval, up to the configured
// number of attempts.
func (r *Runner) WaitReady(ctx context.Context) error {
	r.mu.Lock()
	exited := r.exited
	r.mu.Unlock()
	if exited == nil {
		return ErrNotStarted
	}

	for attempt := range r.config.ReadyAttempts {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-exited:
			return fmt.Errorf("%w: %v (see %s)", ErrExited, r.exitError(), r.config.OutputFile)
		case <-r.clock.After(r.config.PollInterval):
		}

		ready, err := r.Ready()
		if err != nil {
			return err
		}
		if ready {
			r.logger.Info("local server ready", "attempts", attempt+1)
			return nil
		}
		r.logger.Info("waiting for local server to finish starting", "attempt", attempt+1)
	}
	return fmt.Errorf("%w after %d attempts (see %s)", ErrNotReady, r.config.ReadyAttempts, r.config.OutputFile)
}

// Running reports whether the child has been started and not exited.
func (r *Runner) Running() bool {
	r.mu.Lock()
	exited := r.exited
	r.mu.Unlock()
	if exited == nil {
		return false
	}
	select {
	case <-exited:
		return false
	default:
		return true
	}
}

// Done is closed when the child exits. Nil before Start.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exited
}

func (r *Runner) exitError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waitErr
}

// Stop terminates the child, killing it if it has not exited within
// the stop timeout. Stopping a runner that never started is a no-op.
func (r *Runner) Stop() error {
	r.mu.Lock()
	command, exited := r.command, r.exited
	r.command, r.exited = nil, nil
	r.mu.Unlock()
	if command == nil {
		return nil
	}

	select {
	case <-exited:
		return nil
	default:
	}

	r.logger.Info("stopping local server", "pid", command.Process.Pid)
	if err := command.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("signalling local server: %w", err)
	}
	select {
	case <-exited:
		return nil
	case <-r.clock.After(r.config.StopTimeout):
	}

	r.logger.Warn("local server ignored SIGTERM, killing", "pid", command.Process.Pid)
	if err := command.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("killing local server: %w", err)
	}
	<-exited
	return nil
}
