// Package workerproc owns the lifecycle of a single spawned build worker
// process and bridges its stdio pipes to an rpc.Endpoint.
package workerproc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/docsys/docs-lsp/src/docslsp/entity"
	"github.com/docsys/docs-lsp/src/docslsp/internal/errors"
	"github.com/docsys/docs-lsp/src/docslsp/internal/rpc"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	// EnvServerPath is exported into every worker's environment so the
	// spawned command can locate this server's executable (and with it the
	// embedded worker protocol code) without a separate install step.
	EnvServerPath = "DOCS_LSP_SERVER_PATH"

	_stopGracePeriod = 2 * time.Second
)

// Config describes how to spawn one worker process.
type Config struct {
	// Command is the full argv of the worker, owned by the project.
	Command []string
	// Env holds additional environment variables for the worker.
	Env map[string]string
	// Cwd is the working directory, normally the project root.
	Cwd string
}

// Handle owns one spawned worker process. A Handle may be started at most
// once; restarting a worker always constructs a new Handle.
type Handle struct {
	cfg    Config
	logger *zap.SugaredLogger

	mu       sync.Mutex
	started  bool
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	endpoint *rpc.Endpoint
	stderr   bytes.Buffer

	done     chan struct{}
	exitErr  error
	exitOnce sync.Once
}

// New returns an unstarted Handle for the given config.
func New(cfg Config, logger *zap.SugaredLogger) *Handle {
	return &Handle{
		cfg:    cfg,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start spawns the worker process and wires its stdio to a fresh endpoint.
// The process output stream feeds the endpoint's read loop and outbound
// writes go to the process input stream.
func (h *Handle) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return errors.ErrAlreadyStarted
	}
	if len(h.cfg.Command) == 0 {
		return errors.New("worker command is empty")
	}
	h.started = true

	cmd := exec.Command(h.cfg.Command[0], h.cfg.Command[1:]...)
	cmd.Dir = h.cfg.Cwd
	cmd.Env = h.buildEnv()
	cmd.Stderr = &h.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("opening worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("opening worker stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawning worker %q: %w", h.cfg.Command[0], err)
	}
	h.cmd = cmd
	h.stdin = stdin
	h.endpoint = rpc.NewEndpoint(stdin, h.logger)

	h.logger.Infow("worker process started",
		"command", h.cfg.Command,
		"cwd", h.cfg.Cwd,
		"pid", cmd.Process.Pid,
	)

	go h.endpoint.ReadFrom(ctx, stdout)
	go h.wait()

	return nil
}

// Endpoint returns the RPC endpoint bound to the process, or nil before Start.
func (h *Handle) Endpoint() *rpc.Endpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.endpoint
}

// Done is closed once the process has exited and its pending calls failed.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// ExitErr returns the process exit error, if any, once Done is closed.
func (h *Handle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

// Stop sends a best-effort exit notification, waits briefly, then terminates
// the process. All calls still pending on the handle fail with a
// transport-closed error wrapping ErrWorkerStopped.
func (h *Handle) Stop(ctx context.Context) error {
	h.mu.Lock()
	endpoint := h.endpoint
	cmd := h.cmd
	stdin := h.stdin
	h.mu.Unlock()

	if endpoint == nil {
		return nil
	}

	if err := endpoint.Notify(ctx, entity.MethodExit, nil); err != nil {
		h.logger.Debugw("exit notification not delivered", "error", err)
	}
	endpoint.Close(errors.ErrWorkerStopped)

	// Closing stdin lets a well-behaved worker exit on its own before the
	// grace period expires.
	stdin.Close()

	var errs error
	select {
	case <-h.done:
	case <-time.After(_stopGracePeriod):
		if cmd != nil && cmd.Process != nil {
			if err := cmd.Process.Kill(); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("killing worker process: %w", err))
			}
		}
		<-h.done
	}
	return errs
}

func (h *Handle) buildEnv() []string {
	env := os.Environ()
	for k, v := range h.cfg.Env {
		env = append(env, k+"="+v)
	}
	if exe, err := os.Executable(); err == nil {
		env = append(env, EnvServerPath+"="+exe)
	}
	return env
}

// wait blocks until process exit, then surfaces buffered stderr and fails
// anything still pending on the endpoint.
func (h *Handle) wait() {
	err := h.cmd.Wait()

	h.mu.Lock()
	stderr := h.stderr.String()
	if err != nil {
		h.exitErr = &errors.ProcessExitError{
			Command:  h.cfg.Command[0],
			ExitCode: h.cmd.ProcessState.ExitCode(),
			Stderr:   stderr,
		}
	}
	exitErr := h.exitErr
	h.mu.Unlock()

	if exitErr != nil {
		h.logger.Warnw("worker process exited",
			"command", h.cfg.Command,
			"error", exitErr,
			"stderr", stderr,
		)
	} else if stderr != "" {
		h.logger.Debugw("worker process stderr", "stderr", stderr)
	}

	h.endpoint.Close(exitErr)
	h.exitOnce.Do(func() { close(h.done) })
}
