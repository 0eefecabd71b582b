// Package projectworker implements the per-project client façade over one
// spawned build worker process.
package projectworker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gofrs/uuid"
	tally "github.com/uber-go/tally"
	"github.com/docsys/docs-lsp/src/docslsp/entity"
	"github.com/docsys/docs-lsp/src/docslsp/internal/errors"
	"github.com/docsys/docs-lsp/src/docslsp/internal/rpc"
	"github.com/docsys/docs-lsp/src/docslsp/internal/workerproc"
	"go.uber.org/zap"
)

// Worker is the client façade for one project's build worker: a process
// handle plus an endpoint, exposing create/build/stop.
type Worker interface {
	// Create starts the worker process and issues worker/createApplication.
	// On any failure the process is torn down; a half-live worker is never
	// left behind.
	Create(ctx context.Context) (*entity.WorkerInfo, error)
	// Build issues worker/build and returns diagnostics partitioned by file.
	// Overlapping Build calls on one façade queue and run sequentially in
	// arrival order.
	Build(ctx context.Context, params *entity.BuildParams) (*entity.BuildResult, error)
	// Stop terminates the worker; subsequent calls fail fast.
	Stop(ctx context.Context) error

	// UUID is this worker instance's identity. A restarted project always
	// gets a new UUID.
	UUID() uuid.UUID
	// Info returns the WorkerInfo from a successful Create, or nil.
	Info() *entity.WorkerInfo
	// Status returns the current lifecycle state.
	Status() entity.WorkerStatus
	// Config returns the resolved config the worker was spawned from.
	Config() entity.WorkerConfig
}

// processHandle is the slice of workerproc.Handle the façade depends on.
type processHandle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Endpoint() *rpc.Endpoint
	Done() <-chan struct{}
	ExitErr() error
}

// Factory constructs unstarted Workers. The manager goes through a Factory so
// tests can count and fake spawns.
type Factory interface {
	New(cfg entity.WorkerConfig, onNotification rpc.NotificationHandler) Worker
}

type factory struct {
	logger *zap.SugaredLogger
	stats  tally.Scope
}

// NewFactory returns the production Factory backed by real OS processes.
func NewFactory(logger *zap.SugaredLogger, stats tally.Scope) Factory {
	return &factory{logger: logger, stats: stats.SubScope("project_worker")}
}

func (f *factory) New(cfg entity.WorkerConfig, onNotification rpc.NotificationHandler) Worker {
	return newWorker(cfg, onNotification, f.logger, f.stats, func() processHandle {
		return workerproc.New(workerproc.Config{
			Command: cfg.Command,
			Env:     cfg.Env,
			Cwd:     cfg.Cwd,
		}, f.logger)
	})
}

type worker struct {
	id             uuid.UUID
	cfg            entity.WorkerConfig
	onNotification rpc.NotificationHandler
	logger         *zap.SugaredLogger
	stats          tally.Scope
	newHandle      func() processHandle

	buildMu sync.Mutex

	mu      sync.Mutex
	handle  processHandle
	info    *entity.WorkerInfo
	status  entity.WorkerStatus
	stopped bool
}

func newWorker(cfg entity.WorkerConfig, onNotification rpc.NotificationHandler, logger *zap.SugaredLogger, stats tally.Scope, newHandle func() processHandle) Worker {
	return &worker{
		id:             uuid.Must(uuid.NewV4()),
		cfg:            cfg,
		onNotification: onNotification,
		logger:         logger,
		stats:          stats,
		newHandle:      newHandle,
		status:         entity.WorkerStarting,
	}
}

func (w *worker) Create(ctx context.Context) (*entity.WorkerInfo, error) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil, errors.ErrWorkerStopped
	}
	if w.handle != nil {
		w.mu.Unlock()
		return nil, errors.ErrAlreadyStarted
	}
	handle := w.newHandle()
	w.handle = handle
	w.mu.Unlock()

	if err := handle.Start(ctx); err != nil {
		w.setStatus(entity.WorkerCrashed)
		return nil, fmt.Errorf("starting worker process: %w", err)
	}
	if w.onNotification != nil {
		handle.Endpoint().SetNotificationHandler(w.onNotification)
	}
	go w.watchExit(handle)

	options := map[string]interface{}{
		"configFile": w.cfg.ConfigFile,
	}
	for k, v := range w.cfg.Options {
		options[k] = v
	}
	raw, err := handle.Endpoint().Call(ctx, entity.MethodCreateApplication, &entity.CreateApplicationParams{
		Command: w.cfg.BuildCommand,
		Options: options,
	})
	if err != nil {
		// Tear the process down rather than leaving a half-registered
		// instance behind.
		w.stats.Counter("create_failed").Inc(1)
		handle.Stop(ctx)
		w.setStatus(entity.WorkerCrashed)
		return nil, fmt.Errorf("creating application: %w", err)
	}

	var info entity.WorkerInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		w.stats.Counter("create_failed").Inc(1)
		handle.Stop(ctx)
		w.setStatus(entity.WorkerCrashed)
		return nil, fmt.Errorf("decoding worker info: %w", err)
	}

	w.mu.Lock()
	w.info = &info
	w.status = entity.WorkerRunning
	w.mu.Unlock()

	w.stats.Counter("created").Inc(1)
	w.logger.Infow("worker created",
		"worker", w.id,
		"application", info.ID,
		"builder", info.BuilderName,
		"srcDir", info.SrcDir,
	)
	return &info, nil
}

func (w *worker) Build(ctx context.Context, params *entity.BuildParams) (*entity.BuildResult, error) {
	w.mu.Lock()
	handle := w.handle
	stopped := w.stopped
	w.mu.Unlock()

	if stopped {
		return nil, errors.ErrWorkerStopped
	}
	if handle == nil {
		return nil, errors.New("worker not created")
	}

	// The engine is single-threaded: overlapping builds queue here and run
	// one at a time, in the order they arrive.
	w.buildMu.Lock()
	defer w.buildMu.Unlock()

	w.stats.Counter("builds").Inc(1)
	raw, err := handle.Endpoint().Call(ctx, entity.MethodBuild, params)
	if err != nil {
		w.stats.Counter("build_failed").Inc(1)
		return nil, fmt.Errorf("building project %q: %w", w.cfg.Cwd, err)
	}

	var result entity.BuildResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding build result: %w", err)
	}
	return &result, nil
}

func (w *worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.status = entity.WorkerStopped
	handle := w.handle
	w.mu.Unlock()

	if handle == nil {
		return nil
	}
	return handle.Stop(ctx)
}

func (w *worker) UUID() uuid.UUID {
	return w.id
}

func (w *worker) Info() *entity.WorkerInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.info
}

func (w *worker) Status() entity.WorkerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func (w *worker) Config() entity.WorkerConfig {
	return w.cfg
}

// watchExit demotes the façade when the process dies underneath it.
func (w *worker) watchExit(handle processHandle) {
	<-handle.Done()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if handle.ExitErr() != nil {
		w.status = entity.WorkerCrashed
		w.stats.Counter("crashed").Inc(1)
		w.logger.Warnw("worker process crashed", "worker", w.id, "error", handle.ExitErr())
	} else {
		w.status = entity.WorkerStopped
	}
}

func (w *worker) setStatus(s entity.WorkerStatus) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = s
}
