package projectworker

import (
	"context"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tally "github.com/uber-go/tally"
	"github.com/docsys/docs-lsp/src/docslsp/entity"
	"github.com/docsys/docs-lsp/src/docslsp/internal/errors"
	"github.com/docsys/docs-lsp/src/docslsp/internal/executor"
	"github.com/docsys/docs-lsp/src/docslsp/internal/rpc"
	"github.com/docsys/docs-lsp/src/docslsp/internal/wire"
	buildworker "github.com/docsys/docs-lsp/src/docslsp/worker"
	"go.uber.org/zap"
)

// pipeHandle runs a real worker registry over in-memory pipes, standing in
// for a spawned process.
type pipeHandle struct {
	engineFn  func(cmd *exec.Cmd) error
	failStart bool

	endpoint  *rpc.Endpoint
	done      chan struct{}
	toWorker  *io.PipeWriter
	fromWorker *io.PipeWriter

	mu          sync.Mutex
	stopCalled  bool
}

func newPipeHandle(engineFn func(cmd *exec.Cmd) error) *pipeHandle {
	return &pipeHandle{engineFn: engineFn, done: make(chan struct{})}
}

func (h *pipeHandle) Start(ctx context.Context) error {
	if h.failStart {
		return errors.New("spawn failed")
	}

	toWorkerR, toWorkerW := io.Pipe()
	fromWorkerR, fromWorkerW := io.Pipe()
	h.toWorker = toWorkerW
	h.fromWorker = fromWorkerW

	logger := zap.NewNop().Sugar()
	h.endpoint = rpc.NewEndpoint(toWorkerW, logger)
	go h.endpoint.ReadFrom(ctx, fromWorkerR)

	engine := buildworker.NewCLIEngine(executor.NewExecutor(executor.WithExecFunc(h.engineFn)), nil, logger)
	registry := buildworker.NewRegistry(engine, logger)
	go func() {
		buildworker.Serve(ctx, toWorkerR, wire.NewWriter(fromWorkerW), registry, logger)
		h.endpoint.Close(nil)
		close(h.done)
	}()
	return nil
}

func (h *pipeHandle) Stop(ctx context.Context) error {
	h.mu.Lock()
	h.stopCalled = true
	h.mu.Unlock()

	if h.endpoint == nil {
		return nil
	}
	h.endpoint.Close(errors.ErrWorkerStopped)
	h.toWorker.Close()
	h.fromWorker.Close()
	<-h.done
	return nil
}

func (h *pipeHandle) Endpoint() *rpc.Endpoint  { return h.endpoint }
func (h *pipeHandle) Done() <-chan struct{}    { return h.done }
func (h *pipeHandle) ExitErr() error           { return nil }

func (h *pipeHandle) stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopCalled
}

func echoEngine(cmd *exec.Cmd) error {
	cmd.Stdout.Write([]byte(`{"diagnostics":[]}`))
	return nil
}

func testWorker(t *testing.T, h *pipeHandle, cfg entity.WorkerConfig) Worker {
	t.Helper()
	return newWorker(cfg, nil, zap.NewNop().Sugar(), tally.NewTestScope("testing", nil), func() processHandle { return h })
}

func workingConfig(t *testing.T) entity.WorkerConfig {
	return entity.WorkerConfig{
		BuildCommand: []string{"sh"},
		Cwd:          t.TempDir(),
		ConfigFile:   "/proj/.docs-lsp.yaml",
	}
}

func TestCreateReturnsWorkerInfo(t *testing.T) {
	h := newPipeHandle(echoEngine)
	w := testWorker(t, h, workingConfig(t))
	defer w.Stop(context.Background())

	info, err := w.Create(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "html", info.BuilderName)
	assert.Equal(t, entity.WorkerRunning, w.Status())
	assert.Equal(t, info, w.Info())
}

func TestCreateFailureTearsProcessDown(t *testing.T) {
	h := newPipeHandle(echoEngine)
	// Empty build command makes createApplication fail inside the worker.
	w := testWorker(t, h, entity.WorkerConfig{Cwd: t.TempDir()})

	_, err := w.Create(context.Background())
	require.Error(t, err)
	assert.True(t, h.stopped(), "failed create must tear the process down")
	assert.Equal(t, entity.WorkerCrashed, w.Status())
	assert.Nil(t, w.Info())
}

func TestCreateSpawnFailure(t *testing.T) {
	h := newPipeHandle(echoEngine)
	h.failStart = true
	w := testWorker(t, h, workingConfig(t))

	_, err := w.Create(context.Background())
	require.Error(t, err)
	assert.Equal(t, entity.WorkerCrashed, w.Status())
}

func TestCreateTwice(t *testing.T) {
	h := newPipeHandle(echoEngine)
	w := testWorker(t, h, workingConfig(t))
	defer w.Stop(context.Background())

	_, err := w.Create(context.Background())
	require.NoError(t, err)

	_, err = w.Create(context.Background())
	assert.ErrorIs(t, err, errors.ErrAlreadyStarted)
}

func TestBuildBeforeCreate(t *testing.T) {
	w := testWorker(t, newPipeHandle(echoEngine), workingConfig(t))
	_, err := w.Build(context.Background(), &entity.BuildParams{})
	assert.Error(t, err)
}

func TestBuildReturnsDiagnostics(t *testing.T) {
	h := newPipeHandle(func(cmd *exec.Cmd) error {
		cmd.Stdout.Write([]byte(`{"diagnostics":[{"file":"/proj/doc.rst","line":1,"severity":"error","message":"broken"}]}`))
		return nil
	})
	w := testWorker(t, h, workingConfig(t))
	defer w.Stop(context.Background())

	_, err := w.Create(context.Background())
	require.NoError(t, err)

	result, err := w.Build(context.Background(), &entity.BuildParams{})
	require.NoError(t, err)
	require.Len(t, result.Diagnostics, 1)
	for _, diags := range result.Diagnostics {
		require.Len(t, diags, 1)
		assert.Equal(t, "broken", diags[0].Message)
	}
}

func TestOverlappingBuildsRunSequentially(t *testing.T) {
	var active, maxActive int32
	h := newPipeHandle(func(cmd *exec.Cmd) error {
		n := atomic.AddInt32(&active, 1)
		for {
			max := atomic.LoadInt32(&maxActive)
			if n <= max || atomic.CompareAndSwapInt32(&maxActive, max, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		cmd.Stdout.Write([]byte(`{"diagnostics":[]}`))
		return nil
	})
	w := testWorker(t, h, workingConfig(t))
	defer w.Stop(context.Background())

	_, err := w.Create(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.Build(context.Background(), &entity.BuildParams{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestStopFailsFurtherCalls(t *testing.T) {
	h := newPipeHandle(echoEngine)
	w := testWorker(t, h, workingConfig(t))

	_, err := w.Create(context.Background())
	require.NoError(t, err)

	require.NoError(t, w.Stop(context.Background()))
	assert.Equal(t, entity.WorkerStopped, w.Status())

	_, err = w.Build(context.Background(), &entity.BuildParams{})
	assert.ErrorIs(t, err, errors.ErrWorkerStopped)

	// Stop is idempotent.
	assert.NoError(t, w.Stop(context.Background()))
}

func TestEachInstanceHasDistinctUUID(t *testing.T) {
	a := testWorker(t, newPipeHandle(echoEngine), workingConfig(t))
	b := testWorker(t, newPipeHandle(echoEngine), workingConfig(t))
	assert.NotEqual(t, a.UUID(), b.UUID())
}
