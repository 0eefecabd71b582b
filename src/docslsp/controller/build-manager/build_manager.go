// Package buildmanager maps documents to per-project build workers and
// drives worker creation, rebuild triggers and restarts.
package buildmanager

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	tally "github.com/uber-go/tally"
	projectworker "github.com/docsys/docs-lsp/src/docslsp/controller/project-worker"
	"github.com/docsys/docs-lsp/src/docslsp/entity"
	ideclient "github.com/docsys/docs-lsp/src/docslsp/gateway/ide-client"
	"github.com/docsys/docs-lsp/src/docslsp/internal/errors"
	"github.com/docsys/docs-lsp/src/docslsp/internal/fs"
	"github.com/docsys/docs-lsp/src/docslsp/mapper"
	"github.com/docsys/docs-lsp/src/docslsp/repository/session"
	"github.com/docsys/docs-lsp/src/docslsp/repository/workers"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module is the Fx module for this package.
var Module = fx.Options(
	fx.Provide(New),
)

// Controller owns the project-root to worker mapping and the rebuild policy:
// saves build synchronously so the caller sees fresh diagnostics, opens build
// in the background.
type Controller interface {
	// WorkerForDocument returns the worker responsible for the document,
	// spawning one if the document belongs to a buildable project that has no
	// worker yet. Returns ErrNoWorker when no buildable project is found.
	WorkerForDocument(ctx context.Context, docURI uri.URI) (projectworker.Worker, error)

	DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error
	DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error
	DidSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error
	DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error

	// DidChangeWatchedFiles rebuilds the projects whose files changed on disk
	// outside the editor. Projects without a running worker are skipped.
	DidChangeWatchedFiles(ctx context.Context, params *protocol.DidChangeWatchedFilesParams) error

	// Restart stops and deregisters the worker covering the document. The next
	// trigger for the same project spawns a fresh worker with a new identity.
	Restart(ctx context.Context, docURI uri.URI) error
	// StopAll terminates every worker and waits for background builds.
	StopAll(ctx context.Context) error
}

// Params are inbound parameters to initialize a new controller.
type Params struct {
	fx.In

	Sessions      session.Repository
	Workers       workers.Repository
	WorkerFactory projectworker.Factory
	IdeGateway    ideclient.Gateway
	Logger        *zap.SugaredLogger
	Config        config.Provider
	Stats         tally.Scope
	FS            fs.DocsFS
	Lifecycle     fx.Lifecycle
}

type controller struct {
	sessions   session.Repository
	workers    workers.Repository
	factory    projectworker.Factory
	ideGateway ideclient.Gateway
	logger     *zap.SugaredLogger
	stats      tally.Scope
	resolver   *resolver
	watcher    *configWatcher

	wg sync.WaitGroup

	mu             sync.Mutex
	overrides      map[uri.URI]string
	published      map[string][]uri.URI
	notifiedRoots  map[string]bool
}

// New constructs the build manager and hooks worker teardown into the
// application lifecycle.
func New(p Params) (Controller, error) {
	var workerCommand, buildCommand, configFileNames []string
	if err := p.Config.Get(_workerCommandKey).Populate(&workerCommand); err != nil {
		return nil, fmt.Errorf("reading %s: %w", _workerCommandKey, err)
	}
	if err := p.Config.Get(_buildCommandKey).Populate(&buildCommand); err != nil {
		return nil, fmt.Errorf("reading %s: %w", _buildCommandKey, err)
	}
	if err := p.Config.Get(_configFileNamesKey).Populate(&configFileNames); err != nil {
		return nil, fmt.Errorf("reading %s: %w", _configFileNamesKey, err)
	}

	c := &controller{
		sessions:      p.Sessions,
		workers:       p.Workers,
		factory:       p.WorkerFactory,
		ideGateway:    p.IdeGateway,
		logger:        p.Logger,
		stats:         p.Stats.SubScope("build_manager"),
		resolver:      newResolver(p.FS, configFileNames, workerCommand, buildCommand),
		overrides:     make(map[uri.URI]string),
		published:     make(map[string][]uri.URI),
		notifiedRoots: make(map[string]bool),
	}

	watcher, err := newConfigWatcher(c, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("starting config watcher: %w", err)
	}
	c.watcher = watcher

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			c.watcher.Close()
			return c.StopAll(ctx)
		},
	})
	return c, nil
}

func (c *controller) WorkerForDocument(ctx context.Context, docURI uri.URI) (projectworker.Worker, error) {
	w, _, err := c.getOrCreate(ctx, docURI)
	return w, err
}

func (c *controller) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	w, root, err := c.getOrCreate(ctx, params.TextDocument.URI)
	if stderrors.Is(err, errors.ErrNoWorker) {
		return nil
	}
	if err != nil {
		return err
	}

	// Open builds in the background so the handler returns promptly.
	c.backgroundBuild(ctx, root, w, []string{params.TextDocument.URI.Filename()})
	return nil
}

func (c *controller) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	// Full-sync: the last change event carries the whole buffer.
	text := params.ContentChanges[len(params.ContentChanges)-1].Text

	c.mu.Lock()
	c.overrides[params.TextDocument.URI] = text
	c.mu.Unlock()
	return nil
}

func (c *controller) DidSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error {
	docURI := params.TextDocument.URI

	// The saved buffer now matches disk.
	c.mu.Lock()
	delete(c.overrides, docURI)
	c.mu.Unlock()

	w, root, err := c.getOrCreate(ctx, docURI)
	if stderrors.Is(err, errors.ErrNoWorker) {
		return nil
	}
	if err != nil {
		return err
	}

	// Saves await the build so the diagnostics the caller observes reflect
	// this save, not a stale prior build.
	return c.buildAndPublish(ctx, root, w, []string{docURI.Filename()})
}

func (c *controller) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	c.mu.Lock()
	delete(c.overrides, params.TextDocument.URI)
	c.mu.Unlock()
	return nil
}

func (c *controller) DidChangeWatchedFiles(ctx context.Context, params *protocol.DidChangeWatchedFilesParams) error {
	// Group changed files by the worker already covering them. Watched file
	// events fire for the whole workspace, so a miss just means the file
	// belongs to no running project.
	type pending struct {
		worker    projectworker.Worker
		filenames []string
	}
	byRoot := make(map[string]*pending)
	for _, event := range params.Changes {
		if protocol.FileChangeType(event.Type) == protocol.FileChangeTypeDeleted {
			continue
		}
		w, err := c.workers.GetForDocument(ctx, event.URI.Filename())
		if err != nil {
			continue
		}
		root := w.Config().Root
		p, ok := byRoot[root]
		if !ok {
			p = &pending{worker: w}
			byRoot[root] = p
		}
		p.filenames = append(p.filenames, event.URI.Filename())
	}

	for root, p := range byRoot {
		c.backgroundBuild(ctx, root, p.worker, p.filenames)
	}
	return nil
}

func (c *controller) Restart(ctx context.Context, docURI uri.URI) error {
	w, err := c.workers.GetForDocument(ctx, docURI.Filename())
	if err != nil {
		return fmt.Errorf("no worker to restart for %q: %w", docURI, err)
	}

	root := w.Config().Root
	c.watcher.Unwatch(root)
	if err := w.Stop(ctx); err != nil {
		c.logger.Warnw("stopping worker for restart", "root", root, "error", err)
	}
	if err := c.workers.Delete(ctx, root); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.notifiedRoots, root)
	c.mu.Unlock()

	c.stats.Counter("restarts").Inc(1)
	c.logger.Infow("worker deregistered for restart", "root", root, "worker", w.UUID())
	return nil
}

func (c *controller) StopAll(ctx context.Context) error {
	all, err := c.workers.All(ctx)
	if err != nil {
		return err
	}
	for root, w := range all {
		if err := w.Stop(ctx); err != nil {
			c.logger.Warnw("stopping worker", "root", root, "error", err)
		}
		c.workers.Delete(ctx, root)
	}
	c.wg.Wait()
	return nil
}

// getOrCreate returns the worker covering the document, spawning and
// registering one when needed. Lookup and insert for one project root are a
// single atomic unit, so concurrent triggers never spawn duplicates.
func (c *controller) getOrCreate(ctx context.Context, docURI uri.URI) (projectworker.Worker, string, error) {
	docPath := docURI.Filename()
	if w, err := c.workers.GetForDocument(ctx, docPath); err == nil {
		return w, w.Config().Root, nil
	}

	root, cfg, err := c.resolver.Resolve(docPath)
	if err != nil {
		var cre *errors.ConfigResolutionError
		if stderrors.As(err, &cre) {
			// No buildable project. Not an error condition: the document is
			// simply outside any project this server can build.
			c.stats.Counter("config_unresolved").Inc(1)
			c.logger.Debugw("no buildable project", "document", docPath, "reason", cre.Reason)
			return nil, "", errors.ErrNoWorker
		}
		return nil, "", err
	}

	var created bool
	w, err := c.workers.GetOrCreate(ctx, root, func(ctx context.Context) (projectworker.Worker, error) {
		w := c.factory.New(cfg, c.notificationRelay(root))
		if _, err := w.Create(ctx); err != nil {
			c.notifyCreateFailureOnce(ctx, root, err)
			return nil, err
		}
		created = true
		return w, nil
	})
	if err != nil {
		return nil, "", err
	}

	if created {
		c.watcher.Watch(root, cfg.ConfigFile)
		// Initial build runs detached so the triggering call returns promptly.
		c.backgroundBuild(ctx, root, w, nil)
	}
	return w, root, nil
}

func (c *controller) backgroundBuild(ctx context.Context, root string, w projectworker.Worker, filenames []string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.buildAndPublish(context.Background(), root, w, filenames); err != nil {
			c.logger.Warnw("background build failed", "root", root, "error", err)
		}
	}()
}

func (c *controller) buildAndPublish(ctx context.Context, root string, w projectworker.Worker, filenames []string) error {
	c.stats.Counter("builds").Inc(1)
	result, err := w.Build(ctx, &entity.BuildParams{
		Filenames:        filenames,
		ContentOverrides: c.overridesForRoot(root),
	})
	if err != nil {
		c.stats.Counter("build_failed").Inc(1)
		return fmt.Errorf("building %q: %w", root, err)
	}

	c.publish(ctx, root, result)
	return nil
}

// publish fans the build's diagnostics out to every connected session,
// clearing files that no longer report problems.
func (c *controller) publish(ctx context.Context, root string, result *entity.BuildResult) {
	c.mu.Lock()
	previous := c.published[root]
	c.published[root] = mapper.BuildResultURIs(result)
	c.mu.Unlock()

	payloads := mapper.BuildResultToPublishDiagnostics(result, previous)
	sessions, err := c.sessions.GetAll(ctx)
	if err != nil {
		c.logger.Warnw("listing sessions for diagnostics", "error", err)
		return
	}
	for _, s := range sessions {
		sCtx := context.WithValue(ctx, entity.SessionContextKey, s.UUID)
		for _, p := range payloads {
			if err := c.ideGateway.PublishDiagnostics(sCtx, p); err != nil {
				c.logger.Debugw("publishing diagnostics", "session", s.UUID, "error", err)
			}
		}
	}
}

// notificationRelay forwards a worker's log and progress notifications to
// every connected session.
func (c *controller) notificationRelay(root string) func(ctx context.Context, method string, params json.RawMessage) {
	return func(ctx context.Context, method string, params json.RawMessage) {
		sessions, err := c.sessions.GetAll(ctx)
		if err != nil {
			return
		}

		switch method {
		case protocol.MethodWindowLogMessage:
			var p protocol.LogMessageParams
			if err := json.Unmarshal(params, &p); err != nil {
				c.logger.Debugw("bad logMessage from worker", "root", root, "error", err)
				return
			}
			for _, s := range sessions {
				sCtx := context.WithValue(ctx, entity.SessionContextKey, s.UUID)
				c.ideGateway.LogMessage(sCtx, &p)
			}
		case protocol.MethodProgress:
			var p entity.ProgressParams
			if err := json.Unmarshal(params, &p); err != nil {
				c.logger.Debugw("bad progress from worker", "root", root, "error", err)
				return
			}
			for _, s := range sessions {
				sCtx := context.WithValue(ctx, entity.SessionContextKey, s.UUID)
				c.ideGateway.LogMessage(sCtx, &protocol.LogMessageParams{
					Type:    protocol.MessageTypeLog,
					Message: fmt.Sprintf("[%s] %s", root, p.Message),
				})
			}
		default:
			c.logger.Debugw("unhandled worker notification", "root", root, "method", method)
		}
	}
}

// notifyCreateFailureOnce surfaces a failed worker creation to the user a
// single time per project root.
func (c *controller) notifyCreateFailureOnce(ctx context.Context, root string, cause error) {
	c.mu.Lock()
	already := c.notifiedRoots[root]
	c.notifiedRoots[root] = true
	c.mu.Unlock()
	if already {
		return
	}

	c.stats.Counter("create_failed").Inc(1)
	c.logger.Warnw("worker creation failed", "root", root, "error", cause)

	sessions, err := c.sessions.GetAll(ctx)
	if err != nil {
		return
	}
	for _, s := range sessions {
		sCtx := context.WithValue(ctx, entity.SessionContextKey, s.UUID)
		c.ideGateway.ShowMessage(sCtx, &protocol.ShowMessageParams{
			Type:    protocol.MessageTypeError,
			Message: fmt.Sprintf("docs-lsp: starting the build worker for %s failed: %v", root, cause),
		})
	}
}

// overridesForRoot snapshots the unsaved buffers belonging to one project.
func (c *controller) overridesForRoot(root string) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]string, len(c.overrides))
	for docURI, text := range c.overrides {
		path := docURI.Filename()
		if path == root || strings.HasPrefix(path, root+"/") {
			out[string(docURI)] = text
		}
	}
	return out
}

// onConfigChanged tears the project's worker down and spawns a fresh one with
// the re-resolved configuration, then rebuilds.
func (c *controller) onConfigChanged(root, configFile string) {
	ctx := context.Background()
	c.logger.Infow("project configuration changed", "root", root, "configFile", configFile)

	if w, err := c.workers.Get(ctx, root); err == nil {
		c.watcher.Unwatch(root)
		if err := w.Stop(ctx); err != nil {
			c.logger.Warnw("stopping worker after config change", "root", root, "error", err)
		}
		c.workers.Delete(ctx, root)
	}

	c.mu.Lock()
	delete(c.notifiedRoots, root)
	c.mu.Unlock()

	if _, _, err := c.getOrCreate(ctx, uri.File(configFile)); err != nil && !stderrors.Is(err, errors.ErrNoWorker) {
		c.logger.Warnw("respawning worker after config change", "root", root, "error", err)
	}
}
