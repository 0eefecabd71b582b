// Package workers stores the live build worker for each project root.
package workers

import (
	"context"
	"strings"
	"sync"

	tally "github.com/uber-go/tally"
	projectworker "github.com/docsys/docs-lsp/src/docslsp/controller/project-worker"
	"github.com/docsys/docs-lsp/src/docslsp/internal/errors"
)

// Repository is an entity-scoped repository keyed by project root.
type Repository interface {
	// Get returns the worker registered for exactly the given root.
	Get(ctx context.Context, root string) (projectworker.Worker, error)
	// GetForDocument returns the worker whose root is the deepest registered
	// ancestor of the given document path.
	GetForDocument(ctx context.Context, path string) (projectworker.Worker, error)
	// GetOrCreate returns the worker for root, invoking create at most once
	// per root no matter how many callers race. All callers observe the same
	// instance, or the same creation error. A failed creation is not cached.
	GetOrCreate(ctx context.Context, root string, create func(ctx context.Context) (projectworker.Worker, error)) (projectworker.Worker, error)
	// Delete removes the worker registered for the given root, if any.
	Delete(ctx context.Context, root string) error
	// All returns every registered worker keyed by root.
	All(ctx context.Context) (map[string]projectworker.Worker, error)
	// WorkerCount returns the number of registered workers.
	WorkerCount(ctx context.Context) (int, error)
}

// entry is one root's slot. done is closed when creation has settled.
type entry struct {
	done   chan struct{}
	worker projectworker.Worker
	err    error
}

type repository struct {
	mu       sync.Mutex
	memstore map[string]*entry
	stats    tally.Scope
}

// New returns a repository to an in-memory worker store.
func New(stats tally.Scope) Repository {
	return &repository{
		memstore: make(map[string]*entry),
		stats:    stats,
	}
}

func (r *repository) Get(ctx context.Context, root string) (projectworker.Worker, error) {
	r.mu.Lock()
	e, ok := r.memstore[root]
	r.mu.Unlock()
	if !ok {
		return nil, &errors.ProjectNotFoundError{URI: root}
	}

	<-e.done
	if e.err != nil {
		return nil, &errors.ProjectNotFoundError{URI: root}
	}
	return e.worker, nil
}

func (r *repository) GetForDocument(ctx context.Context, path string) (projectworker.Worker, error) {
	r.mu.Lock()
	var best string
	for root := range r.memstore {
		if pathWithin(path, root) && len(root) > len(best) {
			best = root
		}
	}
	r.mu.Unlock()

	if best == "" {
		return nil, &errors.ProjectNotFoundError{URI: path}
	}
	return r.Get(ctx, best)
}

func (r *repository) GetOrCreate(ctx context.Context, root string, create func(ctx context.Context) (projectworker.Worker, error)) (projectworker.Worker, error) {
	r.mu.Lock()
	if e, ok := r.memstore[root]; ok {
		r.mu.Unlock()
		<-e.done
		if e.err != nil {
			return nil, e.err
		}
		return e.worker, nil
	}

	e := &entry{done: make(chan struct{})}
	r.memstore[root] = e
	r.mu.Unlock()

	e.worker, e.err = create(ctx)
	if e.err != nil {
		// Leave failed roots unregistered so a later request can retry.
		r.mu.Lock()
		delete(r.memstore, root)
		r.mu.Unlock()
	}
	close(e.done)

	r.updateGauge()
	return e.worker, e.err
}

func (r *repository) Delete(ctx context.Context, root string) error {
	r.mu.Lock()
	delete(r.memstore, root)
	r.mu.Unlock()

	r.updateGauge()
	return nil
}

func (r *repository) All(ctx context.Context) (map[string]projectworker.Worker, error) {
	r.mu.Lock()
	entries := make(map[string]*entry, len(r.memstore))
	for root, e := range r.memstore {
		entries[root] = e
	}
	r.mu.Unlock()

	result := make(map[string]projectworker.Worker, len(entries))
	for root, e := range entries {
		<-e.done
		if e.err == nil {
			result[root] = e.worker
		}
	}
	return result, nil
}

func (r *repository) WorkerCount(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.memstore), nil
}

func (r *repository) updateGauge() {
	r.mu.Lock()
	n := len(r.memstore)
	r.mu.Unlock()
	r.stats.Gauge("active_workers").Update(float64(n))
}

// pathWithin reports whether path is root itself or a descendant of root.
// Matching is on path segments, so /a/bc is not within /a/b.
func pathWithin(path, root string) bool {
	if root == "" {
		return false
	}
	root = strings.TrimSuffix(root, "/")
	return path == root || strings.HasPrefix(path, root+"/")
}
