// Package worker implements the subprocess side of the daemon/worker wire:
// frame decoding, typed handler dispatch, and the build engine invocation.
package worker

import (
	"github.com/docsys/docs-lsp/src/docslsp/entity"
	"github.com/docsys/docs-lsp/src/docslsp/internal/errors"
)

// Phase is the lifecycle of the shared worker state. There is no transition
// back to Uninitialized within one process lifetime.
type Phase int

// Worker state phases.
const (
	PhaseUninitialized Phase = iota
	PhaseReady
)

// State is the single state value shared by every handler invocation. It
// holds at most one build-engine application per worker process lifetime.
type State struct {
	phase Phase
	app   *Application
}

// NewState returns an uninitialized State.
func NewState() *State {
	return &State{phase: PhaseUninitialized}
}

// Phase returns the current lifecycle phase.
func (s *State) Phase() Phase {
	return s.phase
}

// App returns the created application, or an error before createApplication.
func (s *State) App() (*Application, error) {
	if s.phase != PhaseReady || s.app == nil {
		return nil, errors.New("no application created yet")
	}
	return s.app, nil
}

// SetApp transitions Uninitialized -> Ready. A second application within the
// same process lifetime is an error.
func (s *State) SetApp(app *Application) error {
	if s.phase == PhaseReady {
		return errors.New("application already created for this worker")
	}
	s.phase = PhaseReady
	s.app = app
	return nil
}

// Application is one created build-engine instance.
type Application struct {
	// Info is returned to the daemon and immutable once created.
	Info entity.WorkerInfo
	// Command is the engine argv builds are run with.
	Command []string
	// Dir is the directory builds run in.
	Dir string
	// ConfigFile anchors fallback diagnostics when a build fails with no
	// better source location.
	ConfigFile string
}
