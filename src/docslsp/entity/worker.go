package entity

import (
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

// RPC methods spoken on the daemon/worker wire. Worker-originated
// notifications reuse the LSP method names from go.lsp.dev/protocol
// (window/logMessage, $/progress).
const (
	MethodCreateApplication = "worker/createApplication"
	MethodBuild             = "worker/build"
	MethodExit              = "worker/exit"
)

// WorkerStatus describes the lifecycle of a worker process.
type WorkerStatus string

// Worker lifecycle states.
const (
	WorkerStarting WorkerStatus = "starting"
	WorkerRunning  WorkerStatus = "running"
	WorkerStopped  WorkerStatus = "stopped"
	WorkerCrashed  WorkerStatus = "crashed"
)

// WorkerConfig is the resolved configuration needed to spawn and drive one
// project's build worker.
type WorkerConfig struct {
	// Command is the argv used to spawn the worker process.
	Command []string
	// BuildCommand is the argv of the build engine invocation, owned by the project.
	BuildCommand []string
	// Env holds additional environment variables for the worker process.
	Env map[string]string
	// Root is the project root directory the worker is registered under.
	// Documents beneath it map to this worker.
	Root string
	// Cwd is the working directory of the worker process. Defaults to Root;
	// a project srcDir setting points it at the source subdirectory.
	Cwd string
	// ConfigFile is the project configuration file the resolution was based
	// on. Build failures with no better location anchor diagnostics here.
	ConfigFile string
	// Options carries engine options such as builder, srcDir and buildDir,
	// forwarded verbatim on worker/createApplication.
	Options map[string]interface{}
}

// WorkerInfo is the metadata returned by a successful createApplication call.
// It is immutable once returned.
type WorkerInfo struct {
	ID          string `json:"id"`
	BuilderName string `json:"builderName"`
	SrcDir      string `json:"srcDir"`
	BuildDir    string `json:"buildDir"`
	ConfDir     string `json:"confDir"`
}

// CreateApplicationParams are the params of worker/createApplication.
type CreateApplicationParams struct {
	Command []string               `json:"command"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// BuildParams are the params of worker/build.
type BuildParams struct {
	Filenames []string `json:"filenames,omitempty"`
	ForceAll  bool     `json:"forceAll,omitempty"`
	// ContentOverrides substitutes unsaved editor buffers for on-disk files,
	// keyed by document URI.
	ContentOverrides map[string]string `json:"contentOverrides,omitempty"`
}

// BuildResult is the result of worker/build: diagnostics partitioned by
// source file. Indexed artifacts stay on the worker side and never cross the
// wire.
type BuildResult struct {
	Diagnostics map[uri.URI][]protocol.Diagnostic `json:"diagnostics"`
}

// ProgressParams are the params of the worker's $/progress notification.
type ProgressParams struct {
	Message    string `json:"message,omitempty"`
	Percentage *int   `json:"percentage,omitempty"`
}
