package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/docsys/docs-lsp/src/docslsp/entity"
	"github.com/docsys/docs-lsp/src/docslsp/internal/errors"
	"github.com/docsys/docs-lsp/src/docslsp/internal/executor"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"
)

const (
	// EnvBuildOverlay points the build engine at a directory of files that
	// override their on-disk counterparts, used for unsaved editor buffers.
	EnvBuildOverlay = "DOCS_BUILD_OVERLAY"

	_defaultBuilder = "html"
)

// NotifyFunc sends a notification back to the daemon.
type NotifyFunc func(method string, params interface{})

// Engine drives the external document build tool.
type Engine interface {
	// CreateApplication validates the build command and materializes one
	// application for this worker process.
	CreateApplication(ctx context.Context, params *entity.CreateApplicationParams) (*Application, error)
	// Build runs the engine once and returns diagnostics partitioned by file.
	Build(ctx context.Context, app *Application, params *entity.BuildParams) (*entity.BuildResult, error)
}

// engineDiagnostic is one entry of the engine's JSON diagnostics output.
type engineDiagnostic struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type engineOutput struct {
	Diagnostics []engineDiagnostic `json:"diagnostics"`
}

type cliEngine struct {
	exec   executor.Executor
	notify NotifyFunc
	logger *zap.SugaredLogger
}

// NewCLIEngine returns an Engine that shells out to the configured build
// command and parses its JSON diagnostics stream.
func NewCLIEngine(exec executor.Executor, notify NotifyFunc, logger *zap.SugaredLogger) Engine {
	if notify == nil {
		notify = func(string, interface{}) {}
	}
	return &cliEngine{exec: exec, notify: notify, logger: logger}
}

func (e *cliEngine) CreateApplication(ctx context.Context, params *entity.CreateApplicationParams) (*Application, error) {
	if len(params.Command) == 0 {
		return nil, errors.New("createApplication requires a non-empty command")
	}
	if _, err := exec.LookPath(params.Command[0]); err != nil {
		return nil, fmt.Errorf("build command %q not found: %w", params.Command[0], err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("allocating application id: %w", err)
	}

	app := &Application{
		Info: entity.WorkerInfo{
			ID:          id.String(),
			BuilderName: stringOption(params.Options, "builder", _defaultBuilder),
			SrcDir:      stringOption(params.Options, "srcDir", cwd),
			BuildDir:    stringOption(params.Options, "buildDir", filepath.Join(cwd, "_build")),
			ConfDir:     stringOption(params.Options, "confDir", cwd),
		},
		Command:    params.Command,
		Dir:        cwd,
		ConfigFile: stringOption(params.Options, "configFile", ""),
	}

	e.notify(protocol.MethodWindowLogMessage, &protocol.LogMessageParams{
		Type:    protocol.MessageTypeLog,
		Message: fmt.Sprintf("created %s application %s for %s", app.Info.BuilderName, app.Info.ID, app.Info.SrcDir),
	})
	return app, nil
}

func (e *cliEngine) Build(ctx context.Context, app *Application, params *entity.BuildParams) (*entity.BuildResult, error) {
	start := 0
	e.notify(protocol.MethodProgress, &entity.ProgressParams{Message: "building documentation", Percentage: &start})

	overlay, cleanup, err := e.materializeOverrides(params.ContentOverrides)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	argv := append([]string{}, app.Command...)
	if params.ForceAll {
		argv = append(argv, "--force")
	}
	argv = append(argv, params.Filenames...)

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = app.Dir
	cmd.Env = os.Environ()
	if overlay != "" {
		cmd.Env = append(cmd.Env, EnvBuildOverlay+"="+overlay)
	}

	stdout, stderr, exitCode, runErr := e.exec.Run(cmd)
	for _, line := range strings.Split(strings.TrimSpace(stderr), "\n") {
		if line == "" {
			continue
		}
		e.notify(protocol.MethodWindowLogMessage, &protocol.LogMessageParams{
			Type:    protocol.MessageTypeLog,
			Message: line,
		})
	}

	result := e.parseDiagnostics(app, stdout, stderr, exitCode, runErr)

	end := 100
	e.notify(protocol.MethodProgress, &entity.ProgressParams{Message: "build finished", Percentage: &end})
	return result, nil
}

// parseDiagnostics maps the engine's output to per-file diagnostics. An
// engine failure with no parsable output becomes a single diagnostic anchored
// at the project's config file.
func (e *cliEngine) parseDiagnostics(app *Application, stdout, stderr string, exitCode int, runErr error) *entity.BuildResult {
	result := &entity.BuildResult{
		Diagnostics: make(map[uri.URI][]protocol.Diagnostic),
	}

	var out engineOutput
	if err := json.Unmarshal([]byte(stdout), &out); err == nil {
		for _, d := range out.Diagnostics {
			file := d.File
			if !filepath.IsAbs(file) {
				file = filepath.Join(app.Dir, file)
			}
			docURI := uri.File(file)

			line := uint32(0)
			if d.Line > 0 {
				line = uint32(d.Line - 1)
			}
			result.Diagnostics[docURI] = append(result.Diagnostics[docURI], protocol.Diagnostic{
				Range: protocol.Range{
					Start: protocol.Position{Line: line},
					End:   protocol.Position{Line: line},
				},
				Severity: severityFromString(d.Severity),
				Source:   app.Info.BuilderName,
				Message:  d.Message,
			})
		}
		if exitCode == 0 || len(result.Diagnostics) > 0 {
			return result
		}
	}

	if exitCode != 0 || runErr != nil {
		// No precise location available. Anchor the failure at the project's
		// config file so it still surfaces in the editor.
		anchor := app.ConfigFile
		if anchor == "" {
			anchor = app.Info.ConfDir
		}
		message := strings.TrimSpace(stderr)
		if message == "" && runErr != nil {
			message = runErr.Error()
		}
		result.Diagnostics[uri.File(anchor)] = []protocol.Diagnostic{{
			Range:    protocol.Range{},
			Severity: protocol.DiagnosticSeverityError,
			Source:   app.Info.BuilderName,
			Message:  fmt.Sprintf("documentation build failed (exit %d): %s", exitCode, message),
		}}
	}
	return result
}

// materializeOverrides writes unsaved buffer contents to a temp overlay
// directory the engine can consult in place of the on-disk files.
func (e *cliEngine) materializeOverrides(overrides map[string]string) (dir string, cleanup func(), err error) {
	cleanup = func() {}
	if len(overrides) == 0 {
		return "", cleanup, nil
	}

	dir, err = os.MkdirTemp("", "docs-lsp-overlay-")
	if err != nil {
		return "", cleanup, fmt.Errorf("creating override overlay: %w", err)
	}
	cleanup = func() { os.RemoveAll(dir) }

	for docURI, content := range overrides {
		name := docURI
		if strings.HasPrefix(docURI, "file://") {
			name = uri.URI(docURI).Filename()
		}
		target := filepath.Join(dir, filepath.Base(name))
		if err := os.WriteFile(target, []byte(content), 0644); err != nil {
			cleanup()
			return "", func() {}, fmt.Errorf("writing override for %q: %w", docURI, err)
		}
	}
	return dir, cleanup, nil
}

func stringOption(options map[string]interface{}, key, fallback string) string {
	if options == nil {
		return fallback
	}
	if v, ok := options[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func severityFromString(s string) protocol.DiagnosticSeverity {
	switch strings.ToLower(s) {
	case "error":
		return protocol.DiagnosticSeverityError
	case "warning":
		return protocol.DiagnosticSeverityWarning
	case "info", "information":
		return protocol.DiagnosticSeverityInformation
	case "hint":
		return protocol.DiagnosticSeverityHint
	default:
		return protocol.DiagnosticSeverityError
	}
}
