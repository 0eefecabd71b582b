package worker

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/docsys/docs-lsp/src/docslsp/entity"
	"github.com/docsys/docs-lsp/src/docslsp/internal/executor"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"
)

type notifyRecorder struct {
	methods []string
	params  []interface{}
}

func (n *notifyRecorder) notify(method string, params interface{}) {
	n.methods = append(n.methods, method)
	n.params = append(n.params, params)
}

// engineWith returns a cliEngine whose engine invocation is replaced by fn.
func engineWith(fn func(cmd *exec.Cmd) error) (*notifyRecorder, Engine) {
	rec := &notifyRecorder{}
	e := NewCLIEngine(executor.NewExecutor(executor.WithExecFunc(fn)), rec.notify, zap.NewNop().Sugar())
	return rec, e
}

func testApp(t *testing.T) *Application {
	t.Helper()
	return &Application{
		Info: entity.WorkerInfo{
			ID:          "w1",
			BuilderName: "html",
			SrcDir:      t.TempDir(),
			ConfDir:     "/proj",
		},
		Command:    []string{"docs-build"},
		Dir:        t.TempDir(),
		ConfigFile: "/proj/.docs-lsp.yaml",
	}
}

func TestCreateApplication(t *testing.T) {
	_, e := engineWith(func(cmd *exec.Cmd) error { return nil })

	t.Run("empty command rejected", func(t *testing.T) {
		_, err := e.CreateApplication(context.Background(), &entity.CreateApplicationParams{})
		assert.Error(t, err)
	})

	t.Run("missing binary rejected", func(t *testing.T) {
		_, err := e.CreateApplication(context.Background(), &entity.CreateApplicationParams{
			Command: []string{"/nonexistent/docs-build"},
		})
		assert.Error(t, err)
	})

	t.Run("defaults filled from cwd", func(t *testing.T) {
		app, err := e.CreateApplication(context.Background(), &entity.CreateApplicationParams{
			Command: []string{"sh"},
		})
		require.NoError(t, err)

		cwd, _ := os.Getwd()
		assert.NotEmpty(t, app.Info.ID)
		assert.Equal(t, "html", app.Info.BuilderName)
		assert.Equal(t, cwd, app.Info.SrcDir)
		assert.Equal(t, filepath.Join(cwd, "_build"), app.Info.BuildDir)
		assert.Equal(t, cwd, app.Info.ConfDir)
	})

	t.Run("options override defaults", func(t *testing.T) {
		app, err := e.CreateApplication(context.Background(), &entity.CreateApplicationParams{
			Command: []string{"sh"},
			Options: map[string]interface{}{
				"builder":    "dirhtml",
				"srcDir":     "/proj/docs",
				"configFile": "/proj/.docs-lsp.yaml",
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "dirhtml", app.Info.BuilderName)
		assert.Equal(t, "/proj/docs", app.Info.SrcDir)
		assert.Equal(t, "/proj/.docs-lsp.yaml", app.ConfigFile)
	})

	t.Run("new application gets new id", func(t *testing.T) {
		first, err := e.CreateApplication(context.Background(), &entity.CreateApplicationParams{Command: []string{"sh"}})
		require.NoError(t, err)
		second, err := e.CreateApplication(context.Background(), &entity.CreateApplicationParams{Command: []string{"sh"}})
		require.NoError(t, err)
		assert.NotEqual(t, first.Info.ID, second.Info.ID)
	})
}

func TestBuildParsesDiagnostics(t *testing.T) {
	rec, e := engineWith(func(cmd *exec.Cmd) error {
		cmd.Stdout.Write([]byte(`{"diagnostics":[
			{"file":"doc.rst","line":3,"severity":"warning","message":"undefined label"},
			{"file":"/abs/other.rst","line":1,"severity":"error","message":"broken include"}
		]}`))
		return nil
	})
	app := testApp(t)

	result, err := e.Build(context.Background(), app, &entity.BuildParams{})
	require.NoError(t, err)
	require.Len(t, result.Diagnostics, 2)

	relURI := uri.File(filepath.Join(app.Dir, "doc.rst"))
	require.Len(t, result.Diagnostics[relURI], 1)
	d := result.Diagnostics[relURI][0]
	assert.Equal(t, protocol.DiagnosticSeverityWarning, d.Severity)
	assert.Equal(t, uint32(2), d.Range.Start.Line)
	assert.Equal(t, "undefined label", d.Message)
	assert.Equal(t, "html", d.Source)

	absURI := uri.File("/abs/other.rst")
	require.Len(t, result.Diagnostics[absURI], 1)
	assert.Equal(t, protocol.DiagnosticSeverityError, result.Diagnostics[absURI][0].Severity)

	// Progress begin and end surround every build.
	assert.Equal(t, protocol.MethodProgress, rec.methods[0])
	assert.Equal(t, protocol.MethodProgress, rec.methods[len(rec.methods)-1])
}

func TestBuildFailureAnchorsDiagnosticAtConfigFile(t *testing.T) {
	_, e := engineWith(func(cmd *exec.Cmd) error {
		cmd.Stderr.Write([]byte("engine blew up\n"))
		return assert.AnError
	})
	app := testApp(t)

	result, err := e.Build(context.Background(), app, &entity.BuildParams{})
	require.NoError(t, err)

	anchor := uri.File(app.ConfigFile)
	require.Len(t, result.Diagnostics[anchor], 1)
	d := result.Diagnostics[anchor][0]
	assert.Equal(t, protocol.DiagnosticSeverityError, d.Severity)
	assert.Contains(t, d.Message, "engine blew up")
}

func TestBuildStderrForwardedAsLogMessages(t *testing.T) {
	rec, e := engineWith(func(cmd *exec.Cmd) error {
		cmd.Stdout.Write([]byte(`{"diagnostics":[]}`))
		cmd.Stderr.Write([]byte("reading sources\nwriting output\n"))
		return nil
	})

	_, err := e.Build(context.Background(), testApp(t), &entity.BuildParams{})
	require.NoError(t, err)

	var logged []string
	for i, m := range rec.methods {
		if m == protocol.MethodWindowLogMessage {
			logged = append(logged, rec.params[i].(*protocol.LogMessageParams).Message)
		}
	}
	assert.Equal(t, []string{"reading sources", "writing output"}, logged)
}

func TestBuildFlagsAndFilenames(t *testing.T) {
	var gotArgs []string
	_, e := engineWith(func(cmd *exec.Cmd) error {
		gotArgs = cmd.Args
		cmd.Stdout.Write([]byte(`{"diagnostics":[]}`))
		return nil
	})

	_, err := e.Build(context.Background(), testApp(t), &entity.BuildParams{
		ForceAll:  true,
		Filenames: []string{"a.rst", "b.rst"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"docs-build", "--force", "a.rst", "b.rst"}, gotArgs)
}

func TestBuildMaterializesContentOverrides(t *testing.T) {
	var overlay string
	_, e := engineWith(func(cmd *exec.Cmd) error {
		for _, kv := range cmd.Env {
			if strings.HasPrefix(kv, EnvBuildOverlay+"=") {
				overlay = strings.TrimPrefix(kv, EnvBuildOverlay+"=")
			}
		}
		require.NotEmpty(t, overlay)
		content, err := os.ReadFile(filepath.Join(overlay, "doc.rst"))
		require.NoError(t, err)
		assert.Equal(t, "unsaved buffer text", string(content))

		cmd.Stdout.Write([]byte(`{"diagnostics":[]}`))
		return nil
	})

	_, err := e.Build(context.Background(), testApp(t), &entity.BuildParams{
		ContentOverrides: map[string]string{"file:///proj/doc.rst": "unsaved buffer text"},
	})
	require.NoError(t, err)

	// Overlay is removed once the build completes.
	_, statErr := os.Stat(overlay)
	assert.True(t, os.IsNotExist(statErr))
}
