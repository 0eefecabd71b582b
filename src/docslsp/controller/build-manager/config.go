package buildmanager

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/docsys/docs-lsp/src/docslsp/entity"
	"github.com/docsys/docs-lsp/src/docslsp/internal/errors"
	"github.com/docsys/docs-lsp/src/docslsp/internal/fs"
	"gopkg.in/yaml.v3"
)

// Configuration keys under the docs block of the server config.
const (
	_workerCommandKey   = "docs.workerCommand"
	_buildCommandKey    = "docs.buildCommand"
	_configFileNamesKey = "docs.configFileNames"
)

// _defaultConfigFileNames are the markers that identify a buildable project
// root, checked in order within each directory.
var _defaultConfigFileNames = []string{".docs-lsp.yaml", "conf.py"}

// projectFile is the schema of a project's .docs-lsp.yaml.
type projectFile struct {
	BuildCommand []string          `yaml:"buildCommand"`
	Env          map[string]string `yaml:"env"`
	SrcDir       string            `yaml:"srcDir"`
	BuildDir     string            `yaml:"buildDir"`
	Builder      string            `yaml:"builder"`
}

// resolver turns a document path into the project root and the worker config
// to spawn for it.
type resolver struct {
	fs              fs.DocsFS
	configFileNames []string
	workerCommand   []string
	buildCommand    []string
}

func newResolver(docsFS fs.DocsFS, configFileNames, workerCommand, buildCommand []string) *resolver {
	if len(configFileNames) == 0 {
		configFileNames = _defaultConfigFileNames
	}
	return &resolver{
		fs:              docsFS,
		configFileNames: configFileNames,
		workerCommand:   workerCommand,
		buildCommand:    buildCommand,
	}
}

// Resolve walks up from the document's directory looking for a project
// marker. The nearest directory containing one becomes the project root.
// Returns a ConfigResolutionError when no buildable project is found; no
// process is ever spawned in that case.
func (r *resolver) Resolve(docPath string) (string, entity.WorkerConfig, error) {
	dir := filepath.Dir(docPath)
	for {
		for _, name := range r.configFileNames {
			candidate := filepath.Join(dir, name)
			ok, err := r.fs.FileExists(candidate)
			if err != nil {
				return "", entity.WorkerConfig{}, fmt.Errorf("checking %q: %w", candidate, err)
			}
			if ok {
				cfg, err := r.configFromMarker(dir, candidate)
				return dir, cfg, err
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", entity.WorkerConfig{}, &errors.ConfigResolutionError{
		Scope:  docPath,
		Reason: "no project configuration file found in any parent directory",
	}
}

func (r *resolver) configFromMarker(root, configFile string) (entity.WorkerConfig, error) {
	cfg := entity.WorkerConfig{
		Command:      r.workerCommand,
		BuildCommand: r.buildCommand,
		Root:         root,
		Cwd:          root,
		ConfigFile:   configFile,
	}
	if len(cfg.Command) == 0 {
		// Re-exec this binary's worker subcommand by default.
		self, err := os.Executable()
		if err != nil {
			return entity.WorkerConfig{}, fmt.Errorf("locating server executable: %w", err)
		}
		cfg.Command = []string{self, "build-worker"}
	}

	if filepath.Ext(configFile) == ".yaml" || filepath.Ext(configFile) == ".yml" {
		data, err := r.fs.ReadFile(configFile)
		if err != nil {
			return entity.WorkerConfig{}, &errors.ConfigResolutionError{
				Scope:  root,
				Reason: fmt.Sprintf("reading %s: %v", filepath.Base(configFile), err),
			}
		}
		var pf projectFile
		if err := yaml.Unmarshal(data, &pf); err != nil {
			return entity.WorkerConfig{}, &errors.ConfigResolutionError{
				Scope:  root,
				Reason: fmt.Sprintf("parsing %s: %v", filepath.Base(configFile), err),
			}
		}
		if len(pf.BuildCommand) > 0 {
			cfg.BuildCommand = pf.BuildCommand
		}
		cfg.Env = pf.Env
		cfg.Options = map[string]interface{}{}
		if pf.Builder != "" {
			cfg.Options["builder"] = pf.Builder
		}
		if pf.SrcDir != "" {
			cfg.Options["srcDir"] = absolutize(root, pf.SrcDir)
			cfg.Cwd = absolutize(root, pf.SrcDir)
		}
		if pf.BuildDir != "" {
			cfg.Options["buildDir"] = absolutize(root, pf.BuildDir)
		}
	}

	if len(cfg.BuildCommand) == 0 {
		return entity.WorkerConfig{}, &errors.ConfigResolutionError{
			Scope:  root,
			Reason: "no build command configured for project",
		}
	}
	return cfg, nil
}

func absolutize(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
