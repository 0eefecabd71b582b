// Package serverinfofile maintains the daemon's discovery file, a small JSON
// document that IDE plugins read to find a running docs-lsp instance.
package serverinfofile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const _configKeyInfoFile = "serverInfoFilePath"

// Module is the Fx module for this package.
var Module = fx.Provide(New)

// ServerInfoFile manages the contents of the discovery file. Components write
// their fields at startup (listen address, pid, executable path); the file is
// removed again when the daemon stops so clients never dial a dead instance.
type ServerInfoFile interface {
	UpdateField(key string, value string) error
}

type module struct {
	infofile     string
	logger       *zap.SugaredLogger
	fileContents map[string]string
	mu           sync.Mutex
}

// Params define values to be used by ServerInfoFile.
type Params struct {
	fx.In

	Config    config.Provider
	Lifecycle fx.Lifecycle
	Logger    *zap.SugaredLogger
}

// New creates the ServerInfoFile at the configured path and schedules its
// removal on shutdown.
func New(p Params) (ServerInfoFile, error) {
	m := module{
		logger:       p.Logger,
		fileContents: make(map[string]string),
	}

	if err := m.processConfig(p.Config); err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: m.OnStop,
	})

	return &m, nil
}

// OnStop removes the discovery file so stale info does not outlive the daemon.
func (m *module) OnStop(ctx context.Context) error {
	if m.infofile != "" {
		if err := os.Remove(m.infofile); err != nil {
			return err
		}
	}

	return nil
}

// UpdateField sets one key and rewrites the whole file, so readers always see
// a complete JSON document.
func (m *module) UpdateField(key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fileContents[key] = value
	jsonOutput, err := json.Marshal(m.fileContents)
	if err != nil {
		return fmt.Errorf("marshalling json: %w", err)
	}

	if err := os.WriteFile(m.infofile, jsonOutput, 0644); err != nil {
		return fmt.Errorf("writing info file: %w", err)
	}
	m.logger.Infow("server info saved", zap.String("file", m.infofile), zap.String(key, value))
	return nil
}

func (m *module) processConfig(cfg config.Provider) error {
	val := cfg.Get(_configKeyInfoFile)
	if err := val.Populate(&m.infofile); err != nil {
		// incorrectly formatted config
		return fmt.Errorf("getting config field %q: %w", _configKeyInfoFile, err)
	}

	if m.infofile == "" {
		// yaml is missing either the key or value
		return fmt.Errorf("missing field %q in config", _configKeyInfoFile)
	}

	return nil
}
