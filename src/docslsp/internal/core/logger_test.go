package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/config"
)

func newLoggingProvider(t *testing.T, yaml string) config.Provider {
	t.Helper()
	provider, err := config.NewYAML(config.Source(strings.NewReader(yaml)))
	require.NoError(t, err)
	return provider
}

func TestNewSugaredLogger(t *testing.T) {
	tests := []struct {
		name          string
		loggingConfig string
		expectError   bool
	}{
		{
			name: "info level json encoding",
			loggingConfig: `
logging:
  level: info
  development: false
  encoding: json
`,
		},
		{
			name: "debug level console encoding",
			loggingConfig: `
logging:
  level: debug
  development: true
  encoding: console
`,
		},
		{
			name: "default encoding and sink",
			loggingConfig: `
logging:
  level: error
`,
		},
		{
			name: "invalid level",
			loggingConfig: `
logging:
  level: invalid
`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newLoggingProvider(t, tt.loggingConfig)

			sugared, err := NewSugaredLogger(provider)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			logger := NewLogger(sugared)
			require.NotNil(t, logger)
			logger.Info("test message")
		})
	}
}

func TestNewSugaredLoggerFileSink(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "daemon.log")
	provider := newLoggingProvider(t, `
logging:
  level: info
  encoding: json
  outputPaths:
    - `+logPath+`
`)

	logger, err := NewSugaredLogger(provider)
	require.NoError(t, err)

	logger.Infow("worker started", "root", "/repo/docs")
	require.NoError(t, logger.Sync())

	contents, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "worker started")
	assert.Contains(t, string(contents), "/repo/docs")
}

func TestNewSugaredLoggerUnwritableSink(t *testing.T) {
	provider := newLoggingProvider(t, `
logging:
  level: info
  outputPaths:
    - /nonexistent-dir/daemon.log
`)

	_, err := NewSugaredLogger(provider)
	assert.Error(t, err)
}

func TestLoggingConfigPopulate(t *testing.T) {
	provider := newLoggingProvider(t, `
logging:
  level: warn
  development: true
  encoding: console
  outputPaths:
    - stdout
    - stderr
`)

	var loggingConfig LoggingConfig
	require.NoError(t, provider.Get("logging").Populate(&loggingConfig))

	assert.Equal(t, "warn", loggingConfig.Level)
	assert.True(t, loggingConfig.Development)
	assert.Equal(t, "console", loggingConfig.Encoding)
	assert.Equal(t, []string{"stdout", "stderr"}, loggingConfig.OutputPaths)
}
