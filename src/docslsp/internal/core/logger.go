package core

import (
	"os"

	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig represents the logging configuration from the config files.
type LoggingConfig struct {
	Level       string   `yaml:"level"`
	Development bool     `yaml:"development"`
	Encoding    string   `yaml:"encoding"`
	OutputPaths []string `yaml:"outputPaths"`
}

// LoggerModule provides the logger dependencies.
var LoggerModule = fx.Options(
	fx.Provide(NewSugaredLogger),
	fx.Provide(NewLogger),
)

func NewLogger(sugar *zap.SugaredLogger) *zap.Logger {
	return sugar.Desugar()
}

// NewSugaredLogger creates a new zap.SugaredLogger based on the configuration.
// Output defaults to stderr: when an IDE launches the daemon directly, stdout
// belongs to the JSON-RPC stream and must stay free of log lines.
func NewSugaredLogger(provider config.Provider) (*zap.SugaredLogger, error) {
	var loggingConfig LoggingConfig
	if err := provider.Get("logging").Populate(&loggingConfig); err != nil {
		return nil, err
	}

	level, err := zapcore.ParseLevel(loggingConfig.Level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	if loggingConfig.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	var encoder zapcore.Encoder
	switch loggingConfig.Encoding {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	sink, err := openSinks(loggingConfig.OutputPaths)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(encoder, sink, level)

	var logger *zap.Logger
	if loggingConfig.Development {
		logger = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	} else {
		logger = zap.New(core)
	}

	return logger.Sugar(), nil
}

func openSinks(paths []string) (zapcore.WriteSyncer, error) {
	if len(paths) == 0 {
		return zapcore.AddSync(os.Stderr), nil
	}

	var errs error
	sinks := make([]zapcore.WriteSyncer, 0, len(paths))
	for _, path := range paths {
		switch path {
		case "stderr":
			sinks = append(sinks, zapcore.AddSync(os.Stderr))
		case "stdout":
			sinks = append(sinks, zapcore.AddSync(os.Stdout))
		default:
			f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			sinks = append(sinks, zapcore.AddSync(f))
		}
	}
	if errs != nil {
		return nil, errs
	}
	return zapcore.NewMultiWriteSyncer(sinks...), nil
}
