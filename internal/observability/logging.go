// Package observability provides logging and host notification sinks.
package observability

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/config"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/host"
)

// baseConfigs maps a logging.format value to the zap preset it starts from.
var baseConfigs = map[string]func() zap.Config{
	"json":    zap.NewProductionConfig,
	"console": zap.NewDevelopmentConfig,
}

// NewLogger builds the process logger for firearmd, firesim and friends.
// Every entry carries a "service" field when service is non-empty.
//
// Precondition: cfg.Level is a zap level name; cfg.Format is "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig, service string) (*zap.Logger, error) {
	preset, ok := baseConfigs[cfg.Format]
	if !ok {
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}

	zc := preset()
	zc.Level = level
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if service != "" {
		zc.InitialFields = map[string]any{"service": service}
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("building %s logger: %w", cfg.Format, err)
	}
	return logger, nil
}

// LogNotifier is a host.Notifier that writes banners to a zap logger at the
// matching level. firearmd uses it when no interactive client is attached.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
//
// Precondition: logger must be non-nil.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

// Notify implements host.Notifier.
func (n *LogNotifier) Notify(_ context.Context, level host.Level, message string) {
	switch level {
	case host.LevelError:
		n.logger.Error(message)
	case host.LevelWarn:
		n.logger.Warn(message)
	default:
		n.logger.Info(message)
	}
}
