package logging

import (
    "fmt"

    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
)

// New builds the process logger: JSON in production, console when dev is set.
// verbose forces debug regardless of level.
func New(level string, dev, verbose bool) (*zap.Logger, error) {
    config := zap.NewProductionConfig()
    if dev { config = zap.NewDevelopmentConfig() }
    if level != "" {
        lvl, err := zapcore.ParseLevel(level)
        if err != nil { return nil, fmt.Errorf("invalid log level %q: %w", level, err) }
        config.Level = zap.NewAtomicLevelAt(lvl)
    }
    if verbose {
        config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
    }
    logger, err := config.Build()
    if err != nil { return nil, fmt.Errorf("failed to initialize logger: %w", err) }
    return logger, nil
}
