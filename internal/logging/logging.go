package logging

import (
	"os"

	"go.uber.org/zap"
)

// New builds the service logger. APP_LOG_LEVEL=debug switches on debug
// output; anything else gets the zap production defaults.
func New() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if os.Getenv("APP_LOG_LEVEL") == "debug" {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.Development = true
	}
	return cfg.Build()
}
