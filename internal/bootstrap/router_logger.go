package bootstrap

import (
	"os"

	"query_router/config"
	"query_router/pkg/logger"
)

// InitLogger configures the default logger from cfg.
func InitLogger(cfg *config.Config) {
	lc := logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Output:  os.Stdout,
		Service: "query-router",
		Console: cfg.IsDevelopment(),
	}
	if cfg.LogFile != "" {
		lc.File = &logger.FileConfig{
			Path:       cfg.LogFile,
			MaxSizeMB:  cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAgeDays: cfg.LogMaxAgeDays,
		}
	}
	logger.Init(lc)
}
