package config

import (
	"os"
	"strconv"

	"github.com/nibzard/todoapp-go/internal/utils"
)

// loadFromEnv overrides config from environment variables. If sources is
// non-nil, it tracks the source of each value.
func loadFromEnv(cfg *Config, sources map[string]ConfigSource) {
	set := func(field string) {
		if sources != nil {
			sources[field] = SourceEnv
		}
	}

	if v := os.Getenv("TODOAPP_DB"); v != "" {
		cfg.DBPath = v
		set("db_path")
	}
	if v := os.Getenv("TODOAPP_BCRYPT_COST"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.BcryptCost = i
			set("bcrypt_cost")
		}
	}

	// Logging configuration
	if v := os.Getenv("TODOAPP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
		set("log_level")
	}
	if v := os.Getenv("TODOAPP_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
		set("log_format")
	}
	if v := os.Getenv("TODOAPP_LOG_TIMESTAMPS"); v != "" {
		cfg.LogTimestamps = utils.ParseBool(v)
		set("log_timestamps")
	}
	if v := os.Getenv("TODOAPP_LOG_CALLER"); v != "" {
		cfg.LogCaller = utils.ParseBool(v)
		set("log_caller")
	}
	if v := os.Getenv("TODOAPP_LOG_FILE"); v != "" {
		cfg.LogFile = v
		set("log_file")
	}
}
