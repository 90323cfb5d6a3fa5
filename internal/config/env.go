package config

import (
	"os"
	"strconv"
	"time"
)

// LoadFromEnv overlays TIDELOG_* environment variables onto cfg, taking
// precedence over whatever the config file set.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("TIDELOG_TCP_ADDRESS"); v != "" {
		cfg.Server.TCPAddress = v
	}
	if v := os.Getenv("TIDELOG_UDP_ADDRESS"); v != "" {
		cfg.Server.UDPAddress = v
	}
	if v := os.Getenv("TIDELOG_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := os.Getenv("TIDELOG_LOG_FORMAT"); v != "" {
		cfg.Server.LogFormat = v
	}
	if v := os.Getenv("TIDELOG_BASE_DIR"); v != "" {
		cfg.Engine.BaseDir = v
	}
	if v := os.Getenv("TIDELOG_MAX_SEGMENT_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Engine.MaxSegmentSize = n
		}
	}
	if v := os.Getenv("TIDELOG_INDEX_INTERVAL_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Engine.IndexIntervalBytes = n
		}
	}
	if v := os.Getenv("TIDELOG_SHUTDOWN_GRACE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.ShutdownGrace = d
		}
	}
	if v := os.Getenv("TIDELOG_ADMIN_ADDRESS"); v != "" {
		cfg.Admin.Address = v
	}
	if v := os.Getenv("TIDELOG_TLS_CERT_FILE"); v != "" {
		cfg.Server.TLS.CertFile = v
		cfg.Server.TLS.Enabled = true
	}
	if v := os.Getenv("TIDELOG_TLS_KEY_FILE"); v != "" {
		cfg.Server.TLS.KeyFile = v
		cfg.Server.TLS.Enabled = true
	}
}

// GetEnvOrDefault returns the environment variable's value or defaultValue
// if it is unset or empty.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
