package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the broker process: the wire
// listeners, the storage engine tunables, and the admin/observability
// surface.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Engine EngineConfig `yaml:"engine"`
	Admin  AdminConfig  `yaml:"admin"`
}

// ServerConfig configures the TCP and UDP listeners that speak the wire
// protocol (§6). Transport selection itself is a collaborator concern; this
// struct only carries what the listener needs to bind.
type ServerConfig struct {
	TCPAddress string    `yaml:"tcp_address" default:":8477"`
	UDPAddress string    `yaml:"udp_address" default:":8478"`
	LogLevel   string    `yaml:"log_level" default:"info"`
	LogFormat  string    `yaml:"log_format" default:"json"`
	TLS        TLSConfig `yaml:"tls"`
}

// TLSConfig enables TLS on the TCP listener. UDP stays cleartext: the
// datagram path has no handshake to hang a TLS session off.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	AutoCert bool   `yaml:"auto_cert"`
}

// EngineConfig carries the tunables the storage engine needs for every new
// partition/segment, plus where on disk the engine roots itself.
type EngineConfig struct {
	BaseDir                string        `yaml:"base_dir" default:"/var/lib/tidelog"`
	DefaultPartitionsCount uint32        `yaml:"default_partitions_count" default:"1"`
	MaxSegmentSize         int64         `yaml:"max_segment_size" default:"1073741824"`
	IndexIntervalBytes     int64         `yaml:"index_interval_bytes" default:"4096"`
	MessagesRequiredToSave int           `yaml:"messages_required_to_save" default:"1000"`
	MaxBatchSize           int           `yaml:"max_batch_size" default:"1000"`
	FsyncOnFlush           bool          `yaml:"fsync_on_flush" default:"true"`
	ShutdownGrace          time.Duration `yaml:"shutdown_grace" default:"30s"`
}

// AdminConfig configures the administrative observability surface (§1: an
// external collaborator). It is intentionally thin: health, metrics,
// version and a handful of read-only debug endpoints.
type AdminConfig struct {
	Address          string  `yaml:"address" default:":8479"`
	Enabled          bool    `yaml:"enabled" default:"true"`
	AcceptRatePerSec float64 `yaml:"accept_rate_per_sec" default:"50"`
	AcceptBurst      int     `yaml:"accept_burst" default:"100"`
}

// Default returns a Config with every field set to its documented default,
// suitable for tests and for a first run with no config file present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			TCPAddress: ":8477",
			UDPAddress: ":8478",
			LogLevel:   "info",
			LogFormat:  "json",
		},
		Engine: EngineConfig{
			BaseDir:                "/var/lib/tidelog",
			DefaultPartitionsCount: 1,
			MaxSegmentSize:         1 << 30,
			IndexIntervalBytes:     4096,
			MessagesRequiredToSave: 1000,
			MaxBatchSize:           1000,
			FsyncOnFlush:           true,
			ShutdownGrace:          30 * time.Second,
		},
		Admin: AdminConfig{
			Address:          ":8479",
			Enabled:          true,
			AcceptRatePerSec: 50,
			AcceptBurst:      100,
		},
	}
}

// ApplyDefaults fills in zero-valued fields with their documented defaults,
// mirroring the teacher's per-struct ApplyDefaults convention.
func (c *Config) ApplyDefaults() {
	d := Default()
	if c.Server.TCPAddress == "" {
		c.Server.TCPAddress = d.Server.TCPAddress
	}
	if c.Server.UDPAddress == "" {
		c.Server.UDPAddress = d.Server.UDPAddress
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = d.Server.LogLevel
	}
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = d.Server.LogFormat
	}
	if c.Engine.BaseDir == "" {
		c.Engine.BaseDir = d.Engine.BaseDir
	}
	if c.Engine.DefaultPartitionsCount == 0 {
		c.Engine.DefaultPartitionsCount = d.Engine.DefaultPartitionsCount
	}
	if c.Engine.MaxSegmentSize == 0 {
		c.Engine.MaxSegmentSize = d.Engine.MaxSegmentSize
	}
	if c.Engine.IndexIntervalBytes == 0 {
		c.Engine.IndexIntervalBytes = d.Engine.IndexIntervalBytes
	}
	if c.Engine.MessagesRequiredToSave == 0 {
		c.Engine.MessagesRequiredToSave = d.Engine.MessagesRequiredToSave
	}
	if c.Engine.MaxBatchSize == 0 {
		c.Engine.MaxBatchSize = d.Engine.MaxBatchSize
	}
	if c.Engine.ShutdownGrace == 0 {
		c.Engine.ShutdownGrace = d.Engine.ShutdownGrace
	}
	if c.Admin.Address == "" {
		c.Admin.Address = d.Admin.Address
	}
	if c.Admin.AcceptRatePerSec == 0 {
		c.Admin.AcceptRatePerSec = d.Admin.AcceptRatePerSec
	}
	if c.Admin.AcceptBurst == 0 {
		c.Admin.AcceptBurst = d.Admin.AcceptBurst
	}
}

// Validate checks the configuration for values the engine cannot operate
// with, mirroring the teacher's per-struct Validate convention.
func (c *Config) Validate() error {
	if c.Engine.BaseDir == "" {
		return fmt.Errorf("config: engine.base_dir is required")
	}
	if c.Engine.MaxSegmentSize <= 0 {
		return fmt.Errorf("config: engine.max_segment_size must be positive")
	}
	if c.Engine.IndexIntervalBytes <= 0 {
		return fmt.Errorf("config: engine.index_interval_bytes must be positive")
	}
	if c.Engine.DefaultPartitionsCount == 0 {
		return fmt.Errorf("config: engine.default_partitions_count must be positive")
	}
	if c.Server.TLS.Enabled && !c.Server.TLS.AutoCert && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		return fmt.Errorf("config: server.tls requires cert_file and key_file, or auto_cert")
	}
	return nil
}
