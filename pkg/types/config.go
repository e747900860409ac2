package types

import (
	"errors"
	"time"
)

// Config holds backend selection and parameters for Backend.Attach.
type Config struct {
	Backend     string        `json:"backend" yaml:"backend"`
	DataDir     string        `json:"data_dir" yaml:"data_dir"`
	PostgresDSN string        `json:"postgres_dsn,omitempty" yaml:"postgres_dsn,omitempty"`
	ServerURL   string        `json:"server_url,omitempty" yaml:"server_url,omitempty"`
	Latency     time.Duration `json:"latency,omitempty" yaml:"latency,omitempty"`
}

// Supported backend names.
const (
	BackendSQLite   = "sqlite"
	BackendLocal    = "local"
	BackendPostgres = "postgres"
	BackendHTTP     = "http"
)

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrServerURLEmpty = errors.New("server_url must be set for the http backend")
	ErrLatencyInvalid = errors.New("latency must not be negative")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite:   true,
	BackendLocal:    true,
	BackendPostgres: true,
	BackendHTTP:     true,
}

// Validate checks that the Config is well-formed.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.Backend == BackendHTTP && c.ServerURL == "" {
		return ErrServerURLEmpty
	}
	if c.Latency < 0 {
		return ErrLatencyInvalid
	}
	return nil
}
