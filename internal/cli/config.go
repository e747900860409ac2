package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/todos/internal/paths"
	"github.com/mesh-intelligence/todos/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "TODOS"

	cfgKeyBackend     = "backend"
	cfgKeyDataDir     = "data_dir"
	cfgKeyPostgresDSN = "postgres_dsn"
	cfgKeyServerURL   = "server_url"
	cfgKeyListenAddr  = "listen_addr"
	cfgKeyLatency     = "latency"
	cfgKeyLogLevel    = "log_level"
	cfgKeyLogFile     = "log_file"

	defaultListenAddr = ":8080"
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# todo CLI configuration

# Backend selection: sqlite, local, postgres or http
backend: sqlite

# Data directory for the sqlite and local backends
# (optional; overridable by --data-dir)
# data_dir:

# postgres_dsn: postgres://localhost/todos?sslmode=disable
# server_url: http://localhost:8080
# listen_addr: ":8080"

# Simulated latency for the local backend, e.g. 200ms
# latency: 0s

# log_level: warn
`

// loadConfig reads config.yaml from configDir using Viper. It creates the
// config directory and a default config.yaml on first run. Every key can be
// overridden by an environment variable named TODOS_<KEY>.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyListenAddr, defaultListenAddr)
	v.SetDefault(cfgKeyLatency, time.Duration(0))
	v.SetDefault(cfgKeyLogLevel, "warn")
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ensureDefaultConfigFile creates a default config.yaml if the file does not
// exist in configDir.
func ensureDefaultConfigFile(configDir string) error {
	path := paths.ConfigFile(configDir)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// backendConfig assembles the types.Config for the selected backend.
func (a *app) backendConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, a.v.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg := types.Config{
		Backend:     a.v.GetString(cfgKeyBackend),
		DataDir:     dataDir,
		PostgresDSN: a.v.GetString(cfgKeyPostgresDSN),
		ServerURL:   a.v.GetString(cfgKeyServerURL),
		Latency:     a.v.GetDuration(cfgKeyLatency),
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, usageError("invalid configuration: %s", err)
	}
	return cfg, nil
}
