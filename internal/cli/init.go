package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/todos/internal/paths"
	"github.com/mesh-intelligence/todos/pkg/types"
)

// configFile holds the structure written to config.yaml by init.
type configFile struct {
	Backend     string `yaml:"backend"`
	DataDir     string `yaml:"data_dir,omitempty"`
	PostgresDSN string `yaml:"postgres_dsn,omitempty"`
	ServerURL   string `yaml:"server_url,omitempty"`
}

func newInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and storage",
		Long: `Init writes config.yaml with the resolved backend and data directory,
then attaches the backend once so its storage exists.

An existing config.yaml that already names a data directory is kept unless
--force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, err := paths.ResolveConfigDir(a.flags.configDir)
			if err != nil {
				return fmt.Errorf("resolve config dir: %w", err)
			}
			cfg, err := a.backendConfig()
			if err != nil {
				return err
			}
			path := paths.ConfigFile(configDir)
			if force || !a.v.IsSet(cfgKeyDataDir) {
				if err := writeConfig(path, cfg); err != nil {
					return fmt.Errorf("write config: %w", err)
				}
			}

			backend, _, err := a.attachBackend()
			if err != nil {
				return fmt.Errorf("initialize storage: %w", err)
			}
			if err := backend.Detach(); err != nil {
				return fmt.Errorf("finalize storage: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s backend (config: %s)\n", cfg.Backend, path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config.yaml")
	return cmd
}

// writeConfig replaces config.yaml with the settings in cfg.
func writeConfig(path string, cfg types.Config) error {
	out := configFile{
		Backend:     cfg.Backend,
		PostgresDSN: cfg.PostgresDSN,
		ServerURL:   cfg.ServerURL,
	}
	if cfg.Backend == types.BackendSQLite || cfg.Backend == types.BackendLocal {
		out.DataDir = cfg.DataDir
	}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
