// Package cli implements the todo command-line interface. Every command
// except serve drives one store.Store session over the configured backend.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/todos/internal/logutils"
	"github.com/mesh-intelligence/todos/internal/paths"
	"github.com/mesh-intelligence/todos/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
}

// app carries per-invocation state from the root command to subcommands.
type app struct {
	flags    rootFlags
	v        *viper.Viper
	log      zerolog.Logger
	closeLog func()
}

// NewRootCmd creates the top-level "todo" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{log: zerolog.Nop(), closeLog: func() {}}

	root := &cobra.Command{
		Use:   "todo",
		Short: "Track todos from the command line",
		Long: "todo creates, edits, completes, deletes, filters and sorts a list of todos\n" +
			"stored in a local file, a Postgres database or a remote todo server.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { a.closeLog() },
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/todos)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: .todos-db)")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	pf.String("backend", types.BackendSQLite, "storage backend (sqlite, local, postgres, http)")
	pf.String("log-level", "warn", "log level (debug, info, warn, error, disabled)")
	pf.String("log-file", "", "write logs to this file instead of stderr")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newAddCmd(a),
		newListCmd(a),
		newUpdateCmd(a),
		newToggleCmd(a),
		newDoneCmd(a),
		newDeleteCmd(a),
		newStatsCmd(a),
		newServeCmd(a),
	)
	return root
}

// setup loads config.yaml and builds the logger before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	for key, flag := range map[string]string{
		cfgKeyBackend:  "backend",
		cfgKeyLogLevel: "log-level",
		cfgKeyLogFile:  "log-file",
	} {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	a.v = v

	log, closer, err := logutils.New(v.GetString(cfgKeyLogLevel), v.GetString(cfgKeyLogFile))
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	a.log = log
	a.closeLog = closer
	a.log.Debug().Str("config_dir", configDir).Str("backend", v.GetString(cfgKeyBackend)).Msg("configured")
	return nil
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		printError(os.Stderr, err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps an error to the process exit status: 1 for problems the
// user can fix by changing the input, 2 for everything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, types.ErrValidationFailed),
		errors.Is(err, types.ErrNotFound),
		errors.Is(err, errUsage):
		return exitUserError
	default:
		return exitSysError
	}
}

// errUsage marks bad command-line input.
var errUsage = errors.New("usage error")

// usageError wraps a message so that it exits with the user-error code.
func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// printError writes err and any field-level validation errors to w.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %s\n", err)
	for _, fe := range types.FieldErrorsOf(err) {
		fmt.Fprintf(w, "  %s: %s\n", fe.Field, fe.Err)
	}
}
