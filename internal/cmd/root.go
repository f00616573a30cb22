package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/basetemp/internal/config"
	"github.com/Iron-Ham/basetemp/internal/errors"
	"github.com/Iron-Ham/basetemp/internal/gc"
	"github.com/Iron-Ham/basetemp/internal/logging"
	"github.com/Iron-Ham/basetemp/internal/registrar"
	"github.com/Iron-Ham/basetemp/internal/tmpfactory"
)

var rootCmd = &cobra.Command{
	Use:   "basetemp",
	Short: "Numbered temporary directories shared safely by concurrent runs",
	Long: `basetemp hands out numbered working directories (run-0, run-1, ...) under a
shared root. Any number of processes may allocate at once without colliding.
Each run locks its directory while it is alive; older directories are garbage
collected once they fall outside the keep window and their lock is gone or
has outlived the lock timeout.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupApp,
}

// appState is built from configuration once per invocation.
type appState struct {
	cfg       *config.Config
	logger    *logging.Logger
	registrar *registrar.Registrar
}

var app *appState

// Execute runs the root command. Locks registered during the run are released
// before it returns.
func Execute() error {
	defer shutdown()
	return rootCmd.Execute()
}

// flagBindings maps persistent flags to config keys.
var flagBindings = map[string]string{
	"config":       "config",
	"root":         "basetemp.root",
	"basetemp":     "basetemp.given",
	"prefix":       "basetemp.prefix",
	"keep":         "basetemp.keep",
	"lock-timeout": "basetemp.lock_timeout",
	"log-level":    "logging.level",
	"log-file":     "logging.file",
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.config/basetemp/config.yaml)")
	flags.String("root", "", "root directory for numbered run directories")
	flags.String("basetemp", "", "use this exact directory, wiped first, instead of a numbered one")
	flags.String("prefix", "", "name prefix of numbered run directories")
	flags.Int("keep", 0, "number of newest run directories never collected")
	flags.String("lock-timeout", "", "how long a lock stays live, e.g. 72h")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-file", "", "append logs to this file instead of stderr")
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	for name, key := range flagBindings {
		_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name))
	}

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/basetemp")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("BASETEMP")
	// Replace dots with underscores for nested keys in env vars
	// e.g., BASETEMP_BASETEMP_KEEP for basetemp.keep
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

func setupApp(cmd *cobra.Command, args []string) error {
	if app != nil {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}

	app = &appState{
		cfg:       cfg,
		logger:    logger,
		registrar: registrar.New(registrar.CurrentToken(), logger),
	}
	return nil
}

// shutdown releases every lock this process registered and closes the log.
func shutdown() {
	if app == nil {
		return
	}
	app.registrar.RunAll(registrar.CurrentToken())
	_ = app.logger.Close()
	app = nil
}

// newFactory builds a Factory from configuration. Lock removal is registered
// with reg; a nil reg leaves the lock in place after exit.
func (a *appState) newFactory(reg *registrar.Registrar, metrics *gc.Metrics) *tmpfactory.Factory {
	return tmpfactory.New(tmpfactory.Options{
		Given:       a.cfg.BaseTemp.Given,
		Root:        a.cfg.BaseTemp.Root,
		Prefix:      a.cfg.BaseTemp.Prefix,
		Keep:        a.cfg.BaseTemp.Keep,
		LockTimeout: a.cfg.BaseTemp.LockTimeoutDuration(),
		Registrar:   reg,
		Logger:      a.logger,
		Metrics:     metrics,
	})
}

// ExitError carries a child process's exit status out of Execute.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ErrorMessage renders err for the terminal. Errors that carry a message
// written for users are shown as is; anything else is marked as an error.
func ErrorMessage(err error) string {
	if errors.IsUserFacing(err) {
		return err.Error()
	}
	return "Error: " + err.Error()
}
