package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"digital.vasic.challengeboard/pkg/config"
	"digital.vasic.challengeboard/pkg/logging"
)

// app is the state shared by every command.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "challengeboard",
		Short: "Rotating challenge lists with per-participant progress",
		Long: `challengeboard loads challenge lists from YAML files, rotates the
visible subset of each list on its interval, and tracks participant
progress, completions and rewards.

Configuration is read from CHALLENGEBOARD_* environment variables,
optionally seeded from a .env file. A config file and command line
flags override the environment.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.logger != nil {
				return a.logger.Close()
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("env-file", ".env", "dotenv file seeding the environment")
	flags.String("config", "", "config file (yaml, json or toml)")
	flags.String("catalog", "", "directory of list files")
	flags.String("log-level", "", "log file level: debug, info, warn, error")
	flags.String("logs-dir", "", "directory for engine.log")
	flags.Bool("verbose", false, "verbose console output")
	flags.Bool("testing", false, "use shortened rotation intervals")

	for key, flag := range map[string]string{
		"config":       "config",
		"catalog_dir":  "catalog",
		"log_level":    "log-level",
		"logs_dir":     "logs-dir",
		"verbose":      "verbose",
		"testing_mode": "testing",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newServeCmd(a),
		newValidateCmd(a),
		newReportCmd(a),
		newIntervalCmd(),
		newVersionCmd(),
	)
	return root
}

// load builds the configuration: environment first, then the
// config file, then explicitly set flags.
func (a *app) load(cmd *cobra.Command) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	if path := a.v.GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}
	overlay(cfg, a.v)
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	a.logger = logger
	a.logger.Debug("configuration loaded", cfg.LogFields()...)
	return nil
}

// overlay copies every key set in v onto cfg.
func overlay(cfg *config.Config, v *viper.Viper) {
	strs := map[string]*string{
		"catalog_dir":     &cfg.CatalogDir,
		"store_driver":    &cfg.StoreDriver,
		"store_path":      &cfg.StorePath,
		"rotation_policy": &cfg.Policy,
		"http_addr":       &cfg.HTTPAddr,
		"monitor_addr":    &cfg.MonitorAddr,
		"logs_dir":        &cfg.LogsDir,
		"log_level":       &cfg.LogLevel,
		"webhook_url":     &cfg.WebhookURL,
		"webhook_token":   &cfg.WebhookToken,
		"history_file":    &cfg.HistoryFile,
	}
	for k, p := range strs {
		if v.IsSet(k) {
			*p = v.GetString(k)
		}
	}

	ticks := map[string]*int64{
		"rotation_ticks":  &cfg.RotationTicks,
		"refresh_ticks":   &cfg.RefreshTicks,
		"save_ticks":      &cfg.SaveTicks,
		"play_time_ticks": &cfg.PlayTimeTicks,
	}
	for k, p := range ticks {
		if v.IsSet(k) {
			*p = v.GetInt64(k)
		}
	}

	if v.IsSet("tick") {
		cfg.TickInterval = v.GetDuration("tick")
	}
	if v.IsSet("replacement_timeout") {
		cfg.ReplacementTimeout = v.GetDuration("replacement_timeout")
	}
	if v.IsSet("webhook_timeout") {
		cfg.WebhookTimeout = v.GetDuration("webhook_timeout")
	}
	if v.IsSet("testing_mode") {
		cfg.Testing = v.GetBool("testing_mode")
	}
	if v.IsSet("verbose") {
		cfg.Verbose = v.GetBool("verbose")
	}
}

// newLogger logs to the console and, when a logs directory is
// configured, to engine.log as JSON lines.
func newLogger(cfg *config.Config) (logging.Logger, error) {
	console := logging.NewConsoleLoggerTo(os.Stderr, cfg.Verbose)
	if cfg.LogsDir == "" {
		return console, nil
	}
	if err := os.MkdirAll(cfg.LogsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	file, err := logging.NewJSONLogger(logging.LoggerConfig{
		OutputPath: filepath.Join(cfg.LogsDir, "engine.log"),
		Level:      logging.ParseLevel(cfg.LogLevel),
		Verbose:    cfg.Verbose,
	})
	if err != nil {
		return nil, err
	}
	return logging.NewMultiLogger(console, file), nil
}
