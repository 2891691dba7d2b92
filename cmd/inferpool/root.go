package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inferpool/internal/config"
)

// rootOptions carries persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "inferpool",
		Short:         "Slot broker and OpenAI gateway for a fleet of inference servers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (.yaml, .yml, .json or .toml)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before INFERPOOL_* overrides")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: trace|debug|info|warn|error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: json|console")

	root.AddCommand(newServeCmd(opts), newModelsCmd(opts))
	return root
}

// loadConfig layers defaults, the config file, the environment (after the
// dotenv file) and finally any flags the user set on cmd.
func loadConfig(cmd *cobra.Command, opts *rootOptions, getenv func(string) string) (config.Config, error) {
	if err := loadDotenv(cmd, opts.envFile); err != nil {
		return config.Config{}, err
	}

	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return cfg, err
		}
	}
	if err := config.ApplyEnv(&cfg, getenv); err != nil {
		return cfg, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.LogFormat = opts.logFormat
	}
	applyFlags(cmd, &cfg)
	return cfg, cfg.Validate()
}

// loadDotenv tolerates a missing default .env but not one the user asked for.
func loadDotenv(cmd *cobra.Command, path string) error {
	if path == "" {
		return nil
	}
	path, err := config.ExpandHome(path)
	if err != nil {
		return err
	}
	err = godotenv.Load(path)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("env-file") {
		return nil
	}
	return fmt.Errorf("env file %s: %w", path, err)
}

// applyFlags copies flags that were explicitly set. Subcommands only define
// the flags that make sense for them; Lookup skips the rest.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	fl := cmd.Flags()
	changed := func(name string) bool {
		f := fl.Lookup(name)
		return f != nil && f.Changed
	}
	if changed("addr") {
		cfg.Addr, _ = fl.GetString("addr")
	}
	if changed("servers") {
		v, _ := fl.GetString("servers")
		cfg.Servers = config.SplitCSV(v)
	}
	if changed("max-concurrency") {
		cfg.MaxConcurrency, _ = fl.GetInt("max-concurrency")
	}
	if changed("refresh-interval") {
		cfg.RefreshIntervalSeconds, _ = fl.GetInt("refresh-interval")
	}
	if changed("manifest-timeout") {
		cfg.ManifestTimeoutSeconds, _ = fl.GetInt("manifest-timeout")
	}
	if changed("acquire-timeout") {
		cfg.AcquireTimeoutSeconds, _ = fl.GetInt("acquire-timeout")
	}
	if changed("max-body-bytes") {
		cfg.MaxBodyBytes, _ = fl.GetInt64("max-body-bytes")
	}
	if changed("http-log-level") {
		cfg.HTTPLogLevel, _ = fl.GetString("http-log-level")
	}
	if changed("cors-enabled") {
		cfg.CORS.Enabled, _ = fl.GetBool("cors-enabled")
	}
	if changed("cors-origins") {
		v, _ := fl.GetString("cors-origins")
		cfg.CORS.AllowedOrigins = config.SplitCSV(v)
	}
}

// addServerFlags registers the flags both serve and models understand.
func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().String("servers", "", "Comma separated backend base URLs, in priority order")
	cmd.Flags().Int("manifest-timeout", 0, "Per-server manifest fetch timeout in seconds")
}

func newLogger(cfg config.Config, out io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if cfg.LogFormat == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("service", "inferpool").Logger()
}

var stderr io.Writer = os.Stderr
