// Package main implements the monitortrace CLI.
//
// monitortrace runs a synthetic contention workload under the tracing agent
// and summarizes contention record files.
//
// Usage:
//
//	monitortrace run --workers 8 --monitors 2 --duration 5s --out trace.log
//	monitortrace stats trace.log
//	monitortrace config --config monitortrace.toml
//	monitortrace version
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kolkov/monitortrace/agent"
	"github.com/kolkov/monitortrace/internal/config"
	"github.com/kolkov/monitortrace/internal/logging"
)

// globalOptions holds the persistent flags.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "monitortrace",
		Short:         "Monitor contention tracer",
		Long:          `monitortrace records contended monitor acquisitions as positional text records`,
		Version:       agent.Version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "TOML configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug|info|warn|error), overrides [log].level")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (text|json), overrides [log].format")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newStatsCmd())
	root.AddCommand(newConfigCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

// load resolves the effective configuration: file (or defaults), then flags.
func (o *globalOptions) load() (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return config.Config{}, err
		}
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (o *globalOptions) logger(cmd *cobra.Command, cfg config.Config) logging.Logger {
	return logging.New(cfg.Logging(cmd.ErrOrStderr()))
}
