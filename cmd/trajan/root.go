package main

import (
	"github.com/spf13/cobra"

	"github.com/okian/trajan/internal/config"
	"github.com/okian/trajan/pkg/logger"
)

// Version is injected at build time via -ldflags.
var Version = "dev" //nolint:gochecknoglobals // set by the linker

// globals holds the flags shared by every subcommand.
type globals struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg *config.Config
}

func newRootCommand() *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:   "trajan",
		Short: "Trajectory feature pipeline and cohort comparator",
		Long: `trajan reads per-frame tracking tables of multi-agent episodes, derives
geometric and kinematic features per agent, labels each agent's role within
its episode, and tests hypotheses across cohorts of agents.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.init(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "YAML config file (default $"+config.EnvFile+")")
	flags.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&g.logFormat, "log-format", "", "log format: text or json")

	cmd.AddCommand(newRunCommand(g))
	cmd.AddCommand(newSynthCommand(g))
	cmd.AddCommand(newServeCommand(g))
	cmd.AddCommand(newVersionCommand())
	return cmd
}

// init loads the configuration and sets up logging on stderr, so stdout
// carries only command output.
func (g *globals) init(cmd *cobra.Command) error {
	cfg, err := config.LoadFile(cmd.Context(), g.configPath)
	if err != nil {
		return err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.logFormat != "" {
		cfg.LogFormat = g.logFormat
	}
	if err := logger.InitWithOptions(logger.WithWriter(cmd.ErrOrStderr()), logger.WithFormat(cfg.LogFormat)); err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return err
	}
	g.cfg = cfg
	return nil
}
