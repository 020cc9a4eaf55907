// Package cli implements the helix command line.
package cli

import (
	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	envFile  string
	logLevel string

	// loaded in PersistentPreRunE
	paths  config.Paths
	cfg    config.Config
	cfgErr error
	log    *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "helix",
		Short: "Helix drafts recruiting outreach sequences with an LLM",
		Long: "Helix is a conversational assistant that gathers a recruiter's hiring needs,\n" +
			"drafts a multi-step outreach sequence, and revises it on request.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			if err := config.LoadDotEnv(files...); err != nil {
				return err
			}

			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}

			// A broken config file must not lock users out of "config" commands,
			// so the error is kept and surfaced by commands that need it.
			cfg, cfgErr = config.Load(paths.Config)
			if cfgErr != nil {
				cfg = config.Defaults()
			}

			level := cfg.Logging.Level
			if logLevel != "" {
				level = logLevel
			}
			log = logging.NewStyled(level, cfg.Logging.ConsoleStyle)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.helix/config.yaml)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// loadedConfig returns the validated config or the reason it is unusable.
func loadedConfig() (config.Config, error) {
	if cfgErr != nil {
		return cfg, cfgErr
	}
	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
