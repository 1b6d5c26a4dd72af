package cmd

import (
	"github.com/spf13/cobra"

	"vein-assessment/internal/config"
	"vein-assessment/internal/platform/logger"
)

// Version is injected at build time via -ldflags
var Version = "dev"

const defaultConfigPath = "veincheck.yaml"

func NewRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "veincheck",
		Short: "Varicose vein self-assessment service",
		Long: `veincheck runs the patient questionnaire, optional leg-photo analysis
and severity scoring behind an HTTP API, and provides admin tooling for
migrations and record export.`,
		Version:      Version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to the YAML config file")

	load := func() (*config.Config, *logger.Logger, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		log, err := logger.New(cfg.Log.Mode)
		if err != nil {
			return nil, nil, err
		}
		return cfg, log, nil
	}

	cmd.AddCommand(newServeCommand(load))
	cmd.AddCommand(newMigrateCommand(load))
	cmd.AddCommand(newExportCommand(load))
	cmd.AddCommand(newAssessCommand(load))
	return cmd
}

type loader func() (*config.Config, *logger.Logger, error)
