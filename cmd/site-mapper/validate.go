package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/site-mapper/pkg/config"
)

// NewValidateCmd creates the validate command
func NewValidateCmd() *cobra.Command {
	var showEffective bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and print warnings",
		Long: `Load the configuration from defaults, the optional --config file and the
environment, apply defaults, and report warnings or the first fatal error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			logLevel, _ := cmd.Flags().GetString("loglevel")
			return doValidate(configPath, logLevel, showEffective, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&showEffective, "show", false, "Print the effective configuration as YAML")
	return cmd
}

// doValidate loads and validates the configuration, writing the report to stdout
func doValidate(configPath, logLevel string, showEffective bool, stdout io.Writer) error {
	appCfg, warnings, err := loadAppConfig(configPath, logLevel, nil)
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, "OK: configuration is valid")
	if showEffective {
		data, err := yaml.Marshal(appCfg.AsMap())
		if err != nil {
			return fmt.Errorf("marshal effective config: %w", err)
		}
		fmt.Fprintf(stdout, "\n%s", data)
	}
	return nil
}

// loadAppConfig loads the configuration, applies command-line overrides, and validates it
func loadAppConfig(configPath, logLevel string, override func(*config.AppConfig)) (*config.AppConfig, []string, error) {
	appCfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		appCfg.Log.Level = logLevel
	}
	if override != nil {
		override(&appCfg)
	}
	warnings, err := appCfg.Validate()
	if err != nil {
		return nil, warnings, err
	}
	return &appCfg, warnings, nil
}
