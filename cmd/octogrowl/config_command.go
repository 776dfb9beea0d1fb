package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"octogrowl/internal/app"
)

func newConfigCommand(configPath *string) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, false)
			if err != nil {
				return err
			}
			if err := app.ValidateConfig(cfg); err != nil {
				return fmt.Errorf("%s: %w", *configPath, err)
			}
			rc, _ := app.MapReceiver(cfg.Receiver)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration valid: %s\n", *configPath)
			fmt.Fprintf(out, "Receiver: %s (timeout %s, hash %s)\n", rc.Endpoint(), rc.Timeout, rc.HashAlgorithm)
			return nil
		},
	})
	return configCmd
}
