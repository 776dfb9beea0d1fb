package main

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "./config.json"

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "octogrowl",
		Short:         "Growl notifications for 3D printer events",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", defaultConfigPath, "Configuration file path (.json, .yaml or .toml)")

	rootCmd.AddCommand(newServeCommand(&configFlag))
	rootCmd.AddCommand(newTestCommand(&configFlag))
	rootCmd.AddCommand(newDiscoverCommand(&configFlag))
	rootCmd.AddCommand(newEmitCommand(&configFlag))
	rootCmd.AddCommand(newConfigCommand(&configFlag))
	rootCmd.AddCommand(newListenCommand())
	return rootCmd
}
