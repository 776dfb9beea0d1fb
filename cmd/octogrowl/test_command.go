package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"octogrowl/internal/app"
	"octogrowl/internal/growl"
)

func newTestCommand(configPath *string) *cobra.Command {
	var (
		host     string
		port     int
		password string
	)

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Register with a Growl receiver and send one test notification",
		Long: "Register with a Growl receiver and send one test notification.\n" +
			"Host, port and password default to the receiver section of the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			base := growl.DefaultReceiverConfig()
			cfg, err := loadConfig(*configPath, true)
			if err != nil {
				return err
			}
			if cfg != nil {
				if base, err = app.MapReceiver(cfg.Receiver); err != nil {
					return err
				}
			}
			req := growl.TestRequest{Host: base.Hostname, Port: base.Port, Password: base.Password}
			if cmd.Flags().Changed("host") {
				req.Host = strings.TrimSpace(host)
			}
			if cmd.Flags().Changed("port") {
				req.Port = port
			}
			if cmd.Flags().Changed("password") {
				req.Password = password
			}

			admin := growl.NewAdmin(growl.NewManager(growl.GNTPFactory()),
				growl.WithBaseConfig(func() growl.ReceiverConfig { return base }))
			ctx, cancel := context.WithTimeout(cmd.Context(), base.Timeout*2)
			defer cancel()

			res := admin.TestConnectivity(ctx, req)
			out := cmd.OutOrStdout()
			target := fmt.Sprintf("%s:%d", req.Host, req.Port)
			if !res.Success {
				fmt.Fprintf(out, "FAIL %s: %s\n", target, res.Message)
				return errors.New("connectivity test failed")
			}
			fmt.Fprintf(out, "OK   %s: test notification sent\n", target)
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Receiver hostname")
	cmd.Flags().IntVar(&port, "port", growl.DefaultPort, "Receiver GNTP port")
	cmd.Flags().StringVar(&password, "password", "", "Receiver password")
	return cmd
}
