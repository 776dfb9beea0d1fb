package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"octogrowl/internal/discovery"
	"octogrowl/internal/growl"
)

func newDiscoverCommand(configPath *string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List configured receivers and whether they accept connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, false)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cfg.Discovery == nil || len(cfg.Discovery.Instances) == 0 {
				fmt.Fprintln(out, "No receivers configured (discovery.instances is empty).")
				return nil
			}

			var all []growl.DiscoveryRecord
			for _, in := range cfg.Discovery.Instances {
				name := strings.TrimSpace(in.Name)
				if name == "" {
					name = in.Host
				}
				all = append(all, growl.DiscoveryRecord{Name: name, Host: in.Host, Port: in.Port})
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout+time.Second)
			defer cancel()
			reachable, err := discovery.NewReachable(discovery.NewStatic(all), timeout).Browse(ctx)
			if err != nil {
				return err
			}
			up := make(map[growl.DiscoveryRecord]bool, len(reachable))
			for _, r := range reachable {
				up[r] = true
			}

			color := shouldColorize(out)
			rows := make([][]string, 0, len(all))
			for _, r := range all {
				state := "no"
				if up[r] {
					state = "yes"
				}
				if color {
					if up[r] {
						state = text.FgGreen.Sprint(state)
					} else {
						state = text.FgRed.Sprint(state)
					}
				}
				rows = append(rows, []string{r.Name, r.Host, strconv.Itoa(r.Port), state})
			}
			fmt.Fprintln(out, renderTable([]string{"Name", "Host", "Port", "Reachable"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "Per-receiver connect timeout")
	return cmd
}
