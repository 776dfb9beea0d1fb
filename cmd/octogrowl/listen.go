package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"octogrowl/internal/gntp"
	"octogrowl/internal/gntp/gntptest"
)

func newListenCommand() *cobra.Command {
	var (
		addr     string
		password string
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Run a GNTP receiver that prints every request it gets",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var mu sync.Mutex
			srv, err := gntptest.New(
				gntptest.WithAddr(addr),
				gntptest.WithBehavior(gntptest.Behavior{Password: password}),
				gntptest.OnRequest(func(r gntptest.Request) {
					mu.Lock()
					defer mu.Unlock()
					printRequest(out, r)
				}),
			)
			if err != nil {
				return err
			}
			defer srv.Close()
			fmt.Fprintf(out, "Listening for GNTP on %s\n", srv.Addr())

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", fmt.Sprintf("127.0.0.1:%d", gntp.DefaultPort), "Listen address")
	cmd.Flags().StringVar(&password, "password", "", "Require this password")
	return cmd
}

func printRequest(w io.Writer, r gntptest.Request) {
	fmt.Fprintf(w, "%s %s from %s\n", r.ReceivedAt.Format("15:04:05"), r.Directive, r.RemoteAddr)
	for _, h := range r.Headers {
		fmt.Fprintf(w, "  %s: %s\n", h.Name, h.Value)
	}
	for i, s := range r.Sections {
		fmt.Fprintf(w, "  [%d] %s (enabled=%s)\n", i, s.Get(gntp.HeaderNotificationName), s.Get(gntp.HeaderNotificationEnabled))
	}
}
