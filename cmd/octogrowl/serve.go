package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"octogrowl/internal/app"
	"octogrowl/internal/runtime/instance"
	"octogrowl/pkg/systemd"
)

func newServeCommand(configPath *string) *cobra.Command {
	var stopTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the notification bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			lock, err := instance.Acquire(instance.PathFor(*configPath))
			if err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			gin.SetMode(gin.ReleaseMode)
			a, err := app.New(*configPath)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := a.Start(ctx); err != nil {
				return fmt.Errorf("start: %w", err)
			}
			_, _ = systemd.Ready()
			_, _ = systemd.Status("serving")
			go systemd.Watchdog(ctx)

			reason := app.StopSignal
			select {
			case <-ctx.Done():
			case <-a.Done():
				reason = app.StopFatalError
			}

			_, _ = systemd.Stopping()
			stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
			defer stopCancel()
			_ = a.Stop(stopCtx, reason)

			if reason == app.StopFatalError {
				return a.Err()
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&stopTimeout, "stop-timeout", 10*time.Second, "Upper bound for graceful shutdown")
	return cmd
}
