package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"octogrowl/internal/api"
)

func newEmitCommand(configPath *string) *cobra.Command {
	var (
		addr    string
		token   string
		file    string
		origin  string
		target  string
		elapsed float64
		payload string
	)

	cmd := &cobra.Command{
		Use:   "emit <event>",
		Short: "Send a printer event to a running daemon",
		Example: "  octogrowl emit print-started --file /uploads/benchy.gcode --origin local\n" +
			"  octogrowl emit print-done --file benchy.gcode --time 125",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{}
			if strings.TrimSpace(payload) != "" {
				if err := sonic.UnmarshalString(payload, &body); err != nil {
					return fmt.Errorf("--payload: %w", err)
				}
			}
			if file != "" {
				body["file"] = file
			}
			if origin != "" {
				body["origin"] = origin
			}
			if target != "" {
				body["target"] = target
			}
			if cmd.Flags().Changed("time") {
				body["time"] = elapsed
			}

			if cfg, err := loadConfig(*configPath, true); err == nil && cfg != nil && cfg.API != nil {
				if !cmd.Flags().Changed("addr") && strings.TrimSpace(cfg.API.Addr) != "" {
					addr = cfg.API.Addr
				}
				if !cmd.Flags().Changed("token") {
					token = cfg.API.Token
				}
			}

			raw, err := sonic.Marshal(map[string]any{"event": args[0], "payload": body})
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			return postEvent(ctx, cmd.OutOrStdout(), addr, token, raw)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", api.DefaultAddr, "Daemon API address")
	cmd.Flags().StringVar(&token, "token", "", "API bearer token")
	cmd.Flags().StringVar(&file, "file", "", "payload.file")
	cmd.Flags().StringVar(&origin, "origin", "", "payload.origin (local or sdcard)")
	cmd.Flags().StringVar(&target, "target", "", "payload.target for uploads (local or sd)")
	cmd.Flags().Float64Var(&elapsed, "time", 0, "payload.time in seconds")
	cmd.Flags().StringVar(&payload, "payload", "", "Raw JSON payload; flags override its keys")
	return cmd
}

func postEvent(ctx context.Context, out io.Writer, addr, token string, body []byte) error {
	url := "http://" + strings.TrimSpace(addr) + "/api/events"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("daemon answered %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	var ack struct {
		Event  string `json:"event"`
		Queued bool   `json:"queued"`
	}
	if err := sonic.Unmarshal(respBody, &ack); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if ack.Queued {
		fmt.Fprintf(out, "%s queued\n", ack.Event)
	} else {
		fmt.Fprintf(out, "%s accepted, no notification (unrecognized event or no registered receiver)\n", ack.Event)
	}
	return nil
}
