package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"octogrowl/internal/gntp"
	"octogrowl/internal/gntp/gntptest"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("output %q does not contain %q", haystack, needle)
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigCheck(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		file    string
		body    string
		wantErr string
		wantOut string
	}{
		{"yaml", "config.yaml", "receiver:\n  hostname: mac.local\nlogging:\n  level: info\n", "", "Receiver: mac.local:23053"},
		{"toml", "config.toml", "[receiver]\nhostname = \"mac.local\"\nport = 23054\n[logging]\nlevel = \"debug\"\n", "", "mac.local:23054"},
		{"bad level", "config.json", `{"receiver":{"port":0,"hostname":"x"},"logging":{"level":"loud"}}`, "logging.level", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := writeFile(t, tc.file, tc.body)
			out, err := runCLI(t, "--config", path, "config", "check")
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("err = %v, want %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("config check: %v", err)
			}
			requireContains(t, out, "Configuration valid")
			requireContains(t, out, tc.wantOut)
		})
	}

	if _, err := runCLI(t, "--config", filepath.Join(t.TempDir(), "missing.json"), "config", "check"); err == nil {
		t.Fatal("missing file must fail")
	}
}

func TestTestCommand(t *testing.T) {
	t.Parallel()
	srv, err := gntptest.New(gntptest.WithBehavior(gntptest.Behavior{Password: "pw"}))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	noConfig := filepath.Join(t.TempDir(), "none.json")
	port := fmt.Sprint(srv.Port())

	out, err := runCLI(t, "--config", noConfig, "test", "--host", srv.Host(), "--port", port, "--password", "pw")
	if err != nil {
		t.Fatalf("test: %v (%s)", err, out)
	}
	requireContains(t, out, "OK")
	if n := len(srv.Notifications()); n != 1 {
		t.Fatalf("notifications = %d", n)
	}

	out, err = runCLI(t, "--config", noConfig, "test", "--host", srv.Host(), "--port", port, "--password", "wrong")
	if err == nil {
		t.Fatal("wrong password must fail")
	}
	requireContains(t, out, "rejected the password")

	// Endpoint from the config file.
	cfg := writeFile(t, "config.json", fmt.Sprintf(`{"receiver":{"hostname":%q,"port":%d,"password":"pw"},"logging":{}}`, srv.Host(), srv.Port()))
	if out, err := runCLI(t, "--config", cfg, "test"); err != nil {
		t.Fatalf("test from config: %v (%s)", err, out)
	}
}

func TestDiscoverTable(t *testing.T) {
	t.Parallel()
	srv, err := gntptest.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	cfg := writeFile(t, "config.json", fmt.Sprintf(`{
		"receiver": {},
		"logging": {},
		"discovery": {"enabled": true, "instances": [{"name": "desk", "host": %q, "port": %d}]}
	}`, srv.Host(), srv.Port()))
	out, err := runCLI(t, "--config", cfg, "discover")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	for _, want := range []string{"NAME", "desk", srv.Host(), "yes"} {
		requireContains(t, out, want)
	}

	empty := writeFile(t, "config.json", `{"receiver":{},"logging":{}}`)
	out, err = runCLI(t, "--config", empty, "discover")
	if err != nil {
		t.Fatal(err)
	}
	requireContains(t, out, "No receivers configured")
}

func TestEmit(t *testing.T) {
	t.Parallel()
	type seen struct {
		auth string
		body map[string]any
	}
	reqs := make(chan seen, 4)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/events" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(b, &body)
		reqs <- seen{auth: r.Header.Get("Authorization"), body: body}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"event":"print-done","queued":true}`))
	}))
	t.Cleanup(ts.Close)
	addr := strings.TrimPrefix(ts.URL, "http://")
	noConfig := filepath.Join(t.TempDir(), "none.json")

	out, err := runCLI(t, "--config", noConfig, "emit", "print-done", "--addr", addr, "--token", "tok",
		"--file", "/uploads/benchy.gcode", "--time", "125", "--payload", `{"origin":"local"}`)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	requireContains(t, out, "print-done queued")
	req := <-reqs
	if req.auth != "Bearer tok" {
		t.Fatalf("auth = %q", req.auth)
	}
	got := req.body
	payload, _ := got["payload"].(map[string]any)
	if got["event"] != "print-done" || payload["file"] != "/uploads/benchy.gcode" || payload["time"] != 125.0 || payload["origin"] != "local" {
		t.Fatalf("request = %v", got)
	}

	if _, err := runCLI(t, "--config", noConfig, "emit", "x", "--addr", addr, "--payload", "{"); err == nil {
		t.Fatal("bad payload must fail")
	}
}

func TestPrintRequest(t *testing.T) {
	t.Parallel()
	var b bytes.Buffer
	msg := &gntp.Message{Directive: gntp.DirectiveNotify}
	msg.Headers.Add(gntp.HeaderNotificationTitle, "Print job finished")
	printRequest(&b, gntptest.Request{Message: msg, RemoteAddr: "127.0.0.1:5555"})
	requireContains(t, b.String(), "NOTIFY from 127.0.0.1:5555")
	requireContains(t, b.String(), "Notification-Title: Print job finished")
}
