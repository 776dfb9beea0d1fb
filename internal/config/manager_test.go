package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleJSON = `{
  "receiver": {"hostname": "growl.lan", "port": 23053, "password": "s3cret", "timeout": "5s"},
  "logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}},
  "dispatch": {"rate_per_sec": 2, "burst": 4}
}`

const sampleYAML = `
receiver:
  hostname: growl.lan
  port: 23053
  password: s3cret
  timeout: 5s
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
dispatch:
  rate_per_sec: 2
  burst: 4
`

const sampleTOML = `
[receiver]
hostname = "growl.lan"
port = 23053
password = "s3cret"
timeout = "5s"

[logging]
level = "debug"
console = true

[logging.file]
enabled = false
path = ""

[dispatch]
rate_per_sec = 2
burst = 4
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"json", "config.json", sampleJSON},
		{"yaml", "config.yaml", sampleYAML},
		{"yml", "config.yml", sampleYAML},
		{"toml", "config.toml", sampleTOML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewConfigManager(writeFile(t, tt.file, tt.content))
			cfg, err := m.Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Receiver.Hostname != "growl.lan" || cfg.Receiver.Port != 23053 {
				t.Fatalf("receiver = %+v", cfg.Receiver)
			}
			if cfg.Receiver.Password != "s3cret" || cfg.Receiver.Timeout != "5s" {
				t.Fatalf("receiver = %+v", cfg.Receiver)
			}
			if cfg.Dispatch == nil || cfg.Dispatch.RatePerSec != 2 || cfg.Dispatch.Burst != 4 {
				t.Fatalf("dispatch = %+v", cfg.Dispatch)
			}
			if m.Get() != cfg {
				t.Fatal("Load should commit the parsed config")
			}
		})
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"receiver": {"hostname": "x", "port": 1, "color": "red"}}`)
	if _, err := NewConfigManager(path).Parse(); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"receiver": {}} {"receiver": {}}`)
	if _, err := NewConfigManager(path).Parse(); err == nil {
		t.Fatal("expected trailing data error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"config.json", "config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), name)
			m := NewConfigManager(path)
			ch := m.Subscribe(1)

			want := &Config{
				Receiver: ReceiverConfig{
					Hostname:         "10.0.0.5",
					Port:             23054,
					Password:         "pw",
					Timeout:          "3s",
					EnabledByDefault: []string{"test", "print_done"},
				},
				Logging:   LoggingConfig{Level: "info", Console: true},
				Discovery: &DiscoveryConfig{Enabled: true, Instances: []DiscoveryInstance{{Name: "desk", Host: "10.0.0.5", Port: 23053}}},
			}
			if err := m.Save(context.Background(), want); err != nil {
				t.Fatalf("Save: %v", err)
			}

			select {
			case got := <-ch:
				if got != want {
					t.Fatal("subscriber got a different config")
				}
			default:
				t.Fatal("Save should publish to subscribers")
			}

			got, err := NewConfigManager(path).Parse()
			if err != nil {
				t.Fatalf("Parse saved file: %v", err)
			}
			if hashConfig(got) != hashConfig(want) {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
			}
		})
	}
}

func TestSaveValidatorRejects(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", sampleJSON)
	m := NewConfigManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	errBad := errors.New("bad receiver")
	m.SetValidator(func(context.Context, *Config) error { return errBad })

	err := m.Save(context.Background(), &Config{})
	if !errors.Is(err, errBad) {
		t.Fatalf("Save err = %v, want %v", err, errBad)
	}
	b, _ := os.ReadFile(path)
	if !strings.Contains(string(b), "growl.lan") {
		t.Fatal("rejected config must not be written")
	}
}

func TestPublishKeepsLatest(t *testing.T) {
	t.Parallel()
	m := NewConfigManager("")
	ch := m.Subscribe(1)

	a, b := &Config{}, &Config{}
	m.publish(a)
	m.publish(b)

	if got := <-ch; got != b {
		t.Fatal("slow subscriber should receive the latest config")
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("Unsubscribe should close the channel")
	}
	m.Unsubscribe(ch) // unknown now; must not panic
}

func TestWatchPublishesEdits(t *testing.T) {
	path := writeFile(t, "config.json", sampleJSON)
	m := NewConfigManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = m.Watch(ctx)
		close(done)
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	edited := strings.Replace(sampleJSON, "growl.lan", "other.lan", 1)
	if err := os.WriteFile(path, []byte(edited), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case cfg := <-ch:
		if cfg.Receiver.Hostname != "other.lan" {
			t.Fatalf("hostname = %q", cfg.Receiver.Hostname)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	<-done
}
