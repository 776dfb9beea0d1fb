package growl

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"octogrowl/internal/gntp"
	"octogrowl/internal/gntp/gntptest"
)

func newReceiver(t *testing.T, b gntptest.Behavior) *gntptest.Server {
	t.Helper()
	srv, err := gntptest.New(gntptest.WithBehavior(b))
	if err != nil {
		t.Fatalf("start receiver: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func receiverConfig(srv *gntptest.Server) ReceiverConfig {
	cfg := DefaultReceiverConfig()
	cfg.Hostname = srv.Host()
	cfg.Port = srv.Port()
	cfg.Timeout = 2 * time.Second
	return cfg
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

func TestRegisterAdvertisesCatalog(t *testing.T) {
	t.Parallel()
	srv := newReceiver(t, gntptest.Behavior{})
	m := NewManager(nil)
	if _, err := m.ApplyConfig(context.Background(), receiverConfig(srv)); err != nil {
		t.Fatalf("ApplyConfig: %v", err)
	}
	regs := srv.Registrations()
	if len(regs) != 1 {
		t.Fatalf("registrations = %d", len(regs))
	}
	if got := regs[0].Headers.Get(gntp.HeaderApplicationName); got != "OctoPrint" {
		t.Fatalf("app name = %q", got)
	}
	enabled := map[string]bool{}
	for _, s := range regs[0].Sections {
		enabled[s.Get(gntp.HeaderNotificationName)] = gntp.ParseBool(s.Get(gntp.HeaderNotificationEnabled))
	}
	want := map[string]bool{
		"Connection test":  true,
		"File uploaded":    false,
		"Printjob started": true,
		"Printjob done":    true,
		"Timelapse done":   false,
	}
	for name, on := range want {
		got, ok := enabled[name]
		if !ok || got != on {
			t.Fatalf("%s registered=%v enabled=%v, want enabled=%v", name, ok, got, on)
		}
	}
}

func TestPrintStartedScenarios(t *testing.T) {
	t.Parallel()
	tests := []struct {
		origin string
		desc   string
	}{
		{origin: "local", desc: "job.gcode has started printing locally"},
		{origin: "sd", desc: "job.gcode has started printing from SD"},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			t.Parallel()
			srv := newReceiver(t, gntptest.Behavior{RequireRegistration: true})
			m := NewManager(nil)
			if _, err := m.ApplyConfig(context.Background(), receiverConfig(srv)); err != nil {
				t.Fatalf("ApplyConfig: %v", err)
			}
			if m.Active() == nil {
				t.Fatal("no active client after registration")
			}
			d := NewDispatcher(m)
			d.Handle(context.Background(), EventPrintStarted, map[string]any{"file": "/a/b/job.gcode", "origin": tt.origin})

			n := srv.Notifications()
			if len(n) != 1 {
				t.Fatalf("notifications = %d", len(n))
			}
			h := n[0].Headers
			if h.Get(gntp.HeaderNotificationName) != "Printjob started" ||
				h.Get(gntp.HeaderNotificationTitle) != "A new print job was started" ||
				h.Get(gntp.HeaderNotificationText) != tt.desc {
				t.Fatalf("headers = %+v", h)
			}
		})
	}
}

func TestUnreachableReceiver(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		cfg    func(t *testing.T) ReceiverConfig
		reason string
	}{
		{
			name: "silent receiver",
			cfg: func(t *testing.T) ReceiverConfig {
				cfg := receiverConfig(newReceiver(t, gntptest.Behavior{Stall: true}))
				cfg.Timeout = 200 * time.Millisecond
				return cfg
			},
			reason: ReasonTimeout,
		},
		{
			name: "nothing listening",
			cfg: func(t *testing.T) ReceiverConfig {
				cfg := DefaultReceiverConfig()
				cfg.Hostname = "127.0.0.1"
				cfg.Port = closedPort(t)
				cfg.Timeout = time.Second
				return cfg
			},
			reason: ReasonUnreachable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.cfg(t)
			m := NewManager(nil)

			start := time.Now()
			_, err := m.ApplyConfig(context.Background(), cfg)
			elapsed := time.Since(start)

			var re *RegistrationError
			if !errors.As(err, &re) {
				t.Fatalf("err = %v, want *RegistrationError", err)
			}
			if re.Reason != tt.reason {
				t.Fatalf("reason = %q, want %q", re.Reason, tt.reason)
			}
			if elapsed > cfg.Timeout+time.Second {
				t.Fatalf("took %v with timeout %v", elapsed, cfg.Timeout)
			}
			if m.Active() != nil {
				t.Fatal("active client set after failed registration")
			}
			// Later events are silently dropped.
			NewDispatcher(m).Handle(context.Background(), EventPrintDone, map[string]any{"file": "x.gcode", "time": 125})
		})
	}
}

func TestPrintDoneScenario(t *testing.T) {
	t.Parallel()
	srv := newReceiver(t, gntptest.Behavior{})
	m := NewManager(nil)
	if _, err := m.ApplyConfig(context.Background(), receiverConfig(srv)); err != nil {
		t.Fatal(err)
	}
	NewDispatcher(m).Handle(context.Background(), EventPrintDone, map[string]any{"file": "x.gcode", "time": 125})

	n := srv.Notifications()
	if len(n) != 1 {
		t.Fatalf("notifications = %d", len(n))
	}
	if got := n[0].Headers.Get(gntp.HeaderNotificationText); got != "x.gcode finished printing, took 125 seconds" {
		t.Fatalf("text = %q", got)
	}
}

func TestNoClientMeansNoTraffic(t *testing.T) {
	t.Parallel()
	srv := newReceiver(t, gntptest.Behavior{})
	d := NewDispatcher(NewManager(nil))
	for _, ev := range []string{EventFileUploaded, EventPrintStarted, EventPrintDone} {
		d.Handle(context.Background(), ev, map[string]any{"file": "x.gcode"})
	}
	if srv.Connections() != 0 {
		t.Fatalf("connections = %d", srv.Connections())
	}
}

func TestPasswordProtectedReceiver(t *testing.T) {
	t.Parallel()
	srv := newReceiver(t, gntptest.Behavior{Password: "hunter2"})
	m := NewManager(nil)

	cfg := receiverConfig(srv)
	cfg.Password = "wrong"
	_, err := m.ApplyConfig(context.Background(), cfg)
	var re *RegistrationError
	if !errors.As(err, &re) || re.Reason != ReasonAuthRejected {
		t.Fatalf("err = %v", err)
	}

	cfg.Password = "hunter2"
	if _, err := m.ApplyConfig(context.Background(), cfg); err != nil {
		t.Fatalf("ApplyConfig: %v", err)
	}
	NewDispatcher(m).Handle(context.Background(), EventFileUploaded, map[string]any{"file": "a.gcode", "target": "sd"})
	n := srv.Notifications()
	if len(n) != 1 || n[0].Key == nil {
		t.Fatalf("notifications = %+v", n)
	}
}

func TestConnectivityScenario(t *testing.T) {
	t.Parallel()
	active := newReceiver(t, gntptest.Behavior{})
	probe := newReceiver(t, gntptest.Behavior{RequireRegistration: true})
	m := NewManager(nil)
	if _, err := m.ApplyConfig(context.Background(), receiverConfig(active)); err != nil {
		t.Fatal(err)
	}
	before := m.Active()
	audit := &memAudit{}
	a := NewAdmin(m, WithAdminAudit(audit))

	res := a.TestConnectivity(context.Background(), TestRequest{Host: probe.Host(), Port: probe.Port()})
	if !res.Success || res.Message != "" {
		t.Fatalf("result = %+v", res)
	}
	n := probe.Notifications()
	if len(n) != 1 {
		t.Fatalf("probe notifications = %d", len(n))
	}
	if got := n[0].Headers.Get(gntp.HeaderNotificationName); got != "Connection test" {
		t.Fatalf("type = %q", got)
	}
	if got := n[0].Headers.Get(gntp.HeaderNotificationTitle); got != "This is a test message" {
		t.Fatalf("title = %q", got)
	}
	if m.Active() != before {
		t.Fatal("connectivity test replaced the active client")
	}
	if len(active.Notifications()) != 0 {
		t.Fatal("test notification went to the active receiver")
	}
	if recs := audit.Records(); len(recs) != 1 || recs[0].Action != AuditTest || !recs[0].OK {
		t.Fatalf("audit = %+v", recs)
	}
}

func TestConnectivityFailures(t *testing.T) {
	t.Parallel()
	locked := newReceiver(t, gntptest.Behavior{Password: "pw"})
	m := NewManager(nil)
	a := NewAdmin(m, WithBaseConfig(func() ReceiverConfig {
		cfg := DefaultReceiverConfig()
		cfg.Timeout = time.Second
		return cfg
	}))

	tests := []struct {
		name string
		req  TestRequest
		msg  string
	}{
		{name: "bad port", req: TestRequest{Host: "localhost", Port: 0}, msg: "Invalid settings: port must be between 1 and 65535, got 0"},
		{name: "empty host", req: TestRequest{Host: " ", Port: 23053}, msg: "Invalid settings: hostname must not be empty"},
		{name: "wrong password", req: TestRequest{Host: locked.Host(), Port: locked.Port(), Password: "no"}, msg: "The Growl instance rejected the password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := a.TestConnectivity(context.Background(), tt.req)
			if res.Success || res.Message != tt.msg {
				t.Fatalf("result = %+v", res)
			}
		})
	}
	if m.Active() != nil || m.Generation() != 0 {
		t.Fatal("failed tests touched the manager")
	}
}

type fixedBridge struct {
	recs []DiscoveryRecord
	err  error
}

func (b fixedBridge) Browse(context.Context) ([]DiscoveryRecord, error) { return b.recs, b.err }

func TestListReceivers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		bridge DiscoveryBridge
		want   string
	}{
		{name: "no bridge", want: `{"browsing_enabled":false}`},
		{name: "browse error", bridge: fixedBridge{err: errors.New("mdns down")}, want: `{"browsing_enabled":true,"instances":[]}`},
		{
			name:   "found",
			bridge: fixedBridge{recs: []DiscoveryRecord{{Name: "desk", Host: "10.0.0.5", Port: 23053}}},
			want:   `{"browsing_enabled":true,"instances":[{"name":"desk","host":"10.0.0.5","port":23053}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var opts []AdminOption
			if tt.bridge != nil {
				opts = append(opts, WithDiscovery(tt.bridge))
			}
			list := NewAdmin(NewManager(nil), opts...).ListReceivers(context.Background())
			b, err := json.Marshal(list)
			if err != nil {
				t.Fatal(err)
			}
			if string(b) != tt.want {
				t.Fatalf("json = %s, want %s", b, tt.want)
			}
		})
	}
}
