package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logx "octogrowl/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if st != nil || err != nil {
			t.Fatalf("driver %q: %v, %v", driver, st, err)
		}
	}
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver accepted")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("file driver without path accepted")
	}
}

func TestFileStoreAppendAndRecent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "state", "octogrowl.db")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := range 5 {
		e := AuditEntry{At: base.Add(time.Duration(i) * time.Minute), Action: "register", Target: "desk:23053", OK: i%2 == 0}
		if !e.OK {
			e.Detail = "timeout"
		}
		if err := st.AppendAudit(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := st.RecentAudit(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("recent = %d", len(got))
	}
	if !got[0].At.Equal(base.Add(2*time.Minute)) || !got[2].At.Equal(base.Add(4*time.Minute)) {
		t.Fatalf("order = %v .. %v", got[0].At, got[2].At)
	}
	if got[1].OK || got[1].Detail != "timeout" {
		t.Fatalf("entry = %+v", got[1])
	}

	raw, err := os.ReadFile(filepath.Join(dir, "state", "octogrowl.audit.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(raw), "\n"); n != 5 {
		t.Fatalf("lines = %d", n)
	}

	if err := st.Close(); err != nil {
		t.Fatal(err)
	}
	if err := st.AppendAudit(ctx, AuditEntry{Action: "x"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("append after close = %v", err)
	}
}

func TestFileStoreSkipsTornLines(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "audit")
	if err := os.WriteFile(filepath.Join(dir, "audit.audit.jsonl"), []byte("{\"action\":\"register\",\"ok\":true}\n{\"act"), 0o600); err != nil {
		t.Fatal(err)
	}
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	got, err := st.RecentAudit(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Action != "register" || !got[0].OK {
		t.Fatalf("recent = %+v", got)
	}
}
