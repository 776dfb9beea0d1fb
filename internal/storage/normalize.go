package storage

import (
	"strings"
	"time"
)

func normalize(e AuditEntry) AuditEntry {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	e.At = e.At.UTC()
	e.Action = strings.TrimSpace(e.Action)
	e.Target = strings.TrimSpace(e.Target)
	return e
}
