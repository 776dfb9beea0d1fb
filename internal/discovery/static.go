package discovery

import (
	"context"
	"net"
	"slices"
	"strconv"
	"sync"
	"time"

	"octogrowl/internal/growl"
)

// Static serves a fixed list of receivers.
type Static struct {
	records []growl.DiscoveryRecord
}

func NewStatic(records []growl.DiscoveryRecord) *Static {
	return &Static{records: slices.Clone(records)}
}

func (s *Static) Browse(context.Context) ([]growl.DiscoveryRecord, error) {
	return slices.Clone(s.records), nil
}

// Dialer is the subset of net.Dialer used for probing.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// Reachable keeps only the records of src that accept a TCP connection
// within timeout. Probes run in parallel; order is preserved.
type Reachable struct {
	src     growl.DiscoveryBridge
	timeout time.Duration
	dialer  Dialer
}

func NewReachable(src growl.DiscoveryBridge, timeout time.Duration) *Reachable {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Reachable{src: src, timeout: timeout, dialer: &net.Dialer{}}
}

func (r *Reachable) Browse(ctx context.Context) ([]growl.DiscoveryRecord, error) {
	recs, err := r.src.Browse(ctx)
	if err != nil {
		return nil, err
	}
	ok := make([]bool, len(recs))
	var wg sync.WaitGroup
	for i, rec := range recs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok[i] = r.probe(ctx, rec)
		}()
	}
	wg.Wait()

	out := make([]growl.DiscoveryRecord, 0, len(recs))
	for i, rec := range recs {
		if ok[i] {
			out = append(out, rec)
		}
	}
	return out, ctx.Err()
}

func (r *Reachable) probe(ctx context.Context, rec growl.DiscoveryRecord) bool {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	conn, err := r.dialer.DialContext(ctx, "tcp", net.JoinHostPort(rec.Host, strconv.Itoa(rec.Port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
