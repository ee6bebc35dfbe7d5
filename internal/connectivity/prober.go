package connectivity

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// ProberConfig configures reachability probing.
type ProberConfig struct {
	// Address is a host:port dialed to test reachability (e.g. "1.1.1.1:443").
	Address string
	// Timeout bounds one dial (default: 3s).
	Timeout time.Duration
	// Interval is how often Watch re-probes (default: 15s).
	Interval time.Duration
}

// Prober is the platform reachability signal: it dials a well-known address
// and reports whether the dial succeeded.
type Prober struct {
	addr     string
	timeout  time.Duration
	interval time.Duration
	dial     func(ctx context.Context, network, address string) (net.Conn, error)
}

func NewProber(cfg ProberConfig) *Prober {
	p := &Prober{
		addr:     cfg.Address,
		timeout:  cfg.Timeout,
		interval: cfg.Interval,
	}
	if p.timeout <= 0 {
		p.timeout = 3 * time.Second
	}
	if p.interval <= 0 {
		p.interval = 15 * time.Second
	}
	p.dial = (&net.Dialer{Timeout: p.timeout}).DialContext
	return p
}

// Probe reports whether the configured address is reachable right now.
func (p *Prober) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.dial(ctx, "tcp", p.addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Watch feeds probe results into m until ctx is cancelled. The monitor drops
// repeated identical signals, so listeners only see edges.
func (p *Prober) Watch(ctx context.Context, m *Monitor) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	slog.Info("connectivity watcher started", "address", p.addr, "interval", p.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("connectivity watcher stopped")
			return
		case <-ticker.C:
			online := p.Probe(ctx)
			if ctx.Err() != nil {
				return
			}
			m.Set(online)
		}
	}
}
