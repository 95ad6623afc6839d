package port

import (
	"context"
	"fmt"
	"net"
	"time"
)

// DefaultDialTimeout bounds a single connection attempt.
const DefaultDialTimeout = 2 * time.Second

// Prober tests TCP reachability of a host:port address.
//
// It asks the OS network stack directly by dialing the address. A
// completed TCP handshake means something is listening; the connection is
// closed straight away without sending any bytes.
type Prober struct {
	// DialTimeout bounds each attempt. Zero means DefaultDialTimeout.
	DialTimeout time.Duration

	// Interval is the pause between attempts in Wait. Zero means 500ms.
	Interval time.Duration

	// dial is swapped in tests.
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewProber creates a Prober with default timings.
func NewProber() *Prober {
	return &Prober{}
}

func (p *Prober) dialer() func(ctx context.Context, network, addr string) (net.Conn, error) {
	if p.dial != nil {
		return p.dial
	}
	d := &net.Dialer{}
	return d.DialContext
}

// IsReachable reports whether a TCP connection to addr succeeds within the
// dial timeout.
func (p *Prober) IsReachable(ctx context.Context, addr string) bool {
	timeout := p.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := p.dialer()(dialCtx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Wait blocks until addr is reachable or ctx is done. Callers bound the
// wait with context.WithTimeout. The returned error reports the address
// and how many attempts were made.
func (p *Prober) Wait(ctx context.Context, addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}

	interval := p.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	attempts := 0
	for {
		attempts++
		if p.IsReachable(ctx, addr) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s not reachable after %d attempts: %w", addr, attempts, ctx.Err())
		case <-ticker.C:
		}
	}
}
