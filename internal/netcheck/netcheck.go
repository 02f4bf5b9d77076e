// Package netcheck approximates internet connectivity by dialing a few
// well-known hosts.
package netcheck

import (
	"context"
	"net"
	"time"

	appLog "timetable/internal/log"
)

// DefaultPort is used for hosts configured without a port.
const DefaultPort = "80"

// DefaultTimeout bounds each single connect attempt.
const DefaultTimeout = time.Second

// DefaultHosts are tried in order.
var DefaultHosts = []string{"google.de", "amazon.de", "apple.com", "github.com"}

// Prober reports whether any of Hosts accepts a TCP connection.
type Prober struct {
	Hosts   []string
	Timeout time.Duration

	dialer *net.Dialer
}

// New returns a Prober for hosts, falling back to DefaultHosts and DefaultTimeout.
func New(hosts []string, timeout time.Duration) *Prober {
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{
		Hosts:   hosts,
		Timeout: timeout,
		dialer:  &net.Dialer{},
	}
}

// Reachable dials each host in order and returns true on the first
// successful connect. It returns false once every host failed or ctx is done.
func (p *Prober) Reachable(ctx context.Context) bool {
	for _, h := range p.Hosts {
		if ctx.Err() != nil {
			return false
		}

		addr := withPort(h)
		dctx, cancel := context.WithTimeout(ctx, p.Timeout)
		conn, err := p.dialer.DialContext(dctx, "tcp", addr)
		cancel()
		if err != nil {
			appLog.Debug("reachability probe failed", "addr", addr, "err", err)
			continue
		}
		_ = conn.Close()

		appLog.Debug("reachability probe succeeded", "addr", addr)
		return true
	}
	return false
}

func withPort(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, DefaultPort)
}
