// Package pool provides storage connections to the scan core. The core only
// sees the Provider interface; Pool is a small per-host idle pool over an
// injected Dialer so any transport can plug in.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vireodb/partscan/internal/wire"
)

// ErrClosed is returned by Get after the pool has been closed.
var ErrClosed = errors.New("connection pool is closed")

// Conn is one usable storage connection.
type Conn interface {
	// Scan sends one per-partition scan request and waits for the answer.
	Scan(ctx context.Context, req *wire.ScanRequest) (*wire.ScanResponse, error)

	Close() error
}

// Provider hands out connections and takes them back after use.
// Release must be safe to call exactly once per successful Get.
type Provider interface {
	Get(ctx context.Context, addr wire.HostAddr) (Conn, error)
	Release(addr wire.HostAddr, conn Conn)
}

// Dialer opens a new connection to a host.
type Dialer func(ctx context.Context, addr wire.HostAddr) (Conn, error)

// Config configures a Pool.
type Config struct {
	// MaxIdlePerHost caps connections kept for reuse per host. Zero means
	// a small default; released connections beyond the cap are closed.
	MaxIdlePerHost int
}

// Pool keeps per-host idle connections for reuse.
type Pool struct {
	dialer  Dialer
	maxIdle int

	mu     sync.Mutex
	idle   map[string][]Conn
	closed bool
}

// New creates a pool over the given dialer.
func New(dialer Dialer, cfg Config) (*Pool, error) {
	if dialer == nil {
		return nil, errors.New("dialer is nil")
	}
	maxIdle := cfg.MaxIdlePerHost
	if maxIdle <= 0 {
		maxIdle = 2
	}
	return &Pool{
		dialer:  dialer,
		maxIdle: maxIdle,
		idle:    make(map[string][]Conn),
	}, nil
}

// Get returns an idle connection to addr or dials a new one.
func (p *Pool) Get(ctx context.Context, addr wire.HostAddr) (Conn, error) {
	key := addr.String()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if conns := p.idle[key]; len(conns) > 0 {
		conn := conns[len(conns)-1]
		p.idle[key] = conns[:len(conns)-1]
		p.mu.Unlock()
		return conn, nil
	}
	p.mu.Unlock()

	conn, err := p.dialer(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", key, err)
	}
	return conn, nil
}

// Release returns a connection for reuse, closing it when the idle list is
// full or the pool has been closed.
func (p *Pool) Release(addr wire.HostAddr, conn Conn) {
	if conn == nil {
		return
	}
	key := addr.String()

	p.mu.Lock()
	if !p.closed && len(p.idle[key]) < p.maxIdle {
		p.idle[key] = append(p.idle[key], conn)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	conn.Close()
}

// Close closes all idle connections. In-flight connections are closed as
// they are released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = make(map[string][]Conn)
	p.mu.Unlock()

	var firstErr error
	for _, conns := range idle {
		for _, conn := range conns {
			if err := conn.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
