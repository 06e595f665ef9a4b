// Package meta resolves partition leadership. The scan core consumes the
// Provider interface; Client adds caching over a remote metadata service.
package meta

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vireodb/partscan/internal/wire"
)

// ErrNoLeader is returned when no leader is known for a partition.
var ErrNoLeader = errors.New("no leader known for partition")

// Service is the remote metadata endpoint.
type Service interface {
	// PartLeader returns the current leader of one partition.
	PartLeader(ctx context.Context, space string, part int32) (wire.HostAddr, error)

	// PartLeaders returns the full partition-to-leader map of a space.
	PartLeaders(ctx context.Context, space string) (map[int32]wire.HostAddr, error)
}

// Provider is what the scan orchestrator depends on.
type Provider interface {
	// LeaderFor returns the cached or resolved leader of a partition.
	LeaderFor(ctx context.Context, space string, part int32) (wire.HostAddr, error)

	// Refresh re-resolves a partition's leader after a LEADER_CHANGED
	// signal. When the host reported a leader hint it is taken as
	// authoritative; otherwise the metadata service is queried.
	Refresh(ctx context.Context, space string, part int32, hint *wire.HostAddr) (wire.HostAddr, error)
}

// Client caches partition leadership per space over a Service.
type Client struct {
	svc Service

	mu      sync.RWMutex
	leaders map[string]map[int32]wire.HostAddr
}

// NewClient creates a caching metadata client.
func NewClient(svc Service) *Client {
	return &Client{
		svc:     svc,
		leaders: make(map[string]map[int32]wire.HostAddr),
	}
}

// Warm loads and caches the full leader map of a space, returning a copy.
func (c *Client) Warm(ctx context.Context, space string) (map[int32]wire.HostAddr, error) {
	all, err := c.svc.PartLeaders(ctx, space)
	if err != nil {
		return nil, fmt.Errorf("load leader map for space %s: %w", space, err)
	}

	c.mu.Lock()
	cached := make(map[int32]wire.HostAddr, len(all))
	for part, leader := range all {
		cached[part] = leader
	}
	c.leaders[space] = cached
	c.mu.Unlock()

	out := make(map[int32]wire.HostAddr, len(all))
	for part, leader := range all {
		out[part] = leader
	}
	return out, nil
}

// LeaderFor returns the cached leader, falling back to the service.
func (c *Client) LeaderFor(ctx context.Context, space string, part int32) (wire.HostAddr, error) {
	c.mu.RLock()
	leader, ok := c.leaders[space][part]
	c.mu.RUnlock()
	if ok {
		return leader, nil
	}

	leader, err := c.svc.PartLeader(ctx, space, part)
	if err != nil {
		return wire.HostAddr{}, fmt.Errorf("resolve leader of partition %d: %w", part, err)
	}
	c.store(space, part, leader)
	return leader, nil
}

// Refresh updates the cache after a leader change.
func (c *Client) Refresh(ctx context.Context, space string, part int32, hint *wire.HostAddr) (wire.HostAddr, error) {
	if hint != nil {
		c.store(space, part, *hint)
		return *hint, nil
	}

	leader, err := c.svc.PartLeader(ctx, space, part)
	if err != nil {
		return wire.HostAddr{}, fmt.Errorf("refresh leader of partition %d: %w", part, err)
	}
	c.store(space, part, leader)
	return leader, nil
}

func (c *Client) store(space string, part int32, leader wire.HostAddr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.leaders[space]
	if m == nil {
		m = make(map[int32]wire.HostAddr)
		c.leaders[space] = m
	}
	m[part] = leader
}

// Static is a fixed partition-to-leader map, for tests and static topologies.
type Static struct {
	Space   string
	Leaders map[int32]wire.HostAddr
}

func (s *Static) PartLeader(ctx context.Context, space string, part int32) (wire.HostAddr, error) {
	if space != s.Space {
		return wire.HostAddr{}, fmt.Errorf("unknown space %q", space)
	}
	leader, ok := s.Leaders[part]
	if !ok {
		return wire.HostAddr{}, fmt.Errorf("partition %d: %w", part, ErrNoLeader)
	}
	return leader, nil
}

func (s *Static) PartLeaders(ctx context.Context, space string) (map[int32]wire.HostAddr, error) {
	if space != s.Space {
		return nil, fmt.Errorf("unknown space %q", space)
	}
	out := make(map[int32]wire.HostAddr, len(s.Leaders))
	for part, leader := range s.Leaders {
		out[part] = leader
	}
	return out, nil
}
