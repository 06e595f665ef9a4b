// Package transport is the HTTP/JSON reference transport: a storage
// connection for partition scans and a metadata client for leader lookups.
// Both speak plain JSON so any conforming gateway can serve them.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vireodb/partscan/internal/pool"
	"github.com/vireodb/partscan/internal/wire"
)

// StorageConn is one HTTP connection to a storage host. It implements
// pool.Conn; the underlying http.Client already multiplexes, so Close is a
// cheap idle-connection drop.
type StorageConn struct {
	addr   wire.HostAddr
	client *http.Client
}

// NewDialer returns a pool.Dialer producing HTTP storage connections.
func NewDialer(timeout time.Duration) pool.Dialer {
	return func(ctx context.Context, addr wire.HostAddr) (pool.Conn, error) {
		return &StorageConn{
			addr: addr,
			client: &http.Client{
				Timeout: timeout,
			},
		}, nil
	}
}

// Scan posts one per-partition scan request and decodes the response.
func (c *StorageConn) Scan(ctx context.Context, req *wire.ScanRequest) (*wire.ScanResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal scan request: %w", err)
	}

	url := fmt.Sprintf("http://%s/scan", c.addr)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("http %d: %s", httpResp.StatusCode, string(respBody))
	}

	var resp wire.ScanResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode scan response: %w", err)
	}
	return &resp, nil
}

// Close drops the connection's idle sockets.
func (c *StorageConn) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// MetaClient resolves partition leadership over the meta service's HTTP API.
// It implements meta.Service.
type MetaClient struct {
	endpoint string
	client   *http.Client
}

// NewMetaClient creates a meta client for the given base URL, e.g.
// "http://meta-0:19559".
func NewMetaClient(endpoint string, timeout time.Duration) *MetaClient {
	return &MetaClient{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type leaderEntry struct {
	Part   int32         `json:"part"`
	Leader wire.HostAddr `json:"leader"`
}

type leadersResponse struct {
	Leaders []leaderEntry `json:"leaders"`
}

type leaderResponse struct {
	Leader wire.HostAddr `json:"leader"`
}

// PartLeader returns the current leader of one partition.
func (c *MetaClient) PartLeader(ctx context.Context, space string, part int32) (wire.HostAddr, error) {
	url := fmt.Sprintf("%s/spaces/%s/parts/%d/leader", c.endpoint, space, part)

	var resp leaderResponse
	if err := c.get(ctx, url, &resp); err != nil {
		return wire.HostAddr{}, err
	}
	return resp.Leader, nil
}

// PartLeaders returns the full partition-to-leader map of a space.
func (c *MetaClient) PartLeaders(ctx context.Context, space string) (map[int32]wire.HostAddr, error) {
	url := fmt.Sprintf("%s/spaces/%s/leaders", c.endpoint, space)

	var resp leadersResponse
	if err := c.get(ctx, url, &resp); err != nil {
		return nil, err
	}

	out := make(map[int32]wire.HostAddr, len(resp.Leaders))
	for _, e := range resp.Leaders {
		out[e.Part] = e.Leader
	}
	return out, nil
}

func (c *MetaClient) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
