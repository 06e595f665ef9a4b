package transport

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/vireodb/partscan/internal/wire"
)

func serverAddr(t *testing.T, srv *httptest.Server) wire.HostAddr {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}
	return wire.HostAddr{Host: host, Port: port}
}

func TestStorageConnScan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/scan" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req wire.ScanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Space != "social" || req.PartID != 7 {
			t.Errorf("request = %+v", req)
		}

		resp := wire.ScanResponse{
			HasNext:    true,
			NextCursor: []byte("page-2"),
			Data: &wire.DataSet{
				ColumnNames: []string{"_src", "_dst", "_rank"},
				Rows: []wire.Row{{Values: []wire.Value{
					wire.StringValue("a"), wire.StringValue("b"), wire.IntValue(0),
				}}},
			},
			Result: &wire.ResponseResult{},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	dialer := NewDialer(5 * time.Second)
	conn, err := dialer(context.Background(), serverAddr(t, srv))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	resp, err := conn.Scan(context.Background(), &wire.ScanRequest{
		Space:  "social",
		Label:  "knows",
		Kind:   wire.KindEdge,
		PartID: 7,
		Limit:  10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Succeeded() {
		t.Fatal("response did not succeed")
	}
	if !resp.HasNext || string(resp.NextCursor) != "page-2" {
		t.Fatalf("pagination = (%t, %q)", resp.HasNext, resp.NextCursor)
	}
	if got := resp.Data.RowCount(); got != 1 {
		t.Fatalf("RowCount() = %d, want 1", got)
	}
}

func TestStorageConnScanHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "partition unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	dialer := NewDialer(5 * time.Second)
	conn, err := dialer(context.Background(), serverAddr(t, srv))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Scan(context.Background(), &wire.ScanRequest{PartID: 1}); err == nil {
		t.Fatal("Scan() swallowed an HTTP error status")
	}
}

func TestMetaClientPartLeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/spaces/social/leaders" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(leadersResponse{Leaders: []leaderEntry{
			{Part: 1, Leader: wire.HostAddr{Host: "storage-a", Port: 9779}},
			{Part: 2, Leader: wire.HostAddr{Host: "storage-b", Port: 9779}},
		}})
	}))
	defer srv.Close()

	c := NewMetaClient(srv.URL, 5*time.Second)
	leaders, err := c.PartLeaders(context.Background(), "social")
	if err != nil {
		t.Fatal(err)
	}
	if len(leaders) != 2 {
		t.Fatalf("got %d leaders, want 2", len(leaders))
	}
	if leaders[2].Host != "storage-b" {
		t.Fatalf("leader of part 2 = %v", leaders[2])
	}
}

func TestMetaClientPartLeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/spaces/social/parts/7/leader" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(leaderResponse{
			Leader: wire.HostAddr{Host: "storage-c", Port: 9779},
		})
	}))
	defer srv.Close()

	c := NewMetaClient(srv.URL, 5*time.Second)
	leader, err := c.PartLeader(context.Background(), "social", 7)
	if err != nil {
		t.Fatal(err)
	}
	if leader.Host != "storage-c" {
		t.Fatalf("leader = %v, want storage-c", leader)
	}
}

func TestMetaClientHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such space", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewMetaClient(srv.URL, 5*time.Second)
	if _, err := c.PartLeaders(context.Background(), "missing"); err == nil {
		t.Fatal("PartLeaders() swallowed an HTTP error status")
	}
}
