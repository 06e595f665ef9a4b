package pool

import (
	"context"
	"errors"
	"testing"

	"github.com/vireodb/partscan/internal/wire"
)

type fakeConn struct {
	id     int
	closed bool
}

func (c *fakeConn) Scan(ctx context.Context, req *wire.ScanRequest) (*wire.ScanResponse, error) {
	return &wire.ScanResponse{Result: &wire.ResponseResult{}}, nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func testDialer() (Dialer, *int) {
	dials := 0
	return func(ctx context.Context, addr wire.HostAddr) (Conn, error) {
		dials++
		return &fakeConn{id: dials}, nil
	}, &dials
}

var testAddr = wire.HostAddr{Host: "storage-a", Port: 9779}

func TestPoolReusesReleasedConn(t *testing.T) {
	dialer, dials := testDialer()
	p, err := New(dialer, Config{})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	conn, err := p.Get(ctx, testAddr)
	if err != nil {
		t.Fatal(err)
	}
	p.Release(testAddr, conn)

	again, err := p.Get(ctx, testAddr)
	if err != nil {
		t.Fatal(err)
	}
	if conn != again {
		t.Fatal("Get() after Release() dialed a new connection")
	}
	if *dials != 1 {
		t.Fatalf("dialed %d times, want 1", *dials)
	}
}

func TestPoolCapsIdleConns(t *testing.T) {
	dialer, _ := testDialer()
	p, err := New(dialer, Config{MaxIdlePerHost: 1})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	c1, _ := p.Get(ctx, testAddr)
	c2, _ := p.Get(ctx, testAddr)

	p.Release(testAddr, c1)
	p.Release(testAddr, c2)

	if !c2.(*fakeConn).closed {
		t.Fatal("connection over the idle cap was not closed")
	}
	if c1.(*fakeConn).closed {
		t.Fatal("idle connection within the cap was closed")
	}
}

func TestPoolGetAfterClose(t *testing.T) {
	dialer, _ := testDialer()
	p, err := New(dialer, Config{})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	conn, _ := p.Get(ctx, testAddr)
	p.Release(testAddr, conn)

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if !conn.(*fakeConn).closed {
		t.Fatal("idle connection not closed by Close()")
	}
	if _, err := p.Get(ctx, testAddr); !errors.Is(err, ErrClosed) {
		t.Fatalf("Get() after Close() = %v, want ErrClosed", err)
	}
}

func TestPoolReleaseAfterCloseClosesConn(t *testing.T) {
	dialer, _ := testDialer()
	p, err := New(dialer, Config{})
	if err != nil {
		t.Fatal(err)
	}

	conn, _ := p.Get(context.Background(), testAddr)
	p.Close()
	p.Release(testAddr, conn)

	if !conn.(*fakeConn).closed {
		t.Fatal("connection released after Close() was not closed")
	}
}

func TestPoolNilDialer(t *testing.T) {
	if _, err := New(nil, Config{}); err == nil {
		t.Fatal("New() accepted a nil dialer")
	}
}
