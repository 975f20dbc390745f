package rpcclient_test

import (
	"log"
	"net"
	"testing"
	"time"

	"github.com/nasa-jpl/irpcd/irpc"
	"github.com/nasa-jpl/irpcd/rpcclient"
	"github.com/nasa-jpl/irpcd/rpcserver"
	"github.com/nasa-jpl/irpcd/usbadapter"
)

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

func seededDevice() usbadapter.MockDevice {
	return usbadapter.MockDevice{
		Bus: 2, Address: 5, NumConfigurations: 1,
		VendorID: 0x1234, ProductID: 0xabcd,
		Descriptor: usbadapter.Descriptor{
			Length: 18, DescriptorType: 1, NumConfigurations: 1,
			VendorID: 0x1234, ProductID: 0xabcd,
		},
	}
}

// startServer listens on an ephemeral loopback port, serving a single
// connection with a Mock-backed rpcserver.Server, and returns its
// address plus a cleanup func.
func startServer(t *testing.T, devices ...usbadapter.MockDevice) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := rpcserver.NewServer(usbadapter.NewMock(devices...), false, log.New(testWriter{t}, "", 0))
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		srv.Serve(conn)
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func TestDialInitAndDeviceListRoundTrip(t *testing.T) {
	addr := startServer(t, seededDevice())
	c, err := rpcclient.Dial(addr, rpcclient.DialConfig{Timeout: time.Second, MaxElapsedTime: time.Second})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Session.Close()

	status, err := c.Init()
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if status != irpc.StatusSuccess {
		t.Fatalf("init status = %v, want success", status)
	}

	list, err := c.GetDeviceList()
	if err != nil {
		t.Fatalf("get device list: %v", err)
	}
	if list.N != 1 {
		t.Fatalf("device list N = %d, want 1", list.N)
	}
}

func TestDialGivesUpImmediatelyOnConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close() // nothing listens here now; dial should see "connection refused"

	start := time.Now()
	_, err = rpcclient.Dial(addr, rpcclient.DialConfig{Timeout: time.Second, MaxElapsedTime: 5 * time.Second})
	if err == nil {
		t.Fatal("dial succeeded against a closed listener, want error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("dial took %v to fail, want it to give up well before MaxElapsedTime=5s", elapsed)
	}
}

func TestOpenAndControlTransferRoundTrip(t *testing.T) {
	addr := startServer(t, seededDevice())
	c, err := rpcclient.Dial(addr, rpcclient.DialConfig{Timeout: time.Second, MaxElapsedTime: time.Second})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Session.Close()

	if _, err := c.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	list, err := c.GetDeviceList()
	if err != nil {
		t.Fatalf("get device list: %v", err)
	}
	h, status, err := c.Open(list.Slots()[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if status != irpc.StatusSuccess {
		t.Fatalf("open status = %v, want success", status)
	}

	out, err := c.ControlTransfer(h, 0x00, 0, 0, 0, 8, 1000)
	if err != nil {
		t.Fatalf("control transfer: %v", err)
	}
	if len(out.Data) > irpc.MaxData {
		t.Fatalf("control transfer returned %d bytes, exceeds MaxData=%d", len(out.Data), irpc.MaxData)
	}
}
