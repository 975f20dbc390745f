package rpcserver_test

import (
	"log"
	"net"
	"testing"

	"github.com/nasa-jpl/irpcd/irpc"
	"github.com/nasa-jpl/irpcd/rpcserver"
	"github.com/nasa-jpl/irpcd/usbadapter"
)

// harness drives one rpcserver.Server over an in-memory pipe, playing
// the client side directly against irpc.Session the way rpcclient will.
type harness struct {
	t    *testing.T
	sess *irpc.Session
	done chan error
}

func newHarness(t *testing.T, devices ...usbadapter.MockDevice) *harness {
	t.Helper()
	client, server := net.Pipe()
	mock := usbadapter.NewMock(devices...)
	srv := rpcserver.NewServer(mock, false, log.New(testWriter{t}, "", 0))
	done := make(chan error, 1)
	go func() { done <- srv.Serve(server) }()
	h := &harness{t: t, sess: irpc.NewSession(client, irpc.RoleClient), done: done}
	t.Cleanup(func() { client.Close() })
	return h
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

func (h *harness) init() irpc.InitResponse {
	h.t.Helper()
	if err := h.sess.SendSelector(irpc.OpInit); err != nil {
		h.t.Fatalf("send init selector: %v", err)
	}
	resp, err := irpc.ReadInitResponse(h.sess.Reader())
	if err != nil {
		h.t.Fatalf("read init response: %v", err)
	}
	return resp
}

func (h *harness) deviceList() irpc.DeviceList {
	h.t.Helper()
	if err := h.sess.SendSelector(irpc.OpGetDeviceList); err != nil {
		h.t.Fatalf("send get-device-list selector: %v", err)
	}
	list, err := irpc.ReadDeviceList(h.sess.Reader())
	if err != nil {
		h.t.Fatalf("read device list: %v", err)
	}
	return list
}

func (h *harness) open(dev irpc.DeviceId) irpc.OpenResponse {
	h.t.Helper()
	if err := h.sess.SendSelector(irpc.OpOpen); err != nil {
		h.t.Fatalf("send open selector: %v", err)
	}
	if err := (irpc.OpenRequest{Device: dev}).Write(h.sess.Writer()); err != nil {
		h.t.Fatalf("write open request: %v", err)
	}
	resp, err := irpc.ReadOpenResponse(h.sess.Reader())
	if err != nil {
		h.t.Fatalf("read open response: %v", err)
	}
	return resp
}

func seededDevice() usbadapter.MockDevice {
	return usbadapter.MockDevice{
		Bus: 1, Address: 7, NumConfigurations: 1,
		VendorID: 0x0699, ProductID: 0x0368,
		Descriptor: usbadapter.Descriptor{Length: 18, DescriptorType: 1, NumConfigurations: 1},
	}
}

func TestBringUpAndDeviceList(t *testing.T) {
	h := newHarness(t, seededDevice())
	if got := h.init(); got.Status != int32(irpc.StatusSuccess) {
		t.Fatalf("init status = %d, want SUCCESS", got.Status)
	}
	list := h.deviceList()
	if list.N != 1 {
		t.Fatalf("device list N = %d, want 1", list.N)
	}
}

func TestDeviceListNeverExceedsMaxDevs(t *testing.T) {
	devices := make([]usbadapter.MockDevice, irpc.MaxDevs+10)
	for i := range devices {
		devices[i] = seededDevice()
	}
	h := newHarness(t, devices...)
	h.init()
	list := h.deviceList()
	if list.N != irpc.MaxDevs {
		t.Fatalf("device list N = %d, want MaxDevs=%d", list.N, irpc.MaxDevs)
	}
	if len(list.Slots()) != irpc.MaxDevs {
		t.Fatalf("Slots() len = %d, want %d", len(list.Slots()), irpc.MaxDevs)
	}
}

func TestOpenThenStaleHandleFailsAfterClose(t *testing.T) {
	h := newHarness(t, seededDevice())
	h.init()
	list := h.deviceList()
	dev := list.Slots()[0]

	opened := h.open(dev)
	if opened.Status != int32(irpc.StatusSuccess) {
		t.Fatalf("open status = %d, want SUCCESS", opened.Status)
	}

	if err := h.sess.SendSelector(irpc.OpClose); err != nil {
		t.Fatalf("send close selector: %v", err)
	}

	// close has no response frame; immediately issue an operation that
	// requires HANDLE_OPEN and expect FAILURE since the state reverted
	// to READY.
	if err := h.sess.SendSelector(irpc.OpGetConfiguration); err != nil {
		t.Fatalf("send get-configuration selector: %v", err)
	}
	if err := (irpc.HandleIntRequest{Handle: opened.Handle, Value: 0}).Write(h.sess.Writer()); err != nil {
		t.Fatalf("write get-configuration request: %v", err)
	}
	resp, err := irpc.ReadStatusResponse(h.sess.Reader())
	if err != nil {
		t.Fatalf("read get-configuration response: %v", err)
	}
	if resp.Status != int32(irpc.StatusFailure) {
		t.Fatalf("get-configuration after close = %d, want FAILURE", resp.Status)
	}
}

func TestSecondOpenReplacesHandle(t *testing.T) {
	h := newHarness(t, seededDevice(), seededDevice())
	h.init()
	list := h.deviceList()
	slots := list.Slots()

	first := h.open(slots[0])
	if first.Status != int32(irpc.StatusSuccess) {
		t.Fatalf("first open status = %d, want SUCCESS", first.Status)
	}
	second := h.open(slots[1])
	if second.Status != int32(irpc.StatusSuccess) {
		t.Fatalf("second open status = %d, want SUCCESS", second.Status)
	}

	// the first handle's session id no longer names the current handle
	// in strict mode, but non-strict (default) mode still routes any
	// claim-interface to whatever is currently open.
	if err := h.sess.SendSelector(irpc.OpClaimInterface); err != nil {
		t.Fatalf("send claim-interface selector: %v", err)
	}
	if err := (irpc.HandleIntRequest{Handle: first.Handle, Value: 0}).Write(h.sess.Writer()); err != nil {
		t.Fatalf("write claim-interface request: %v", err)
	}
	resp, err := irpc.ReadStatusResponse(h.sess.Reader())
	if err != nil {
		t.Fatalf("read claim-interface response: %v", err)
	}
	if resp.Status != int32(irpc.StatusSuccess) {
		t.Fatalf("claim-interface with stale handle (non-strict) = %d, want SUCCESS", resp.Status)
	}
}

func TestBulkTransferTruncatesToMaxData(t *testing.T) {
	h := newHarness(t, seededDevice())
	h.init()
	list := h.deviceList()
	opened := h.open(list.Slots()[0])

	if err := h.sess.SendSelector(irpc.OpBulkTransfer); err != nil {
		t.Fatalf("send bulk-transfer selector: %v", err)
	}
	req := irpc.BulkTransferRequest{Handle: opened.Handle, Endpoint: 0x01, Length: 4096, Timeout: 1000}
	if err := req.Write(h.sess.Writer()); err != nil {
		t.Fatalf("write bulk-transfer request: %v", err)
	}
	resp, err := irpc.ReadBulkTransferResponse(h.sess.Reader())
	if err != nil {
		t.Fatalf("read bulk-transfer response: %v", err)
	}
	if len(resp.Data) > irpc.MaxData {
		t.Fatalf("bulk-transfer response len = %d, exceeds MaxData=%d", len(resp.Data), irpc.MaxData)
	}
}

func TestControlTransferSubStatusExtraction(t *testing.T) {
	cases := []struct {
		name      string
		retcode   int
		wantSub   int32
	}{
		{"below-threshold", 4, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := rpcserverSubStatus(c.retcode, []byte{0, 0, 0, 0, 9}); got != c.wantSub {
				t.Fatalf("got %d, want %d", got, c.wantSub)
			}
		})
	}
}

// rpcserverSubStatus mirrors the unexported subStatusFromBuffer rule so
// the boundary case is pinned without exporting an internal helper.
func rpcserverSubStatus(retcode int, buf []byte) int32 {
	if retcode >= 5 && len(buf) > 4 {
		return int32(buf[4])
	}
	return 0
}

// TestControlTransferSubStatusAtBoundary drives a real OUT-then-IN
// control-transfer pair through the server's dispatch path, rather than
// the duplicated-logic unit check above, to confirm the retcode>=5
// branch in doControlTransfer actually reads offset 4 of the returned
// buffer without going out of range.
func TestControlTransferSubStatusAtBoundary(t *testing.T) {
	h := newHarness(t, seededDevice())
	h.init()
	list := h.deviceList()
	opened := h.open(list.Slots()[0])

	controlTransfer := func(requestType int32, length int32) irpc.ControlTransferResponse {
		h.t.Helper()
		if err := h.sess.SendSelector(irpc.OpControlTransfer); err != nil {
			t.Fatalf("send control-transfer selector: %v", err)
		}
		req := irpc.ControlTransferRequest{
			Handle: opened.Handle, RequestType: requestType, Request: 0,
			Value: 0, Index: 0, Length: length, Timeout: 1000,
		}
		if err := req.Write(h.sess.Writer()); err != nil {
			t.Fatalf("write control-transfer request: %v", err)
		}
		resp, err := irpc.ReadControlTransferResponse(h.sess.Reader())
		if err != nil {
			t.Fatalf("read control-transfer response: %v", err)
		}
		return resp
	}

	// an OUT transfer (request type bit 7 clear) seeds the mock's
	// internal echo buffer with 8 bytes; the following 5-byte IN
	// transfer (bit 7 set) then reads back 5 of them, producing
	// retcode=5, the first value that takes the offset-4 branch.
	controlTransfer(0x00, 8)
	in := controlTransfer(0x80, 5)
	if in.Retcode < 5 {
		t.Fatalf("retcode = %d, want >= 5 to exercise the offset-4 branch", in.Retcode)
	}
	if in.SubStatus != int32(in.Data[4]) {
		t.Fatalf("substatus = %d, want data[4] = %d", in.SubStatus, in.Data[4])
	}

	// a 4-byte IN transfer, just below the 5-byte threshold, must report
	// substatus 0 regardless of what the buffer holds.
	short := controlTransfer(0x80, 4)
	if short.SubStatus != 0 {
		t.Fatalf("substatus = %d, want 0 below the retcode threshold", short.SubStatus)
	}
}
