package usbadapter_test

import (
	"testing"

	"github.com/nasa-jpl/irpcd/usbadapter"
)

func newSeededMock() *usbadapter.Mock {
	return usbadapter.NewMock(usbadapter.MockDevice{
		Bus: 1, Address: 2, NumConfigurations: 1,
		VendorID: 0x0699, ProductID: 0x0368,
		Descriptor: usbadapter.Descriptor{Length: 18, DescriptorType: 1, NumConfigurations: 1},
	})
}

func TestMockDeviceListAssignsSessionIDs(t *testing.T) {
	m := newSeededMock()
	if err := m.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	devs, err := m.DeviceList()
	if err != nil {
		t.Fatalf("device list: %v", err)
	}
	if len(devs) != 1 {
		t.Fatalf("got %d devices, want 1", len(devs))
	}
	if devs[0].SessionID == 0 {
		t.Fatalf("session id not assigned")
	}
}

func TestMockOpenRequiresEnumeration(t *testing.T) {
	m := newSeededMock()
	m.Init()
	if _, _, err := m.Open(1); err == nil {
		t.Fatalf("expected error opening before enumeration")
	}
	devs, _ := m.DeviceList()
	h, _, err := m.Open(devs[0].SessionID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := m.ClaimInterface(h, 0); err != nil {
		t.Fatalf("claim interface: %v", err)
	}
}

func TestMockClosedHandleRejectsOps(t *testing.T) {
	m := newSeededMock()
	m.Init()
	devs, _ := m.DeviceList()
	h, _, _ := m.Open(devs[0].SessionID)
	m.Close(h)
	if err := m.ClaimInterface(h, 0); err != usbadapter.ErrNotOpen {
		t.Fatalf("got %v, want ErrNotOpen", err)
	}
}

func TestMockBulkTransferEchoesLastWrite(t *testing.T) {
	m := newSeededMock()
	m.Init()
	devs, _ := m.DeviceList()
	h, _, _ := m.Open(devs[0].SessionID)

	out := []byte{1, 2, 3, 4}
	if _, err := m.BulkTransfer(h, 0x01, out, 1000); err != nil {
		t.Fatalf("write: %v", err)
	}
	in := make([]byte, 4)
	n, err := m.BulkTransfer(h, 0x81, in, 1000)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 4 || in[0] != 1 || in[3] != 4 {
		t.Fatalf("got n=%d data=%v, want echo of %v", n, in, out)
	}
}

func TestMockOpenWithVIDPIDNoMatch(t *testing.T) {
	m := newSeededMock()
	m.Init()
	m.DeviceList()
	if _, _, err := m.OpenWithVIDPID(0xffff, 0xffff); err != usbadapter.ErrNoSuchDevice {
		t.Fatalf("got %v, want ErrNoSuchDevice", err)
	}
}
