package usbadapter

import (
	"fmt"
	"sync"

	"github.com/nasa-jpl/irpcd/util"
)

// mockHandle is the Handle a Mock hands back from Open/OpenWithVIDPID.
type mockHandle struct {
	sessionID int32
}

// MockDevice seeds a Mock's fake bus. Once a device is open, bulk and
// control transfers against it succeed: an OUT transfer records its data,
// and an IN transfer copies back min(len(data), len(last write)) bytes of
// whatever was last written, which is enough to exercise rpcserver's
// framing and truncation logic without a real bus (spec.md §9
// Non-goals: "no real USB hardware or OS driver interaction").
type MockDevice struct {
	Bus, Address      int
	NumConfigurations int
	Descriptor        Descriptor
	VendorID, ProductID uint16
}

// Mock implements Adapter entirely in memory, in the spirit of the
// teacher repository's per-instrument mocks (pi.MockController,
// nkt.mock): a mutex-protected struct of maps, no goroutines beyond what
// the caller drives.
type Mock struct {
	sync.Mutex
	initialized bool
	devices     []MockDevice
	bySession   map[int32]MockDevice
	nextSID     int32
	configs     map[int32]int // sessionID -> active configuration
	open        map[int32]bool
	lastWrite   []byte
}

// NewMock returns a Mock pre-seeded with devices. No session IDs are
// assigned until DeviceList enumerates the devices, the way a real
// enumeration would.
func NewMock(devices ...MockDevice) *Mock {
	m := &Mock{
		devices:   devices,
		bySession: make(map[int32]MockDevice),
		configs:   make(map[int32]int),
		open:      make(map[int32]bool),
	}
	return m
}

func (m *Mock) Init() error {
	m.Lock()
	defer m.Unlock()
	m.initialized = true
	return nil
}

func (m *Mock) Exit() error {
	m.Lock()
	defer m.Unlock()
	m.initialized = false
	m.open = make(map[int32]bool)
	return nil
}

func (m *Mock) DeviceList() ([]Device, error) {
	m.Lock()
	defer m.Unlock()
	if !m.initialized {
		return nil, fmt.Errorf("usbadapter: context not initialized")
	}
	m.bySession = make(map[int32]MockDevice)
	out := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		m.nextSID++
		sid := m.nextSID
		m.bySession[sid] = d
		out = append(out, Device{
			Bus:               d.Bus,
			Address:           d.Address,
			NumConfigurations: d.NumConfigurations,
			SessionID:         sid,
		})
	}
	return out, nil
}

func (m *Mock) Descriptor(sessionID int32) (Descriptor, error) {
	m.Lock()
	defer m.Unlock()
	d, ok := m.bySession[sessionID]
	if !ok {
		return Descriptor{}, ErrNoSuchDevice
	}
	return d.Descriptor, nil
}

func (m *Mock) OpenWithVIDPID(vid, pid uint16) (Handle, Device, error) {
	m.Lock()
	defer m.Unlock()
	var first int32
	for sid, d := range m.bySession {
		if d.VendorID == vid && d.ProductID == pid && (first == 0 || sid < first) {
			first = sid
		}
	}
	if first == 0 {
		return nil, Device{}, ErrNoSuchDevice
	}
	d := m.bySession[first]
	m.open[first] = true
	return &mockHandle{sessionID: first}, Device{
		Bus: d.Bus, Address: d.Address,
		NumConfigurations: d.NumConfigurations, SessionID: first,
	}, nil
}

func (m *Mock) Open(sessionID int32) (Handle, Device, error) {
	m.Lock()
	defer m.Unlock()
	d, ok := m.bySession[sessionID]
	if !ok {
		return nil, Device{}, ErrNoSuchDevice
	}
	m.open[sessionID] = true
	return &mockHandle{sessionID: sessionID}, Device{
		Bus: d.Bus, Address: d.Address,
		NumConfigurations: d.NumConfigurations, SessionID: sessionID,
	}, nil
}

func (m *Mock) Close(h Handle) {
	mh, ok := h.(*mockHandle)
	if !ok || mh == nil {
		return
	}
	m.Lock()
	defer m.Unlock()
	delete(m.open, mh.sessionID)
}

func (m *Mock) asOpen(h Handle) (*mockHandle, error) {
	mh, ok := h.(*mockHandle)
	if !ok || mh == nil {
		return nil, ErrNotOpen
	}
	if !m.open[mh.sessionID] {
		return nil, ErrNotOpen
	}
	return mh, nil
}

func (m *Mock) ClaimInterface(h Handle, iface int) error {
	m.Lock()
	defer m.Unlock()
	_, err := m.asOpen(h)
	return err
}

func (m *Mock) ReleaseInterface(h Handle, iface int) error {
	m.Lock()
	defer m.Unlock()
	_, err := m.asOpen(h)
	return err
}

func (m *Mock) GetConfiguration(h Handle) (int, error) {
	m.Lock()
	defer m.Unlock()
	mh, err := m.asOpen(h)
	if err != nil {
		return 0, err
	}
	cfg, ok := m.configs[mh.sessionID]
	if !ok {
		return 1, nil
	}
	return cfg, nil
}

func (m *Mock) SetConfiguration(h Handle, config int) error {
	m.Lock()
	defer m.Unlock()
	mh, err := m.asOpen(h)
	if err != nil {
		return err
	}
	m.configs[mh.sessionID] = config
	return nil
}

func (m *Mock) SetInterfaceAltSetting(h Handle, iface, alt int) error {
	m.Lock()
	defer m.Unlock()
	_, err := m.asOpen(h)
	return err
}

func (m *Mock) Reset(h Handle) error {
	m.Lock()
	defer m.Unlock()
	_, err := m.asOpen(h)
	return err
}

func (m *Mock) ControlTransfer(h Handle, requestType, request uint8, value, index int, data []byte, timeoutMillis int) (int, error) {
	m.Lock()
	defer m.Unlock()
	if _, err := m.asOpen(h); err != nil {
		return 0, err
	}
	if util.GetBit(requestType, 7) {
		n := copy(data, m.lastWrite)
		return n, nil
	}
	m.lastWrite = append([]byte(nil), data...)
	return len(data), nil
}

func (m *Mock) BulkTransfer(h Handle, endpoint uint8, data []byte, timeoutMillis int) (int, error) {
	m.Lock()
	defer m.Unlock()
	if _, err := m.asOpen(h); err != nil {
		return 0, err
	}
	if util.GetBit(endpoint, 7) {
		n := copy(data, m.lastWrite)
		return n, nil
	}
	m.lastWrite = append([]byte(nil), data...)
	return len(data), nil
}

func (m *Mock) ClearHalt(h Handle, endpoint uint8) error {
	m.Lock()
	defer m.Unlock()
	_, err := m.asOpen(h)
	return err
}

func (m *Mock) StringDescriptorASCII(h Handle, index int) (string, error) {
	m.Lock()
	defer m.Unlock()
	if _, err := m.asOpen(h); err != nil {
		return "", err
	}
	return fmt.Sprintf("mock-string-%d", index), nil
}
