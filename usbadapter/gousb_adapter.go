package usbadapter

import (
	"fmt"
	"sync"

	"github.com/google/gousb"

	"github.com/nasa-jpl/irpcd/util"
)

// clearFeature and endpointHalt are the standard USB request code and
// feature selector used to implement ClearHalt as a control transfer,
// the same way libusb_clear_halt does under the hood.
const (
	clearFeature = 0x01
	endpointHalt = 0x00
)

// gousbHandle is the concrete type behind the Handle interface returned
// by the gousb-backed Adapter. It keeps the interfaces and config the
// device currently has claimed so ReleaseInterface/SetConfiguration can
// close them in the right order.
type gousbHandle struct {
	dev    *gousb.Device
	mu     sync.Mutex
	config *gousb.Config
	ifaces map[int]*gousb.Interface
}

// GousbAdapter implements Adapter against a real USB host controller via
// github.com/google/gousb, the same binding the teacher's usbtmc package
// builds its bulk-transfer datagrams on top of.
type GousbAdapter struct {
	mu      sync.Mutex
	ctx     *gousb.Context
	devices map[int32]*gousb.Device // sessionID -> last-enumerated device, retained open
	nextSID int32
}

// NewGousbAdapter returns an adapter with no context yet; call Init
// before use.
func NewGousbAdapter() *GousbAdapter {
	return &GousbAdapter{devices: make(map[int32]*gousb.Device)}
}

func (a *GousbAdapter) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ctx != nil {
		return nil
	}
	a.ctx = gousb.NewContext()
	return nil
}

func (a *GousbAdapter) Exit() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for sid, dev := range a.devices {
		dev.Close()
		delete(a.devices, sid)
	}
	if a.ctx == nil {
		return nil
	}
	err := a.ctx.Close()
	a.ctx = nil
	return err
}

func descFromGousb(d *gousb.DeviceDesc) Descriptor {
	specMajor, specMinor := d.Spec.Int()
	devMajor, devMinor := d.Device.Int()
	return Descriptor{
		Length:            18,
		DescriptorType:    1,
		USBSpec:           specMajor<<8 | specMinor,
		DeviceClass:       int(d.Class),
		DeviceSubClass:    int(d.SubClass),
		DeviceProtocol:    int(d.Protocol),
		MaxPacketSize0:    d.MaxControlPacketSize,
		VendorID:          int(d.Vendor),
		ProductID:         int(d.Product),
		DeviceRelease:     devMajor<<8 | devMinor,
		ManufacturerIndex: 0,
		ProductIndex:      0,
		SerialNumberIndex: 0,
		NumConfigurations: len(d.Configs),
	}
}

// DeviceList closes the devices held from the previous enumeration, opens
// every attached device, assigns each a fresh session ID and holds the
// *gousb.Device open so a later Open(sessionID) can reuse it without
// re-enumerating the bus (the same tradeoff libirpc's global irpc_handle
// made, narrowed to the enumeration step).
func (a *GousbAdapter) DeviceList() ([]Device, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ctx == nil {
		return nil, fmt.Errorf("usbadapter: context not initialized")
	}
	for sid, dev := range a.devices {
		dev.Close()
		delete(a.devices, sid)
	}
	devs, err := a.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool { return true })
	if err != nil && len(devs) == 0 {
		return nil, err
	}
	out := make([]Device, 0, len(devs))
	for _, dev := range devs {
		a.nextSID++
		sid := a.nextSID
		a.devices[sid] = dev
		out = append(out, Device{
			Bus:               dev.Desc.Bus,
			Address:           dev.Desc.Address,
			NumConfigurations: len(dev.Desc.Configs),
			SessionID:         sid,
		})
	}
	return out, nil
}

func (a *GousbAdapter) Descriptor(sessionID int32) (Descriptor, error) {
	a.mu.Lock()
	dev, ok := a.devices[sessionID]
	a.mu.Unlock()
	if !ok {
		return Descriptor{}, ErrNoSuchDevice
	}
	return descFromGousb(dev.Desc), nil
}

func (a *GousbAdapter) OpenWithVIDPID(vid, pid uint16) (Handle, Device, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ctx == nil {
		return nil, Device{}, fmt.Errorf("usbadapter: context not initialized")
	}
	dev, err := a.ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		return nil, Device{}, err
	}
	if dev == nil {
		return nil, Device{}, ErrNoSuchDevice
	}
	a.nextSID++
	sid := a.nextSID
	a.devices[sid] = dev
	d := Device{
		Bus:               dev.Desc.Bus,
		Address:           dev.Desc.Address,
		NumConfigurations: len(dev.Desc.Configs),
		SessionID:         sid,
	}
	return &gousbHandle{dev: dev, ifaces: make(map[int]*gousb.Interface)}, d, nil
}

func (a *GousbAdapter) Open(sessionID int32) (Handle, Device, error) {
	a.mu.Lock()
	dev, ok := a.devices[sessionID]
	a.mu.Unlock()
	if !ok {
		return nil, Device{}, ErrNoSuchDevice
	}
	d := Device{
		Bus:               dev.Desc.Bus,
		Address:           dev.Desc.Address,
		NumConfigurations: len(dev.Desc.Configs),
		SessionID:         sessionID,
	}
	return &gousbHandle{dev: dev, ifaces: make(map[int]*gousb.Interface)}, d, nil
}

// Close releases every interface and config claimed under h, but leaves
// the underlying *gousb.Device open in the adapter's session table since
// DeviceList owns that lifetime, not Close (spec.md supplemented
// features: close does not imply the device vanishes from future
// enumeration).
func (a *GousbAdapter) Close(h Handle) {
	gh, ok := h.(*gousbHandle)
	if !ok || gh == nil {
		return
	}
	gh.mu.Lock()
	defer gh.mu.Unlock()
	for num, iface := range gh.ifaces {
		iface.Close()
		delete(gh.ifaces, num)
	}
	if gh.config != nil {
		gh.config.Close()
		gh.config = nil
	}
}

func asHandle(h Handle) (*gousbHandle, error) {
	gh, ok := h.(*gousbHandle)
	if !ok || gh == nil {
		return nil, ErrNotOpen
	}
	return gh, nil
}

func (a *GousbAdapter) ClaimInterface(h Handle, iface int) error {
	gh, err := asHandle(h)
	if err != nil {
		return err
	}
	gh.mu.Lock()
	defer gh.mu.Unlock()
	if gh.config == nil {
		cfg, err := gh.dev.Config(1)
		if err != nil {
			return err
		}
		gh.config = cfg
	}
	i, err := gh.config.Interface(iface, 0)
	if err != nil {
		return err
	}
	gh.ifaces[iface] = i
	return nil
}

func (a *GousbAdapter) ReleaseInterface(h Handle, iface int) error {
	gh, err := asHandle(h)
	if err != nil {
		return err
	}
	gh.mu.Lock()
	defer gh.mu.Unlock()
	i, ok := gh.ifaces[iface]
	if !ok {
		return nil
	}
	i.Close()
	delete(gh.ifaces, iface)
	return nil
}

func (a *GousbAdapter) GetConfiguration(h Handle) (int, error) {
	gh, err := asHandle(h)
	if err != nil {
		return 0, err
	}
	return gh.dev.ActiveConfigNum()
}

func (a *GousbAdapter) SetConfiguration(h Handle, config int) error {
	gh, err := asHandle(h)
	if err != nil {
		return err
	}
	gh.mu.Lock()
	defer gh.mu.Unlock()
	for num, iface := range gh.ifaces {
		iface.Close()
		delete(gh.ifaces, num)
	}
	if gh.config != nil {
		gh.config.Close()
	}
	cfg, err := gh.dev.Config(config)
	if err != nil {
		gh.config = nil
		return err
	}
	gh.config = cfg
	return nil
}

func (a *GousbAdapter) SetInterfaceAltSetting(h Handle, iface, alt int) error {
	gh, err := asHandle(h)
	if err != nil {
		return err
	}
	gh.mu.Lock()
	defer gh.mu.Unlock()
	if gh.config == nil {
		return fmt.Errorf("usbadapter: no configuration claimed")
	}
	if old, ok := gh.ifaces[iface]; ok {
		old.Close()
	}
	i, err := gh.config.Interface(iface, alt)
	if err != nil {
		delete(gh.ifaces, iface)
		return err
	}
	gh.ifaces[iface] = i
	return nil
}

func (a *GousbAdapter) Reset(h Handle) error {
	gh, err := asHandle(h)
	if err != nil {
		return err
	}
	return gh.dev.Reset()
}

func (a *GousbAdapter) ControlTransfer(h Handle, requestType, request uint8, value, index int, data []byte, timeoutMillis int) (int, error) {
	gh, err := asHandle(h)
	if err != nil {
		return 0, err
	}
	return gh.dev.Control(requestType, request, uint16(value), uint16(index), data)
}

// endpointDirection reports whether endpoint is an IN endpoint, selected
// by bit 7 of its address per the USB spec.
func (gh *gousbHandle) endpointDirection(endpoint uint8) bool {
	return util.GetBit(endpoint, 7)
}

func (a *GousbAdapter) BulkTransfer(h Handle, endpoint uint8, data []byte, timeoutMillis int) (int, error) {
	gh, err := asHandle(h)
	if err != nil {
		return 0, err
	}
	gh.mu.Lock()
	defer gh.mu.Unlock()
	in := gh.endpointDirection(endpoint)
	for _, iface := range gh.ifaces {
		if in {
			ep, err := iface.InEndpoint(int(endpoint & 0x0f))
			if err != nil {
				continue
			}
			return ep.Read(data)
		}
		ep, err := iface.OutEndpoint(int(endpoint & 0x0f))
		if err != nil {
			continue
		}
		return ep.Write(data)
	}
	return 0, fmt.Errorf("usbadapter: endpoint 0x%02x not found on any claimed interface", endpoint)
}

func (a *GousbAdapter) ClearHalt(h Handle, endpoint uint8) error {
	gh, err := asHandle(h)
	if err != nil {
		return err
	}
	_, err = gh.dev.Control(0x02, clearFeature, endpointHalt, uint16(endpoint), nil)
	return err
}

func (a *GousbAdapter) StringDescriptorASCII(h Handle, index int) (string, error) {
	gh, err := asHandle(h)
	if err != nil {
		return "", err
	}
	return gh.dev.GetStringDescriptor(index)
}
