package irpc

import "github.com/nasa-jpl/irpcd/wire"

// DeviceId is the portable device identity of spec.md §3: four signed
// 32-bit integers. SessionID is the authoritative key for re-finding a
// device on the server; the rest are informational for the client.
type DeviceId struct {
	BusNumber        int32
	DeviceAddress    int32
	NumConfigurations int32
	SessionID        int32
}

const deviceIdFormat = "iiii"

func (d DeviceId) encode(w *wire.Writer) {
	w.Int32(d.BusNumber)
	w.Int32(d.DeviceAddress)
	w.Int32(d.NumConfigurations)
	w.Int32(d.SessionID)
}

func decodeDeviceId(r *wire.Reader) (DeviceId, error) {
	var d DeviceId
	var err error
	if d.BusNumber, err = r.Int32(); err != nil {
		return d, err
	}
	if d.DeviceAddress, err = r.Int32(); err != nil {
		return d, err
	}
	if d.NumConfigurations, err = r.Int32(); err != nil {
		return d, err
	}
	if d.SessionID, err = r.Int32(); err != nil {
		return d, err
	}
	return d, nil
}

// DeviceList is a count plus a fixed MaxDevs slots of DeviceId, of
// which only the first N are meaningful (spec.md §3, H2).
type DeviceList struct {
	N       int32
	Devices [MaxDevs]DeviceId
}

const deviceListFormat = "iS(iiii)#"

func (l DeviceList) encode(w *wire.Writer) {
	w.Int32(l.N)
	for i := range l.Devices {
		l.Devices[i].encode(w)
	}
}

func decodeDeviceList(r *wire.Reader) (DeviceList, error) {
	var l DeviceList
	n, err := r.Int32()
	if err != nil {
		return l, err
	}
	l.N = n
	for i := range l.Devices {
		d, err := decodeDeviceId(r)
		if err != nil {
			return l, err
		}
		l.Devices[i] = d
	}
	return l, nil
}

// Slots returns the meaningful prefix of the device list, clamping N
// defensively to [0, MaxDevs] (spec.md P5).
func (l DeviceList) Slots() []DeviceId {
	n := int(l.N)
	if n < 0 {
		n = 0
	}
	if n > MaxDevs {
		n = MaxDevs
	}
	return l.Devices[:n]
}

// DeviceDescriptor mirrors the USB 2.0 standard device descriptor
// fields (spec.md §3), each widened to a signed 32-bit integer on the
// wire regardless of native width.
type DeviceDescriptor struct {
	BLength            int32
	BDescriptorType    int32
	BcdUSB             int32
	BDeviceClass       int32
	BDeviceSubClass    int32
	BDeviceProtocol    int32
	BMaxPacketSize0    int32
	IdVendor           int32
	IdProduct          int32
	BcdDevice          int32
	IManufacturer      int32
	IProduct           int32
	ISerialNumber      int32
	BNumConfigurations int32
}

const deviceDescriptorFormat = "iiiiiiiiiiiiii"

func (d DeviceDescriptor) encode(w *wire.Writer) {
	w.Int32(d.BLength)
	w.Int32(d.BDescriptorType)
	w.Int32(d.BcdUSB)
	w.Int32(d.BDeviceClass)
	w.Int32(d.BDeviceSubClass)
	w.Int32(d.BDeviceProtocol)
	w.Int32(d.BMaxPacketSize0)
	w.Int32(d.IdVendor)
	w.Int32(d.IdProduct)
	w.Int32(d.BcdDevice)
	w.Int32(d.IManufacturer)
	w.Int32(d.IProduct)
	w.Int32(d.ISerialNumber)
	w.Int32(d.BNumConfigurations)
}

func decodeDeviceDescriptor(r *wire.Reader) (DeviceDescriptor, error) {
	var d DeviceDescriptor
	fields := []*int32{
		&d.BLength, &d.BDescriptorType, &d.BcdUSB, &d.BDeviceClass,
		&d.BDeviceSubClass, &d.BDeviceProtocol, &d.BMaxPacketSize0,
		&d.IdVendor, &d.IdProduct, &d.BcdDevice, &d.IManufacturer,
		&d.IProduct, &d.ISerialNumber, &d.BNumConfigurations,
	}
	for _, f := range fields {
		v, err := r.Int32()
		if err != nil {
			return d, err
		}
		*f = v
	}
	return d, nil
}

// DeviceHandle is a record whose sole field is a nested DeviceId
// (spec.md §3). Its identity on the wire is structural: the server
// only ever consults the embedded SessionID (invariant H3); the rest
// travels for schema compatibility (spec.md §9).
type DeviceHandle struct {
	Device DeviceId
}

const deviceHandleFormat = "S($(iiii))"

func (h DeviceHandle) encode(w *wire.Writer) {
	h.Device.encode(w)
}

func decodeDeviceHandle(r *wire.Reader) (DeviceHandle, error) {
	d, err := decodeDeviceId(r)
	return DeviceHandle{Device: d}, err
}
