/*Package usbadapter is the server's boundary to a real USB host stack. It
knows nothing about the wire protocol; rpcserver translates irpc messages
into calls against the Adapter interface defined here and translates the
results back. Keeping that boundary lets rpcserver be tested against
Mock without a USB bus present (spec.md §6, §9 Non-goals).
*/
package usbadapter

import "errors"

// ErrNoSuchDevice is returned by Open/OpenWithVIDPID/Descriptor when the
// requested device cannot be found among currently enumerated devices.
var ErrNoSuchDevice = errors.New("usbadapter: no such device")

// ErrNotOpen is returned by any per-handle call made before a device has
// been opened, or after it has been closed.
var ErrNotOpen = errors.New("usbadapter: device not open")

// Device is the adapter's native enumeration record. SessionID is
// assigned by the adapter itself and is stable only for the lifetime of
// one enumeration snapshot (spec.md §3: "a session ID ... valid only for
// as long as the device remains connected and the context is not
// reinitialized").
type Device struct {
	Bus               int
	Address           int
	NumConfigurations int
	SessionID         int32
}

// Descriptor mirrors the fields of a USB standard device descriptor
// (spec.md §3). Fields keep their natural adapter-side width; rpcserver
// widens them to int32 when building a wire message.
type Descriptor struct {
	Length            int
	DescriptorType     int
	USBSpec           int
	DeviceClass       int
	DeviceSubClass    int
	DeviceProtocol    int
	MaxPacketSize0    int
	VendorID          int
	ProductID         int
	DeviceRelease     int
	ManufacturerIndex int
	ProductIndex      int
	SerialNumberIndex int
	NumConfigurations int
}

// Handle is an opaque reference to an open device, returned by Open and
// OpenWithVIDPID and threaded back through every subsequent per-device
// call. Its concrete type is private to whichever Adapter implementation
// produced it.
type Handle interface{}

// Adapter is the full set of primitive USB host operations the server
// needs, one per catalog operation of spec.md §3 that touches hardware.
// Init/Exit bracket the adapter's lifetime; every other method requires
// a prior successful Init.
type Adapter interface {
	// Init creates whatever backing USB context the implementation
	// needs. Called each time a client issues the init operation
	// (spec.md §4.4 INIT_PENDING).
	Init() error

	// Exit tears the context down. Idempotent.
	Exit() error

	// DeviceList enumerates currently attached devices, assigning each
	// a SessionID valid until the next DeviceList call (spec.md H2).
	DeviceList() ([]Device, error)

	// Descriptor reads the full device descriptor of the device
	// identified by sessionID, as last reported by DeviceList.
	Descriptor(sessionID int32) (Descriptor, error)

	// OpenWithVIDPID opens the first attached device matching vid/pid.
	OpenWithVIDPID(vid, pid uint16) (Handle, Device, error)

	// Open opens the device identified by sessionID, as last reported
	// by DeviceList.
	Open(sessionID int32) (Handle, Device, error)

	// Close releases a handle. Closing an already-closed or nil handle
	// is a no-op, matching the original library's behavior (spec.md §4
	// supplemented features).
	Close(h Handle)

	ClaimInterface(h Handle, iface int) error
	ReleaseInterface(h Handle, iface int) error
	GetConfiguration(h Handle) (int, error)
	SetConfiguration(h Handle, config int) error
	SetInterfaceAltSetting(h Handle, iface, alt int) error
	Reset(h Handle) error

	// ControlTransfer issues a control transfer. data is read from for
	// an OUT transfer (requestType bit 7 clear) and written to for an
	// IN transfer; n is the number of bytes actually transferred.
	ControlTransfer(h Handle, requestType, request uint8, value, index int, data []byte, timeoutMillis int) (n int, err error)

	// BulkTransfer issues a bulk transfer on endpoint. The endpoint's
	// direction bit selects read vs. write, same as ControlTransfer.
	BulkTransfer(h Handle, endpoint uint8, data []byte, timeoutMillis int) (n int, err error)

	ClearHalt(h Handle, endpoint uint8) error

	// StringDescriptorASCII reads and ASCII-decodes the string
	// descriptor at index.
	StringDescriptorASCII(h Handle, index int) (string, error)
}
