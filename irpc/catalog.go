/*Package irpc implements the message catalog of spec.md §4.2: the
operation selector enumeration, the status code, and the portable USB
value types, plus an Encode/Decode pair per operation's request and
response record. It has no notion of a socket or of libusb/gousb; it
only knows how to turn Go values into frames and back (grounded on
wire.Writer/wire.Reader) per the exact schemas in the message catalog
table.
*/
package irpc

// Selector names a remote operation. Transmitted as a signed 32-bit
// integer (spec.md §3).
type Selector int32

// The 17 operations of spec.md §3, in catalog order.
const (
	OpInit Selector = iota
	OpExit
	OpGetDeviceList
	OpGetDeviceDescriptor
	OpOpenWithVIDPID
	OpOpen
	OpClose
	OpClaimInterface
	OpReleaseInterface
	OpGetConfiguration
	OpSetConfiguration
	OpSetInterfaceAltSetting
	OpResetDevice
	OpControlTransfer
	OpBulkTransfer
	OpClearHalt
	OpGetStringDescriptorASCII
)

var selectorNames = map[Selector]string{
	OpInit:                     "init",
	OpExit:                     "exit",
	OpGetDeviceList:            "get-device-list",
	OpGetDeviceDescriptor:      "get-device-descriptor",
	OpOpenWithVIDPID:           "open-with-vid-pid",
	OpOpen:                     "open",
	OpClose:                    "close",
	OpClaimInterface:           "claim-interface",
	OpReleaseInterface:         "release-interface",
	OpGetConfiguration:         "get-configuration",
	OpSetConfiguration:         "set-configuration",
	OpSetInterfaceAltSetting:   "set-interface-alt-setting",
	OpResetDevice:              "reset-device",
	OpControlTransfer:          "control-transfer",
	OpBulkTransfer:             "bulk-transfer",
	OpClearHalt:                "clear-halt",
	OpGetStringDescriptorASCII: "get-string-descriptor-ascii",
}

// String returns the operation's catalog name, or "unknown-selector" for an
// out-of-range value (spec.md §7 category 3: an invalid selector is a
// protocol-misuse error, not a panic).
func (s Selector) String() string {
	if name, ok := selectorNames[s]; ok {
		return name
	}
	return "unknown-selector"
}

// Valid reports whether s names one of the 17 catalog operations.
func (s Selector) Valid() bool {
	_, ok := selectorNames[s]
	return ok
}

// Status is the binary result code of spec.md §3: SUCCESS or FAILURE.
// Some operations carry an additional native adapter status alongside
// it (e.g. control-transfer's sub-status).
type Status int32

const (
	// StatusSuccess is the wire value 0.
	StatusSuccess Status = 0
	// StatusFailure is the wire value -1.
	StatusFailure Status = -1
)

func (s Status) String() string {
	if s == StatusSuccess {
		return "SUCCESS"
	}
	return "FAILURE"
}

// MaxDevs is the fixed capacity of a DeviceList (spec.md §3).
const MaxDevs = 128

// MaxData is the fixed capacity of a control/bulk/string-descriptor
// data buffer (spec.md §3).
const MaxData = 1024

// selectorFormat is the wire format string for every selector frame:
// a single 32-bit integer, per spec.md §4.2.
const selectorFormat = "i"
