/*Package rpcclient is the client stub surface of spec.md §4.5: one
method per catalog operation, each opening its own request frame,
flushing it, and decoding the matching response. It mirrors the
synchronous, half-duplex call shape of irpc_client.c's helper functions,
grounded on the teacher's comm.RemoteDevice for the dial-with-backoff
connection story.
*/
package rpcclient

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/nasa-jpl/irpcd/irpc"
)

// Client drives one Session as RoleClient. Every method holds the
// embedded Session's lock for its whole request/response exchange, so
// calls from several goroutines are serialized rather than interleaved.
// The lock is not reentrant: a caller holding Lock must not call a
// Client method until it has called Unlock.
type Client struct {
	*irpc.Session
}

// DialConfig controls Dial's connection attempt.
type DialConfig struct {
	// Timeout bounds a single connection attempt.
	Timeout time.Duration
	// MaxElapsedTime bounds the whole backoff retry loop; zero means
	// try only once.
	MaxElapsedTime time.Duration
}

// DefaultDialConfig matches the posture comm.RemoteDevice.Open takes:
// short exponential backoff, give up quickly on a connection refused.
var DefaultDialConfig = DialConfig{
	Timeout:        3 * time.Second,
	MaxElapsedTime: 3 * time.Second,
}

// Dial connects to a running irpcd server at addr, retrying transient
// failures (timeouts) with exponential backoff but giving up immediately
// on a connection refused, the same split irpc_client.c's
// connect_or_die left to the operator and comm.RemoteDevice.Open
// automates.
func Dial(addr string, cfg DialConfig) (*Client, error) {
	var conn net.Conn
	wasTimeout := false
	op := func() error {
		var err error
		conn, err = net.DialTimeout("tcp", addr, cfg.Timeout)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "refused") {
				return nil
			}
			wasTimeout = true
			return err
		}
		return nil
	}
	var b backoff.BackOff = &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      cfg.MaxElapsedTime,
		Clock:               backoff.SystemClock,
	}
	if cfg.MaxElapsedTime == 0 {
		b = &backoff.StopBackOff{}
	}
	err := backoff.Retry(op, b)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		if wasTimeout {
			return nil, fmt.Errorf("rpcclient: connection timeout to %s", addr)
		}
		return nil, fmt.Errorf("rpcclient: failed to connect to %s", addr)
	}
	return &Client{Session: irpc.NewSession(conn, irpc.RoleClient)}, nil
}

func (c *Client) call(op irpc.Selector, req func() error, resp func() error) error {
	c.Lock()
	defer c.Unlock()
	if err := c.SendSelector(op); err != nil {
		return fmt.Errorf("rpcclient: %s: send selector: %w", op, err)
	}
	if req != nil {
		if err := req(); err != nil {
			return fmt.Errorf("rpcclient: %s: write request: %w", op, err)
		}
	}
	if resp != nil {
		if err := resp(); err != nil {
			return fmt.Errorf("rpcclient: %s: read response: %w", op, err)
		}
	}
	return nil
}

// Init performs the server's init operation.
func (c *Client) Init() (irpc.Status, error) {
	var out irpc.InitResponse
	err := c.call(irpc.OpInit, nil, func() (err error) {
		out, err = irpc.ReadInitResponse(c.Reader())
		return err
	})
	return irpc.Status(out.Status), err
}

// Exit performs the server's exit operation. There is no response frame.
func (c *Client) Exit() error {
	return c.call(irpc.OpExit, nil, nil)
}

// GetDeviceList lists currently attached devices.
func (c *Client) GetDeviceList() (irpc.DeviceList, error) {
	var out irpc.DeviceList
	err := c.call(irpc.OpGetDeviceList, nil, func() (err error) {
		out, err = irpc.ReadDeviceList(c.Reader())
		return err
	})
	return out, err
}

// GetDeviceDescriptor reads the full descriptor of dev.
func (c *Client) GetDeviceDescriptor(dev irpc.DeviceId) (irpc.DeviceDescriptor, irpc.Status, error) {
	var out irpc.GetDeviceDescriptorResponse
	err := c.call(irpc.OpGetDeviceDescriptor,
		func() error { return irpc.GetDeviceDescriptorRequest{Device: dev}.Write(c.Writer()) },
		func() (err error) { out, err = irpc.ReadGetDeviceDescriptorResponse(c.Reader()); return err },
	)
	return out.Descriptor, irpc.Status(out.Status), err
}

// OpenWithVIDPID opens the first attached device matching vid/pid.
func (c *Client) OpenWithVIDPID(vid, pid int32) (irpc.DeviceHandle, error) {
	var out irpc.OpenWithVIDPIDResponse
	err := c.call(irpc.OpOpenWithVIDPID,
		func() error { return irpc.OpenWithVIDPIDRequest{VendorID: vid, ProductID: pid}.Write(c.Writer()) },
		func() (err error) { out, err = irpc.ReadOpenWithVIDPIDResponse(c.Reader()); return err },
	)
	return out.Handle, err
}

// Open opens dev, as previously reported by GetDeviceList.
func (c *Client) Open(dev irpc.DeviceId) (irpc.DeviceHandle, irpc.Status, error) {
	var out irpc.OpenResponse
	err := c.call(irpc.OpOpen,
		func() error { return irpc.OpenRequest{Device: dev}.Write(c.Writer()) },
		func() (err error) { out, err = irpc.ReadOpenResponse(c.Reader()); return err },
	)
	return out.Handle, irpc.Status(out.Status), err
}

// Close closes the server's current handle. There is no response frame.
func (c *Client) Close() error {
	return c.call(irpc.OpClose, nil, nil)
}

func (c *Client) handleInt(op irpc.Selector, h irpc.DeviceHandle, value int32) (irpc.Status, error) {
	var out irpc.StatusResponse
	err := c.call(op,
		func() error { return irpc.HandleIntRequest{Handle: h, Value: value}.Write(c.Writer()) },
		func() (err error) { out, err = irpc.ReadStatusResponse(c.Reader()); return err },
	)
	return irpc.Status(out.Status), err
}

// ClaimInterface claims iface on the currently open device.
func (c *Client) ClaimInterface(h irpc.DeviceHandle, iface int32) (irpc.Status, error) {
	return c.handleInt(irpc.OpClaimInterface, h, iface)
}

// ReleaseInterface releases iface on the currently open device.
func (c *Client) ReleaseInterface(h irpc.DeviceHandle, iface int32) (irpc.Status, error) {
	return c.handleInt(irpc.OpReleaseInterface, h, iface)
}

// GetConfiguration queries the currently open device's configuration.
// Only the status comes back; the configuration number is not returned.
func (c *Client) GetConfiguration(h irpc.DeviceHandle) (irpc.Status, error) {
	return c.handleInt(irpc.OpGetConfiguration, h, 0)
}

// SetConfiguration sets the currently open device's configuration.
func (c *Client) SetConfiguration(h irpc.DeviceHandle, config int32) (irpc.Status, error) {
	return c.handleInt(irpc.OpSetConfiguration, h, config)
}

// SetInterfaceAltSetting sets an alternate setting on iface.
func (c *Client) SetInterfaceAltSetting(h irpc.DeviceHandle, iface, alt int32) (irpc.Status, error) {
	var out irpc.StatusResponse
	err := c.call(irpc.OpSetInterfaceAltSetting,
		func() error {
			return irpc.SetInterfaceAltSettingRequest{Handle: h, Interface: iface, AltSetting: alt}.Write(c.Writer())
		},
		func() (err error) { out, err = irpc.ReadStatusResponse(c.Reader()); return err },
	)
	return irpc.Status(out.Status), err
}

// ResetDevice resets the currently open device.
func (c *Client) ResetDevice(h irpc.DeviceHandle) (irpc.Status, error) {
	var out irpc.StatusResponse
	err := c.call(irpc.OpResetDevice,
		func() error { return irpc.HandleRequest{Handle: h}.Write(c.Writer()) },
		func() (err error) { out, err = irpc.ReadStatusResponse(c.Reader()); return err },
	)
	return irpc.Status(out.Status), err
}

// ControlTransfer issues a control transfer against the currently open
// device. length bounds the response buffer.
func (c *Client) ControlTransfer(h irpc.DeviceHandle, reqType, req, value, index, length, timeout int32) (irpc.ControlTransferResponse, error) {
	var out irpc.ControlTransferResponse
	err := c.call(irpc.OpControlTransfer,
		func() error {
			return irpc.ControlTransferRequest{
				Handle: h, RequestType: reqType, Request: req,
				Value: value, Index: index, Length: length, Timeout: timeout,
			}.Write(c.Writer())
		},
		func() (err error) { out, err = irpc.ReadControlTransferResponse(c.Reader()); return err },
	)
	return out, err
}

// BulkTransfer issues a bulk transfer against the currently open device.
func (c *Client) BulkTransfer(h irpc.DeviceHandle, endpoint int8, length, timeout int32) (irpc.BulkTransferResponse, error) {
	var out irpc.BulkTransferResponse
	err := c.call(irpc.OpBulkTransfer,
		func() error {
			return irpc.BulkTransferRequest{Handle: h, Endpoint: endpoint, Length: length, Timeout: timeout}.Write(c.Writer())
		},
		func() (err error) { out, err = irpc.ReadBulkTransferResponse(c.Reader()); return err },
	)
	return out, err
}

// ClearHalt clears a stall condition on endpoint.
func (c *Client) ClearHalt(h irpc.DeviceHandle, endpoint int8) (irpc.Status, error) {
	var out irpc.StatusResponse
	err := c.call(irpc.OpClearHalt,
		func() error { return irpc.ClearHaltRequest{Handle: h, Endpoint: endpoint}.Write(c.Writer()) },
		func() (err error) { out, err = irpc.ReadStatusResponse(c.Reader()); return err },
	)
	return irpc.Status(out.Status), err
}

// GetStringDescriptorASCII reads and ASCII-decodes the string descriptor
// at index.
func (c *Client) GetStringDescriptorASCII(h irpc.DeviceHandle, index, length int32) (irpc.GetStringDescriptorASCIIResponse, error) {
	var out irpc.GetStringDescriptorASCIIResponse
	err := c.call(irpc.OpGetStringDescriptorASCII,
		func() error {
			return irpc.GetStringDescriptorASCIIRequest{Handle: h, Index: index, Length: length}.Write(c.Writer())
		},
		func() (err error) { out, err = irpc.ReadGetStringDescriptorASCIIResponse(c.Reader()); return err },
	)
	return out, err
}
