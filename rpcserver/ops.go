package rpcserver

import (
	"github.com/nasa-jpl/irpcd/irpc"
	"github.com/nasa-jpl/irpcd/usbadapter"
	"github.com/nasa-jpl/irpcd/util"
)

// dataLengthLimit clamps a client-supplied transfer length to the wire's
// fixed data capacity (spec.md §3 MAX_DATA), reusing the same
// min/max clamp the teacher's telemetry limits use.
var dataLengthLimit = util.Limiter{Min: 0, Max: float64(irpc.MaxData)}

func clampDataLength(requested int32) int {
	return int(dataLengthLimit.Clamp(float64(requested)))
}

func deviceToID(d usbadapter.Device) irpc.DeviceId {
	return irpc.DeviceId{
		BusNumber:         int32(d.Bus),
		DeviceAddress:     int32(d.Address),
		NumConfigurations: int32(d.NumConfigurations),
		SessionID:         d.SessionID,
	}
}

func descriptorToWire(d usbadapter.Descriptor) irpc.DeviceDescriptor {
	return irpc.DeviceDescriptor{
		BLength:            int32(d.Length),
		BDescriptorType:    int32(d.DescriptorType),
		BcdUSB:             int32(d.USBSpec),
		BDeviceClass:       int32(d.DeviceClass),
		BDeviceSubClass:    int32(d.DeviceSubClass),
		BDeviceProtocol:    int32(d.DeviceProtocol),
		BMaxPacketSize0:    int32(d.MaxPacketSize0),
		IdVendor:           int32(d.VendorID),
		IdProduct:          int32(d.ProductID),
		BcdDevice:          int32(d.DeviceRelease),
		IManufacturer:      int32(d.ManufacturerIndex),
		IProduct:           int32(d.ProductIndex),
		ISerialNumber:      int32(d.SerialNumberIndex),
		BNumConfigurations: int32(d.NumConfigurations),
	}
}

func (s *Server) doInit(sess *irpc.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := irpc.StatusSuccess
	if err := s.Adapter.Init(); err != nil {
		s.Logger.Printf("rpcserver: init: %v", err)
		status = irpc.StatusFailure
	} else {
		s.stage = StageReady
	}
	return irpc.InitResponse{Status: int32(status)}.Write(sess.Writer())
}

// doExit tears the adapter down. It has no response frame (spec.md §4.2
// table: exit's response is "(none)"); any handle still open is dropped
// first the same way close would.
func (s *Server) doExit(sess *irpc.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		s.Adapter.Close(s.handle)
		s.handle = nil
	}
	if err := s.Adapter.Exit(); err != nil {
		s.Logger.Printf("rpcserver: exit: %v", err)
	}
	s.stage = StageTeardown
	return nil
}

func (s *Server) doGetDeviceList(sess *irpc.Session) error {
	s.mu.Lock()
	devices, err := s.Adapter.DeviceList()
	s.mu.Unlock()
	if err != nil {
		s.Logger.Printf("rpcserver: get-device-list: %v", err)
		devices = nil
	}
	var list irpc.DeviceList
	n := len(devices)
	if n > irpc.MaxDevs {
		n = irpc.MaxDevs
	}
	list.N = int32(n)
	for i := 0; i < n; i++ {
		list.Devices[i] = deviceToID(devices[i])
	}
	return irpc.WriteDeviceList(sess.Writer(), list)
}

func (s *Server) doGetDeviceDescriptor(sess *irpc.Session) error {
	req, err := irpc.ReadGetDeviceDescriptorRequest(sess.Reader())
	if err != nil {
		return err
	}
	desc, aerr := s.Adapter.Descriptor(req.Device.SessionID)
	status := irpc.StatusSuccess
	if aerr != nil {
		status = irpc.StatusFailure
	}
	return irpc.GetDeviceDescriptorResponse{
		Descriptor: descriptorToWire(desc),
		Status:     int32(status),
	}.Write(sess.Writer())
}

func (s *Server) doOpenWithVIDPID(sess *irpc.Session) error {
	req, err := irpc.ReadOpenWithVIDPIDRequest(sess.Reader())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h, dev, aerr := s.Adapter.OpenWithVIDPID(uint16(req.VendorID), uint16(req.ProductID))
	var handle irpc.DeviceHandle
	if aerr == nil {
		s.replaceHandle(h, dev)
		handle = irpc.DeviceHandle{Device: deviceToID(dev)}
	} else {
		s.Logger.Printf("rpcserver: open-with-vid-pid: %v", aerr)
	}
	// spec.md's table gives open-with-vid-pid's response as the handle
	// alone, with no status field; a failed open is signaled by a
	// zero-value handle, matching libirpc's open_with_vid_pid_cb.
	return irpc.OpenWithVIDPIDResponse{Handle: handle}.Write(sess.Writer())
}

func (s *Server) doOpen(sess *irpc.Session) error {
	req, err := irpc.ReadOpenRequest(sess.Reader())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h, dev, aerr := s.Adapter.Open(req.Device.SessionID)
	status := irpc.StatusSuccess
	var handle irpc.DeviceHandle
	if aerr != nil {
		status = irpc.StatusFailure
		s.Logger.Printf("rpcserver: open: %v", aerr)
	} else {
		s.replaceHandle(h, dev)
		handle = irpc.DeviceHandle{Device: deviceToID(dev)}
	}
	return irpc.OpenResponse{Handle: handle, Status: int32(status)}.Write(sess.Writer())
}

// replaceHandle closes any handle currently open before installing the
// new one (spec.md H1: "opening while a handle is already open closes
// the prior handle first"). Caller holds s.mu.
func (s *Server) replaceHandle(h usbadapter.Handle, dev usbadapter.Device) {
	if s.handle != nil {
		s.Adapter.Close(s.handle)
	}
	s.handle = h
	s.handleDevice = dev
	s.stage = StageHandleOpen
}

// doClose has no request or response frame (spec.md §4.2 table); it
// always targets the single current handle and is a no-op if none is
// open (spec.md §4 supplemented features).
func (s *Server) doClose(sess *irpc.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		s.Adapter.Close(s.handle)
		s.handle = nil
	}
	s.stage = StageReady
	return nil
}

// routingOK reports whether a per-handle operation carrying reqHandle is
// allowed to proceed against the server's current handle. Non-strict
// mode always allows it (libirpc's original behavior of consulting only
// its one global irpc_handle, spec.md §9); strict mode requires the
// request's session ID to match (the forward-compatible fix spec.md §9
// describes as an option, not the default).
func (s *Server) routingOK(reqSessionID int32) bool {
	if !s.Strict {
		return true
	}
	return reqSessionID == s.handleDevice.SessionID
}

func (s *Server) doHandleInt(sess *irpc.Session, fn func(usbadapter.Handle, int32) error) error {
	req, err := irpc.ReadHandleIntRequest(sess.Reader())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	status := irpc.StatusFailure
	if s.stage == StageHandleOpen && s.routingOK(req.Handle.Device.SessionID) {
		if err := fn(s.handle, req.Value); err == nil {
			status = irpc.StatusSuccess
		} else {
			s.Logger.Printf("rpcserver: %v", err)
		}
	}
	return irpc.StatusResponse{Status: int32(status)}.Write(sess.Writer())
}

// doGetConfiguration ignores the configuration value on the request
// (libirpc's get_configuration_cb reads back the current config, it
// does not accept one) and discards the adapter's reported configuration
// number in the response, reporting only success/failure, matching the
// original's schema of carrying a `config` field in the request only.
func (s *Server) doGetConfiguration(sess *irpc.Session) error {
	req, err := irpc.ReadHandleIntRequest(sess.Reader())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	status := irpc.StatusFailure
	if s.stage == StageHandleOpen && s.routingOK(req.Handle.Device.SessionID) {
		if _, err := s.Adapter.GetConfiguration(s.handle); err == nil {
			status = irpc.StatusSuccess
		} else {
			s.Logger.Printf("rpcserver: get-configuration: %v", err)
		}
	}
	return irpc.StatusResponse{Status: int32(status)}.Write(sess.Writer())
}

func (s *Server) doSetInterfaceAltSetting(sess *irpc.Session) error {
	req, err := irpc.ReadSetInterfaceAltSettingRequest(sess.Reader())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	status := irpc.StatusFailure
	if s.stage == StageHandleOpen && s.routingOK(req.Handle.Device.SessionID) {
		if err := s.Adapter.SetInterfaceAltSetting(s.handle, int(req.Interface), int(req.AltSetting)); err == nil {
			status = irpc.StatusSuccess
		} else {
			s.Logger.Printf("rpcserver: set-interface-alt-setting: %v", err)
		}
	}
	return irpc.StatusResponse{Status: int32(status)}.Write(sess.Writer())
}

func (s *Server) doHandleOnly(sess *irpc.Session, fn func(usbadapter.Handle) error) error {
	req, err := irpc.ReadHandleRequest(sess.Reader())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	status := irpc.StatusFailure
	if s.stage == StageHandleOpen && s.routingOK(req.Handle.Device.SessionID) {
		if err := fn(s.handle); err == nil {
			status = irpc.StatusSuccess
		} else {
			s.Logger.Printf("rpcserver: %v", err)
		}
	}
	return irpc.StatusResponse{Status: int32(status)}.Write(sess.Writer())
}

// subStatusFromBuffer extracts control-transfer's "sub-status", defined
// by libirpc as byte offset 4 of the returned buffer whenever the
// adapter's retcode is at least 5 bytes, and 0 otherwise (spec.md §4
// supplemented features).
func subStatusFromBuffer(retcode int, buf []byte) int32 {
	if retcode >= 5 && len(buf) > 4 {
		return int32(buf[4])
	}
	return 0
}

func (s *Server) doControlTransfer(sess *irpc.Session) error {
	req, err := irpc.ReadControlTransferRequest(sess.Reader())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, clampDataLength(req.Length))

	retcode := -1
	if s.stage == StageHandleOpen && s.routingOK(req.Handle.Device.SessionID) {
		n, aerr := s.Adapter.ControlTransfer(s.handle, uint8(req.RequestType), uint8(req.Request),
			int(req.Value), int(req.Index), buf, int(req.Timeout))
		if aerr != nil {
			s.Logger.Printf("rpcserver: control-transfer: %v", aerr)
			retcode = -1
		} else {
			retcode = n
			buf = buf[:n]
		}
	} else {
		buf = buf[:0]
	}

	return irpc.ControlTransferResponse{
		Retcode:   int32(retcode),
		SubStatus: subStatusFromBuffer(retcode, buf),
		Data:      buf,
	}.Write(sess.Writer())
}

func (s *Server) doBulkTransfer(sess *irpc.Session) error {
	req, err := irpc.ReadBulkTransferRequest(sess.Reader())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, clampDataLength(req.Length))

	retcode := -1
	transferred := 0
	if s.stage == StageHandleOpen && s.routingOK(req.Handle.Device.SessionID) {
		n, aerr := s.Adapter.BulkTransfer(s.handle, uint8(req.Endpoint), buf, int(req.Timeout))
		if aerr != nil {
			s.Logger.Printf("rpcserver: bulk-transfer: %v", aerr)
			retcode = -1
			buf = buf[:0]
		} else {
			retcode = 0
			transferred = n
			buf = buf[:n]
		}
	} else {
		buf = buf[:0]
	}

	return irpc.BulkTransferResponse{
		Retcode:     int32(retcode),
		Transferred: int32(transferred),
		Data:        buf,
	}.Write(sess.Writer())
}

func (s *Server) doClearHalt(sess *irpc.Session) error {
	req, err := irpc.ReadClearHaltRequest(sess.Reader())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	status := irpc.StatusFailure
	if s.stage == StageHandleOpen && s.routingOK(req.Handle.Device.SessionID) {
		if err := s.Adapter.ClearHalt(s.handle, uint8(req.Endpoint)); err == nil {
			status = irpc.StatusSuccess
		} else {
			s.Logger.Printf("rpcserver: clear-halt: %v", err)
		}
	}
	return irpc.StatusResponse{Status: int32(status)}.Write(sess.Writer())
}

func (s *Server) doGetStringDescriptorASCII(sess *irpc.Session) error {
	req, err := irpc.ReadGetStringDescriptorASCIIRequest(sess.Reader())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	length := clampDataLength(req.Length)

	retcode := -1
	var data []byte
	if s.stage == StageHandleOpen && s.routingOK(req.Handle.Device.SessionID) {
		str, aerr := s.Adapter.StringDescriptorASCII(s.handle, int(req.Index))
		if aerr != nil {
			s.Logger.Printf("rpcserver: get-string-descriptor-ascii: %v", aerr)
		} else {
			b := []byte(str)
			if len(b) > length {
				b = b[:length]
			}
			data = b
			retcode = len(b)
		}
	}
	return irpc.GetStringDescriptorASCIIResponse{Retcode: int32(retcode), Data: data}.Write(sess.Writer())
}
