package irpc

import "github.com/nasa-jpl/irpcd/wire"

// This file is the message catalog of spec.md §4.2: one request type
// and one response type (when the schema has one) per operation, each
// with a Write method that encodes it as exactly one frame and a
// matching ReadX function that decodes one. Every format string below
// is transcribed verbatim from the spec.md table; the pairing of
// struct field order to format letter is the only thing that can make
// these wrong, so keep them lined up column-for-column with the table
// when editing.

// ---- init ----

type InitResponse struct {
	Status int32
}

const initResponseFormat = "i"

func (v InitResponse) Write(w *wire.Writer) error {
	w.Int32(v.Status)
	return w.Flush(initResponseFormat)
}

func ReadInitResponse(r *wire.Reader) (InitResponse, error) {
	var v InitResponse
	if err := r.ReadFrame(initResponseFormat); err != nil {
		return v, err
	}
	var err error
	v.Status, err = r.Int32()
	return v, err
}

// ---- get-device-list ----
// Response is a DeviceList; spec.md's "i n, S(iiii)#" is DeviceList's
// own wire format.

func WriteDeviceList(w *wire.Writer, v DeviceList) error {
	v.encode(w)
	return w.Flush(deviceListFormat)
}

func ReadDeviceList(r *wire.Reader) (DeviceList, error) {
	if err := r.ReadFrame(deviceListFormat); err != nil {
		return DeviceList{}, err
	}
	return decodeDeviceList(r)
}

// ---- get-device-descriptor ----

type GetDeviceDescriptorRequest struct {
	Device DeviceId
}

func (v GetDeviceDescriptorRequest) Write(w *wire.Writer) error {
	v.Device.encode(w)
	return w.Flush(deviceIdFormat)
}

func ReadGetDeviceDescriptorRequest(r *wire.Reader) (GetDeviceDescriptorRequest, error) {
	if err := r.ReadFrame(deviceIdFormat); err != nil {
		return GetDeviceDescriptorRequest{}, err
	}
	d, err := decodeDeviceId(r)
	return GetDeviceDescriptorRequest{Device: d}, err
}

type GetDeviceDescriptorResponse struct {
	Descriptor DeviceDescriptor
	Status     int32
}

const getDeviceDescriptorResponseFormat = deviceDescriptorFormat + "i"

func (v GetDeviceDescriptorResponse) Write(w *wire.Writer) error {
	v.Descriptor.encode(w)
	w.Int32(v.Status)
	return w.Flush(getDeviceDescriptorResponseFormat)
}

func ReadGetDeviceDescriptorResponse(r *wire.Reader) (GetDeviceDescriptorResponse, error) {
	var v GetDeviceDescriptorResponse
	if err := r.ReadFrame(getDeviceDescriptorResponseFormat); err != nil {
		return v, err
	}
	desc, err := decodeDeviceDescriptor(r)
	if err != nil {
		return v, err
	}
	v.Descriptor = desc
	v.Status, err = r.Int32()
	return v, err
}

// ---- open-with-vid-pid ----

type OpenWithVIDPIDRequest struct {
	VendorID  int32
	ProductID int32
}

const openWithVIDPIDRequestFormat = "ii"

func (v OpenWithVIDPIDRequest) Write(w *wire.Writer) error {
	w.Int32(v.VendorID)
	w.Int32(v.ProductID)
	return w.Flush(openWithVIDPIDRequestFormat)
}

func ReadOpenWithVIDPIDRequest(r *wire.Reader) (OpenWithVIDPIDRequest, error) {
	var v OpenWithVIDPIDRequest
	if err := r.ReadFrame(openWithVIDPIDRequestFormat); err != nil {
		return v, err
	}
	var err error
	if v.VendorID, err = r.Int32(); err != nil {
		return v, err
	}
	v.ProductID, err = r.Int32()
	return v, err
}

type OpenWithVIDPIDResponse struct {
	Handle DeviceHandle
}

func (v OpenWithVIDPIDResponse) Write(w *wire.Writer) error {
	v.Handle.encode(w)
	return w.Flush(deviceHandleFormat)
}

func ReadOpenWithVIDPIDResponse(r *wire.Reader) (OpenWithVIDPIDResponse, error) {
	if err := r.ReadFrame(deviceHandleFormat); err != nil {
		return OpenWithVIDPIDResponse{}, err
	}
	h, err := decodeDeviceHandle(r)
	return OpenWithVIDPIDResponse{Handle: h}, err
}

// ---- open ----

type OpenRequest struct {
	Device DeviceId
}

func (v OpenRequest) Write(w *wire.Writer) error {
	v.Device.encode(w)
	return w.Flush(deviceIdFormat)
}

func ReadOpenRequest(r *wire.Reader) (OpenRequest, error) {
	if err := r.ReadFrame(deviceIdFormat); err != nil {
		return OpenRequest{}, err
	}
	d, err := decodeDeviceId(r)
	return OpenRequest{Device: d}, err
}

type OpenResponse struct {
	Handle DeviceHandle
	Status int32
}

const openResponseFormat = deviceHandleFormat + "i"

func (v OpenResponse) Write(w *wire.Writer) error {
	v.Handle.encode(w)
	w.Int32(v.Status)
	return w.Flush(openResponseFormat)
}

func ReadOpenResponse(r *wire.Reader) (OpenResponse, error) {
	var v OpenResponse
	if err := r.ReadFrame(openResponseFormat); err != nil {
		return v, err
	}
	h, err := decodeDeviceHandle(r)
	if err != nil {
		return v, err
	}
	v.Handle = h
	v.Status, err = r.Int32()
	return v, err
}

// ---- claim-interface / release-interface / get-configuration / set-configuration ----
// These four operations share one request shape (handle + one int)
// and one response shape (status only); spec.md's table lists them
// with identical schemas under different selectors.

type HandleIntRequest struct {
	Handle DeviceHandle
	Value  int32
}

const handleIntRequestFormat = deviceHandleFormat + "i"

func (v HandleIntRequest) Write(w *wire.Writer) error {
	v.Handle.encode(w)
	w.Int32(v.Value)
	return w.Flush(handleIntRequestFormat)
}

func ReadHandleIntRequest(r *wire.Reader) (HandleIntRequest, error) {
	var v HandleIntRequest
	if err := r.ReadFrame(handleIntRequestFormat); err != nil {
		return v, err
	}
	h, err := decodeDeviceHandle(r)
	if err != nil {
		return v, err
	}
	v.Handle = h
	v.Value, err = r.Int32()
	return v, err
}

type StatusResponse struct {
	Status int32
}

const statusResponseFormat = "i"

func (v StatusResponse) Write(w *wire.Writer) error {
	w.Int32(v.Status)
	return w.Flush(statusResponseFormat)
}

func ReadStatusResponse(r *wire.Reader) (StatusResponse, error) {
	var v StatusResponse
	if err := r.ReadFrame(statusResponseFormat); err != nil {
		return v, err
	}
	var err error
	v.Status, err = r.Int32()
	return v, err
}

// ---- set-interface-alt-setting ----

type SetInterfaceAltSettingRequest struct {
	Handle      DeviceHandle
	Interface   int32
	AltSetting  int32
}

const setInterfaceAltSettingRequestFormat = deviceHandleFormat + "ii"

func (v SetInterfaceAltSettingRequest) Write(w *wire.Writer) error {
	v.Handle.encode(w)
	w.Int32(v.Interface)
	w.Int32(v.AltSetting)
	return w.Flush(setInterfaceAltSettingRequestFormat)
}

func ReadSetInterfaceAltSettingRequest(r *wire.Reader) (SetInterfaceAltSettingRequest, error) {
	var v SetInterfaceAltSettingRequest
	if err := r.ReadFrame(setInterfaceAltSettingRequestFormat); err != nil {
		return v, err
	}
	h, err := decodeDeviceHandle(r)
	if err != nil {
		return v, err
	}
	v.Handle = h
	if v.Interface, err = r.Int32(); err != nil {
		return v, err
	}
	v.AltSetting, err = r.Int32()
	return v, err
}

// ---- reset-device ----

type HandleRequest struct {
	Handle DeviceHandle
}

func (v HandleRequest) Write(w *wire.Writer) error {
	v.Handle.encode(w)
	return w.Flush(deviceHandleFormat)
}

func ReadHandleRequest(r *wire.Reader) (HandleRequest, error) {
	if err := r.ReadFrame(deviceHandleFormat); err != nil {
		return HandleRequest{}, err
	}
	h, err := decodeDeviceHandle(r)
	return HandleRequest{Handle: h}, err
}

// ---- control-transfer ----

type ControlTransferRequest struct {
	Handle     DeviceHandle
	RequestType int32
	Request    int32
	Value      int32
	Index      int32
	Length     int32
	Timeout    int32
}

const controlTransferRequestFormat = deviceHandleFormat + "iiiiii"

func (v ControlTransferRequest) Write(w *wire.Writer) error {
	v.Handle.encode(w)
	w.Int32(v.RequestType)
	w.Int32(v.Request)
	w.Int32(v.Value)
	w.Int32(v.Index)
	w.Int32(v.Length)
	w.Int32(v.Timeout)
	return w.Flush(controlTransferRequestFormat)
}

func ReadControlTransferRequest(r *wire.Reader) (ControlTransferRequest, error) {
	var v ControlTransferRequest
	if err := r.ReadFrame(controlTransferRequestFormat); err != nil {
		return v, err
	}
	h, err := decodeDeviceHandle(r)
	if err != nil {
		return v, err
	}
	v.Handle = h
	fields := []*int32{&v.RequestType, &v.Request, &v.Value, &v.Index, &v.Length, &v.Timeout}
	for _, f := range fields {
		if *f, err = r.Int32(); err != nil {
			return v, err
		}
	}
	return v, nil
}

type ControlTransferResponse struct {
	Retcode   int32
	SubStatus int32
	Data      []byte
}

const controlTransferResponseFormat = "iic#"

func (v ControlTransferResponse) Write(w *wire.Writer) error {
	w.Int32(v.Retcode)
	w.Int32(v.SubStatus)
	w.Counted(v.Data, MaxData)
	return w.Flush(controlTransferResponseFormat)
}

func ReadControlTransferResponse(r *wire.Reader) (ControlTransferResponse, error) {
	var v ControlTransferResponse
	if err := r.ReadFrame(controlTransferResponseFormat); err != nil {
		return v, err
	}
	var err error
	if v.Retcode, err = r.Int32(); err != nil {
		return v, err
	}
	if v.SubStatus, err = r.Int32(); err != nil {
		return v, err
	}
	data, _, err := r.Counted(MaxData)
	v.Data = data
	return v, err
}

// ---- bulk-transfer ----

type BulkTransferRequest struct {
	Handle      DeviceHandle
	Endpoint    int8
	Length      int32
	Transferred int32 // vestigial, ignored server-side (spec.md §4.3)
	Timeout     int32
}

const bulkTransferRequestFormat = deviceHandleFormat + "ciii"

func (v BulkTransferRequest) Write(w *wire.Writer) error {
	v.Handle.encode(w)
	w.Int8(v.Endpoint)
	w.Int32(v.Length)
	w.Int32(v.Transferred)
	w.Int32(v.Timeout)
	return w.Flush(bulkTransferRequestFormat)
}

func ReadBulkTransferRequest(r *wire.Reader) (BulkTransferRequest, error) {
	var v BulkTransferRequest
	if err := r.ReadFrame(bulkTransferRequestFormat); err != nil {
		return v, err
	}
	h, err := decodeDeviceHandle(r)
	if err != nil {
		return v, err
	}
	v.Handle = h
	if v.Endpoint, err = r.Int8(); err != nil {
		return v, err
	}
	if v.Length, err = r.Int32(); err != nil {
		return v, err
	}
	if v.Transferred, err = r.Int32(); err != nil {
		return v, err
	}
	v.Timeout, err = r.Int32()
	return v, err
}

type BulkTransferResponse struct {
	Retcode     int32
	Transferred int32
	Data        []byte
}

const bulkTransferResponseFormat = "iic#"

func (v BulkTransferResponse) Write(w *wire.Writer) error {
	w.Int32(v.Retcode)
	w.Int32(v.Transferred)
	w.Counted(v.Data, MaxData)
	return w.Flush(bulkTransferResponseFormat)
}

func ReadBulkTransferResponse(r *wire.Reader) (BulkTransferResponse, error) {
	var v BulkTransferResponse
	if err := r.ReadFrame(bulkTransferResponseFormat); err != nil {
		return v, err
	}
	var err error
	if v.Retcode, err = r.Int32(); err != nil {
		return v, err
	}
	if v.Transferred, err = r.Int32(); err != nil {
		return v, err
	}
	data, _, err := r.Counted(MaxData)
	v.Data = data
	return v, err
}

// ---- clear-halt ----

type ClearHaltRequest struct {
	Handle   DeviceHandle
	Endpoint int8
}

const clearHaltRequestFormat = deviceHandleFormat + "c"

func (v ClearHaltRequest) Write(w *wire.Writer) error {
	v.Handle.encode(w)
	w.Int8(v.Endpoint)
	return w.Flush(clearHaltRequestFormat)
}

func ReadClearHaltRequest(r *wire.Reader) (ClearHaltRequest, error) {
	var v ClearHaltRequest
	if err := r.ReadFrame(clearHaltRequestFormat); err != nil {
		return v, err
	}
	h, err := decodeDeviceHandle(r)
	if err != nil {
		return v, err
	}
	v.Handle = h
	v.Endpoint, err = r.Int8()
	return v, err
}

// ---- get-string-descriptor-ascii ----

type GetStringDescriptorASCIIRequest struct {
	Handle DeviceHandle
	Index  int32
	Length int32
}

const getStringDescriptorASCIIRequestFormat = deviceHandleFormat + "ii"

func (v GetStringDescriptorASCIIRequest) Write(w *wire.Writer) error {
	v.Handle.encode(w)
	w.Int32(v.Index)
	w.Int32(v.Length)
	return w.Flush(getStringDescriptorASCIIRequestFormat)
}

func ReadGetStringDescriptorASCIIRequest(r *wire.Reader) (GetStringDescriptorASCIIRequest, error) {
	var v GetStringDescriptorASCIIRequest
	if err := r.ReadFrame(getStringDescriptorASCIIRequestFormat); err != nil {
		return v, err
	}
	h, err := decodeDeviceHandle(r)
	if err != nil {
		return v, err
	}
	v.Handle = h
	if v.Index, err = r.Int32(); err != nil {
		return v, err
	}
	v.Length, err = r.Int32()
	return v, err
}

type GetStringDescriptorASCIIResponse struct {
	Retcode int32
	Data    []byte
}

const getStringDescriptorASCIIResponseFormat = "ic#"

func (v GetStringDescriptorASCIIResponse) Write(w *wire.Writer) error {
	w.Int32(v.Retcode)
	w.Counted(v.Data, MaxData)
	return w.Flush(getStringDescriptorASCIIResponseFormat)
}

func ReadGetStringDescriptorASCIIResponse(r *wire.Reader) (GetStringDescriptorASCIIResponse, error) {
	var v GetStringDescriptorASCIIResponse
	if err := r.ReadFrame(getStringDescriptorASCIIResponseFormat); err != nil {
		return v, err
	}
	var err error
	if v.Retcode, err = r.Int32(); err != nil {
		return v, err
	}
	data, _, err := r.Counted(MaxData)
	v.Data = data
	return v, err
}
