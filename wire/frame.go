/*Package wire implements the length-delimited, self-describing frame
codec used by every message on an irpc connection.

A frame is a magic tag, a format string describing the payload layout,
a payload length, the payload itself, and a trailing CRC-16/XMODEM
over the payload. Readers validate the magic, the format string, and
the checksum before handing the payload to a caller; any mismatch is a
fatal, connection-ending error (spec.md §7, category 1).

The codec has no notion of what a payload means: that belongs to the
irpc package's message catalog. It only knows how to write and read
fixed-width signed integers, fixed-capacity byte blocks, and
counted byte blocks, in a fixed little-endian encoding so two peers
with different native word sizes or endianness agree on the bytes.
*/
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/snksoft/crc"
)

// Magic identifies the codec on the wire. A peer that reads a
// different value knows it is not talking to an irpc peer.
const Magic uint32 = 0x49525043 // "IRPC"

// MaxFormatLen and MaxPayloadLen bound a frame so a corrupt or hostile
// peer cannot make a reader allocate an unbounded buffer.
const (
	MaxFormatLen  = 256
	MaxPayloadLen = 1 << 20
)

var order = binary.LittleEndian

var crcTable = crc.NewTable(crc.XMODEM)

// ProtocolError reports a fatal, connection-ending condition: a short
// read/write, a magic or format mismatch, or a checksum failure. Every
// ProtocolError is category (1) in spec.md §7 and the caller must drop
// the connection.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("irpc wire: %s: %v", e.Op, e.Err) }
func (e *ProtocolError) Unwrap() error { return e.Err }

func protoErr(op string, err error) error {
	return &ProtocolError{Op: op, Err: err}
}

var (
	// ErrMagicMismatch is returned when a frame's leading tag is not Magic.
	ErrMagicMismatch = errors.New("frame magic mismatch")

	// ErrFormatMismatch is returned when a frame's format string does not
	// match what the reader expected for the operation in progress.
	ErrFormatMismatch = errors.New("frame format mismatch")

	// ErrChecksum is returned when a frame's CRC trailer does not match
	// its payload.
	ErrChecksum = errors.New("frame checksum mismatch")

	// ErrFrameTooLarge is returned when a frame declares a format or
	// payload length beyond the bounds this codec accepts.
	ErrFrameTooLarge = errors.New("frame declares an oversized format or payload")
)

// Writer accumulates one frame's payload and flushes it, header and
// checksum included, to the underlying stream.
type Writer struct {
	dst io.Writer
	buf bytes.Buffer
}

// NewWriter returns a Writer that flushes completed frames to dst.
func NewWriter(dst io.Writer) *Writer {
	return &Writer{dst: dst}
}

// Int32 appends a 4-byte signed integer ('i' in the format grammar).
func (w *Writer) Int32(v int32) {
	var b [4]byte
	order.PutUint32(b[:], uint32(v))
	w.buf.Write(b[:])
}

// Int8 appends a single signed byte ('c' in the format grammar).
func (w *Writer) Int8(v int8) {
	w.buf.WriteByte(byte(v))
}

// Fixed appends exactly len(b) raw bytes. Used for fixed-capacity
// arrays whose length is implied by the schema rather than carried on
// the wire.
func (w *Writer) Fixed(b []byte) {
	w.buf.Write(b)
}

// Counted appends a 32-bit count followed by data, zero-padded or
// truncated to capacity bytes. This is the '#' counted-array marker:
// the count states how many of the capacity bytes are meaningful, but
// the full capacity is always transmitted (spec.md §4.1, §4.3).
func (w *Writer) Counted(data []byte, capacity int) {
	n := len(data)
	if n > capacity {
		n = capacity
	}
	w.Int32(int32(n))
	block := make([]byte, capacity)
	copy(block, data[:n])
	w.buf.Write(block)
}

// Flush writes the accumulated payload as one frame: magic, format
// string, payload length, payload, CRC-16/XMODEM trailer. It resets
// the Writer so it can be reused for the next frame.
func (w *Writer) Flush(format string) error {
	defer w.buf.Reset()
	payload := w.buf.Bytes()
	if len(format) > MaxFormatLen || len(payload) > MaxPayloadLen {
		return protoErr("flush", ErrFrameTooLarge)
	}

	var hdr bytes.Buffer
	var tmp [4]byte
	order.PutUint32(tmp[:], Magic)
	hdr.Write(tmp[:])

	var lenBuf [2]byte
	order.PutUint16(lenBuf[:], uint16(len(format)))
	hdr.Write(lenBuf[:])
	hdr.WriteString(format)

	var plenBuf [4]byte
	order.PutUint32(plenBuf[:], uint32(len(payload)))
	hdr.Write(plenBuf[:])

	if _, err := w.dst.Write(hdr.Bytes()); err != nil {
		return protoErr("write header", err)
	}
	if _, err := w.dst.Write(payload); err != nil {
		return protoErr("write payload", err)
	}

	sum := checksum(payload)
	var sumBuf [2]byte
	order.PutUint16(sumBuf[:], sum)
	if _, err := w.dst.Write(sumBuf[:]); err != nil {
		return protoErr("write checksum", err)
	}
	return nil
}

func checksum(payload []byte) uint16 {
	c := crcTable.InitCrc()
	c = crcTable.UpdateCrc(c, payload)
	return crcTable.CRC16(c)
}

// Reader reads one frame at a time, validating the header and
// checksum before exposing the payload to field-level readers.
type Reader struct {
	src     io.Reader
	payload []byte
	off     int
}

// NewReader returns a Reader that reads frames from src.
func NewReader(src io.Reader) *Reader {
	return &Reader{src: src}
}

// ReadFrame reads exactly one frame and validates its format string
// against want. On success the frame's payload is buffered internally
// and consumed by the Int32/Int8/Fixed/Counted readers below; every
// byte of the declared payload length is consumed even if the schema
// reads fewer fields than the payload contains, so the stream always
// advances by exactly the header-declared length (spec.md P2).
func (r *Reader) ReadFrame(want string) error {
	var hdr [4]byte
	if _, err := io.ReadFull(r.src, hdr[:]); err != nil {
		return protoErr("read magic", err)
	}
	if order.Uint32(hdr[:]) != Magic {
		return protoErr("read magic", ErrMagicMismatch)
	}

	var lenBuf [2]byte
	if _, err := io.ReadFull(r.src, lenBuf[:]); err != nil {
		return protoErr("read format length", err)
	}
	flen := order.Uint16(lenBuf[:])
	if int(flen) > MaxFormatLen {
		return protoErr("read format", ErrFrameTooLarge)
	}
	fbuf := make([]byte, flen)
	if _, err := io.ReadFull(r.src, fbuf); err != nil {
		return protoErr("read format", err)
	}
	if string(fbuf) != want {
		return protoErr("read format", ErrFormatMismatch)
	}

	var plenBuf [4]byte
	if _, err := io.ReadFull(r.src, plenBuf[:]); err != nil {
		return protoErr("read payload length", err)
	}
	plen := order.Uint32(plenBuf[:])
	if plen > MaxPayloadLen {
		return protoErr("read payload", ErrFrameTooLarge)
	}
	payload := make([]byte, plen)
	if _, err := io.ReadFull(r.src, payload); err != nil {
		return protoErr("read payload", err)
	}

	var sumBuf [2]byte
	if _, err := io.ReadFull(r.src, sumBuf[:]); err != nil {
		return protoErr("read checksum", err)
	}
	if order.Uint16(sumBuf[:]) != checksum(payload) {
		return protoErr("read checksum", ErrChecksum)
	}

	r.payload = payload
	r.off = 0
	return nil
}

func (r *Reader) need(n int) error {
	if r.off+n > len(r.payload) {
		return protoErr("read field", io.ErrUnexpectedEOF)
	}
	return nil
}

// Int32 consumes and returns the next 4-byte signed integer.
func (r *Reader) Int32() (int32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := int32(order.Uint32(r.payload[r.off:]))
	r.off += 4
	return v, nil
}

// Int8 consumes and returns the next signed byte.
func (r *Reader) Int8() (int8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := int8(r.payload[r.off])
	r.off++
	return v, nil
}

// Fixed consumes and returns the next n raw bytes.
func (r *Reader) Fixed(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, r.payload[r.off:r.off+n])
	r.off += n
	return b, nil
}

// Counted consumes a 32-bit count followed by capacity bytes, and
// returns only the meaningful prefix (data[:count]) plus the raw
// count. A count beyond capacity is clamped defensively; a conforming
// peer never sends one (spec.md H2).
func (r *Reader) Counted(capacity int) ([]byte, int32, error) {
	n, err := r.Int32()
	if err != nil {
		return nil, 0, err
	}
	block, err := r.Fixed(capacity)
	if err != nil {
		return nil, 0, err
	}
	count := n
	if int(count) > capacity {
		count = int32(capacity)
	}
	if count < 0 {
		count = 0
	}
	return block[:count], n, nil
}

// Done reports whether the frame's entire declared payload has been
// consumed. It is only used defensively in tests; a well-formed
// schema always consumes exactly the payload.
func (r *Reader) Done() bool {
	return r.off == len(r.payload)
}
