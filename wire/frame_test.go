package wire_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nasa-jpl/irpcd/wire"
)

func TestInt32RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	w.Int32(-12345)
	if err := w.Flush("i"); err != nil {
		t.Fatalf("flush: %v", err)
	}

	r := wire.NewReader(&buf)
	if err := r.ReadFrame("i"); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	got, err := r.Int32()
	if err != nil {
		t.Fatalf("int32: %v", err)
	}
	if got != -12345 {
		t.Fatalf("got %d, want -12345", got)
	}
	if !r.Done() {
		t.Fatalf("reader left bytes unconsumed")
	}
}

func TestCountedRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	data := []byte{1, 2, 3, 4, 5}
	w.Counted(data, 16)
	if err := w.Flush("c#"); err != nil {
		t.Fatalf("flush: %v", err)
	}

	r := wire.NewReader(&buf)
	if err := r.ReadFrame("c#"); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	got, n, err := r.Counted(16)
	if err != nil {
		t.Fatalf("counted: %v", err)
	}
	if n != 5 {
		t.Fatalf("count = %d, want 5", n)
	}
	if diff := cmp.Diff(data, got); diff != "" {
		t.Fatalf("counted data mismatch (-want +got):\n%s", diff)
	}
}

func TestCountedTruncatesToCapacity(t *testing.T) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	data := bytes.Repeat([]byte{0xAB}, 4096)
	w.Counted(data, 1024)
	if err := w.Flush("c#"); err != nil {
		t.Fatalf("flush: %v", err)
	}

	r := wire.NewReader(&buf)
	if err := r.ReadFrame("c#"); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	got, n, err := r.Counted(1024)
	if err != nil {
		t.Fatalf("counted: %v", err)
	}
	if n != 1024 || len(got) != 1024 {
		t.Fatalf("got n=%d len=%d, want 1024/1024", n, len(got))
	}
}

func TestFormatMismatchIsFatal(t *testing.T) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	w.Int32(1)
	if err := w.Flush("i"); err != nil {
		t.Fatalf("flush: %v", err)
	}

	r := wire.NewReader(&buf)
	err := r.ReadFrame("ii")
	if err == nil {
		t.Fatalf("expected format mismatch error")
	}
	var perr *wire.ProtocolError
	if !asProtocolError(err, &perr) {
		t.Fatalf("expected *wire.ProtocolError, got %T: %v", err, err)
	}
}

func TestMagicMismatchIsFatal(t *testing.T) {
	garbage := bytes.NewReader([]byte{0, 0, 0, 0, 0, 0})
	r := wire.NewReader(garbage)
	if err := r.ReadFrame("i"); err == nil {
		t.Fatalf("expected magic mismatch error")
	}
}

func TestShortReadIsFatal(t *testing.T) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	w.Int32(1)
	if err := w.Flush("i"); err != nil {
		t.Fatalf("flush: %v", err)
	}
	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-3])
	r := wire.NewReader(truncated)
	if err := r.ReadFrame("i"); err == nil {
		t.Fatalf("expected short-read error")
	}
}

func asProtocolError(err error, target **wire.ProtocolError) bool {
	pe, ok := err.(*wire.ProtocolError)
	if ok {
		*target = pe
	}
	return ok
}
