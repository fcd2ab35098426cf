package bufpool

import (
	"encoding/binary"
	"math"
)

// Writer appends little-endian values to a fixed allocation.
//
// Errors are sticky: after the first write that would overflow, every later
// write is dropped and Err returns ErrWriterOverflow.
type Writer struct {
	buf []byte
	pos int
	err error
}

// NewWriter returns a Writer over buf.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

func (w *Writer) reserve(n int) []byte {
	if w.err != nil {
		return nil
	}
	if w.pos+n > len(w.buf) {
		w.err = ErrWriterOverflow
		return nil
	}
	b := w.buf[w.pos : w.pos+n]
	w.pos += n
	return b
}

// Write implements io.Writer. It writes all of p or nothing.
func (w *Writer) Write(p []byte) (int, error) {
	b := w.reserve(len(p))
	if b == nil && len(p) > 0 {
		return 0, w.err
	}
	return copy(b, p), nil
}

// PutFloat32 writes one float.
func (w *Writer) PutFloat32(v float32) {
	if b := w.reserve(4); b != nil {
		binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	}
}

// PutFloat32s writes vs in order.
func (w *Writer) PutFloat32s(vs ...float32) {
	for _, v := range vs {
		w.PutFloat32(v)
	}
}

// PutUint32 writes one uint32.
func (w *Writer) PutUint32(v uint32) {
	if b := w.reserve(4); b != nil {
		binary.LittleEndian.PutUint32(b, v)
	}
}

// PutUint16 writes one uint16.
func (w *Writer) PutUint16(v uint16) {
	if b := w.reserve(2); b != nil {
		binary.LittleEndian.PutUint16(b, v)
	}
}

// PutUint8 writes one byte.
func (w *Writer) PutUint8(v uint8) {
	if b := w.reserve(1); b != nil {
		b[0] = v
	}
}

// PutRGBA8 writes four normalized color bytes.
func (w *Writer) PutRGBA8(r, g, b, a uint8) {
	if p := w.reserve(4); p != nil {
		p[0], p[1], p[2], p[3] = r, g, b, a
	}
}

// Len returns the number of bytes written.
func (w *Writer) Len() int { return w.pos }

// Remaining returns the number of bytes left.
func (w *Writer) Remaining() int { return len(w.buf) - w.pos }

// Err returns ErrWriterOverflow if any write was dropped.
func (w *Writer) Err() error { return w.err }
