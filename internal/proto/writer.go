package proto

import (
	"encoding/binary"
	"math"
)

// Writer builds a little-endian binary payload by appending.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// WriteU8 writes 1 byte.
func (w *Writer) WriteU8(v uint8) {
	w.buf = append(w.buf, v)
}

// WriteU16 writes 2 bytes little-endian.
func (w *Writer) WriteU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteU32 writes 4 bytes little-endian.
func (w *Writer) WriteU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteU64 writes 8 bytes little-endian.
func (w *Writer) WriteU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteI64 writes 8 bytes little-endian from a signed value.
func (w *Writer) WriteI64(v int64) {
	w.WriteU64(uint64(v))
}

// WriteF32 writes an IEEE-754 float as 4 bytes.
func (w *Writer) WriteF32(v float32) {
	w.WriteU32(math.Float32bits(v))
}

// WriteBytes writes raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Bytes returns the accumulated payload.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the current length.
func (w *Writer) Len() int {
	return len(w.buf)
}

// BufferBuilder assembles a full EWDC command buffer: header plus a run of
// command records. The command count is patched into the header on Bytes().
type BufferBuilder struct {
	buf   []byte
	count uint32
}

func NewBufferBuilder() *BufferBuilder {
	b := &BufferBuilder{buf: make([]byte, 0, 256)}
	var hdr [BufferHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], Magic)
	binary.LittleEndian.PutUint32(hdr[4:], Version)
	// commandCount at offset 8 patched later; reserved stays zero
	b.buf = append(b.buf, hdr[:]...)
	return b
}

// Add appends one command record with the given payload.
func (b *BufferBuilder) Add(op Op, id uint32, payload []byte) {
	var hdr [CommandHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(op))
	binary.LittleEndian.PutUint32(hdr[4:], id)
	binary.LittleEndian.PutUint32(hdr[8:], uint32(len(payload)))
	b.buf = append(b.buf, hdr[:]...)
	b.buf = append(b.buf, payload...)
	b.count++
}

// Count returns the number of commands added so far.
func (b *BufferBuilder) Count() int {
	return int(b.count)
}

// Bytes finalizes the buffer.
func (b *BufferBuilder) Bytes() []byte {
	binary.LittleEndian.PutUint32(b.buf[8:], b.count)
	return b.buf
}
