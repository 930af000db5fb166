package proto

import (
	"encoding/binary"
	"math"
)

// Reader walks a little-endian payload with bounds checking on every read.
// Overrunning the buffer yields zero values and latches the Short flag; the
// caller checks Short() once at the end instead of after every field.
type Reader struct {
	data  []byte
	off   int
	short bool
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// ReadU8 reads 1 byte.
func (r *Reader) ReadU8() uint8 {
	if r.off+1 > len(r.data) {
		r.short = true
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

// ReadU16 reads 2 bytes little-endian.
func (r *Reader) ReadU16() uint16 {
	if r.off+2 > len(r.data) {
		r.short = true
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

// ReadU32 reads 4 bytes little-endian.
func (r *Reader) ReadU32() uint32 {
	if r.off+4 > len(r.data) {
		r.short = true
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

// ReadU64 reads 8 bytes little-endian.
func (r *Reader) ReadU64() uint64 {
	if r.off+8 > len(r.data) {
		r.short = true
		return 0
	}
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v
}

// ReadI64 reads 8 bytes little-endian as a signed value.
func (r *Reader) ReadI64() int64 {
	return int64(r.ReadU64())
}

// ReadF32 reads 4 bytes as an IEEE-754 float.
func (r *Reader) ReadF32() float32 {
	return math.Float32frombits(r.ReadU32())
}

// ReadBytes reads n raw bytes as a copy.
func (r *Reader) ReadBytes(n int) []byte {
	if n < 0 || r.off+n > len(r.data) {
		r.short = true
		remaining := make([]byte, len(r.data)-r.off)
		copy(remaining, r.data[r.off:])
		r.off = len(r.data)
		return remaining
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:r.off+n])
	r.off += n
	return b
}

// Skip advances past n bytes.
func (r *Reader) Skip(n int) {
	if n < 0 || r.off+n > len(r.data) {
		r.short = true
		r.off = len(r.data)
		return
	}
	r.off += n
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Short reports whether any read ran past the end of the buffer.
func (r *Reader) Short() bool {
	return r.short
}
