// Package codec implements the canonical binary encoding shared by the
// block and transaction wire formats (§4.2): big-endian fixed-width
// integers and a prefix-length variable-width unsigned integer, written
// to and read from a flat byte buffer.
package codec

import (
	"encoding/binary"
	"fmt"
)

// Writer accumulates a canonical byte encoding. The zero value is ready
// to use.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with the given initial capacity hint.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the accumulated bytes. The caller must not retain and
// mutate the result after further writes.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// WriteBytes appends raw bytes with no length prefix.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteU8 appends a single byte.
func (w *Writer) WriteU8(v uint8) {
	w.buf = append(w.buf, v)
}

// WriteU16 appends a big-endian uint16.
func (w *Writer) WriteU16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

// WriteU32 appends a big-endian uint32.
func (w *Writer) WriteU32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

// WriteU64 appends a big-endian uint64.
func (w *Writer) WriteU64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

// WriteVarUint appends v using the variable-length encoding of §4.2:
// values below 0xFC self-encode in one byte; 0xFC/0xFD/0xFE prefix a
// following u16/u32/u64; 0xFF prefixes a 128-bit big-endian value (the
// high 64 bits are always zero since no amount or count in this system
// exceeds 64 bits, but the wire format reserves the width).
func (w *Writer) WriteVarUint(v uint64) {
	switch {
	case v < 0xFC:
		w.WriteU8(uint8(v))
	case v <= 0xFFFF:
		w.WriteU8(0xFC)
		w.WriteU16(uint16(v))
	case v <= 0xFFFFFFFF:
		w.WriteU8(0xFD)
		w.WriteU32(uint32(v))
	default:
		w.WriteU8(0xFE)
		w.WriteU64(v)
	}
}

// Reader consumes a canonical byte encoding produced by Writer.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps data for sequential decoding.
func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// ReadBytes reads exactly n raw bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, fmt.Errorf("codec: short read, need %d bytes, have %d", n, r.Remaining())
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16 reads a big-endian uint16.
func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadU32 reads a big-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadU64 reads a big-endian uint64.
func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadVarUint reads a §4.2 variable-length unsigned integer. A 0xFF
// prefix (128-bit width) is accepted only when its high 64 bits are
// zero; this system never produces or needs a value requiring more
// than 64 bits.
func (r *Reader) ReadVarUint() (uint64, error) {
	prefix, err := r.ReadU8()
	if err != nil {
		return 0, err
	}
	switch prefix {
	case 0xFC:
		v, err := r.ReadU16()
		return uint64(v), err
	case 0xFD:
		v, err := r.ReadU32()
		return uint64(v), err
	case 0xFE:
		return r.ReadU64()
	case 0xFF:
		hi, err := r.ReadU64()
		if err != nil {
			return 0, err
		}
		lo, err := r.ReadU64()
		if err != nil {
			return 0, err
		}
		if hi != 0 {
			return 0, fmt.Errorf("codec: varuint exceeds 64 bits")
		}
		return lo, nil
	default:
		return uint64(prefix), nil
	}
}
