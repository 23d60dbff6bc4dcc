// Package codec implements the self-describing wire encoding used for the
// manifest, the manifest header, and every serialized configuration object.
//
// The encoding is deliberately minimal and deterministic: multi-byte
// integers are little-endian, strings are UTF-8 with a u32 length prefix,
// byte fields are u32 length prefixed, and optional fields carry a one-byte
// presence flag. Determinism matters because serialized configuration bytes
// are mixed into MAC transcripts; two encoders given the same value must
// produce identical bytes.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/zenith-nz/ObscurCore/internal/cerrors"
)

// maxFieldLen bounds a single length-prefixed field. It exists to stop a
// corrupt length prefix from driving a huge allocation.
const maxFieldLen = 1 << 30

// Encoder accumulates fields into a byte buffer.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns an empty encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the encoded form.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// Byte appends a single raw byte.
func (e *Encoder) Byte(b byte) {
	e.buf.WriteByte(b)
}

// Bool appends a boolean as one byte (0 or 1).
func (e *Encoder) Bool(v bool) {
	if v {
		e.buf.WriteByte(1)
	} else {
		e.buf.WriteByte(0)
	}
}

// Uint32 appends a little-endian u32.
func (e *Encoder) Uint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

// Int32 appends a little-endian i32.
func (e *Encoder) Int32(v int32) {
	e.Uint32(uint32(v))
}

// Uint64 appends a little-endian u64.
func (e *Encoder) Uint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

// BytesField appends a u32 length prefix followed by b.
func (e *Encoder) BytesField(b []byte) {
	e.Uint32(uint32(len(b)))
	e.buf.Write(b)
}

// String appends a u32 length prefix followed by the UTF-8 bytes of s.
func (e *Encoder) String(s string) {
	e.BytesField([]byte(s))
}

// OptBytes appends a presence flag and, when present, a length-prefixed
// byte field. A nil slice encodes as absent; an empty non-nil slice encodes
// as present with length zero.
func (e *Encoder) OptBytes(b []byte) {
	if b == nil {
		e.Bool(false)
		return
	}
	e.Bool(true)
	e.BytesField(b)
}

// Raw appends bytes with no framing.
func (e *Encoder) Raw(b []byte) {
	e.buf.Write(b)
}

// Decoder reads fields back out of a byte slice. Errors latch: after the
// first failure every accessor returns a zero value and Err reports the
// original cause.
type Decoder struct {
	b   []byte
	off int
	err error
}

// NewDecoder returns a decoder over b.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{b: b}
}

// Err returns the first decoding error, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Remaining reports how many bytes have not been consumed.
func (d *Decoder) Remaining() int {
	return len(d.b) - d.off
}

// Done returns an error unless the decoder consumed its input exactly and
// without errors.
func (d *Decoder) Done() error {
	if d.err != nil {
		return d.err
	}
	if d.off != len(d.b) {
		return fmt.Errorf("%w: %d trailing bytes", cerrors.ErrFormatInvalid, len(d.b)-d.off)
	}
	return nil
}

func (d *Decoder) fail(msg string) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s", cerrors.ErrFormatInvalid, msg)
	}
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.b)-d.off < n {
		d.fail("truncated field")
		return nil
	}
	v := d.b[d.off : d.off+n]
	d.off += n
	return v
}

// Byte reads a single raw byte.
func (d *Decoder) Byte() byte {
	v := d.take(1)
	if v == nil {
		return 0
	}
	return v[0]
}

// Bool reads a one-byte boolean, rejecting values other than 0 and 1.
func (d *Decoder) Bool() bool {
	switch d.Byte() {
	case 0:
		return false
	case 1:
		return true
	default:
		d.fail("invalid boolean")
		return false
	}
}

// Uint32 reads a little-endian u32.
func (d *Decoder) Uint32() uint32 {
	v := d.take(4)
	if v == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(v)
}

// Int32 reads a little-endian i32.
func (d *Decoder) Int32() int32 {
	return int32(d.Uint32())
}

// Uint64 reads a little-endian u64.
func (d *Decoder) Uint64() uint64 {
	v := d.take(8)
	if v == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(v)
}

// BytesField reads a u32 length-prefixed byte field. The returned slice is
// a copy, safe to retain.
func (d *Decoder) BytesField() []byte {
	n := d.Uint32()
	if d.err != nil {
		return nil
	}
	if n > maxFieldLen {
		d.fail("field length exceeds limit")
		return nil
	}
	v := d.take(int(n))
	if v == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, v)
	return out
}

// String reads a u32 length-prefixed UTF-8 string.
func (d *Decoder) String() string {
	v := d.BytesField()
	if d.err != nil {
		return ""
	}
	if !utf8.Valid(v) {
		d.fail("string is not valid UTF-8")
		return ""
	}
	return string(v)
}

// OptBytes reads a presence flag and, when present, a length-prefixed byte
// field. Absent decodes as nil.
func (d *Decoder) OptBytes() []byte {
	if !d.Bool() {
		return nil
	}
	b := d.BytesField()
	if b == nil && d.err == nil {
		// Present with length zero: preserve non-nil.
		return []byte{}
	}
	return b
}

// Raw reads n bytes with no framing. The returned slice is a copy.
func (d *Decoder) Raw(n int) []byte {
	v := d.take(n)
	if v == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, v)
	return out
}
