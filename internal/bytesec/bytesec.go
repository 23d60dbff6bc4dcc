// Package bytesec provides byte-level security helpers: constant-time
// comparison, secure wiping, and the little-endian length-prefix framing
// used throughout the package format.
package bytesec

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"io"
	"runtime"

	"github.com/zenith-nz/ObscurCore/internal/cerrors"
)

// EqualCT compares two byte slices in time independent of their contents.
// Slices of unequal length compare unequal without inspecting content.
func EqualCT(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Wipe overwrites b with zeros. The KeepAlive prevents the compiler from
// eliding the stores when b is about to go out of scope.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// WipeAll wipes every supplied slice.
func WipeAll(bufs ...[]byte) {
	for _, b := range bufs {
		Wipe(b)
	}
}

// PutU32LE encodes x as 4 little-endian bytes.
func PutU32LE(x uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], x)
	return b[:]
}

// U32LE decodes 4 little-endian bytes.
func U32LE(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// WriteLengthPrefixed writes a little-endian u32 length followed by the
// bytes themselves.
func WriteLengthPrefixed(w io.Writer, b []byte) error {
	if _, err := w.Write(PutU32LE(uint32(len(b)))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadLengthPrefixed reads a little-endian u32 length followed by that many
// bytes. Lengths above max are rejected before any allocation.
func ReadLengthPrefixed(r io.Reader, max uint32) ([]byte, error) {
	var lb [4]byte
	if _, err := io.ReadFull(r, lb[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated length field", cerrors.ErrFormatInvalid)
	}
	n := binary.LittleEndian.Uint32(lb[:])
	if n > max {
		return nil, fmt.Errorf("%w: declared length exceeds limit", cerrors.ErrFormatInvalid)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("%w: declared length exceeds remaining stream", cerrors.ErrFormatInvalid)
	}
	return b, nil
}
