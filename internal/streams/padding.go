package streams

import (
	"fmt"

	"github.com/zenith-nz/ObscurCore/internal/cerrors"
	"github.com/zenith-nz/ObscurCore/internal/primitive"
)

// padding fills the final partial plaintext block of a padded block mode
// and parses it back out. apply receives 0..op-1 trailing bytes and returns
// a full block; strip receives the decrypted final block.
//
// Fill bytes are deterministic (zeros where the scheme leaves them free) so
// that identically-keyed pipelines produce identical ciphertext.
type padding interface {
	apply(tail []byte, op int) []byte
	strip(block []byte, op int) ([]byte, error)
}

func newPadding(name string) (padding, error) {
	switch name {
	case primitive.PaddingNone:
		return nil, nil
	case primitive.PaddingPKCS7:
		return pkcs7{}, nil
	case primitive.PaddingISO10126, primitive.PaddingX923:
		// Both schemes carry the pad length in the last byte and leave
		// the fill unconstrained (ISO 10126) or zero (X9.23); only the
		// length byte is verified on strip.
		return lastByteLen{}, nil
	case primitive.PaddingZero:
		return zeroByte{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown padding %q", cerrors.ErrConfigInvalid, name)
	}
}

type pkcs7 struct{}

func (pkcs7) apply(tail []byte, op int) []byte {
	block := make([]byte, op)
	n := copy(block, tail)
	padLen := byte(op - n)
	for i := n; i < op; i++ {
		block[i] = padLen
	}
	return block
}

func (pkcs7) strip(block []byte, op int) ([]byte, error) {
	padLen := int(block[op-1])
	if padLen < 1 || padLen > op {
		return nil, cerrors.ErrPaddingCorrupt
	}
	// Full scan, no early exit on the first bad byte.
	bad := 0
	for i := op - padLen; i < op; i++ {
		if int(block[i]) != padLen {
			bad++
		}
	}
	if bad != 0 {
		return nil, cerrors.ErrPaddingCorrupt
	}
	return block[:op-padLen], nil
}

// zeroByte fills the final block with zeros and strips trailing zeros on
// the way back. It carries no length byte, so plaintext that itself ends
// in zero bytes is not representable; callers with binary payloads should
// prefer PKCS7.
type zeroByte struct{}

func (zeroByte) apply(tail []byte, op int) []byte {
	block := make([]byte, op)
	copy(block, tail)
	return block
}

func (zeroByte) strip(block []byte, op int) ([]byte, error) {
	n := op
	for n > 0 && block[n-1] == 0 {
		n--
	}
	return block[:n], nil
}

type lastByteLen struct{}

func (lastByteLen) apply(tail []byte, op int) []byte {
	block := make([]byte, op)
	n := copy(block, tail)
	block[op-1] = byte(op - n)
	return block
}

func (lastByteLen) strip(block []byte, op int) ([]byte, error) {
	padLen := int(block[op-1])
	if padLen < 1 || padLen > op {
		return nil, cerrors.ErrPaddingCorrupt
	}
	return block[:op-padLen], nil
}
