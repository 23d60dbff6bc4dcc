// Package streams implements the Encrypt-then-MAC decorator stack: the
// operation-sized cipher engine, the buffering cipher stream, and the
// MAC pass-through stream. Together they are the pipeline every manifest
// and payload item travels through.
package streams

import (
	"crypto/cipher"
	"fmt"

	"github.com/zenith-nz/ObscurCore/internal/cerrors"
	"github.com/zenith-nz/ObscurCore/internal/primitive"
)

// Engine is a uniform operation-sized byte transform over a stream cipher
// or a block cipher composed with a mode and optional padding.
//
// Process consumes exactly OperationSize input bytes and writes at most
// one operation of output; ProcessFinal consumes the trailing partial
// (possibly empty, possibly a full operation) and flushes any held state,
// writing up to three operations (a lagged block, plus a stolen-pair
// final for CTS). out must be sized accordingly. Engines may lag: a call
// can legitimately produce zero bytes.
type Engine interface {
	OperationSize() int
	Process(in, out []byte) (int, error)
	ProcessFinal(in, out []byte) (int, error)
}

// NewEngine builds the engine selected by cfg. Authenticated modes are
// rejected: in this system authentication is the MacStream's job, and an
// engine that appends tags would corrupt the length accounting of every
// consumer.
func NewEngine(reg *primitive.Registry, cfg primitive.CipherConfig, encrypt bool, key []byte) (Engine, error) {
	if cfg.AEAD() {
		return nil, fmt.Errorf("%w: authenticated mode %s cannot be used in a cipher stream", cerrors.ErrConfigInvalid, cfg.Mode)
	}
	if cfg.Stream() {
		if cfg.Mode != "" || cfg.Padding != primitive.PaddingNone {
			return nil, fmt.Errorf("%w: stream cipher %s takes no mode or padding", cerrors.ErrConfigInvalid, cfg.Cipher)
		}
		sc, err := reg.NewStream(cfg.Cipher, key, cfg.IV)
		if err != nil {
			return nil, err
		}
		return &streamEngine{sc: sc, op: 2 * sc.WordSize()}, nil
	}

	block, err := reg.NewBlock(cfg.Cipher, key)
	if err != nil {
		return nil, err
	}
	bs := block.BlockSize()
	if len(cfg.IV) != bs {
		return nil, fmt.Errorf("%w: IV must be one block (%d bytes), got %d", cerrors.ErrConfigInvalid, bs, len(cfg.IV))
	}

	switch cfg.Mode {
	case primitive.ModeCTR, primitive.ModeCFB, primitive.ModeOFB:
		if cfg.Padding != primitive.PaddingNone {
			return nil, fmt.Errorf("%w: mode %s takes no padding", cerrors.ErrConfigInvalid, cfg.Mode)
		}
		var s cipher.Stream
		switch cfg.Mode {
		case primitive.ModeCTR:
			s = cipher.NewCTR(block, cfg.IV)
		case primitive.ModeCFB:
			if encrypt {
				s = cipher.NewCFBEncrypter(block, cfg.IV)
			} else {
				s = cipher.NewCFBDecrypter(block, cfg.IV)
			}
		case primitive.ModeOFB:
			s = cipher.NewOFB(block, cfg.IV)
		}
		return &streamModeEngine{s: s, op: bs}, nil

	case primitive.ModeCBC:
		pad, err := newPadding(cfg.Padding)
		if err != nil {
			return nil, err
		}
		if pad == nil {
			return nil, fmt.Errorf("%w: mode CBC requires padding", cerrors.ErrConfigInvalid)
		}
		if encrypt {
			return &cbcEncryptEngine{mode: cipher.NewCBCEncrypter(block, cfg.IV), op: bs, pad: pad}, nil
		}
		return &cbcDecryptEngine{mode: cipher.NewCBCDecrypter(block, cfg.IV), op: bs, pad: pad, held: make([]byte, bs)}, nil

	case primitive.ModeCTSCBC:
		if cfg.Padding != primitive.PaddingNone {
			return nil, fmt.Errorf("%w: mode CTS-CBC takes no padding", cerrors.ErrConfigInvalid)
		}
		return newCTSEngine(block, cfg.IV, encrypt), nil

	default:
		return nil, fmt.Errorf("%w: unknown mode %q", cerrors.ErrConfigInvalid, cfg.Mode)
	}
}

// streamEngine adapts a primitive stream cipher. The operation size is a
// small multiple of the cipher's word size; any trailing length is legal.
type streamEngine struct {
	sc primitive.StreamCipher
	op int
}

func (e *streamEngine) OperationSize() int { return e.op }

func (e *streamEngine) Process(in, out []byte) (int, error) {
	e.sc.XORKeyStream(out[:len(in)], in)
	return len(in), nil
}

func (e *streamEngine) ProcessFinal(in, out []byte) (int, error) {
	e.sc.XORKeyStream(out[:len(in)], in)
	return len(in), nil
}

// streamModeEngine adapts a streamable block mode (CTR/CFB/OFB).
type streamModeEngine struct {
	s  cipher.Stream
	op int
}

func (e *streamModeEngine) OperationSize() int { return e.op }

func (e *streamModeEngine) Process(in, out []byte) (int, error) {
	e.s.XORKeyStream(out[:len(in)], in)
	return len(in), nil
}

func (e *streamModeEngine) ProcessFinal(in, out []byte) (int, error) {
	e.s.XORKeyStream(out[:len(in)], in)
	return len(in), nil
}

// cbcEncryptEngine emits one ciphertext block per plaintext block and pads
// the final partial. A final input that is itself a whole block produces
// that block plus a full padding block.
type cbcEncryptEngine struct {
	mode cipher.BlockMode
	op   int
	pad  padding
}

func (e *cbcEncryptEngine) OperationSize() int { return e.op }

func (e *cbcEncryptEngine) Process(in, out []byte) (int, error) {
	e.mode.CryptBlocks(out[:e.op], in)
	return e.op, nil
}

func (e *cbcEncryptEngine) ProcessFinal(in, out []byte) (int, error) {
	n := 0
	if len(in) == e.op {
		e.mode.CryptBlocks(out[:e.op], in)
		n = e.op
		in = nil
	}
	block := e.pad.apply(in, e.op)
	e.mode.CryptBlocks(out[n:n+e.op], block)
	return n + e.op, nil
}

// cbcDecryptEngine lags one block: the final block cannot be emitted until
// end of stream, when its padding is stripped.
type cbcDecryptEngine struct {
	mode    cipher.BlockMode
	op      int
	pad     padding
	held    []byte
	haveOne bool
}

func (e *cbcDecryptEngine) OperationSize() int { return e.op }

func (e *cbcDecryptEngine) Process(in, out []byte) (int, error) {
	n := 0
	if e.haveOne {
		e.mode.CryptBlocks(out[:e.op], e.held)
		n = e.op
	}
	copy(e.held, in)
	e.haveOne = true
	return n, nil
}

func (e *cbcDecryptEngine) ProcessFinal(in, out []byte) (int, error) {
	n := 0
	switch {
	case len(in) == e.op:
		if e.haveOne {
			e.mode.CryptBlocks(out[:e.op], e.held)
			n = e.op
		}
		copy(e.held, in)
		e.haveOne = true
	case len(in) != 0:
		return 0, cerrors.ErrIncompleteBlock
	}
	if !e.haveOne {
		return 0, cerrors.ErrIncompleteBlock
	}
	last := make([]byte, e.op)
	e.mode.CryptBlocks(last, e.held)
	stripped, err := e.pad.strip(last, e.op)
	if err != nil {
		return 0, err
	}
	copy(out[n:], stripped)
	return n + len(stripped), nil
}
