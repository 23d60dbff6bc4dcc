package mux

import (
	"fmt"
	"io"

	"github.com/zenith-nz/ObscurCore/internal/bytesec"
	"github.com/zenith-nz/ObscurCore/internal/cerrors"
	"github.com/zenith-nz/ObscurCore/internal/primitive"
	"github.com/zenith-nz/ObscurCore/internal/streams"
)

type readPipe struct {
	cipher    *streams.CipherStream // decrypting, pushes plaintext to the sink
	mac       *streams.MacStream    // ciphertext enters here
	keys      [][]byte
	remaining uint64
}

// ReadAll reverses WriteAll: it replays the schedule from the shared PRNG,
// routes each item's declared ciphertext span through its MAC and cipher
// into its sink, and verifies every item tag. Any tag mismatch aborts the
// whole read.
func ReadAll(in io.Reader, entries []*Entry, cfg Config) error {
	if err := cfg.validate(len(entries)); err != nil {
		return err
	}
	for _, e := range entries {
		if e.Sink == nil {
			return fmt.Errorf("%w: item has no sink stream", cerrors.ErrConfigInvalid)
		}
	}

	pipes := make([]*readPipe, len(entries))
	done := make([]bool, len(entries))
	defer func() {
		for _, p := range pipes {
			if p != nil {
				bytesec.WipeAll(p.keys...)
			}
		}
	}()

	remaining := len(entries)
	for remaining > 0 {
		idx := nextSource(cfg.PRNG, done)
		e := entries[idx]
		p := pipes[idx]
		if p == nil {
			var err error
			p, err = newReadPipe(cfg.Registry, e)
			if err != nil {
				return err
			}
			pipes[idx] = p
		}

		if cfg.Scheme == SchemeFrameshift {
			if _, err := skipPadding(in, cfg); err != nil {
				return err
			}
		}

		chunk := p.remaining
		if chunk > SegmentSize {
			chunk = SegmentSize
		}
		if chunk > 0 {
			if _, err := io.CopyN(p.mac, in, int64(chunk)); err != nil {
				if err == io.EOF || err == io.ErrUnexpectedEOF {
					return fmt.Errorf("%w: payload truncated", cerrors.ErrFormatInvalid)
				}
				return err
			}
			p.remaining -= chunk
		}

		if p.remaining == 0 {
			if err := p.cipher.Finish(); err != nil {
				return err
			}
			if err := p.mac.Update(e.Binding); err != nil {
				return err
			}
			tag := p.mac.Finish()
			bytesec.WipeAll(p.keys...)
			p.keys = nil
			if !bytesec.EqualCT(tag, e.AuthTag) {
				return fmt.Errorf("%w: payload item", cerrors.ErrCiphertextAuth)
			}
			if e.ExternalLength != 0 && p.cipher.BytesOut() != e.ExternalLength {
				return fmt.Errorf("%w: payload item", cerrors.ErrLengthMismatch)
			}
			done[idx] = true
			remaining--
		}
	}
	return nil
}

func newReadPipe(reg *primitive.Registry, e *Entry) (*readPipe, error) {
	if err := checkItemCipher(e.CipherCfg); err != nil {
		return nil, err
	}
	if len(e.AuthTag) == 0 {
		return nil, fmt.Errorf("%w: item carries no auth tag", cerrors.ErrFormatInvalid)
	}
	cipherKey, authKey, err := resolveKeys(reg, e)
	if err != nil {
		return nil, err
	}
	macHash, err := reg.NewMac(e.AuthCfg, authKey)
	if err != nil {
		bytesec.WipeAll(cipherKey, authKey)
		return nil, err
	}
	cs, err := streams.NewDecryptWriter(e.Sink, reg, e.CipherCfg, cipherKey)
	if err != nil {
		bytesec.WipeAll(cipherKey, authKey)
		return nil, err
	}
	return &readPipe{
		cipher:    cs,
		mac:       streams.NewMacWriter(cs, macHash),
		keys:      [][]byte{cipherKey, authKey},
		remaining: e.InternalLength,
	}, nil
}
