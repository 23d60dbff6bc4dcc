// Package mux interleaves the Encrypt-then-MAC pipelines of many payload
// items into one byte stream. A deterministic CSPRNG drives item selection
// (and, under the Frameshift scheme, inter-segment padding), so a reader
// seeded identically reproduces the writer's schedule byte for byte while
// an observer without the manifest sees no item boundaries.
package mux

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/zenith-nz/ObscurCore/internal/bytesec"
	"github.com/zenith-nz/ObscurCore/internal/cerrors"
	"github.com/zenith-nz/ObscurCore/internal/kex"
	"github.com/zenith-nz/ObscurCore/internal/primitive"
	"github.com/zenith-nz/ObscurCore/internal/streams"
)

// Payload layout scheme names. These are carried in the manifest.
const (
	SchemeSimple     = "Simple"
	SchemeFrameshift = "Frameshift"
)

// SegmentSize is the ciphertext quantum one scheduling step transfers.
// Every non-closing segment of an item moves exactly this much ciphertext,
// which is what lets the reader recompute segment boundaries from the
// manifest-declared internal length alone.
const SegmentSize = 4096

// Default Frameshift padding bounds in bytes.
const (
	DefaultPadMin = 16
	DefaultPadMax = 128
)

// Entry is one item's view for the multiplexer: its cipher/MAC
// configuration, its key material (either explicit working keys or a
// pre-key plus KDF), the serialized metadata the tag must bind, and the
// stream to drain from or fill into.
type Entry struct {
	CipherCfg primitive.CipherConfig
	AuthCfg   primitive.MacConfig

	// Either both working keys are set, or PreKey and KdfCfg are.
	CipherKey []byte
	AuthKey   []byte
	PreKey    []byte
	KdfCfg    *primitive.KdfConfig

	// Binding is the serialized authenticatible metadata clone mixed
	// into the MAC after the ciphertext.
	Binding []byte

	Source io.Reader // write mode
	Sink   io.Writer // read mode

	// ExternalLength, when non-zero, is the expected plaintext length;
	// the reader checks it against bytes produced.
	ExternalLength uint64
	// InternalLength is the item's ciphertext footprint in the payload:
	// set by Write, required by Read.
	InternalLength uint64
	// AuthTag is the item MAC: set by Write, verified by Read.
	AuthTag []byte
}

// Config carries the payload scheme parameters and shared services.
type Config struct {
	Scheme         string
	PadMin, PadMax int
	Registry       *primitive.Registry
	PRNG           *primitive.DRBG
}

func (c Config) validate(n int) error {
	switch c.Scheme {
	case SchemeSimple:
	case SchemeFrameshift:
		if c.PadMin < 1 || c.PadMax < c.PadMin {
			return fmt.Errorf("%w: frameshift padding bounds [%d,%d]", cerrors.ErrConfigInvalid, c.PadMin, c.PadMax)
		}
	default:
		return fmt.Errorf("%w: unknown payload scheme %q", cerrors.ErrConfigInvalid, c.Scheme)
	}
	if n == 0 {
		return fmt.Errorf("%w: no payload items", cerrors.ErrConfigInvalid)
	}
	if c.PRNG == nil {
		return fmt.Errorf("%w: payload scheduling PRNG missing", cerrors.ErrConfigInvalid)
	}
	return nil
}

// resolveKeys produces the working cipher and MAC keys for e. The returned
// slices are owned by the pipeline and wiped at item completion.
func resolveKeys(reg *primitive.Registry, e *Entry) (cipherKey, authKey []byte, err error) {
	switch {
	case e.CipherKey != nil && e.AuthKey != nil:
		cipherKey = append([]byte(nil), e.CipherKey...)
		authKey = append([]byte(nil), e.AuthKey...)
		return cipherKey, authKey, nil
	case e.PreKey != nil && e.KdfCfg != nil:
		ckLen, err := reg.CipherKeySize(e.CipherCfg)
		if err != nil {
			return nil, nil, err
		}
		mkLen, err := reg.MacKeySize(e.AuthCfg.Mac)
		if err != nil {
			return nil, nil, err
		}
		return kex.DeriveWorkingKeys(e.PreKey, ckLen, mkLen, *e.KdfCfg)
	default:
		return nil, nil, cerrors.ErrItemKeyMissing
	}
}

// checkItemCipher rejects cipher configurations whose per-segment output
// cannot be predicted from the segment input length. The scheduler depends
// on a full segment of plaintext producing a full segment of ciphertext.
func checkItemCipher(cfg primitive.CipherConfig) error {
	if cfg.Mode == primitive.ModeCTSCBC {
		return fmt.Errorf("%w: mode CTS-CBC cannot be scheduled in a payload", cerrors.ErrConfigInvalid)
	}
	return nil
}

// nextSource draws the next incomplete item index: a uniform draw followed
// by a forward scan over completed indices, wrapping to zero.
func nextSource(prng *primitive.DRBG, done []bool) int {
	idx := prng.NextInt(0, len(done))
	for done[idx] {
		idx++
		if idx == len(done) {
			idx = 0
		}
	}
	return idx
}

// emitPadding writes one deterministic padding run straight into the outer
// stream, outside every item's MAC.
func emitPadding(out io.Writer, cfg Config) (int, error) {
	n := cfg.PRNG.NextInt(cfg.PadMin, cfg.PadMax+1)
	pad := make([]byte, n)
	cfg.PRNG.NextBytes(pad)
	if _, err := out.Write(pad); err != nil {
		return 0, err
	}
	return n, nil
}

// skipPadding consumes one padding run on the read side, drawing the same
// PRNG values the writer drew to stay in schedule lockstep.
func skipPadding(in io.Reader, cfg Config) (int, error) {
	n := cfg.PRNG.NextInt(cfg.PadMin, cfg.PadMax+1)
	pad := make([]byte, n)
	cfg.PRNG.NextBytes(pad)
	if _, err := io.ReadFull(in, pad); err != nil {
		return 0, fmt.Errorf("%w: payload truncated", cerrors.ErrFormatInvalid)
	}
	return n, nil
}

type writePipe struct {
	src      *bufio.Reader
	staged   bytes.Buffer // ciphertext awaiting scheduling
	cipher   *streams.CipherStream
	mac      *streams.MacStream
	keys     [][]byte
	draining bool
}

// WriteAll drives every entry's source through its pipeline into out until
// all items are complete, and returns the total padding emitted. On return
// each entry carries its final InternalLength and AuthTag.
func WriteAll(out io.Writer, entries []*Entry, cfg Config) (padTotal uint64, err error) {
	if err := cfg.validate(len(entries)); err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.Source == nil {
			return 0, fmt.Errorf("%w: item has no source stream", cerrors.ErrConfigInvalid)
		}
	}

	pipes := make([]*writePipe, len(entries))
	done := make([]bool, len(entries))
	defer func() {
		for _, p := range pipes {
			if p != nil {
				bytesec.WipeAll(p.keys...)
			}
		}
	}()

	segBuf := make([]byte, SegmentSize)
	remaining := len(entries)
	for remaining > 0 {
		idx := nextSource(cfg.PRNG, done)
		e := entries[idx]
		p := pipes[idx]
		if p == nil {
			p, err = newWritePipe(out, cfg.Registry, e)
			if err != nil {
				return padTotal, err
			}
			pipes[idx] = p
		}

		if cfg.Scheme == SchemeFrameshift {
			n, err := emitPadding(out, cfg)
			if err != nil {
				return padTotal, err
			}
			padTotal += uint64(n)
		}

		if !p.draining {
			n, err := io.ReadFull(p.src, segBuf)
			if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
				return padTotal, err
			}
			if n > 0 {
				if _, werr := p.cipher.Write(segBuf[:n]); werr != nil {
					return padTotal, werr
				}
			}
			eof := err != nil
			if !eof {
				if _, perr := p.src.Peek(1); perr == io.EOF {
					eof = true
				} else if perr != nil {
					return padTotal, perr
				}
			}
			if eof {
				if ferr := p.cipher.Finish(); ferr != nil {
					return padTotal, ferr
				}
				p.draining = true
			} else if ferr := p.cipher.Flush(); ferr != nil {
				return padTotal, ferr
			}
		}

		// Move one segment of staged ciphertext into the outer stream.
		chunk := p.staged.Len()
		if chunk > SegmentSize {
			chunk = SegmentSize
		}
		if chunk > 0 {
			if _, err := io.CopyN(p.mac, &p.staged, int64(chunk)); err != nil {
				return padTotal, err
			}
		}

		if p.draining && p.staged.Len() == 0 {
			e.InternalLength = p.mac.BytesTransferred()
			if err := p.mac.Update(e.Binding); err != nil {
				return padTotal, err
			}
			e.AuthTag = p.mac.Finish()
			bytesec.WipeAll(p.keys...)
			p.keys = nil
			done[idx] = true
			remaining--
		}
	}
	return padTotal, nil
}

func newWritePipe(out io.Writer, reg *primitive.Registry, e *Entry) (*writePipe, error) {
	if err := checkItemCipher(e.CipherCfg); err != nil {
		return nil, err
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
	p := &writePipe{keys: [][]byte{cipherKey, authKey}}
	p.mac = streams.NewMacWriter(out, macHash)
	p.cipher, err = streams.NewEncryptStream(&p.staged, reg, e.CipherCfg, cipherKey)
	if err != nil {
		bytesec.WipeAll(cipherKey, authKey)
		return nil, err
	}
	p.src = bufio.NewReader(e.Source)
	return p, nil
}
