package primitive

import (
	"encoding/binary"

	"golang.org/x/crypto/chacha20"
)

// DRBGSeedSize is the seed length NewDRBG expects.
const DRBGSeedSize = 32

// DRBG is a deterministic CSPRNG built on the ChaCha20 keystream. Two
// instances seeded identically produce identical output streams, which is
// what makes the payload schedule reproducible on both sides of a package.
type DRBG struct {
	c *chacha20.Cipher
}

// NewDRBG constructs a generator from a 32-byte seed.
func NewDRBG(seed []byte) (*DRBG, error) {
	if len(seed) != DRBGSeedSize {
		return nil, configErr("DRBG seed must be %d bytes, got %d", DRBGSeedSize, len(seed))
	}
	c, err := chacha20.NewUnauthenticatedCipher(seed, make([]byte, chacha20.NonceSize))
	if err != nil {
		return nil, err
	}
	return &DRBG{c: c}, nil
}

// NextBytes fills p with generator output.
func (d *DRBG) NextBytes(p []byte) {
	for i := range p {
		p[i] = 0
	}
	d.c.XORKeyStream(p, p)
}

// NextUint32 returns the next 32 generator bits.
func (d *DRBG) NextUint32() uint32 {
	var b [4]byte
	d.NextBytes(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

// NextInt returns a uniform value in [low, high). Rejection sampling keeps
// the distribution exact; a biased draw here would leak schedule structure.
func (d *DRBG) NextInt(low, high int) int {
	if high <= low {
		return low
	}
	span := uint32(high - low)
	limit := ^uint32(0) - ^uint32(0)%span
	for {
		v := d.NextUint32()
		if v < limit {
			return low + int(v%span)
		}
	}
}
