package primitive

import (
	"encoding/binary"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/salsa20/salsa"
)

// StreamCipher is the keystream interface the cipher engines consume.
// Implementations maintain their own position; successive calls continue
// the keystream.
type StreamCipher interface {
	// XORKeyStream XORs src with the next len(src) keystream bytes into
	// dst. dst and src may overlap entirely or not at all.
	XORKeyStream(dst, src []byte)
	// WordSize is the cipher's natural word size in bytes.
	WordSize() int
}

type chachaStream struct {
	c *chacha20.Cipher
}

func newChaCha20(key, nonce []byte) (StreamCipher, error) {
	c, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, configErr("chacha20: %v", err)
	}
	return &chachaStream{c: c}, nil
}

func (s *chachaStream) XORKeyStream(dst, src []byte) {
	s.c.XORKeyStream(dst, src)
}

func (s *chachaStream) WordSize() int { return 4 }

// salsaStream runs Salsa20 as a positioned keystream. The salsa core works
// in 64-byte blocks addressed by a counter; partial-block positions are
// handled by caching the current keystream block.
type salsaStream struct {
	key     [32]byte
	nonce   [8]byte
	counter uint64
	ks      [64]byte
	ksOff   int // 64 means exhausted
}

func newSalsa20(key, nonce []byte) (StreamCipher, error) {
	s := &salsaStream{ksOff: 64}
	copy(s.key[:], key)
	copy(s.nonce[:], nonce)
	return s, nil
}

// newXSalsa20 derives a Salsa20 subkey from the first 16 nonce bytes with
// HSalsa20 and runs Salsa20 under the remaining 8.
func newXSalsa20(key, nonce []byte) (StreamCipher, error) {
	var k [32]byte
	var n [16]byte
	copy(k[:], key)
	copy(n[:], nonce[:16])
	var sub [32]byte
	salsa.HSalsa20(&sub, &n, &k, &salsa.Sigma)
	s := &salsaStream{ksOff: 64}
	s.key = sub
	copy(s.nonce[:], nonce[16:24])
	return s, nil
}

func (s *salsaStream) refill() {
	var ctr [16]byte
	copy(ctr[:8], s.nonce[:])
	binary.LittleEndian.PutUint64(ctr[8:], s.counter)
	var zero [64]byte
	salsa.XORKeyStream(s.ks[:], zero[:], &ctr, &s.key)
	s.counter++
	s.ksOff = 0
}

func (s *salsaStream) XORKeyStream(dst, src []byte) {
	for i := range src {
		if s.ksOff == 64 {
			s.refill()
		}
		dst[i] = src[i] ^ s.ks[s.ksOff]
		s.ksOff++
	}
}

func (s *salsaStream) WordSize() int { return 4 }
