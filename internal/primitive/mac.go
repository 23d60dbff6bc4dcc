package primitive

import (
	"crypto/aes"
	"hash"

	"golang.org/x/crypto/poly1305"
)

// poly1305AES is Poly1305 keyed in the NaCl style: the 32-byte key is a
// 16-byte AES key followed by the 16-byte polynomial key r; the one-time
// pad s is AES_k(nonce). The nonce travels in the MAC configuration and
// must be unique per key.
type poly1305AES struct {
	mac     *poly1305.MAC
	polyKey [32]byte
}

func newPoly1305AES(key, nonce []byte) (hash.Hash, error) {
	block, err := aes.NewCipher(key[:16])
	if err != nil {
		return nil, configErr("poly1305-aes: %v", err)
	}
	var p poly1305AES
	copy(p.polyKey[:16], key[16:32])
	block.Encrypt(p.polyKey[16:], nonce)
	p.mac = poly1305.New(&p.polyKey)
	return &p, nil
}

func (p *poly1305AES) Write(b []byte) (int, error) {
	return p.mac.Write(b)
}

func (p *poly1305AES) Sum(b []byte) []byte {
	return p.mac.Sum(b)
}

func (p *poly1305AES) Reset() {
	p.mac = poly1305.New(&p.polyKey)
}

func (p *poly1305AES) Size() int { return poly1305.TagSize }

func (p *poly1305AES) BlockSize() int { return 16 }
