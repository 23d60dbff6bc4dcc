package primitive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blowfish"
	"golang.org/x/crypto/cast5"
	"golang.org/x/crypto/sha3"
	"golang.org/x/crypto/twofish"
	"golang.org/x/crypto/xtea"
)

// Registry maps algorithm names to primitive constructors. The zero value
// is empty; use StandardRegistry for the full algorithm menu.
type Registry struct {
	blocks  map[string]blockEntry
	streams map[string]streamEntry
	macs    map[string]macEntry
	hashes  map[string]func() (hash.Hash, error)
	curves  map[string]Curve
}

type blockEntry struct {
	keySizes []int
	factory  func(key []byte) (cipher.Block, error)
}

type streamEntry struct {
	keySize   int
	nonceSize int
	wordSize  int
	factory   func(key, nonce []byte) (StreamCipher, error)
}

type macEntry struct {
	keySizes   []int // nil means any non-empty key
	outputSize int
	nonceSize  int
	factory    func(key, nonce []byte) (hash.Hash, error)
}

// StandardRegistry returns a registry populated with every algorithm this
// module supports.
func StandardRegistry() *Registry {
	r := &Registry{
		blocks:  make(map[string]blockEntry),
		streams: make(map[string]streamEntry),
		macs:    make(map[string]macEntry),
		hashes:  make(map[string]func() (hash.Hash, error)),
		curves:  make(map[string]Curve),
	}

	r.blocks[CipherAES] = blockEntry{
		keySizes: []int{16, 24, 32},
		factory:  aes.NewCipher,
	}
	r.blocks[CipherTwofish] = blockEntry{
		keySizes: []int{16, 24, 32},
		factory: func(key []byte) (cipher.Block, error) {
			return twofish.NewCipher(key)
		},
	}
	r.blocks[CipherBlowfish] = blockEntry{
		keySizes: rangeKeySizes(8, 56),
		factory: func(key []byte) (cipher.Block, error) {
			return blowfish.NewCipher(key)
		},
	}
	r.blocks[CipherCAST5] = blockEntry{
		keySizes: []int{16},
		factory: func(key []byte) (cipher.Block, error) {
			return cast5.NewCipher(key)
		},
	}
	r.blocks[CipherXTEA] = blockEntry{
		keySizes: []int{16},
		factory: func(key []byte) (cipher.Block, error) {
			return xtea.NewCipher(key)
		},
	}
	r.blocks[CipherTripleDES] = blockEntry{
		keySizes: []int{24},
		factory:  des.NewTripleDESCipher,
	}

	r.streams[CipherXSalsa20] = streamEntry{
		keySize:   32,
		nonceSize: 24,
		wordSize:  4,
		factory:   newXSalsa20,
	}
	r.streams[CipherSalsa20] = streamEntry{
		keySize:   32,
		nonceSize: 8,
		wordSize:  4,
		factory:   newSalsa20,
	}
	r.streams[CipherChaCha20] = streamEntry{
		keySize:   32,
		nonceSize: 12,
		wordSize:  4,
		factory:   newChaCha20,
	}

	r.macs[MacHMACSHA256] = macEntry{
		outputSize: 32,
		factory:    hmacFactory(sha256.New),
	}
	r.macs[MacHMACSHA512] = macEntry{
		outputSize: 64,
		factory:    hmacFactory(sha512.New),
	}
	r.macs[MacHMACSHA3256] = macEntry{
		outputSize: 32,
		factory:    hmacFactory(func() hash.Hash { return sha3.New256() }),
	}
	r.macs[MacHMACSHA3512] = macEntry{
		outputSize: 64,
		factory:    hmacFactory(func() hash.Hash { return sha3.New512() }),
	}
	r.macs[MacBLAKE2b256] = macEntry{
		keySizes:   rangeKeySizes(1, 64),
		outputSize: 32,
		factory: func(key, _ []byte) (hash.Hash, error) {
			return blake2b.New256(key)
		},
	}
	r.macs[MacBLAKE2b512] = macEntry{
		keySizes:   rangeKeySizes(1, 64),
		outputSize: 64,
		factory: func(key, _ []byte) (hash.Hash, error) {
			return blake2b.New512(key)
		},
	}
	r.macs[MacPoly1305AES] = macEntry{
		keySizes:   []int{32},
		outputSize: 16,
		nonceSize:  16,
		factory:    newPoly1305AES,
	}

	r.hashes[HashSHA256] = func() (hash.Hash, error) { return sha256.New(), nil }
	r.hashes[HashSHA512] = func() (hash.Hash, error) { return sha512.New(), nil }
	r.hashes[HashSHA3256] = func() (hash.Hash, error) { return sha3.New256(), nil }
	r.hashes[HashSHA3512] = func() (hash.Hash, error) { return sha3.New512(), nil }
	r.hashes[HashBLAKE2b256] = func() (hash.Hash, error) { return blake2b.New256(nil) }
	r.hashes[HashBLAKE2b512] = func() (hash.Hash, error) { return blake2b.New512(nil) }

	for _, c := range standardCurves() {
		r.curves[c.Name()] = c
	}

	return r
}

// NewBlock constructs the named block cipher with the given key.
func (r *Registry) NewBlock(name string, key []byte) (cipher.Block, error) {
	e, ok := r.blocks[name]
	if !ok {
		return nil, configErr("unknown block cipher %q", name)
	}
	if !keySizeAllowed(e.keySizes, len(key)) {
		return nil, configErr("bad key size %d for %s", len(key), name)
	}
	return e.factory(key)
}

// NewStream constructs the named stream cipher with the given key and
// nonce.
func (r *Registry) NewStream(name string, key, nonce []byte) (StreamCipher, error) {
	e, ok := r.streams[name]
	if !ok {
		return nil, configErr("unknown stream cipher %q", name)
	}
	if len(key) != e.keySize {
		return nil, configErr("bad key size %d for %s", len(key), name)
	}
	if len(nonce) != e.nonceSize {
		return nil, configErr("bad nonce size %d for %s", len(nonce), name)
	}
	return e.factory(key, nonce)
}

// NewMac constructs the MAC selected by cfg, keyed with key. The key length
// is validated against the algorithm's accepted sizes.
func (r *Registry) NewMac(cfg MacConfig, key []byte) (hash.Hash, error) {
	e, ok := r.macs[cfg.Mac]
	if !ok {
		return nil, configErr("unknown MAC %q", cfg.Mac)
	}
	if e.keySizes != nil && !keySizeAllowed(e.keySizes, len(key)) {
		return nil, configErr("bad key size %d for %s", len(key), cfg.Mac)
	}
	if len(key) == 0 {
		return nil, configErr("empty MAC key")
	}
	if len(cfg.Nonce) != e.nonceSize {
		return nil, configErr("bad nonce size %d for %s", len(cfg.Nonce), cfg.Mac)
	}
	m, err := e.factory(key, cfg.Nonce)
	if err != nil {
		return nil, err
	}
	if len(cfg.Salt) > 0 {
		m.Write(cfg.Salt)
	}
	return m, nil
}

// MacOutputSize reports the tag length of the named MAC.
func (r *Registry) MacOutputSize(name string) (int, error) {
	e, ok := r.macs[name]
	if !ok {
		return 0, configErr("unknown MAC %q", name)
	}
	return e.outputSize, nil
}

// MacKeySize reports a suitable key length for the named MAC.
func (r *Registry) MacKeySize(name string) (int, error) {
	e, ok := r.macs[name]
	if !ok {
		return 0, configErr("unknown MAC %q", name)
	}
	if e.keySizes == nil {
		return 32, nil
	}
	return e.keySizes[len(e.keySizes)-1], nil
}

// MacNonceSize reports the nonce length the named MAC requires (0 for
// most).
func (r *Registry) MacNonceSize(name string) (int, error) {
	e, ok := r.macs[name]
	if !ok {
		return 0, configErr("unknown MAC %q", name)
	}
	return e.nonceSize, nil
}

// NewHash constructs the named hash.
func (r *Registry) NewHash(name string) (hash.Hash, error) {
	f, ok := r.hashes[name]
	if !ok {
		return nil, configErr("unknown hash %q", name)
	}
	return f()
}

// Curve returns the named elliptic curve.
func (r *Registry) Curve(name string) (Curve, error) {
	c, ok := r.curves[name]
	if !ok {
		return nil, configErr("unknown curve %q", name)
	}
	return c, nil
}

// CipherIVSize reports the IV/nonce length cfg requires.
func (r *Registry) CipherIVSize(cfg CipherConfig) (int, error) {
	if cfg.Stream() {
		e, ok := r.streams[cfg.Cipher]
		if !ok {
			return 0, configErr("unknown stream cipher %q", cfg.Cipher)
		}
		return e.nonceSize, nil
	}
	b, ok := r.blocks[cfg.Cipher]
	if !ok {
		return 0, configErr("unknown block cipher %q", cfg.Cipher)
	}
	// IV is one block for every supported block mode.
	probe, err := b.factory(make([]byte, b.keySizes[len(b.keySizes)-1]))
	if err != nil {
		return 0, err
	}
	return probe.BlockSize(), nil
}

// CipherKeySize reports the key length to derive or generate for cfg,
// honouring an explicit cfg.KeySize when the algorithm accepts it.
func (r *Registry) CipherKeySize(cfg CipherConfig) (int, error) {
	if cfg.Stream() {
		e, ok := r.streams[cfg.Cipher]
		if !ok {
			return 0, configErr("unknown stream cipher %q", cfg.Cipher)
		}
		if cfg.KeySize != 0 && cfg.KeySize != e.keySize {
			return 0, configErr("bad key size %d for %s", cfg.KeySize, cfg.Cipher)
		}
		return e.keySize, nil
	}
	b, ok := r.blocks[cfg.Cipher]
	if !ok {
		return 0, configErr("unknown block cipher %q", cfg.Cipher)
	}
	if cfg.KeySize == 0 {
		return b.keySizes[len(b.keySizes)-1], nil
	}
	if !keySizeAllowed(b.keySizes, cfg.KeySize) {
		return 0, configErr("bad key size %d for %s", cfg.KeySize, cfg.Cipher)
	}
	return cfg.KeySize, nil
}

// NewAEAD constructs the bare authenticated mode named by cfg. It exists
// for callers using the primitive library directly; the packaging streams
// never use it.
func (r *Registry) NewAEAD(cfg CipherConfig, key []byte) (cipher.AEAD, error) {
	if cfg.Mode != ModeGCM {
		return nil, configErr("unknown AEAD mode %q", cfg.Mode)
	}
	block, err := r.NewBlock(cfg.Cipher, key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func hmacFactory(h func() hash.Hash) func(key, nonce []byte) (hash.Hash, error) {
	return func(key, _ []byte) (hash.Hash, error) {
		return hmac.New(h, key), nil
	}
}

func keySizeAllowed(sizes []int, n int) bool {
	for _, s := range sizes {
		if s == n {
			return true
		}
	}
	return false
}

func rangeKeySizes(lo, hi int) []int {
	sizes := make([]int, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		sizes = append(sizes, n)
	}
	return sizes
}
