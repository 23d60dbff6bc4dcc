package primitive

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// KDF parameter policy. Parameters outside these bounds are rejected as
// invalid configuration rather than silently accepted.
const (
	scryptMaxMemory = 512 << 20 // bytes: N * r * 128
	pbkdf2MinIters  = 4096
	kdfMaxOutputLen = 1 << 16
)

// Default scrypt cost parameters.
const (
	ScryptDefaultN = 1 << 16
	ScryptDefaultR = 8
	ScryptDefaultP = 1
)

// Kdf derives key material from a pre-key.
type Kdf interface {
	// Derive produces outLen bytes from preKey. The configured salt and
	// parameters are fixed at construction.
	Derive(preKey []byte, outLen int) ([]byte, error)
}

// NewKdf validates cfg against policy and returns the configured KDF.
func NewKdf(cfg KdfConfig) (Kdf, error) {
	switch cfg.Kdf {
	case KdfScrypt:
		if cfg.N < 2 || cfg.N&(cfg.N-1) != 0 {
			return nil, configErr("scrypt N must be a power of two > 1, got %d", cfg.N)
		}
		if cfg.R < 1 || cfg.P < 1 {
			return nil, configErr("scrypt r and p must be positive")
		}
		if int64(cfg.N)*int64(cfg.R)*128 > scryptMaxMemory {
			return nil, configErr("scrypt parameters exceed memory cap")
		}
		return scryptKdf{cfg: cfg}, nil
	case KdfPBKDF2:
		if cfg.Iterations < pbkdf2MinIters {
			return nil, configErr("PBKDF2 iterations %d below minimum %d", cfg.Iterations, pbkdf2MinIters)
		}
		h, err := kdfHash(cfg.Hash)
		if err != nil {
			return nil, err
		}
		return pbkdf2Kdf{cfg: cfg, h: h}, nil
	case KdfHKDF:
		h, err := kdfHash(cfg.Hash)
		if err != nil {
			return nil, err
		}
		return hkdfKdf{cfg: cfg, h: h}, nil
	default:
		return nil, configErr("unknown KDF %q", cfg.Kdf)
	}
}

func kdfHash(name string) (func() hash.Hash, error) {
	switch name {
	case "", HashSHA256:
		return sha256.New, nil
	case HashSHA512:
		return sha512.New, nil
	default:
		return nil, configErr("unsupported KDF hash %q", name)
	}
}

type scryptKdf struct {
	cfg KdfConfig
}

func (k scryptKdf) Derive(preKey []byte, outLen int) ([]byte, error) {
	if outLen <= 0 || outLen > kdfMaxOutputLen {
		return nil, configErr("bad KDF output length %d", outLen)
	}
	return scrypt.Key(preKey, k.cfg.Salt, k.cfg.N, k.cfg.R, k.cfg.P, outLen)
}

type pbkdf2Kdf struct {
	cfg KdfConfig
	h   func() hash.Hash
}

func (k pbkdf2Kdf) Derive(preKey []byte, outLen int) ([]byte, error) {
	if outLen <= 0 || outLen > kdfMaxOutputLen {
		return nil, configErr("bad KDF output length %d", outLen)
	}
	return pbkdf2.Key(preKey, k.cfg.Salt, k.cfg.Iterations, outLen, k.h), nil
}

type hkdfKdf struct {
	cfg KdfConfig
	h   func() hash.Hash
}

func (k hkdfKdf) Derive(preKey []byte, outLen int) ([]byte, error) {
	if outLen <= 0 || outLen > kdfMaxOutputLen {
		return nil, configErr("bad KDF output length %d", outLen)
	}
	out := make([]byte, outLen)
	if _, err := io.ReadFull(hkdf.New(k.h, preKey, k.cfg.Salt, nil), out); err != nil {
		return nil, err
	}
	return out, nil
}
