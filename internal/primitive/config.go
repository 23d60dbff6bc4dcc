package primitive

import (
	"fmt"

	"github.com/zenith-nz/ObscurCore/internal/cerrors"
	"github.com/zenith-nz/ObscurCore/internal/codec"
)

// Algorithm name constants. These are the strings carried in serialized
// configuration objects, so they are part of the wire format.
const (
	CipherAES       = "AES"
	CipherTwofish   = "Twofish"
	CipherBlowfish  = "Blowfish"
	CipherCAST5     = "CAST5"
	CipherXTEA      = "XTEA"
	CipherTripleDES = "3DES"

	CipherXSalsa20 = "XSalsa20"
	CipherSalsa20  = "Salsa20"
	CipherChaCha20 = "ChaCha20"

	ModeCTR    = "CTR"
	ModeCFB    = "CFB"
	ModeOFB    = "OFB"
	ModeCBC    = "CBC"
	ModeCTSCBC = "CTS-CBC"
	ModeGCM    = "GCM"

	PaddingNone     = ""
	PaddingPKCS7    = "PKCS7"
	PaddingISO10126 = "ISO10126-2"
	PaddingX923     = "X9.23"
	PaddingZero     = "ZeroByte"

	MacHMACSHA256  = "HMAC-SHA-256"
	MacHMACSHA512  = "HMAC-SHA-512"
	MacHMACSHA3256 = "HMAC-SHA3-256"
	MacHMACSHA3512 = "HMAC-SHA3-512"
	MacBLAKE2b256  = "BLAKE2b-256"
	MacBLAKE2b512  = "BLAKE2b-512"
	MacPoly1305AES = "Poly1305-AES"

	HashSHA256     = "SHA-256"
	HashSHA512     = "SHA-512"
	HashSHA3256    = "SHA3-256"
	HashSHA3512    = "SHA3-512"
	HashBLAKE2b256 = "BLAKE2b-256"
	HashBLAKE2b512 = "BLAKE2b-512"

	KdfScrypt = "scrypt"
	KdfPBKDF2 = "PBKDF2"
	KdfHKDF   = "HKDF"

	CurveP256   = "secp256r1"
	CurveP384   = "secp384r1"
	CurveP521   = "secp521r1"
	CurveC25519 = "Curve25519"

	PrngChaCha20 = "ChaCha20"
)

// CipherConfig selects a cipher for one encrypted stream. For block
// ciphers, Mode names the mode of operation and Padding the padding scheme
// where the mode demands one; for stream ciphers both are empty. IV carries
// the IV (block modes) or nonce (stream ciphers); it is serialized
// alongside the rest of the configuration, never prepended to ciphertext.
type CipherConfig struct {
	Cipher  string
	Mode    string
	Padding string
	KeySize int // bytes
	IV      []byte
}

// Stream reports whether the configuration names a stream cipher.
func (c CipherConfig) Stream() bool {
	switch c.Cipher {
	case CipherXSalsa20, CipherSalsa20, CipherChaCha20:
		return true
	}
	return false
}

// AEAD reports whether the configured mode is an authenticated mode.
func (c CipherConfig) AEAD() bool {
	return c.Mode == ModeGCM
}

// Marshal serializes the configuration with the wire codec.
func (c CipherConfig) Marshal() []byte {
	e := codec.NewEncoder()
	e.String(c.Cipher)
	e.String(c.Mode)
	e.String(c.Padding)
	e.Uint32(uint32(c.KeySize))
	e.BytesField(c.IV)
	return e.Bytes()
}

// UnmarshalCipherConfig parses a serialized CipherConfig.
func UnmarshalCipherConfig(b []byte) (CipherConfig, error) {
	d := codec.NewDecoder(b)
	c := CipherConfig{
		Cipher:  d.String(),
		Mode:    d.String(),
		Padding: d.String(),
		KeySize: int(d.Uint32()),
		IV:      d.BytesField(),
	}
	if err := d.Done(); err != nil {
		return CipherConfig{}, err
	}
	return c, nil
}

// MacConfig selects a keyed MAC. Nonce is used only by MAC algorithms that
// require one (Poly1305-AES); Salt, when present, is mixed into the MAC
// ahead of the data.
type MacConfig struct {
	Mac     string
	KeySize int // bytes
	Nonce   []byte
	Salt    []byte
}

// Marshal serializes the configuration with the wire codec.
func (c MacConfig) Marshal() []byte {
	e := codec.NewEncoder()
	e.String(c.Mac)
	e.Uint32(uint32(c.KeySize))
	e.BytesField(c.Nonce)
	e.BytesField(c.Salt)
	return e.Bytes()
}

// UnmarshalMacConfig parses a serialized MacConfig.
func UnmarshalMacConfig(b []byte) (MacConfig, error) {
	d := codec.NewDecoder(b)
	c := MacConfig{
		Mac:     d.String(),
		KeySize: int(d.Uint32()),
		Nonce:   d.BytesField(),
		Salt:    d.BytesField(),
	}
	if err := d.Done(); err != nil {
		return MacConfig{}, err
	}
	return c, nil
}

// KdfConfig selects a key derivation function and its parameters. Scrypt
// uses N, R, P; PBKDF2 uses Iterations and Hash; HKDF uses Hash.
type KdfConfig struct {
	Kdf        string
	Salt       []byte
	N, R, P    int
	Iterations int
	Hash       string
}

// Marshal serializes the configuration with the wire codec.
func (c KdfConfig) Marshal() []byte {
	e := codec.NewEncoder()
	e.String(c.Kdf)
	e.BytesField(c.Salt)
	e.Uint32(uint32(c.N))
	e.Uint32(uint32(c.R))
	e.Uint32(uint32(c.P))
	e.Uint32(uint32(c.Iterations))
	e.String(c.Hash)
	return e.Bytes()
}

// UnmarshalKdfConfig parses a serialized KdfConfig.
func UnmarshalKdfConfig(b []byte) (KdfConfig, error) {
	d := codec.NewDecoder(b)
	c := KdfConfig{
		Kdf:        d.String(),
		Salt:       d.BytesField(),
		N:          int(d.Uint32()),
		R:          int(d.Uint32()),
		P:          int(d.Uint32()),
		Iterations: int(d.Uint32()),
		Hash:       d.String(),
	}
	if err := d.Done(); err != nil {
		return KdfConfig{}, err
	}
	return c, nil
}

func configErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", cerrors.ErrConfigInvalid, fmt.Sprintf(format, args...))
}
