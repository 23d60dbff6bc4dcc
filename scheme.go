package obscurcore

import (
	"fmt"

	"github.com/zenith-nz/ObscurCore/internal/codec"
	"github.com/zenith-nz/ObscurCore/internal/kex"
	"github.com/zenith-nz/ObscurCore/internal/primitive"
)

// Manifest cryptography scheme names, as written into the package header.
const (
	// SchemeSymmetricOnly derives the manifest keys from a shared
	// symmetric pre-key.
	SchemeSymmetricOnly = "SymmetricOnly"
	// SchemeUM1Hybrid derives the pre-key from a one-pass unified-model
	// EC agreement; the header carries the ephemeral public key.
	SchemeUM1Hybrid = "UM1Hybrid"
)

// manifestCrypto is the scheme configuration stored (serialized) in the
// plaintext package header. The symmetric variant uses the first five
// fields; the UM1 variant adds the curve name and ephemeral public key.
type manifestCrypto struct {
	Cipher       CipherConfig
	Auth         MacConfig
	Kdf          KdfConfig
	Confirmation *kex.Confirmation
	AuthTag      []byte

	Curve        string
	EphemeralKey []byte
}

func (c *manifestCrypto) marshal(scheme string) []byte {
	e := codec.NewEncoder()
	e.BytesField(c.Cipher.Marshal())
	e.BytesField(c.Auth.Marshal())
	e.BytesField(c.Kdf.Marshal())
	e.BytesField(c.Confirmation.Marshal())
	e.BytesField(c.AuthTag)
	if scheme == SchemeUM1Hybrid {
		e.String(c.Curve)
		e.BytesField(c.EphemeralKey)
	}
	return e.Bytes()
}

func unmarshalManifestCrypto(scheme string, b []byte) (*manifestCrypto, error) {
	d := codec.NewDecoder(b)
	c := &manifestCrypto{}
	var err error
	if c.Cipher, err = primitive.UnmarshalCipherConfig(d.BytesField()); err != nil {
		return nil, err
	}
	if c.Auth, err = primitive.UnmarshalMacConfig(d.BytesField()); err != nil {
		return nil, err
	}
	if c.Kdf, err = primitive.UnmarshalKdfConfig(d.BytesField()); err != nil {
		return nil, err
	}
	if c.Confirmation, err = kex.UnmarshalConfirmation(d.BytesField()); err != nil {
		return nil, err
	}
	c.AuthTag = d.BytesField()
	switch scheme {
	case SchemeSymmetricOnly:
	case SchemeUM1Hybrid:
		c.Curve = d.String()
		c.EphemeralKey = d.BytesField()
	default:
		return nil, fmt.Errorf("%w: unknown manifest scheme %q", ErrConfigInvalid, scheme)
	}
	if err := d.Done(); err != nil {
		return nil, err
	}
	return c, nil
}
