package kex

import (
	"github.com/zenith-nz/ObscurCore/internal/bytesec"
	"github.com/zenith-nz/ObscurCore/internal/codec"
	"github.com/zenith-nz/ObscurCore/internal/primitive"
)

// confirmationCanary is the fixed, public byte string whose MAC under a
// candidate pre-key signals key (mis)match without revealing the key.
var confirmationCanary = []byte("obscurcore.key-confirmation.v1")

// ConfirmationSaltSize is the salt length generated for new confirmations.
const ConfirmationSaltSize = 16

// confirmationKeySize is the fixed length the pre-key is stretched to
// before keying the confirmation MAC.
const confirmationKeySize = 32

// Confirmation records a keyed-MAC-over-canary check for a pre-key. It is
// stored alongside encrypted material so a reader can detect a wrong key
// cheaply, before any KDF work.
type Confirmation struct {
	Mac    string
	Salt   []byte
	Output []byte
}

// NewConfirmation computes a confirmation for preKey under the named MAC
// with a fresh random salt.
func NewConfirmation(reg *primitive.Registry, macName string, preKey []byte, entropy primitive.EntropySource) (*Confirmation, error) {
	salt, err := entropy.Bytes(ConfirmationSaltSize)
	if err != nil {
		return nil, err
	}
	c := &Confirmation{Mac: macName, Salt: salt}
	out, err := c.compute(reg, preKey)
	if err != nil {
		return nil, err
	}
	c.Output = out
	return c, nil
}

func (c *Confirmation) compute(reg *primitive.Registry, preKey []byte) ([]byte, error) {
	// Pre-key lengths vary (UM1 secrets run from 64 to 132 bytes), so
	// the MAC is keyed with a fixed-length stretch of the pre-key rather
	// than the pre-key itself; confirmation stays independent of the
	// chosen MAC's key-size policy.
	kdf, err := primitive.NewKdf(primitive.KdfConfig{
		Kdf:  primitive.KdfHKDF,
		Salt: c.Salt,
		Hash: primitive.HashSHA512,
	})
	if err != nil {
		return nil, err
	}
	key, err := kdf.Derive(preKey, confirmationKeySize)
	if err != nil {
		return nil, err
	}
	defer bytesec.Wipe(key)

	nonceSize, err := reg.MacNonceSize(c.Mac)
	if err != nil {
		return nil, err
	}
	mac, err := reg.NewMac(primitive.MacConfig{Mac: c.Mac, Nonce: make([]byte, nonceSize)}, key)
	if err != nil {
		return nil, err
	}
	mac.Write(c.Salt)
	mac.Write(confirmationCanary)
	return mac.Sum(nil), nil
}

// Verify recomputes the confirmation under candidate and compares it to
// the stored output in constant time.
func (c *Confirmation) Verify(reg *primitive.Registry, candidate []byte) (bool, error) {
	out, err := c.compute(reg, candidate)
	if err != nil {
		return false, err
	}
	ok := bytesec.EqualCT(out, c.Output)
	bytesec.Wipe(out)
	return ok, nil
}

// Marshal serializes the confirmation with the wire codec.
func (c *Confirmation) Marshal() []byte {
	e := codec.NewEncoder()
	e.String(c.Mac)
	e.BytesField(c.Salt)
	e.BytesField(c.Output)
	return e.Bytes()
}

// UnmarshalConfirmation parses a serialized Confirmation.
func UnmarshalConfirmation(b []byte) (*Confirmation, error) {
	d := codec.NewDecoder(b)
	c := &Confirmation{
		Mac:    d.String(),
		Salt:   d.BytesField(),
		Output: d.BytesField(),
	}
	if err := d.Done(); err != nil {
		return nil, err
	}
	return c, nil
}
