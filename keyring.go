package obscurcore

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// IdentityVersion is the current identity export format version.
const IdentityVersion = 1

// Identity is an exportable EC keypair for the UM1Hybrid scheme.
// WARNING: it contains private key material - handle the serialized form
// as a secret.
type Identity struct {
	// Version is the export format version. MUST be 1.
	Version int `json:"version"`
	// Curve names the curve both keys live on.
	Curve string `json:"curve"`
	// PrivateKey is the private scalar (base64url, no padding).
	PrivateKey string `json:"privateKey"`
	// PublicKey is the public point (base64url, no padding).
	PublicKey string `json:"publicKey"`
	// CreatedAt is the generation timestamp. Informational only.
	CreatedAt time.Time `json:"createdAt"`
}

// GenerateIdentity produces a fresh keypair on the named curve.
func GenerateIdentity(curveName string, opts ...Option) (*Identity, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	curve, err := cfg.registry.Curve(curveName)
	if err != nil {
		return nil, err
	}
	priv, pub, err := curve.GenerateKeypair(cfg.entropy.Reader())
	if err != nil {
		return nil, err
	}
	return &Identity{
		Version:    IdentityVersion,
		Curve:      curveName,
		PrivateKey: base64.RawURLEncoding.EncodeToString(priv),
		PublicKey:  base64.RawURLEncoding.EncodeToString(pub),
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Validate checks the identity's structure. Validation steps run in
// declared field order.
func (id *Identity) Validate() error {
	if id.Version != IdentityVersion {
		return fmt.Errorf("%w: unsupported identity version %d", ErrConfigInvalid, id.Version)
	}
	if id.Curve == "" {
		return fmt.Errorf("%w: identity curve is required", ErrConfigInvalid)
	}
	if id.PrivateKey == "" && id.PublicKey == "" {
		return fmt.Errorf("%w: identity carries no key material", ErrConfigInvalid)
	}
	if id.PrivateKey != "" {
		if _, err := base64.RawURLEncoding.DecodeString(id.PrivateKey); err != nil {
			return fmt.Errorf("%w: invalid privateKey encoding", ErrConfigInvalid)
		}
	}
	if id.PublicKey != "" {
		if _, err := base64.RawURLEncoding.DecodeString(id.PublicKey); err != nil {
			return fmt.Errorf("%w: invalid publicKey encoding", ErrConfigInvalid)
		}
	}
	return nil
}

// Keys decodes the key material. A public-only identity returns a nil
// private key.
func (id *Identity) Keys() (priv, pub []byte, err error) {
	if err := id.Validate(); err != nil {
		return nil, nil, err
	}
	if id.PrivateKey != "" {
		if priv, err = base64.RawURLEncoding.DecodeString(id.PrivateKey); err != nil {
			return nil, nil, err
		}
	}
	if id.PublicKey != "" {
		if pub, err = base64.RawURLEncoding.DecodeString(id.PublicKey); err != nil {
			return nil, nil, err
		}
	}
	return priv, pub, nil
}

// Public returns a copy of the identity with the private key stripped,
// safe to hand to a correspondent.
func (id *Identity) Public() *Identity {
	out := *id
	out.PrivateKey = ""
	return &out
}

// Export serializes the identity as JSON.
func (id *Identity) Export() ([]byte, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return json.MarshalIndent(id, "", "  ")
}

// ImportIdentity parses and validates an exported identity.
func ImportIdentity(data []byte) (*Identity, error) {
	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return &id, nil
}
