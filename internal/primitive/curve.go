package primitive

import (
	"crypto/ecdh"
	"io"

	"github.com/cloudflare/circl/dh/x25519"
)

// Curve is the elliptic-curve contract the key agreement consumes. Public
// keys are uncompressed points (NIST curves) or 32-byte u-coordinates
// (Curve25519); private keys are scalar bytes.
type Curve interface {
	Name() string
	// FieldByteLength is the byte length of a field element, which is
	// also the length of one shared-secret half.
	FieldByteLength() int
	// GenerateKeypair produces a fresh keypair from rand.
	GenerateKeypair(rand io.Reader) (priv, pub []byte, err error)
	// ECDHC performs a cofactor Diffie-Hellman agreement and returns the
	// x-coordinate of the shared point encoded to FieldByteLength bytes.
	ECDHC(pub, priv []byte) ([]byte, error)
}

func standardCurves() []Curve {
	return []Curve{
		nistCurve{name: CurveP256, c: ecdh.P256(), fieldLen: 32},
		nistCurve{name: CurveP384, c: ecdh.P384(), fieldLen: 48},
		nistCurve{name: CurveP521, c: ecdh.P521(), fieldLen: 66},
		c25519Curve{},
	}
}

// nistCurve wraps crypto/ecdh. The NIST prime curves have cofactor 1, so
// plain ECDH and cofactor ECDH coincide.
type nistCurve struct {
	name     string
	c        ecdh.Curve
	fieldLen int
}

func (n nistCurve) Name() string { return n.name }

func (n nistCurve) FieldByteLength() int { return n.fieldLen }

func (n nistCurve) GenerateKeypair(rand io.Reader) ([]byte, []byte, error) {
	priv, err := n.c.GenerateKey(rand)
	if err != nil {
		return nil, nil, err
	}
	return priv.Bytes(), priv.PublicKey().Bytes(), nil
}

func (n nistCurve) ECDHC(pub, priv []byte) ([]byte, error) {
	sk, err := n.c.NewPrivateKey(priv)
	if err != nil {
		return nil, configErr("%s private key: %v", n.name, err)
	}
	pk, err := n.c.NewPublicKey(pub)
	if err != nil {
		return nil, configErr("%s public key: %v", n.name, err)
	}
	return sk.ECDH(pk)
}

// c25519Curve is the Curve25519 family, where cofactor agreement
// degenerates to plain X25519 (the clamped scalar already clears the
// cofactor).
type c25519Curve struct{}

func (c25519Curve) Name() string { return CurveC25519 }

func (c25519Curve) FieldByteLength() int { return x25519.Size }

func (c25519Curve) GenerateKeypair(rand io.Reader) ([]byte, []byte, error) {
	var priv, pub x25519.Key
	if _, err := io.ReadFull(rand, priv[:]); err != nil {
		return nil, nil, err
	}
	x25519.KeyGen(&pub, &priv)
	privOut := make([]byte, x25519.Size)
	pubOut := make([]byte, x25519.Size)
	copy(privOut, priv[:])
	copy(pubOut, pub[:])
	return privOut, pubOut, nil
}

func (c25519Curve) ECDHC(pub, priv []byte) ([]byte, error) {
	if len(pub) != x25519.Size || len(priv) != x25519.Size {
		return nil, configErr("Curve25519 keys must be %d bytes", x25519.Size)
	}
	var sk, pk, shared x25519.Key
	copy(sk[:], priv)
	copy(pk[:], pub)
	if !x25519.Shared(&shared, &sk, &pk) {
		return nil, configErr("Curve25519 agreement on low-order point")
	}
	out := make([]byte, x25519.Size)
	copy(out, shared[:])
	return out, nil
}
