package kex

import (
	"io"

	"github.com/zenith-nz/ObscurCore/internal/bytesec"
	"github.com/zenith-nz/ObscurCore/internal/primitive"
)

// UM1 is a one-pass unified-model EC key agreement: the initiator combines
// an ephemeral-static agreement with a static-static agreement, so a single
// transmitted ephemeral key yields forward secrecy while the static halves
// authenticate the parties. The shared secret is Ze || Zs, each half being
// a shared-point x-coordinate encoded to the curve's field byte length.

// UM1Initiate generates an ephemeral keypair on curve and produces the
// shared secret together with the ephemeral public key the responder needs.
// Intermediate agreement values and the ephemeral private key are wiped
// before return.
func UM1Initiate(curve primitive.Curve, recipientPub, senderPriv []byte, rand io.Reader) (secret, ephemeralPub []byte, err error) {
	ephPriv, ephPub, err := curve.GenerateKeypair(rand)
	if err != nil {
		return nil, nil, err
	}
	defer bytesec.Wipe(ephPriv)

	ze, err := curve.ECDHC(recipientPub, ephPriv)
	if err != nil {
		return nil, nil, err
	}
	defer bytesec.Wipe(ze)

	zs, err := curve.ECDHC(recipientPub, senderPriv)
	if err != nil {
		return nil, nil, err
	}
	defer bytesec.Wipe(zs)

	secret = make([]byte, 0, len(ze)+len(zs))
	secret = append(secret, ze...)
	secret = append(secret, zs...)
	return secret, ephPub, nil
}

// UM1Respond reproduces the initiator's shared secret from the transmitted
// ephemeral public key and the responder's static private key.
func UM1Respond(curve primitive.Curve, senderPub, recipientPriv, ephemeralPub []byte) (secret []byte, err error) {
	ze, err := curve.ECDHC(ephemeralPub, recipientPriv)
	if err != nil {
		return nil, err
	}
	defer bytesec.Wipe(ze)

	zs, err := curve.ECDHC(senderPub, recipientPriv)
	if err != nil {
		return nil, err
	}
	defer bytesec.Wipe(zs)

	secret = make([]byte, 0, len(ze)+len(zs))
	secret = append(secret, ze...)
	secret = append(secret, zs...)
	return secret, nil
}
