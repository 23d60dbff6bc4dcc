// Package kex holds the key machinery around the packaging core: working
// key derivation, the UM1 one-pass unified-model key agreement, and the
// non-interactive key confirmation check.
package kex

import (
	"github.com/zenith-nz/ObscurCore/internal/bytesec"
	"github.com/zenith-nz/ObscurCore/internal/primitive"
)

// DeriveWorkingKeys stretches a pre-key into a cipher key and a MAC key of
// the requested lengths. A single KDF invocation produces
// cipherLen+macLen bytes, split in that order, so both keys change if any
// input changes.
//
// The caller owns and must wipe the returned keys.
func DeriveWorkingKeys(preKey []byte, cipherLen, macLen int, cfg primitive.KdfConfig) (cipherKey, macKey []byte, err error) {
	kdf, err := primitive.NewKdf(cfg)
	if err != nil {
		return nil, nil, err
	}
	okm, err := kdf.Derive(preKey, cipherLen+macLen)
	if err != nil {
		return nil, nil, err
	}
	cipherKey = make([]byte, cipherLen)
	macKey = make([]byte, macLen)
	copy(cipherKey, okm[:cipherLen])
	copy(macKey, okm[cipherLen:])
	bytesec.Wipe(okm)
	return cipherKey, macKey, nil
}
