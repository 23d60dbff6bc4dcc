package obscurcore

import (
	"github.com/zenith-nz/ObscurCore/internal/primitive"
)

// Fresh-configuration helpers: each builds a config for the named
// algorithm with newly drawn IV/nonce/salt material, so no two streams
// ever share them.

const saltSize = 16

func freshCipherConfig(cfg *config, name string) (CipherConfig, error) {
	cc := CipherConfig{Cipher: name}
	if !cc.Stream() {
		cc.Mode = primitive.ModeCTR
	}
	keySize, err := cfg.registry.CipherKeySize(cc)
	if err != nil {
		return CipherConfig{}, err
	}
	cc.KeySize = keySize
	ivSize, err := cfg.registry.CipherIVSize(cc)
	if err != nil {
		return CipherConfig{}, err
	}
	if cc.IV, err = cfg.entropy.Bytes(ivSize); err != nil {
		return CipherConfig{}, err
	}
	return cc, nil
}

func freshMacConfig(cfg *config, name string) (MacConfig, error) {
	nonceSize, err := cfg.registry.MacNonceSize(name)
	if err != nil {
		return MacConfig{}, err
	}
	mc := MacConfig{Mac: name}
	keySize, err := cfg.registry.MacKeySize(name)
	if err != nil {
		return MacConfig{}, err
	}
	mc.KeySize = keySize
	if nonceSize > 0 {
		if mc.Nonce, err = cfg.entropy.Bytes(nonceSize); err != nil {
			return MacConfig{}, err
		}
	}
	if mc.Salt, err = cfg.entropy.Bytes(saltSize); err != nil {
		return MacConfig{}, err
	}
	return mc, nil
}

func freshKdfConfig(cfg *config, name string) (KdfConfig, error) {
	salt, err := cfg.entropy.Bytes(saltSize)
	if err != nil {
		return KdfConfig{}, err
	}
	switch name {
	case primitive.KdfScrypt:
		return KdfConfig{
			Kdf:  name,
			Salt: salt,
			N:    primitive.ScryptDefaultN,
			R:    primitive.ScryptDefaultR,
			P:    primitive.ScryptDefaultP,
		}, nil
	case primitive.KdfPBKDF2:
		return KdfConfig{
			Kdf:        name,
			Salt:       salt,
			Iterations: 1 << 16,
			Hash:       primitive.HashSHA256,
		}, nil
	case primitive.KdfHKDF:
		return KdfConfig{
			Kdf:  name,
			Salt: salt,
			Hash: primitive.HashSHA512,
		}, nil
	default:
		return KdfConfig{Kdf: name, Salt: salt}, nil
	}
}
