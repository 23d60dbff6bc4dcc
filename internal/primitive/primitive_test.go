package primitive

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/salsa20"

	"github.com/zenith-nz/ObscurCore/internal/cerrors"
)

func TestRegistry_UnknownNames(t *testing.T) {
	reg := StandardRegistry()
	if _, err := reg.NewBlock("NoSuchCipher", make([]byte, 32)); !errors.Is(err, cerrors.ErrConfigInvalid) {
		t.Errorf("unknown block cipher: got %v", err)
	}
	if _, err := reg.NewStream("NoSuchCipher", make([]byte, 32), make([]byte, 24)); !errors.Is(err, cerrors.ErrConfigInvalid) {
		t.Errorf("unknown stream cipher: got %v", err)
	}
	if _, err := reg.NewMac(MacConfig{Mac: "NoSuchMac"}, make([]byte, 32)); !errors.Is(err, cerrors.ErrConfigInvalid) {
		t.Errorf("unknown MAC: got %v", err)
	}
	if _, err := reg.NewHash("NoSuchHash"); !errors.Is(err, cerrors.ErrConfigInvalid) {
		t.Errorf("unknown hash: got %v", err)
	}
	if _, err := reg.Curve("NoSuchCurve"); !errors.Is(err, cerrors.ErrConfigInvalid) {
		t.Errorf("unknown curve: got %v", err)
	}
}

func TestRegistry_BlockCiphers(t *testing.T) {
	reg := StandardRegistry()
	tests := []struct {
		name      string
		keySize   int
		blockSize int
	}{
		{CipherAES, 32, 16},
		{CipherTwofish, 32, 16},
		{CipherBlowfish, 16, 8},
		{CipherCAST5, 16, 8},
		{CipherXTEA, 16, 8},
		{CipherTripleDES, 24, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := make([]byte, tt.keySize)
			b, err := reg.NewBlock(tt.name, key)
			if err != nil {
				t.Fatalf("NewBlock() error = %v", err)
			}
			if b.BlockSize() != tt.blockSize {
				t.Errorf("BlockSize() = %d, want %d", b.BlockSize(), tt.blockSize)
			}
		})
	}
}

func TestRegistry_BadKeySize(t *testing.T) {
	reg := StandardRegistry()
	if _, err := reg.NewBlock(CipherAES, make([]byte, 17)); !errors.Is(err, cerrors.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
	if _, err := reg.NewStream(CipherChaCha20, make([]byte, 16), make([]byte, 12)); !errors.Is(err, cerrors.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestStreamCiphers_MatchOneShot(t *testing.T) {
	plaintext := make([]byte, 1000)
	rand.Read(plaintext)

	t.Run("XSalsa20", func(t *testing.T) {
		key := make([]byte, 32)
		nonce := make([]byte, 24)
		rand.Read(key)
		rand.Read(nonce)

		want := make([]byte, len(plaintext))
		salsa20.XORKeyStream(want, plaintext, nonce, (*[32]byte)(key))

		sc, err := newXSalsa20(key, nonce)
		if err != nil {
			t.Fatal(err)
		}
		got := incremental(sc, plaintext)
		if !bytes.Equal(got, want) {
			t.Error("incremental XSalsa20 disagrees with one-shot")
		}
	})

	t.Run("Salsa20", func(t *testing.T) {
		key := make([]byte, 32)
		nonce := make([]byte, 8)
		rand.Read(key)
		rand.Read(nonce)

		want := make([]byte, len(plaintext))
		salsa20.XORKeyStream(want, plaintext, nonce, (*[32]byte)(key))

		sc, err := newSalsa20(key, nonce)
		if err != nil {
			t.Fatal(err)
		}
		got := incremental(sc, plaintext)
		if !bytes.Equal(got, want) {
			t.Error("incremental Salsa20 disagrees with one-shot")
		}
	})

	t.Run("ChaCha20", func(t *testing.T) {
		key := make([]byte, 32)
		nonce := make([]byte, 12)
		rand.Read(key)
		rand.Read(nonce)

		ref, err := chacha20.NewUnauthenticatedCipher(key, nonce)
		if err != nil {
			t.Fatal(err)
		}
		want := make([]byte, len(plaintext))
		ref.XORKeyStream(want, plaintext)

		sc, err := newChaCha20(key, nonce)
		if err != nil {
			t.Fatal(err)
		}
		got := incremental(sc, plaintext)
		if !bytes.Equal(got, want) {
			t.Error("incremental ChaCha20 disagrees with one-shot")
		}
	})
}

// incremental applies the keystream in awkward chunk sizes to exercise
// partial-block positions.
func incremental(sc StreamCipher, in []byte) []byte {
	out := make([]byte, len(in))
	sizes := []int{1, 7, 64, 13, 200, 3}
	off := 0
	i := 0
	for off < len(in) {
		n := sizes[i%len(sizes)]
		if off+n > len(in) {
			n = len(in) - off
		}
		sc.XORKeyStream(out[off:off+n], in[off:off+n])
		off += n
		i++
	}
	return out
}

func TestPoly1305AES_Deterministic(t *testing.T) {
	reg := StandardRegistry()
	key := make([]byte, 32)
	rand.Read(key)
	cfg := MacConfig{Mac: MacPoly1305AES, Nonce: make([]byte, 16)}

	mac1, err := reg.NewMac(cfg, key)
	if err != nil {
		t.Fatal(err)
	}
	mac2, err := reg.NewMac(cfg, key)
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("the quick brown fox")
	mac1.Write(msg)
	mac2.Write(msg)
	if !bytes.Equal(mac1.Sum(nil), mac2.Sum(nil)) {
		t.Error("same key/nonce/message produced different tags")
	}
	if len(mac1.Sum(nil)) != 16 {
		t.Errorf("tag size = %d, want 16", len(mac1.Sum(nil)))
	}
}

func TestMacSalt_ChangesTag(t *testing.T) {
	reg := StandardRegistry()
	key := make([]byte, 32)
	rand.Read(key)
	msg := []byte("data")

	m1, err := reg.NewMac(MacConfig{Mac: MacHMACSHA256, Salt: []byte{1}}, key)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := reg.NewMac(MacConfig{Mac: MacHMACSHA256, Salt: []byte{2}}, key)
	if err != nil {
		t.Fatal(err)
	}
	m1.Write(msg)
	m2.Write(msg)
	if bytes.Equal(m1.Sum(nil), m2.Sum(nil)) {
		t.Error("different salts produced identical tags")
	}
}

func TestKdfPolicy(t *testing.T) {
	tests := []struct {
		name string
		cfg  KdfConfig
		ok   bool
	}{
		{"scrypt defaults", KdfConfig{Kdf: KdfScrypt, N: ScryptDefaultN, R: ScryptDefaultR, P: ScryptDefaultP}, true},
		{"scrypt N not power of two", KdfConfig{Kdf: KdfScrypt, N: 1000, R: 8, P: 1}, false},
		{"scrypt N too small", KdfConfig{Kdf: KdfScrypt, N: 1, R: 8, P: 1}, false},
		{"scrypt over memory cap", KdfConfig{Kdf: KdfScrypt, N: 1 << 22, R: 1024, P: 1}, false},
		{"pbkdf2 ok", KdfConfig{Kdf: KdfPBKDF2, Iterations: 4096}, true},
		{"pbkdf2 iterations too low", KdfConfig{Kdf: KdfPBKDF2, Iterations: 100}, false},
		{"hkdf ok", KdfConfig{Kdf: KdfHKDF, Hash: HashSHA512}, true},
		{"hkdf bad hash", KdfConfig{Kdf: KdfHKDF, Hash: "MD5"}, false},
		{"unknown", KdfConfig{Kdf: "argon2"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKdf(tt.cfg)
			if tt.ok && err != nil {
				t.Errorf("NewKdf() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, cerrors.ErrConfigInvalid) {
				t.Errorf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestKdf_Deterministic(t *testing.T) {
	cfg := KdfConfig{Kdf: KdfHKDF, Salt: []byte("salt"), Hash: HashSHA512}
	kdf, err := NewKdf(cfg)
	if err != nil {
		t.Fatal(err)
	}
	a, err := kdf.Derive([]byte("pre-key"), 64)
	if err != nil {
		t.Fatal(err)
	}
	b, err := kdf.Derive([]byte("pre-key"), 64)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("KDF not deterministic")
	}
}

func TestCurves_Agreement(t *testing.T) {
	reg := StandardRegistry()
	for _, name := range []string{CurveP256, CurveP384, CurveP521, CurveC25519} {
		t.Run(name, func(t *testing.T) {
			curve, err := reg.Curve(name)
			if err != nil {
				t.Fatal(err)
			}
			aPriv, aPub, err := curve.GenerateKeypair(rand.Reader)
			if err != nil {
				t.Fatal(err)
			}
			bPriv, bPub, err := curve.GenerateKeypair(rand.Reader)
			if err != nil {
				t.Fatal(err)
			}
			s1, err := curve.ECDHC(bPub, aPriv)
			if err != nil {
				t.Fatal(err)
			}
			s2, err := curve.ECDHC(aPub, bPriv)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(s1, s2) {
				t.Error("shared secrets disagree")
			}
			if len(s1) != curve.FieldByteLength() {
				t.Errorf("secret length = %d, want %d", len(s1), curve.FieldByteLength())
			}
		})
	}
}

func TestDRBG_Deterministic(t *testing.T) {
	seed := make([]byte, DRBGSeedSize)
	d1, err := NewDRBG(seed)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := NewDRBG(seed)
	if err != nil {
		t.Fatal(err)
	}
	a := make([]byte, 100)
	b := make([]byte, 100)
	d1.NextBytes(a)
	d2.NextBytes(b)
	if !bytes.Equal(a, b) {
		t.Error("identically seeded DRBGs diverge")
	}
	if d1.NextUint32() != d2.NextUint32() {
		t.Error("NextUint32 diverges")
	}
	for i := 0; i < 100; i++ {
		if d1.NextInt(3, 17) != d2.NextInt(3, 17) {
			t.Fatal("NextInt diverges")
		}
	}
}

func TestDRBG_NextIntBounds(t *testing.T) {
	seed := make([]byte, DRBGSeedSize)
	seed[0] = 42
	d, err := NewDRBG(seed)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 1000; i++ {
		v := d.NextInt(5, 11)
		if v < 5 || v >= 11 {
			t.Fatalf("NextInt out of range: %d", v)
		}
	}
	if got := d.NextInt(7, 7); got != 7 {
		t.Errorf("degenerate range = %d, want 7", got)
	}
}

func TestDRBG_BadSeed(t *testing.T) {
	if _, err := NewDRBG(make([]byte, 16)); !errors.Is(err, cerrors.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestConfigMarshalRoundTrip(t *testing.T) {
	cc := CipherConfig{Cipher: CipherAES, Mode: ModeCTR, KeySize: 32, IV: []byte{1, 2, 3}}
	cc2, err := UnmarshalCipherConfig(cc.Marshal())
	if err != nil {
		t.Fatal(err)
	}
	if cc2.Cipher != cc.Cipher || cc2.Mode != cc.Mode || cc2.KeySize != cc.KeySize || !bytes.Equal(cc2.IV, cc.IV) {
		t.Errorf("cipher config round trip: %+v != %+v", cc2, cc)
	}

	mc := MacConfig{Mac: MacPoly1305AES, KeySize: 32, Nonce: make([]byte, 16), Salt: []byte{9}}
	mc2, err := UnmarshalMacConfig(mc.Marshal())
	if err != nil {
		t.Fatal(err)
	}
	if mc2.Mac != mc.Mac || !bytes.Equal(mc2.Nonce, mc.Nonce) || !bytes.Equal(mc2.Salt, mc.Salt) {
		t.Errorf("mac config round trip: %+v != %+v", mc2, mc)
	}

	kc := KdfConfig{Kdf: KdfScrypt, Salt: []byte{5}, N: 1 << 14, R: 8, P: 1}
	kc2, err := UnmarshalKdfConfig(kc.Marshal())
	if err != nil {
		t.Fatal(err)
	}
	if kc2.Kdf != kc.Kdf || kc2.N != kc.N || !bytes.Equal(kc2.Salt, kc.Salt) {
		t.Errorf("kdf config round trip: %+v != %+v", kc2, kc)
	}
}

func TestEntropySource(t *testing.T) {
	src := NewEntropySource(nil)
	a, err := src.Bytes(32)
	if err != nil {
		t.Fatal(err)
	}
	b, err := src.Bytes(32)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Error("crypto/rand returned identical blocks")
	}

	fixed := NewEntropySource(bytes.NewReader(make([]byte, 64)))
	c, err := fixed.Bytes(32)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(c, make([]byte, 32)) {
		t.Error("fixed entropy source not honoured")
	}
}

func TestNewAEAD(t *testing.T) {
	reg := StandardRegistry()
	aead, err := reg.NewAEAD(CipherConfig{Cipher: CipherAES, Mode: ModeGCM}, make([]byte, 32))
	if err != nil {
		t.Fatal(err)
	}
	nonce := make([]byte, aead.NonceSize())
	ct := aead.Seal(nil, nonce, []byte("msg"), nil)
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil || string(pt) != "msg" {
		t.Errorf("AEAD round trip failed: %v", err)
	}
	if _, err := reg.NewAEAD(CipherConfig{Cipher: CipherAES, Mode: ModeCTR}, make([]byte, 32)); !errors.Is(err, cerrors.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid for non-AEAD mode, got %v", err)
	}
}
