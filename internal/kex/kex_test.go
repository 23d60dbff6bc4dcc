package kex

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/zenith-nz/ObscurCore/internal/cerrors"
	"github.com/zenith-nz/ObscurCore/internal/primitive"
)

func TestDeriveWorkingKeys(t *testing.T) {
	cfg := primitive.KdfConfig{Kdf: primitive.KdfHKDF, Salt: []byte("salt"), Hash: primitive.HashSHA512}
	ck, mk, err := DeriveWorkingKeys([]byte("pre-key"), 32, 16, cfg)
	if err != nil {
		t.Fatalf("DeriveWorkingKeys() error = %v", err)
	}
	if len(ck) != 32 || len(mk) != 16 {
		t.Fatalf("key lengths = %d, %d", len(ck), len(mk))
	}

	// Deterministic and idempotent.
	ck2, mk2, err := DeriveWorkingKeys([]byte("pre-key"), 32, 16, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ck, ck2) || !bytes.Equal(mk, mk2) {
		t.Error("derivation not deterministic")
	}

	// The split is positional: asking for different lengths moves the
	// boundary, it does not rerun per key.
	ckBoth, _, err := DeriveWorkingKeys([]byte("pre-key"), 16, 32, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ckBoth, ck[:16]) {
		t.Error("cipher key is not the leading output bytes")
	}
}

func TestDeriveWorkingKeys_BadKdf(t *testing.T) {
	cfg := primitive.KdfConfig{Kdf: primitive.KdfScrypt, N: 1000, R: 8, P: 1}
	if _, _, err := DeriveWorkingKeys([]byte("k"), 32, 32, cfg); !errors.Is(err, cerrors.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestUM1_RoundTrip(t *testing.T) {
	reg := primitive.StandardRegistry()
	for _, curveName := range []string{"secp256r1", "secp384r1", "Curve25519"} {
		t.Run(curveName, func(t *testing.T) {
			curve, err := reg.Curve(curveName)
			if err != nil {
				t.Fatal(err)
			}
			senderPriv, senderPub, err := curve.GenerateKeypair(rand.Reader)
			if err != nil {
				t.Fatal(err)
			}
			recipientPriv, recipientPub, err := curve.GenerateKeypair(rand.Reader)
			if err != nil {
				t.Fatal(err)
			}

			secret, ephemeralPub, err := UM1Initiate(curve, recipientPub, senderPriv, rand.Reader)
			if err != nil {
				t.Fatalf("UM1Initiate() error = %v", err)
			}
			if len(secret) != 2*curve.FieldByteLength() {
				t.Errorf("secret length = %d, want %d", len(secret), 2*curve.FieldByteLength())
			}

			got, err := UM1Respond(curve, senderPub, recipientPriv, ephemeralPub)
			if err != nil {
				t.Fatalf("UM1Respond() error = %v", err)
			}
			if !bytes.Equal(secret, got) {
				t.Error("responder secret differs from initiator secret")
			}
		})
	}
}

func TestUM1_WrongSender(t *testing.T) {
	reg := primitive.StandardRegistry()
	curve, err := reg.Curve("secp256r1")
	if err != nil {
		t.Fatal(err)
	}
	senderPriv, _, _ := curve.GenerateKeypair(rand.Reader)
	_, wrongPub, _ := curve.GenerateKeypair(rand.Reader)
	recipientPriv, recipientPub, _ := curve.GenerateKeypair(rand.Reader)

	secret, ephemeralPub, err := UM1Initiate(curve, recipientPub, senderPriv, rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UM1Respond(curve, wrongPub, recipientPriv, ephemeralPub)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(secret, got) {
		t.Error("wrong sender public key reproduced the secret")
	}
}

func TestUM1_EphemeralVaries(t *testing.T) {
	reg := primitive.StandardRegistry()
	curve, _ := reg.Curve("Curve25519")
	senderPriv, _, _ := curve.GenerateKeypair(rand.Reader)
	_, recipientPub, _ := curve.GenerateKeypair(rand.Reader)

	_, eph1, err := UM1Initiate(curve, recipientPub, senderPriv, rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	_, eph2, err := UM1Initiate(curve, recipientPub, senderPriv, rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(eph1, eph2) {
		t.Error("two initiations shared an ephemeral key")
	}
}

func TestConfirmation(t *testing.T) {
	reg := primitive.StandardRegistry()
	entropy := primitive.NewEntropySource(nil)
	preKey := make([]byte, 32)
	rand.Read(preKey)

	c, err := NewConfirmation(reg, primitive.MacHMACSHA256, preKey, entropy)
	if err != nil {
		t.Fatalf("NewConfirmation() error = %v", err)
	}

	ok, err := c.Verify(reg, preKey)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("correct pre-key failed confirmation")
	}

	wrong := append([]byte(nil), preKey...)
	wrong[0] ^= 0x01
	ok, err = c.Verify(reg, wrong)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("wrong pre-key passed confirmation")
	}
}

func TestConfirmation_PreKeyLengths(t *testing.T) {
	// UM1 shared secrets span 64 (secp256r1) to 132 (secp521r1) bytes;
	// none of them may trip the MAC's own key-size policy.
	reg := primitive.StandardRegistry()
	entropy := primitive.NewEntropySource(nil)
	for _, n := range []int{16, 32, 64, 96, 132, 200} {
		preKey := make([]byte, n)
		rand.Read(preKey)
		for _, macName := range []string{primitive.MacBLAKE2b256, primitive.MacHMACSHA256, primitive.MacPoly1305AES} {
			c, err := NewConfirmation(reg, macName, preKey, entropy)
			if err != nil {
				t.Fatalf("NewConfirmation(%s, %d-byte pre-key) error = %v", macName, n, err)
			}
			ok, err := c.Verify(reg, preKey)
			if err != nil {
				t.Fatal(err)
			}
			if !ok {
				t.Errorf("%s: %d-byte pre-key failed its own confirmation", macName, n)
			}
		}
	}
}

func TestConfirmation_MarshalRoundTrip(t *testing.T) {
	reg := primitive.StandardRegistry()
	entropy := primitive.NewEntropySource(nil)
	preKey := []byte("pre-key material here..........!")

	c, err := NewConfirmation(reg, primitive.MacBLAKE2b256, preKey, entropy)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := UnmarshalConfirmation(c.Marshal())
	if err != nil {
		t.Fatal(err)
	}
	ok, err := c2.Verify(reg, preKey)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("round-tripped confirmation rejected the correct key")
	}
}

func TestConfirmation_SaltVaries(t *testing.T) {
	reg := primitive.StandardRegistry()
	entropy := primitive.NewEntropySource(nil)
	preKey := make([]byte, 32)

	c1, err := NewConfirmation(reg, primitive.MacHMACSHA256, preKey, entropy)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := NewConfirmation(reg, primitive.MacHMACSHA256, preKey, entropy)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(c1.Salt, c2.Salt) {
		t.Error("two confirmations shared a salt")
	}
	if bytes.Equal(c1.Output, c2.Output) {
		t.Error("different salts produced the same output")
	}
}
