package streams

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"testing"

	"github.com/zenith-nz/ObscurCore/internal/cerrors"
	"github.com/zenith-nz/ObscurCore/internal/primitive"
)

func testConfigs(t *testing.T) map[string]primitive.CipherConfig {
	t.Helper()
	iv8 := make([]byte, 8)
	iv16 := make([]byte, 16)
	nonce24 := make([]byte, 24)
	nonce12 := make([]byte, 12)
	rand.Read(iv8)
	rand.Read(iv16)
	rand.Read(nonce24)
	rand.Read(nonce12)
	return map[string]primitive.CipherConfig{
		"xsalsa20":     {Cipher: primitive.CipherXSalsa20, IV: nonce24},
		"chacha20":     {Cipher: primitive.CipherChaCha20, IV: nonce12},
		"aes-ctr":      {Cipher: primitive.CipherAES, Mode: primitive.ModeCTR, IV: iv16},
		"aes-cfb":      {Cipher: primitive.CipherAES, Mode: primitive.ModeCFB, IV: iv16},
		"aes-ofb":      {Cipher: primitive.CipherAES, Mode: primitive.ModeOFB, IV: iv16},
		"aes-cbc":      {Cipher: primitive.CipherAES, Mode: primitive.ModeCBC, Padding: primitive.PaddingPKCS7, IV: iv16},
		"aes-cbc-x923": {Cipher: primitive.CipherAES, Mode: primitive.ModeCBC, Padding: primitive.PaddingX923, IV: iv16},
		"aes-cts":      {Cipher: primitive.CipherAES, Mode: primitive.ModeCTSCBC, IV: iv16},
		"twofish-ctr":  {Cipher: primitive.CipherTwofish, Mode: primitive.ModeCTR, IV: iv16},
		"blowfish-cbc": {Cipher: primitive.CipherBlowfish, Mode: primitive.ModeCBC, Padding: primitive.PaddingPKCS7, IV: iv8},
	}
}

func keyFor(t *testing.T, reg *primitive.Registry, cfg primitive.CipherConfig) []byte {
	t.Helper()
	n, err := reg.CipherKeySize(cfg)
	if err != nil {
		t.Fatal(err)
	}
	key := make([]byte, n)
	rand.Read(key)
	return key
}

func TestCipherStream_RoundTrip(t *testing.T) {
	reg := primitive.StandardRegistry()
	lengths := []int{0, 1, 15, 16, 17, 31, 32, 33, 100, 4096, 5000}

	for name, cfg := range testConfigs(t) {
		for _, n := range lengths {
			if cfg.Mode == primitive.ModeCTSCBC {
				// CTS cannot encode inputs shorter than one block.
				block := 16
				if n > 0 && n < block {
					continue
				}
			}
			t.Run(name, func(t *testing.T) {
				key := keyFor(t, reg, cfg)
				plaintext := make([]byte, n)
				rand.Read(plaintext)

				var ct bytes.Buffer
				enc, err := NewEncryptStream(&ct, reg, cfg, key)
				if err != nil {
					t.Fatalf("NewEncryptStream() error = %v", err)
				}
				// Write in ragged chunks to exercise the operation buffer.
				for off := 0; off < len(plaintext); {
					chunk := 7
					if off+chunk > len(plaintext) {
						chunk = len(plaintext) - off
					}
					if _, err := enc.Write(plaintext[off : off+chunk]); err != nil {
						t.Fatalf("Write() error = %v", err)
					}
					off += chunk
				}
				if err := enc.Finish(); err != nil {
					t.Fatalf("Finish() error = %v", err)
				}
				if enc.BytesIn() != uint64(n) {
					t.Errorf("BytesIn() = %d, want %d", enc.BytesIn(), n)
				}
				if enc.BytesOut() != uint64(ct.Len()) {
					t.Errorf("BytesOut() = %d, ciphertext %d", enc.BytesOut(), ct.Len())
				}

				dec, err := NewDecryptStream(bytes.NewReader(ct.Bytes()), reg, cfg, key)
				if err != nil {
					t.Fatalf("NewDecryptStream() error = %v", err)
				}
				got, err := io.ReadAll(dec)
				if err != nil {
					t.Fatalf("ReadAll() error = %v", err)
				}
				if !bytes.Equal(got, plaintext) {
					t.Errorf("round trip mismatch at length %d", n)
				}
			})
		}
	}
}

func TestCipherStream_DecryptWriterRoundTrip(t *testing.T) {
	reg := primitive.StandardRegistry()
	for name, cfg := range testConfigs(t) {
		t.Run(name, func(t *testing.T) {
			key := keyFor(t, reg, cfg)
			plaintext := make([]byte, 3000)
			rand.Read(plaintext)

			var ct bytes.Buffer
			enc, err := NewEncryptStream(&ct, reg, cfg, key)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := enc.Write(plaintext); err != nil {
				t.Fatal(err)
			}
			if err := enc.Finish(); err != nil {
				t.Fatal(err)
			}

			var pt bytes.Buffer
			dec, err := NewDecryptWriter(&pt, reg, cfg, key)
			if err != nil {
				t.Fatal(err)
			}
			// Push ciphertext in uneven chunks.
			data := ct.Bytes()
			for off := 0; off < len(data); {
				chunk := 777
				if off+chunk > len(data) {
					chunk = len(data) - off
				}
				if _, err := dec.Write(data[off : off+chunk]); err != nil {
					t.Fatal(err)
				}
				off += chunk
			}
			if err := dec.Finish(); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(pt.Bytes(), plaintext) {
				t.Error("decrypt-writer round trip mismatch")
			}
		})
	}
}

func TestCipherStream_LengthPreservation(t *testing.T) {
	reg := primitive.StandardRegistry()
	// Length-preserving configurations: ciphertext length == plaintext
	// length.
	for _, name := range []string{"xsalsa20", "chacha20", "aes-ctr", "aes-cts"} {
		cfg := testConfigs(t)[name]
		key := keyFor(t, reg, cfg)
		plaintext := make([]byte, 333)
		var ct bytes.Buffer
		enc, err := NewEncryptStream(&ct, reg, cfg, key)
		if err != nil {
			t.Fatal(err)
		}
		enc.Write(plaintext)
		if err := enc.Finish(); err != nil {
			t.Fatal(err)
		}
		if ct.Len() != len(plaintext) {
			t.Errorf("%s: ciphertext %d bytes, want %d", name, ct.Len(), len(plaintext))
		}
	}
}

func TestCipherStream_AEADRejected(t *testing.T) {
	reg := primitive.StandardRegistry()
	cfg := primitive.CipherConfig{Cipher: primitive.CipherAES, Mode: primitive.ModeGCM, IV: make([]byte, 16)}

	if _, err := NewEncryptStream(io.Discard, reg, cfg, make([]byte, 32)); !errors.Is(err, cerrors.ErrConfigInvalid) {
		t.Errorf("encrypt: expected ErrConfigInvalid, got %v", err)
	}
	if _, err := NewDecryptStream(bytes.NewReader(nil), reg, cfg, make([]byte, 32)); !errors.Is(err, cerrors.ErrConfigInvalid) {
		t.Errorf("decrypt: expected ErrConfigInvalid, got %v", err)
	}
}

func TestCipherStream_BadModeCombos(t *testing.T) {
	reg := primitive.StandardRegistry()
	tests := []struct {
		name string
		cfg  primitive.CipherConfig
	}{
		{"cbc without padding", primitive.CipherConfig{Cipher: primitive.CipherAES, Mode: primitive.ModeCBC, IV: make([]byte, 16)}},
		{"ctr with padding", primitive.CipherConfig{Cipher: primitive.CipherAES, Mode: primitive.ModeCTR, Padding: primitive.PaddingPKCS7, IV: make([]byte, 16)}},
		{"cts with padding", primitive.CipherConfig{Cipher: primitive.CipherAES, Mode: primitive.ModeCTSCBC, Padding: primitive.PaddingPKCS7, IV: make([]byte, 16)}},
		{"stream with mode", primitive.CipherConfig{Cipher: primitive.CipherChaCha20, Mode: primitive.ModeCTR, IV: make([]byte, 12)}},
		{"unknown mode", primitive.CipherConfig{Cipher: primitive.CipherAES, Mode: "EAX", IV: make([]byte, 16)}},
		{"bad IV length", primitive.CipherConfig{Cipher: primitive.CipherAES, Mode: primitive.ModeCTR, IV: make([]byte, 8)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEncryptStream(io.Discard, reg, tt.cfg, make([]byte, 32)); !errors.Is(err, cerrors.ErrConfigInvalid) {
				t.Errorf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestCipherStream_IncompleteBlock(t *testing.T) {
	reg := primitive.StandardRegistry()
	cfg := primitive.CipherConfig{Cipher: primitive.CipherAES, Mode: primitive.ModeCBC, Padding: primitive.PaddingPKCS7, IV: make([]byte, 16)}
	key := make([]byte, 32)

	// 20 ciphertext bytes cannot be a whole number of AES blocks.
	dec, err := NewDecryptStream(bytes.NewReader(make([]byte, 20)), reg, cfg, key)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.ReadAll(dec); !errors.Is(err, cerrors.ErrIncompleteBlock) {
		t.Errorf("expected ErrIncompleteBlock, got %v", err)
	}

	// Empty ciphertext is also incomplete for a padded mode.
	dec, err = NewDecryptStream(bytes.NewReader(nil), reg, cfg, key)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.ReadAll(dec); !errors.Is(err, cerrors.ErrIncompleteBlock) {
		t.Errorf("expected ErrIncompleteBlock for empty input, got %v", err)
	}
}

func TestCipherStream_WriteAfterFinish(t *testing.T) {
	reg := primitive.StandardRegistry()
	cfg := primitive.CipherConfig{Cipher: primitive.CipherChaCha20, IV: make([]byte, 12)}
	enc, err := NewEncryptStream(io.Discard, reg, cfg, make([]byte, 32))
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.Finish(); err != nil {
		t.Fatal(err)
	}
	if err := enc.Finish(); err != nil {
		t.Errorf("second Finish() should be a no-op, got %v", err)
	}
	if _, err := enc.Write([]byte{1}); err == nil {
		t.Error("Write() after Finish() should fail")
	}
}

func TestCipherStream_ReadAfterFinish(t *testing.T) {
	reg := primitive.StandardRegistry()
	cfg := primitive.CipherConfig{Cipher: primitive.CipherChaCha20, IV: make([]byte, 12)}
	key := make([]byte, 32)

	var ct bytes.Buffer
	enc, _ := NewEncryptStream(&ct, reg, cfg, key)
	enc.Write([]byte("data"))
	enc.Finish()

	dec, err := NewDecryptStream(bytes.NewReader(ct.Bytes()), reg, cfg, key)
	if err != nil {
		t.Fatal(err)
	}
	io.ReadAll(dec)
	buf := make([]byte, 8)
	if n, err := dec.Read(buf); n != 0 || err != io.EOF {
		t.Errorf("Read() after finish = (%d, %v), want (0, EOF)", n, err)
	}
}

func TestPadding_Strip(t *testing.T) {
	p := pkcs7{}
	tests := []struct {
		name    string
		block   []byte
		want    []byte
		wantErr bool
	}{
		{"full pad block", p.apply(nil, 8), []byte{}, false},
		{"partial", p.apply([]byte{1, 2, 3}, 8), []byte{1, 2, 3}, false},
		{"corrupt length zero", []byte{1, 2, 3, 4, 5, 6, 7, 0}, nil, true},
		{"corrupt length over", []byte{1, 2, 3, 4, 5, 6, 7, 9}, nil, true},
		{"corrupt fill", []byte{1, 2, 3, 4, 4, 4, 9, 4}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.strip(tt.block, 8)
			if tt.wantErr {
				if !errors.Is(err, cerrors.ErrPaddingCorrupt) {
					t.Errorf("expected ErrPaddingCorrupt, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("strip() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("strip() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPadding_ZeroByte(t *testing.T) {
	p := zeroByte{}
	tests := []struct {
		name string
		tail []byte
		want []byte
	}{
		{"empty tail", nil, []byte{}},
		{"partial", []byte{1, 2, 3}, []byte{1, 2, 3}},
		{"full-minus-one", []byte{1, 2, 3, 4, 5, 6, 7}, []byte{1, 2, 3, 4, 5, 6, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.strip(p.apply(tt.tail, 8), 8)
			if err != nil {
				t.Fatalf("strip() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("strip() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Zero padding round-trips through the full stream for plaintext that
// does not end in a zero byte (its documented limitation).
func TestCipherStream_ZeroPaddingRoundTrip(t *testing.T) {
	reg := primitive.StandardRegistry()
	iv := make([]byte, 16)
	rand.Read(iv)
	cfg := primitive.CipherConfig{Cipher: primitive.CipherAES, Mode: primitive.ModeCBC, Padding: primitive.PaddingZero, IV: iv}
	key := keyFor(t, reg, cfg)

	plaintext := make([]byte, 1000)
	rand.Read(plaintext)
	plaintext[len(plaintext)-1] |= 0x01

	var ct bytes.Buffer
	enc, err := NewEncryptStream(&ct, reg, cfg, key)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write(plaintext); err != nil {
		t.Fatal(err)
	}
	if err := enc.Finish(); err != nil {
		t.Fatal(err)
	}

	dec, err := NewDecryptStream(bytes.NewReader(ct.Bytes()), reg, cfg, key)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(dec)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Error("zero-padding round trip mismatch")
	}
}

func TestMacStream_WriteAndRead(t *testing.T) {
	reg := primitive.StandardRegistry()
	key := make([]byte, 32)
	rand.Read(key)
	cfg := primitive.MacConfig{Mac: primitive.MacHMACSHA256}
	data := []byte("bytes crossing the stream")
	extra := []byte("bound context")

	// Writer direction.
	h, err := reg.NewMac(cfg, key)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	mw := NewMacWriter(&out, h)
	if _, err := mw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Update(extra); err != nil {
		t.Fatal(err)
	}
	writeTag := mw.Finish()
	if !bytes.Equal(out.Bytes(), data) {
		t.Error("MacWriter altered the data")
	}
	if mw.BytesTransferred() != uint64(len(data)) {
		t.Errorf("BytesTransferred() = %d, want %d", mw.BytesTransferred(), len(data))
	}

	// Reader direction over the same bytes must produce the same tag.
	h2, err := reg.NewMac(cfg, key)
	if err != nil {
		t.Fatal(err)
	}
	mr := NewMacReader(bytes.NewReader(data), h2)
	got, err := io.ReadAll(mr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("MacReader altered the data")
	}
	if err := mr.Update(extra); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(mr.Finish(), writeTag) {
		t.Error("read-side tag differs from write-side tag")
	}

	// The tag is stable across repeated Finish calls.
	if !bytes.Equal(mw.Finish(), writeTag) {
		t.Error("second Finish() changed the tag")
	}

	// Update after finish fails; tag is unchanged.
	if err := mw.Update([]byte{1}); err == nil {
		t.Error("Update() after Finish() should fail")
	}
}

func TestMacStream_UpdateChangesTag(t *testing.T) {
	reg := primitive.StandardRegistry()
	key := make([]byte, 32)
	rand.Read(key)
	cfg := primitive.MacConfig{Mac: primitive.MacHMACSHA256}

	tagWith := func(extra []byte) []byte {
		h, err := reg.NewMac(cfg, key)
		if err != nil {
			t.Fatal(err)
		}
		mw := NewMacWriter(io.Discard, h)
		mw.Write([]byte("payload"))
		if extra != nil {
			mw.Update(extra)
		}
		return mw.Finish()
	}
	if bytes.Equal(tagWith(nil), tagWith([]byte("cfg"))) {
		t.Error("Update() had no effect on the tag")
	}
}
