package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/zenith-nz/ObscurCore/internal/cerrors"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	e := NewEncoder()
	e.Byte(0x7f)
	e.Bool(true)
	e.Bool(false)
	e.Uint32(12345)
	e.Int32(-7)
	e.Uint64(1 << 40)
	e.String("héllo")
	e.BytesField([]byte{0, 1, 2})
	e.OptBytes(nil)
	e.OptBytes([]byte{9})
	e.Raw([]byte{0xaa, 0xbb})

	d := NewDecoder(e.Bytes())
	if got := d.Byte(); got != 0x7f {
		t.Errorf("Byte() = %#x", got)
	}
	if !d.Bool() || d.Bool() {
		t.Error("Bool() round trip failed")
	}
	if got := d.Uint32(); got != 12345 {
		t.Errorf("Uint32() = %d", got)
	}
	if got := d.Int32(); got != -7 {
		t.Errorf("Int32() = %d", got)
	}
	if got := d.Uint64(); got != 1<<40 {
		t.Errorf("Uint64() = %d", got)
	}
	if got := d.String(); got != "héllo" {
		t.Errorf("String() = %q", got)
	}
	if got := d.BytesField(); !bytes.Equal(got, []byte{0, 1, 2}) {
		t.Errorf("BytesField() = %v", got)
	}
	if got := d.OptBytes(); got != nil {
		t.Errorf("absent OptBytes() = %v, want nil", got)
	}
	if got := d.OptBytes(); !bytes.Equal(got, []byte{9}) {
		t.Errorf("present OptBytes() = %v", got)
	}
	if got := d.Raw(2); !bytes.Equal(got, []byte{0xaa, 0xbb}) {
		t.Errorf("Raw() = %v", got)
	}
	if err := d.Done(); err != nil {
		t.Errorf("Done() error = %v", err)
	}
}

func TestOptBytes_EmptyPresent(t *testing.T) {
	e := NewEncoder()
	e.OptBytes([]byte{})
	d := NewDecoder(e.Bytes())
	got := d.OptBytes()
	if got == nil {
		t.Error("present empty OptBytes decoded as nil")
	}
	if len(got) != 0 {
		t.Errorf("OptBytes() = %v, want empty", got)
	}
}

func TestDecoder_Truncated(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(*Decoder)
	}{
		{"byte from empty", nil, func(d *Decoder) { d.Byte() }},
		{"u32 short", []byte{1, 2}, func(d *Decoder) { d.Uint32() }},
		{"u64 short", []byte{1, 2, 3, 4, 5}, func(d *Decoder) { d.Uint64() }},
		{"field body short", []byte{5, 0, 0, 0, 1}, func(d *Decoder) { d.BytesField() }},
		{"raw short", []byte{1}, func(d *Decoder) { d.Raw(2) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(tt.data)
			tt.read(d)
			if !errors.Is(d.Err(), cerrors.ErrFormatInvalid) {
				t.Errorf("expected ErrFormatInvalid, got %v", d.Err())
			}
		})
	}
}

func TestDecoder_ErrorLatches(t *testing.T) {
	d := NewDecoder([]byte{1})
	d.Uint32() // fails
	first := d.Err()
	if first == nil {
		t.Fatal("expected error")
	}
	d.Byte() // would succeed on a fresh decoder, must stay failed
	if d.Err() != first {
		t.Error("error did not latch")
	}
}

func TestDecoder_TrailingBytes(t *testing.T) {
	e := NewEncoder()
	e.Byte(1)
	e.Byte(2)
	d := NewDecoder(e.Bytes())
	d.Byte()
	if err := d.Done(); !errors.Is(err, cerrors.ErrFormatInvalid) {
		t.Errorf("expected ErrFormatInvalid for trailing bytes, got %v", err)
	}
}

func TestDecoder_InvalidBool(t *testing.T) {
	d := NewDecoder([]byte{2})
	d.Bool()
	if !errors.Is(d.Err(), cerrors.ErrFormatInvalid) {
		t.Errorf("expected ErrFormatInvalid, got %v", d.Err())
	}
}

func TestDecoder_InvalidUTF8(t *testing.T) {
	e := NewEncoder()
	e.BytesField([]byte{0xff, 0xfe})
	d := NewDecoder(e.Bytes())
	_ = d.String()
	if !errors.Is(d.Err(), cerrors.ErrFormatInvalid) {
		t.Errorf("expected ErrFormatInvalid, got %v", d.Err())
	}
}

func TestDeterminism(t *testing.T) {
	build := func() []byte {
		e := NewEncoder()
		e.String("config")
		e.BytesField([]byte{1, 2, 3})
		e.Uint32(99)
		return e.Bytes()
	}
	if !bytes.Equal(build(), build()) {
		t.Error("identical values encoded differently")
	}
}
