package obscurcore

import (
	"github.com/zenith-nz/ObscurCore/internal/codec"
)

// FormatVersion is the package format version this library writes.
const FormatVersion = 1

// Fixed 8-byte tags bracketing every package.
var (
	magicHeader  = []byte{0xE8, 'O', 'C', 'P', 'K', 'G', 0x0D, 0x0A}
	magicTrailer = []byte{0x0A, 0x0D, 'G', 'K', 'P', 'C', 'O', 0xE8}
)

// Parsing guards against hostile length fields.
const (
	maxManifestHeaderLen = 1 << 20
	maxManifestLen       = 1 << 26
	maxManifestItems     = 1 << 16
)

// manifestHeader is the plaintext preamble naming the manifest
// cryptography scheme and carrying its serialized configuration.
type manifestHeader struct {
	FormatVersion int32
	SchemeName    string
	SchemeConfig  []byte
}

func (h *manifestHeader) marshal() []byte {
	e := codec.NewEncoder()
	e.Int32(h.FormatVersion)
	e.String(h.SchemeName)
	e.BytesField(h.SchemeConfig)
	return e.Bytes()
}

func unmarshalManifestHeader(b []byte) (*manifestHeader, error) {
	d := codec.NewDecoder(b)
	h := &manifestHeader{
		FormatVersion: d.Int32(),
		SchemeName:    d.String(),
		SchemeConfig:  d.BytesField(),
	}
	if err := d.Done(); err != nil {
		return nil, err
	}
	return h, nil
}
