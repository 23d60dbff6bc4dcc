package obscurcore

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/zenith-nz/ObscurCore/internal/codec"
	"github.com/zenith-nz/ObscurCore/internal/primitive"
)

// Configuration types are shared with the primitive registry; the aliases
// keep the public surface in one package.
type (
	// CipherConfig selects a cipher, mode, and padding for one stream.
	CipherConfig = primitive.CipherConfig
	// MacConfig selects a keyed MAC.
	MacConfig = primitive.MacConfig
	// KdfConfig selects a key derivation function and its parameters.
	KdfConfig = primitive.KdfConfig
)

// ItemType classifies a payload item's content.
type ItemType uint8

// Payload item types.
const (
	ItemTypeBinary ItemType = iota
	ItemTypeUTF8Text
	ItemTypeKeyAction
)

// PayloadItem describes one item inside a package manifest. Exactly one of
// two key arrangements holds: the item embeds explicit working keys
// (CipherKey and AuthKey), or it carries a KdfCfg and the pre-key is
// supplied out of band through the item pre-key map.
type PayloadItem struct {
	// Identifier is the item's stable 128-bit identity, used to look up
	// out-of-band pre-keys.
	Identifier uuid.UUID
	// RelativePath is the item's path inside the package.
	RelativePath string
	// Type classifies the content.
	Type ItemType
	// ExternalLength is the plaintext length in bytes; zero when unknown
	// at write time.
	ExternalLength uint64
	// InternalLength is the item's ciphertext footprint inside the
	// payload body. Filled in during write, required during read.
	InternalLength uint64
	// CipherCfg and AuthCfg configure the item's Encrypt-then-MAC
	// pipeline.
	CipherCfg CipherConfig
	AuthCfg   MacConfig
	// KdfCfg, when present, derives the working keys from the item's
	// pre-key.
	KdfCfg *KdfConfig
	// CipherKey and AuthKey, when present, are the explicit working
	// keys. They live inside the encrypted manifest.
	CipherKey []byte
	AuthKey   []byte
	// AuthTag is the item's final MAC. Written during write, verified
	// during read.
	AuthTag []byte
}

// PayloadConfig selects the payload multiplexing scheme and its PRNG.
type PayloadConfig struct {
	SchemeName     string
	PadMin, PadMax int
	PRNGName       string
	PRNGSeed       []byte
}

// Manifest is the plaintext manifest: the payload layout plus the ordered
// item list. It is serialized, encrypted, and authenticated as a unit.
type Manifest struct {
	Payload PayloadConfig
	Items   []*PayloadItem
}

func marshalItem(e *codec.Encoder, it *PayloadItem) {
	e.Raw(it.Identifier[:])
	e.String(it.RelativePath)
	e.Byte(byte(it.Type))
	e.Uint64(it.ExternalLength)
	e.Uint64(it.InternalLength)
	e.BytesField(it.CipherCfg.Marshal())
	e.BytesField(it.AuthCfg.Marshal())
	if it.KdfCfg != nil {
		e.Bool(true)
		e.BytesField(it.KdfCfg.Marshal())
	} else {
		e.Bool(false)
	}
	e.OptBytes(it.CipherKey)
	e.OptBytes(it.AuthKey)
	e.BytesField(it.AuthTag)
}

func unmarshalItem(d *codec.Decoder) (*PayloadItem, error) {
	it := &PayloadItem{}
	copy(it.Identifier[:], d.Raw(16))
	it.RelativePath = d.String()
	it.Type = ItemType(d.Byte())
	it.ExternalLength = d.Uint64()
	it.InternalLength = d.Uint64()

	var err error
	if it.CipherCfg, err = primitive.UnmarshalCipherConfig(d.BytesField()); err != nil {
		return nil, err
	}
	if it.AuthCfg, err = primitive.UnmarshalMacConfig(d.BytesField()); err != nil {
		return nil, err
	}
	if d.Bool() {
		kdf, err := primitive.UnmarshalKdfConfig(d.BytesField())
		if err != nil {
			return nil, err
		}
		it.KdfCfg = &kdf
	}
	it.CipherKey = d.OptBytes()
	it.AuthKey = d.OptBytes()
	it.AuthTag = d.BytesField()
	return it, d.Err()
}

// authenticatibleClone serializes the item with its mutable fields (the
// auth tag and the internal length) cleared, producing the metadata bytes
// the item MAC binds without a circular dependency on the tag itself.
func authenticatibleClone(it *PayloadItem) []byte {
	clone := *it
	clone.AuthTag = nil
	clone.InternalLength = 0
	e := codec.NewEncoder()
	marshalItem(e, &clone)
	return e.Bytes()
}

func marshalManifest(m *Manifest) []byte {
	e := codec.NewEncoder()

	pc := codec.NewEncoder()
	pc.Uint32(uint32(m.Payload.PadMin))
	pc.Uint32(uint32(m.Payload.PadMax))
	e.String(m.Payload.SchemeName)
	e.BytesField(pc.Bytes())
	e.String(m.Payload.PRNGName)
	e.BytesField(m.Payload.PRNGSeed)

	e.Uint32(uint32(len(m.Items)))
	for _, it := range m.Items {
		inner := codec.NewEncoder()
		marshalItem(inner, it)
		e.BytesField(inner.Bytes())
	}
	return e.Bytes()
}

func unmarshalManifest(b []byte) (*Manifest, error) {
	d := codec.NewDecoder(b)
	m := &Manifest{}
	m.Payload.SchemeName = d.String()
	pcBytes := d.BytesField()
	m.Payload.PRNGName = d.String()
	m.Payload.PRNGSeed = d.BytesField()
	if err := d.Err(); err != nil {
		return nil, err
	}

	pc := codec.NewDecoder(pcBytes)
	m.Payload.PadMin = int(pc.Uint32())
	m.Payload.PadMax = int(pc.Uint32())
	if err := pc.Done(); err != nil {
		return nil, err
	}

	count := d.Uint32()
	if err := d.Err(); err != nil {
		return nil, err
	}
	if count > maxManifestItems {
		return nil, fmt.Errorf("%w: implausible item count", ErrFormatInvalid)
	}
	m.Items = make([]*PayloadItem, 0, count)
	for i := uint32(0); i < count; i++ {
		it, err := unmarshalItem(codec.NewDecoder(d.BytesField()))
		if err != nil {
			return nil, err
		}
		if err := d.Err(); err != nil {
			return nil, err
		}
		m.Items = append(m.Items, it)
	}
	if err := d.Done(); err != nil {
		return nil, err
	}
	return m, nil
}

// ItemInfo is the key-free view of one manifest item.
type ItemInfo struct {
	Identifier     uuid.UUID
	RelativePath   string
	Type           ItemType
	ExternalLength uint64
	InternalLength uint64
}

// ManifestView is what ReadManifest exposes to callers: the item list
// without any key material.
type ManifestView struct {
	Scheme string
	Items  []ItemInfo
}

func viewOf(scheme string, m *Manifest) *ManifestView {
	v := &ManifestView{Scheme: scheme, Items: make([]ItemInfo, len(m.Items))}
	for i, it := range m.Items {
		v.Items[i] = ItemInfo{
			Identifier:     it.Identifier,
			RelativePath:   it.RelativePath,
			Type:           it.Type,
			ExternalLength: it.ExternalLength,
			InternalLength: it.InternalLength,
		}
	}
	return v
}
