package obscurcore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/zenith-nz/ObscurCore/internal/bytesec"
	"github.com/zenith-nz/ObscurCore/internal/kex"
	"github.com/zenith-nz/ObscurCore/internal/mux"
	"github.com/zenith-nz/ObscurCore/internal/primitive"
	"github.com/zenith-nz/ObscurCore/internal/streams"
)

// Reader authenticates and unpacks one package. Like Writer it is
// single-use and single-shot: ReadManifest must succeed before extraction,
// and any authentication failure during extraction aborts the whole read.
// Extraction streams each item's plaintext into its sink as it is
// decrypted, before that item's MAC is checked.
type Reader struct {
	cfg    config
	scheme string

	preKey []byte

	curveName     string
	recipientPriv []byte
	senderPub     []byte

	itemPreKeys map[uuid.UUID][]byte

	in        io.Reader
	manifest  *Manifest
	extracted bool
}

// NewSymmetricReader constructs a reader for packages written under the
// given symmetric pre-key.
func NewSymmetricReader(preKey []byte, opts ...Option) (*Reader, error) {
	if len(preKey) == 0 {
		return nil, fmt.Errorf("%w: empty pre-key", ErrConfigInvalid)
	}
	r := newReader(opts)
	r.scheme = SchemeSymmetricOnly
	r.preKey = append([]byte(nil), preKey...)
	return r, nil
}

// NewHybridReader constructs a reader for UM1 packages, holding the
// recipient's private key and the expected sender's public key.
func NewHybridReader(curveName string, recipientPriv, senderPub []byte, opts ...Option) (*Reader, error) {
	r := newReader(opts)
	if _, err := r.cfg.registry.Curve(curveName); err != nil {
		return nil, err
	}
	if len(recipientPriv) == 0 || len(senderPub) == 0 {
		return nil, fmt.Errorf("%w: missing UM1 key material", ErrConfigInvalid)
	}
	r.scheme = SchemeUM1Hybrid
	r.curveName = curveName
	r.recipientPriv = append([]byte(nil), recipientPriv...)
	r.senderPub = append([]byte(nil), senderPub...)
	return r, nil
}

func newReader(opts []Option) *Reader {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Reader{cfg: cfg, itemPreKeys: make(map[uuid.UUID][]byte)}
}

// SetItemPreKey registers an out-of-band pre-key for the identified item,
// matching the writer-side registration.
func (r *Reader) SetItemPreKey(id uuid.UUID, preKey []byte) {
	r.itemPreKeys[id] = append([]byte(nil), preKey...)
}

// ReadManifest verifies the package header, reconstructs the manifest
// keys, authenticates and decrypts the manifest, and leaves the reader
// positioned at the payload body. The returned view carries no key
// material.
func (r *Reader) ReadManifest(in io.Reader) (*ManifestView, error) {
	if r.manifest != nil {
		return nil, errors.New("obscurcore: manifest already read")
	}

	tag := make([]byte, len(magicHeader))
	if _, err := io.ReadFull(in, tag); err != nil {
		return nil, fmt.Errorf("%w: missing header tag", ErrFormatInvalid)
	}
	if !bytes.Equal(tag, magicHeader) {
		return nil, fmt.Errorf("%w: bad header tag", ErrFormatInvalid)
	}

	headerBytes, err := bytesec.ReadLengthPrefixed(in, maxManifestHeaderLen)
	if err != nil {
		return nil, err
	}
	header, err := unmarshalManifestHeader(headerBytes)
	if err != nil {
		return nil, err
	}
	if header.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrFormatInvalid, header.FormatVersion)
	}
	if header.SchemeName != r.scheme {
		return nil, fmt.Errorf("%w: package uses manifest scheme %q", ErrConfigInvalid, header.SchemeName)
	}
	mcc, err := unmarshalManifestCrypto(header.SchemeName, header.SchemeConfig)
	if err != nil {
		return nil, err
	}

	preKey, err := r.manifestPreKey(mcc)
	if err != nil {
		return nil, err
	}
	defer bytesec.Wipe(preKey)

	// Key confirmation runs before any KDF work, so a wrong key fails
	// fast and cheaply.
	ok, err := mcc.Confirmation.Verify(r.cfg.registry, preKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: manifest", ErrCiphertextAuth)
	}

	cipherKey, macKey, err := deriveManifestKeys(&r.cfg, preKey, mcc.Cipher, mcc.Auth, mcc.Kdf)
	if err != nil {
		return nil, err
	}
	defer bytesec.WipeAll(cipherKey, macKey)

	ciphertext, err := bytesec.ReadLengthPrefixed(in, maxManifestLen)
	if err != nil {
		return nil, err
	}

	plaintext, err := r.openManifest(ciphertext, mcc, cipherKey, macKey)
	if err != nil {
		return nil, err
	}
	defer bytesec.Wipe(plaintext)

	manifest, err := unmarshalManifest(plaintext)
	if err != nil {
		return nil, err
	}

	r.manifest = manifest
	r.in = in
	return viewOf(header.SchemeName, manifest), nil
}

// openManifest routes the manifest ciphertext through MAC and cipher,
// reproduces the writer's transcript, and verifies the manifest tag in
// constant time before any parsed byte is trusted.
func (r *Reader) openManifest(ciphertext []byte, mcc *manifestCrypto, cipherKey, macKey []byte) ([]byte, error) {
	macHash, err := r.cfg.registry.NewMac(mcc.Auth, macKey)
	if err != nil {
		return nil, err
	}
	macStream := streams.NewMacReader(bytes.NewReader(ciphertext), macHash)
	cipherStream, err := streams.NewDecryptStream(macStream, r.cfg.registry, mcc.Cipher, cipherKey)
	if err != nil {
		return nil, err
	}
	plaintext, err := io.ReadAll(cipherStream)
	if err != nil {
		return nil, err
	}

	if err := macStream.Update(bytesec.PutU32LE(uint32(len(ciphertext)))); err != nil {
		return nil, err
	}
	for _, cfgBytes := range [][]byte{mcc.Cipher.Marshal(), mcc.Auth.Marshal(), mcc.Kdf.Marshal()} {
		if err := macStream.Update(cfgBytes); err != nil {
			return nil, err
		}
	}
	if !bytesec.EqualCT(macStream.Finish(), mcc.AuthTag) {
		bytesec.Wipe(plaintext)
		return nil, fmt.Errorf("%w: manifest", ErrCiphertextAuth)
	}
	return plaintext, nil
}

func (r *Reader) manifestPreKey(mcc *manifestCrypto) ([]byte, error) {
	switch r.scheme {
	case SchemeSymmetricOnly:
		return append([]byte(nil), r.preKey...), nil
	case SchemeUM1Hybrid:
		if mcc.Curve != r.curveName {
			return nil, fmt.Errorf("%w: package curve %q does not match reader curve %q", ErrConfigInvalid, mcc.Curve, r.curveName)
		}
		curve, err := r.cfg.registry.Curve(r.curveName)
		if err != nil {
			return nil, err
		}
		return kex.UM1Respond(curve, r.senderPub, r.recipientPriv, mcc.EphemeralKey)
	default:
		return nil, fmt.Errorf("%w: unknown manifest scheme %q", ErrConfigInvalid, r.scheme)
	}
}

// ExtractTo demultiplexes the payload, routing each item's plaintext into
// the writer produced by openSink, then verifies the package trailer.
// Every item MAC is checked; the first mismatch aborts the extraction.
// Plaintext reaches each sink before its item's MAC is checked, so when
// ExtractTo fails the sinks may already hold unauthenticated data.
func (r *Reader) ExtractTo(openSink func(ItemInfo) (io.Writer, error)) error {
	if r.manifest == nil {
		return errors.New("obscurcore: manifest not read")
	}
	if r.extracted {
		return errors.New("obscurcore: payload already extracted")
	}
	m := r.manifest

	prng, err := primitive.NewDRBG(m.Payload.PRNGSeed)
	if err != nil {
		return err
	}
	if m.Payload.PRNGName != primitive.PrngChaCha20 {
		return fmt.Errorf("%w: unknown payload PRNG %q", ErrConfigInvalid, m.Payload.PRNGName)
	}

	entries := make([]*mux.Entry, len(m.Items))
	for i, it := range m.Items {
		sink, err := openSink(ItemInfo{
			Identifier:     it.Identifier,
			RelativePath:   it.RelativePath,
			Type:           it.Type,
			ExternalLength: it.ExternalLength,
			InternalLength: it.InternalLength,
		})
		if err != nil {
			return err
		}
		entries[i] = &mux.Entry{
			CipherCfg:      it.CipherCfg,
			AuthCfg:        it.AuthCfg,
			CipherKey:      it.CipherKey,
			AuthKey:        it.AuthKey,
			PreKey:         r.itemPreKeys[it.Identifier],
			KdfCfg:         it.KdfCfg,
			Binding:        authenticatibleClone(it),
			Sink:           sink,
			ExternalLength: it.ExternalLength,
			InternalLength: it.InternalLength,
			AuthTag:        it.AuthTag,
		}
	}

	defer func() {
		for _, it := range m.Items {
			bytesec.WipeAll(it.CipherKey, it.AuthKey)
		}
	}()
	if err := mux.ReadAll(r.in, entries, mux.Config{
		Scheme:   m.Payload.SchemeName,
		PadMin:   m.Payload.PadMin,
		PadMax:   m.Payload.PadMax,
		Registry: r.cfg.registry,
		PRNG:     prng,
	}); err != nil {
		return err
	}

	trailer := make([]byte, len(magicTrailer))
	if _, err := io.ReadFull(r.in, trailer); err != nil {
		return fmt.Errorf("%w: missing trailer tag", ErrFormatInvalid)
	}
	if !bytes.Equal(trailer, magicTrailer) {
		return fmt.Errorf("%w: bad trailer tag", ErrFormatInvalid)
	}
	r.extracted = true
	return nil
}

// ExtractAll extracts every item beneath dir, creating directories as
// needed. Item paths are sanitized; an item whose path would escape dir is
// rejected.
func (r *Reader) ExtractAll(dir string) error {
	files := make(map[string]*os.File)
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	err := r.ExtractTo(func(info ItemInfo) (io.Writer, error) {
		rel := filepath.FromSlash(info.RelativePath)
		if rel == "" || filepath.IsAbs(rel) {
			return nil, fmt.Errorf("%w: unsafe item path", ErrFormatInvalid)
		}
		dest := filepath.Join(dir, rel)
		check, err := filepath.Rel(dir, dest)
		if err != nil || check == ".." || strings.HasPrefix(check, ".."+string(os.PathSeparator)) {
			return nil, fmt.Errorf("%w: unsafe item path", ErrFormatInvalid)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, err
		}
		f, err := os.Create(dest)
		if err != nil {
			return nil, err
		}
		files[dest] = f
		return f, nil
	})
	return err
}
