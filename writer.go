package obscurcore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/zenith-nz/ObscurCore/internal/bytesec"
	"github.com/zenith-nz/ObscurCore/internal/kex"
	"github.com/zenith-nz/ObscurCore/internal/mux"
	"github.com/zenith-nz/ObscurCore/internal/primitive"
	"github.com/zenith-nz/ObscurCore/internal/streams"
)

// Payload layout scheme names.
const (
	LayoutSimple     = mux.SchemeSimple
	LayoutFrameshift = mux.SchemeFrameshift
)

// pendingItem pairs a manifest item with the source it will be read from.
// Exactly one of source and path is set; files are opened only for the
// duration of Write.
type pendingItem struct {
	item   *PayloadItem
	source io.Reader
	path   string
}

// Writer assembles and emits one package. A Writer is single-use: after a
// successful Write, further calls to Write fail.
type Writer struct {
	cfg    config
	scheme string

	// SymmetricOnly key material.
	preKey []byte

	// UM1Hybrid key material.
	curveName    string
	senderPriv   []byte
	recipientPub []byte

	pending     []*pendingItem
	itemPreKeys map[uuid.UUID][]byte

	layout         string
	padMin, padMax int
	temp           io.ReadWriter

	written bool
}

// NewSymmetricWriter constructs a writer whose manifest keys derive from
// the given symmetric pre-key. The pre-key is copied; the caller keeps
// ownership of its slice.
func NewSymmetricWriter(preKey []byte, opts ...Option) (*Writer, error) {
	if len(preKey) == 0 {
		return nil, fmt.Errorf("%w: empty pre-key", ErrConfigInvalid)
	}
	w := newWriter(opts)
	w.scheme = SchemeSymmetricOnly
	w.preKey = append([]byte(nil), preKey...)
	return w, nil
}

// NewHybridWriter constructs a writer using UM1 key agreement between the
// sender's private key and the recipient's public key on the named curve.
func NewHybridWriter(curveName string, senderPriv, recipientPub []byte, opts ...Option) (*Writer, error) {
	w := newWriter(opts)
	if _, err := w.cfg.registry.Curve(curveName); err != nil {
		return nil, err
	}
	if len(senderPriv) == 0 || len(recipientPub) == 0 {
		return nil, fmt.Errorf("%w: missing UM1 key material", ErrConfigInvalid)
	}
	w.scheme = SchemeUM1Hybrid
	w.curveName = curveName
	w.senderPriv = append([]byte(nil), senderPriv...)
	w.recipientPub = append([]byte(nil), recipientPub...)
	return w, nil
}

func newWriter(opts []Option) *Writer {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Writer{
		cfg:         cfg,
		itemPreKeys: make(map[uuid.UUID][]byte),
		layout:      LayoutFrameshift,
		padMin:      mux.DefaultPadMin,
		padMax:      mux.DefaultPadMax,
	}
}

// SetPayloadLayout selects the payload multiplexing scheme. For the
// Frameshift layout, padMin and padMax bound each inter-segment padding
// run; pass zeros to keep the defaults.
func (w *Writer) SetPayloadLayout(scheme string, padMin, padMax int) error {
	switch scheme {
	case LayoutSimple:
	case LayoutFrameshift:
		if padMin == 0 && padMax == 0 {
			padMin, padMax = mux.DefaultPadMin, mux.DefaultPadMax
		}
		if padMin < 1 || padMax < padMin {
			return fmt.Errorf("%w: frameshift padding bounds [%d,%d]", ErrConfigInvalid, padMin, padMax)
		}
	default:
		return fmt.Errorf("%w: unknown payload layout %q", ErrConfigInvalid, scheme)
	}
	w.layout = scheme
	w.padMin, w.padMax = padMin, padMax
	return nil
}

// SetTempStorage substitutes the temporary payload sink used during Write.
// The default is an in-memory buffer; supply a file-backed stream for
// payloads that should not live in memory. A seekable sink is rewound
// before copy-back.
func (w *Writer) SetTempStorage(rw io.ReadWriter) {
	w.temp = rw
}

// SetItemPreKey registers an out-of-band pre-key for the identified item.
// The item's embedded working keys are dropped in favour of KDF derivation
// from this pre-key.
func (w *Writer) SetItemPreKey(id uuid.UUID, preKey []byte) {
	w.itemPreKeys[id] = append([]byte(nil), preKey...)
}

func (w *Writer) add(name string, typ ItemType, length uint64, source io.Reader, path string) (*PayloadItem, error) {
	id, err := uuid.NewRandomFromReader(w.cfg.entropy.Reader())
	if err != nil {
		return nil, err
	}
	it := &PayloadItem{
		Identifier:     id,
		RelativePath:   name,
		Type:           typ,
		ExternalLength: length,
	}
	w.pending = append(w.pending, &pendingItem{item: it, source: source, path: path})
	return it, nil
}

// AddText adds a UTF-8 text item.
func (w *Writer) AddText(name, text string) (*PayloadItem, error) {
	return w.add(name, ItemTypeUTF8Text, uint64(len(text)), strings.NewReader(text), "")
}

// AddBytes adds a binary item from an in-memory slice.
func (w *Writer) AddBytes(name string, data []byte) (*PayloadItem, error) {
	return w.add(name, ItemTypeBinary, uint64(len(data)), bytes.NewReader(data), "")
}

// AddStream adds a binary item read from r during Write. Pass zero for
// length when it is unknown; a non-zero length is recorded in the manifest
// and verified on extraction.
func (w *Writer) AddStream(name string, length uint64, r io.Reader) (*PayloadItem, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil source stream", ErrConfigInvalid)
	}
	return w.add(name, ItemTypeBinary, length, r, "")
}

// AddFile adds the named file. The file is opened when Write runs and
// closed when Write returns.
func (w *Writer) AddFile(path string) (*PayloadItem, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrConfigInvalid, path)
	}
	return w.add(filepath.Base(path), ItemTypeBinary, uint64(info.Size()), nil, path)
}

// AddDirectory adds every regular file under path, keeping slash-separated
// relative paths. Traversal order is deterministic (lexical).
func (w *Writer) AddDirectory(path string, recursive bool) ([]*PayloadItem, error) {
	var files []string
	err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if !recursive && p != path {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Mode().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	items := make([]*PayloadItem, 0, len(files))
	for _, p := range files {
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		it, err := w.add(filepath.ToSlash(rel), ItemTypeBinary, uint64(info.Size()), nil, p)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

// Write assembles the package onto out: header tag, manifest header,
// manifest ciphertext, multiplexed payload, trailer tag. All derived key
// material is wiped before return. On error the bytes already written are
// unusable; the caller discards them.
func (w *Writer) Write(out io.Writer) error {
	if w.written {
		return errors.New("obscurcore: writer already used")
	}
	if len(w.pending) == 0 {
		return fmt.Errorf("%w: no payload items", ErrConfigInvalid)
	}

	// Resolve the manifest pre-key first: a scheme failure should not
	// cost any I/O.
	preKey, ephemeralPub, err := w.manifestPreKey()
	if err != nil {
		return err
	}
	defer bytesec.Wipe(preKey)

	if _, err := out.Write(magicHeader); err != nil {
		return err
	}

	mcc, cipherKey, macKey, err := w.setupManifestCrypto(preKey, ephemeralPub)
	if err != nil {
		return err
	}
	defer bytesec.WipeAll(cipherKey, macKey)

	manifest, entries, closers, err := w.prepareItems()
	if cerr := func() error {
		defer func() {
			for _, c := range closers {
				c.Close()
			}
			for _, p := range w.pending {
				bytesec.WipeAll(p.item.CipherKey, p.item.AuthKey)
			}
		}()
		if err != nil {
			return err
		}

		temp := w.temp
		if temp == nil {
			temp = &bytes.Buffer{}
		}
		prng, seed, err := w.newSchedulePRNG()
		if err != nil {
			return err
		}
		manifest.Payload = PayloadConfig{
			SchemeName: w.layout,
			PadMin:     w.padMin,
			PadMax:     w.padMax,
			PRNGName:   primitive.PrngChaCha20,
			PRNGSeed:   seed,
		}
		if _, err := mux.WriteAll(temp, entries, mux.Config{
			Scheme:   w.layout,
			PadMin:   w.padMin,
			PadMax:   w.padMax,
			Registry: w.cfg.registry,
			PRNG:     prng,
		}); err != nil {
			return err
		}
		for i, e := range entries {
			manifest.Items[i].InternalLength = e.InternalLength
			manifest.Items[i].AuthTag = e.AuthTag
		}

		ciphertext, tag, err := w.sealManifest(manifest, mcc, cipherKey, macKey)
		if err != nil {
			return err
		}
		mcc.AuthTag = tag

		header := &manifestHeader{
			FormatVersion: FormatVersion,
			SchemeName:    w.scheme,
			SchemeConfig:  mcc.marshal(w.scheme),
		}
		if err := bytesec.WriteLengthPrefixed(out, header.marshal()); err != nil {
			return err
		}
		if err := bytesec.WriteLengthPrefixed(out, ciphertext); err != nil {
			return err
		}

		if seeker, ok := temp.(io.Seeker); ok {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return err
			}
		}
		if _, err := io.Copy(out, temp); err != nil {
			return err
		}
		_, err = out.Write(magicTrailer)
		return err
	}(); cerr != nil {
		return cerr
	}

	w.written = true
	return nil
}

// WriteAndClose writes the package and closes out on completion, success
// or failure.
func (w *Writer) WriteAndClose(out io.WriteCloser) error {
	err := w.Write(out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}

// manifestPreKey resolves the scheme pre-key: the symmetric pre-key
// directly, or a fresh UM1 agreement producing the ephemeral public key
// the header must carry.
func (w *Writer) manifestPreKey() (preKey, ephemeralPub []byte, err error) {
	switch w.scheme {
	case SchemeSymmetricOnly:
		return append([]byte(nil), w.preKey...), nil, nil
	case SchemeUM1Hybrid:
		curve, err := w.cfg.registry.Curve(w.curveName)
		if err != nil {
			return nil, nil, err
		}
		return preKeyFromUM1(curve, w.recipientPub, w.senderPriv, w.cfg.entropy)
	default:
		return nil, nil, fmt.Errorf("%w: unknown manifest scheme %q", ErrConfigInvalid, w.scheme)
	}
}

func preKeyFromUM1(curve primitive.Curve, recipientPub, senderPriv []byte, entropy primitive.EntropySource) ([]byte, []byte, error) {
	secret, ephemeralPub, err := kex.UM1Initiate(curve, recipientPub, senderPriv, entropy.Reader())
	if err != nil {
		return nil, nil, err
	}
	return secret, ephemeralPub, nil
}

// setupManifestCrypto draws fresh manifest configurations, computes the
// key confirmation over the pre-key, and derives the working keys.
func (w *Writer) setupManifestCrypto(preKey, ephemeralPub []byte) (*manifestCrypto, []byte, []byte, error) {
	cipherCfg, err := freshCipherConfig(&w.cfg, w.cfg.manifestCipher)
	if err != nil {
		return nil, nil, nil, err
	}
	authCfg, err := freshMacConfig(&w.cfg, w.cfg.manifestMac)
	if err != nil {
		return nil, nil, nil, err
	}
	kdfCfg, err := freshKdfConfig(&w.cfg, w.cfg.kdf)
	if err != nil {
		return nil, nil, nil, err
	}
	confirmation, err := kex.NewConfirmation(w.cfg.registry, w.cfg.manifestMac, preKey, w.cfg.entropy)
	if err != nil {
		return nil, nil, nil, err
	}

	cipherKey, macKey, err := deriveManifestKeys(&w.cfg, preKey, cipherCfg, authCfg, kdfCfg)
	if err != nil {
		return nil, nil, nil, err
	}
	mcc := &manifestCrypto{
		Cipher:       cipherCfg,
		Auth:         authCfg,
		Kdf:          kdfCfg,
		Confirmation: confirmation,
		Curve:        w.curveName,
		EphemeralKey: ephemeralPub,
	}
	return mcc, cipherKey, macKey, nil
}

func deriveManifestKeys(cfg *config, preKey []byte, cipherCfg CipherConfig, authCfg MacConfig, kdfCfg KdfConfig) ([]byte, []byte, error) {
	ckLen, err := cfg.registry.CipherKeySize(cipherCfg)
	if err != nil {
		return nil, nil, err
	}
	mkLen, err := cfg.registry.MacKeySize(authCfg.Mac)
	if err != nil {
		return nil, nil, err
	}
	return kex.DeriveWorkingKeys(preKey, ckLen, mkLen, kdfCfg)
}

// prepareItems finalizes each pending item's cryptographic configuration
// and key arrangement and builds the mux entries. File-backed sources are
// opened here; the returned closers are closed by Write.
func (w *Writer) prepareItems() (*Manifest, []*mux.Entry, []io.Closer, error) {
	manifest := &Manifest{Items: make([]*PayloadItem, len(w.pending))}
	entries := make([]*mux.Entry, len(w.pending))
	var closers []io.Closer

	for i, p := range w.pending {
		it := p.item
		var err error
		if it.CipherCfg.Cipher == "" {
			if it.CipherCfg, err = freshCipherConfig(&w.cfg, w.cfg.itemCipher); err != nil {
				return nil, nil, closers, err
			}
		}
		if it.AuthCfg.Mac == "" {
			if it.AuthCfg, err = freshMacConfig(&w.cfg, w.cfg.itemMac); err != nil {
				return nil, nil, closers, err
			}
		}

		preKey, havePreKey := w.itemPreKeys[it.Identifier]
		if havePreKey {
			it.CipherKey, it.AuthKey = nil, nil
			if it.KdfCfg == nil {
				kdfCfg, err := freshKdfConfig(&w.cfg, w.cfg.kdf)
				if err != nil {
					return nil, nil, closers, err
				}
				it.KdfCfg = &kdfCfg
			}
		} else {
			it.KdfCfg = nil
			ckLen, err := w.cfg.registry.CipherKeySize(it.CipherCfg)
			if err != nil {
				return nil, nil, closers, err
			}
			mkLen, err := w.cfg.registry.MacKeySize(it.AuthCfg.Mac)
			if err != nil {
				return nil, nil, closers, err
			}
			if it.CipherKey, err = w.cfg.entropy.Bytes(ckLen); err != nil {
				return nil, nil, closers, err
			}
			if it.AuthKey, err = w.cfg.entropy.Bytes(mkLen); err != nil {
				return nil, nil, closers, err
			}
		}

		source := p.source
		if p.path != "" {
			f, err := os.Open(p.path)
			if err != nil {
				return nil, nil, closers, err
			}
			closers = append(closers, f)
			source = f
		}
		if source == nil {
			return nil, nil, closers, fmt.Errorf("%w: item %q has no source stream", ErrConfigInvalid, it.RelativePath)
		}

		manifest.Items[i] = it
		entries[i] = &mux.Entry{
			CipherCfg:      it.CipherCfg,
			AuthCfg:        it.AuthCfg,
			CipherKey:      it.CipherKey,
			AuthKey:        it.AuthKey,
			PreKey:         preKey,
			KdfCfg:         it.KdfCfg,
			Binding:        authenticatibleClone(it),
			Source:         source,
			ExternalLength: it.ExternalLength,
		}
	}
	return manifest, entries, closers, nil
}

func (w *Writer) newSchedulePRNG() (*primitive.DRBG, []byte, error) {
	seed, err := w.cfg.entropy.Bytes(primitive.DRBGSeedSize)
	if err != nil {
		return nil, nil, err
	}
	prng, err := primitive.NewDRBG(seed)
	if err != nil {
		return nil, nil, err
	}
	return prng, seed, nil
}

// sealManifest serializes the manifest through the Encrypt-then-MAC stack
// and binds the ciphertext length and the serialized cipher/auth/KDF
// configurations into the MAC transcript.
func (w *Writer) sealManifest(manifest *Manifest, mcc *manifestCrypto, cipherKey, macKey []byte) (ciphertext, tag []byte, err error) {
	macHash, err := w.cfg.registry.NewMac(mcc.Auth, macKey)
	if err != nil {
		return nil, nil, err
	}
	var buf bytes.Buffer
	macStream := streams.NewMacWriter(&buf, macHash)
	cipherStream, err := streams.NewEncryptStream(macStream, w.cfg.registry, mcc.Cipher, cipherKey)
	if err != nil {
		return nil, nil, err
	}

	plaintext := marshalManifest(manifest)
	defer bytesec.Wipe(plaintext)
	if _, err := cipherStream.Write(plaintext); err != nil {
		return nil, nil, err
	}
	if err := cipherStream.Finish(); err != nil {
		return nil, nil, err
	}

	if err := macStream.Update(bytesec.PutU32LE(uint32(buf.Len()))); err != nil {
		return nil, nil, err
	}
	for _, cfgBytes := range [][]byte{mcc.Cipher.Marshal(), mcc.Auth.Marshal(), mcc.Kdf.Marshal()} {
		if err := macStream.Update(cfgBytes); err != nil {
			return nil, nil, err
		}
	}
	return buf.Bytes(), macStream.Finish(), nil
}
