package obscurcore

import (
	"io"

	"github.com/zenith-nz/ObscurCore/internal/primitive"
)

// config holds the tunable choices shared by writers and readers.
type config struct {
	registry *primitive.Registry
	entropy  primitive.EntropySource

	manifestCipher string
	manifestMac    string
	kdf            string

	itemCipher string
	itemMac    string
}

func defaultConfig() config {
	return config{
		registry:       primitive.StandardRegistry(),
		manifestCipher: primitive.CipherXSalsa20,
		manifestMac:    primitive.MacBLAKE2b256,
		kdf:            primitive.KdfScrypt,
		itemCipher:     primitive.CipherXSalsa20,
		itemMac:        primitive.MacPoly1305AES,
	}
}

// Registry is the lookup table from algorithm names to primitive
// constructors.
type Registry = primitive.Registry

// StandardRegistry returns a registry populated with every algorithm this
// module supports.
func StandardRegistry() *Registry {
	return primitive.StandardRegistry()
}

// Option configures a Writer or Reader.
type Option func(*config)

// WithRegistry substitutes a custom primitive registry.
func WithRegistry(reg *Registry) Option {
	return func(c *config) {
		c.registry = reg
	}
}

// WithEntropy substitutes the random source used for keys, IVs, salts, and
// scheduling seeds. Intended for tests; production callers should leave
// the crypto/rand default alone.
func WithEntropy(r io.Reader) Option {
	return func(c *config) {
		c.entropy = primitive.NewEntropySource(r)
	}
}

// WithManifestCipher selects the manifest cipher algorithm.
func WithManifestCipher(name string) Option {
	return func(c *config) {
		c.manifestCipher = name
	}
}

// WithManifestMAC selects the manifest MAC algorithm.
func WithManifestMAC(name string) Option {
	return func(c *config) {
		c.manifestMac = name
	}
}

// WithKDF selects the KDF used to stretch pre-keys into working keys.
func WithKDF(name string) Option {
	return func(c *config) {
		c.kdf = name
	}
}

// WithItemCipher selects the default cipher for newly added items.
func WithItemCipher(name string) Option {
	return func(c *config) {
		c.itemCipher = name
	}
}

// WithItemMAC selects the default MAC for newly added items.
func WithItemMAC(name string) Option {
	return func(c *config) {
		c.itemMac = name
	}
}
