// Package primitive provides the registry of cryptographic primitives the
// packaging core consumes: block and stream ciphers, MACs, hashes, KDFs,
// elliptic curves, and the deterministic CSPRNG used for payload
// scheduling.
//
// The registry is an explicit value, passed to whatever needs a primitive;
// there is no process-global lookup table. A Registry constructed by
// StandardRegistry knows every algorithm this module supports; the zero
// Registry knows none, and there is no API for adding or removing
// algorithms.
//
// # Algorithm families
//
//   - Block ciphers: AES, Twofish, Blowfish, CAST5, XTEA, 3DES.
//   - Block modes: CTR, CFB, OFB, CBC (with padding), CTS-CBC, GCM.
//     GCM is exposed as a bare primitive only; the packaging streams
//     reject authenticated modes.
//   - Stream ciphers: XSalsa20, Salsa20, ChaCha20.
//   - MACs: HMAC over SHA-2/SHA-3, keyed BLAKE2b, Poly1305-AES.
//   - KDFs: scrypt (default), PBKDF2, HKDF.
//   - Curves: secp256r1, secp384r1, secp521r1, Curve25519.
//
// Key material handed to constructors is copied where a primitive needs to
// retain it; callers keep ownership of their slices and are expected to
// wipe them.
package primitive
