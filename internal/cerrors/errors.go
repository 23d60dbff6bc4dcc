// Package cerrors provides shared error values for the ObscurCore packaging
// core. They live in an internal package so that the pipeline packages and
// the public surface can share the same sentinels without an import cycle;
// the root package re-exports them.
package cerrors

// Error is the concrete type behind every sentinel. Its marker method is
// what the root package's ObscurCoreError interface matches, so callers
// can distinguish library errors from passed-through I/O failures with
// errors.As.
type Error string

func (e Error) Error() string { return string(e) }

// ObscurCoreError implements the root package's marker interface.
func (e Error) ObscurCoreError() {}

// Sentinel errors for errors.Is() checks
const (
	// ErrConfigInvalid is returned for any configuration that cannot
	// produce a well-defined pipeline: unknown algorithm or scheme names,
	// missing required fields, a padding/mode combination that does not
	// work, an authenticated mode inside a cipher stream, mismatched
	// curves, or KDF parameters outside policy.
	ErrConfigInvalid = Error("invalid configuration")

	// ErrFormatInvalid is returned when the package bytes do not parse:
	// magic tag mismatch, truncated length field, or a declared length
	// exceeding the remaining stream.
	ErrFormatInvalid = Error("package format invalid")

	// ErrItemKeyMissing is returned when a payload item has neither
	// embedded keys nor a resolvable pre-key.
	ErrItemKeyMissing = Error("item key missing")

	// ErrCiphertextAuth is returned when a computed MAC differs from the
	// stored tag, for the manifest or for a payload item.
	ErrCiphertextAuth = Error("ciphertext authentication failed")

	// ErrIncompleteBlock is returned when the end of a stream is reached
	// mid-operation in a mode that cannot process partial blocks.
	ErrIncompleteBlock = Error("incomplete block at end of stream")

	// ErrPaddingCorrupt is returned when final-block padding does not
	// parse under the configured padding scheme.
	ErrPaddingCorrupt = Error("padding corrupt")

	// ErrLengthMismatch is returned when a declared item length disagrees
	// with the bytes observed.
	ErrLengthMismatch = Error("length mismatch")
)
