package obscurcore

import "github.com/zenith-nz/ObscurCore/internal/cerrors"

// ObscurCoreError is implemented by all errors originating in this
// library. Use errors.As to distinguish library failures from errors
// passed through from underlying streams:
//
//	var oe obscurcore.ObscurCoreError
//	if errors.As(err, &oe) {
//	    // a packaging failure, not an I/O one
//	}
type ObscurCoreError interface {
	error
	ObscurCoreError() // marker method
}

// Sentinel errors for errors.Is() checks. Every failure of a package
// operation is fatal for that operation: a reader stops at the first
// failure (item sinks keep any plaintext already written to them), and a
// writer that fails mid-write leaves the output for the caller to discard.
//
// Authentication failures are reported at manifest-or-payload granularity
// only; messages never identify the offending byte, item, or field.
var (
	// ErrConfigInvalid reports a configuration that cannot produce a
	// well-defined pipeline: an unknown scheme or algorithm name, a
	// missing required field, padding mismatched with its mode, an
	// authenticated cipher mode in a packaging stream, mismatched
	// curves, or KDF parameters outside policy.
	ErrConfigInvalid = cerrors.ErrConfigInvalid

	// ErrFormatInvalid reports package bytes that do not parse: a magic
	// tag mismatch, a truncated length field, or a declared length
	// exceeding the remaining stream.
	ErrFormatInvalid = cerrors.ErrFormatInvalid

	// ErrItemKeyMissing reports a payload item with neither embedded
	// working keys nor a resolvable pre-key.
	ErrItemKeyMissing = cerrors.ErrItemKeyMissing

	// ErrCiphertextAuth reports a MAC tag mismatch, for the manifest or
	// for a payload item. The comparison is constant time.
	ErrCiphertextAuth = cerrors.ErrCiphertextAuth

	// ErrIncompleteBlock reports end of stream mid-operation in a mode
	// that cannot process partial blocks.
	ErrIncompleteBlock = cerrors.ErrIncompleteBlock

	// ErrPaddingCorrupt reports final-block padding that does not parse
	// under the configured padding scheme.
	ErrPaddingCorrupt = cerrors.ErrPaddingCorrupt

	// ErrLengthMismatch reports a declared item length disagreeing with
	// the bytes observed.
	ErrLengthMismatch = cerrors.ErrLengthMismatch
)
