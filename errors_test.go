package obscurcore

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestSentinels_MatchWrapped(t *testing.T) {
	sentinels := []error{
		ErrConfigInvalid,
		ErrFormatInvalid,
		ErrItemKeyMissing,
		ErrCiphertextAuth,
		ErrIncompleteBlock,
		ErrPaddingCorrupt,
		ErrLengthMismatch,
	}
	for _, s := range sentinels {
		wrapped := fmt.Errorf("context: %w", s)
		if !errors.Is(wrapped, s) {
			t.Errorf("errors.Is failed for wrapped %v", s)
		}
	}
	// Distinct sentinels never match each other.
	if errors.Is(ErrConfigInvalid, ErrFormatInvalid) {
		t.Error("distinct sentinels compared equal")
	}
}

func TestMarkerInterface(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", ErrCiphertextAuth)
	var oe ObscurCoreError
	if !errors.As(wrapped, &oe) {
		t.Error("library error does not satisfy the marker interface")
	}
	if errors.As(io.ErrUnexpectedEOF, &oe) {
		t.Error("a plain I/O error satisfied the marker interface")
	}
}
