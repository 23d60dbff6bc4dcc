package primitive

import (
	"crypto/rand"
	"fmt"
	"io"
)

// EntropySource supplies random bytes for key, IV, and salt generation.
// The zero value reads from crypto/rand.
type EntropySource struct {
	r io.Reader
}

// NewEntropySource wraps r; a nil reader means crypto/rand.
func NewEntropySource(r io.Reader) EntropySource {
	return EntropySource{r: r}
}

func (e EntropySource) reader() io.Reader {
	if e.r != nil {
		return e.r
	}
	return rand.Reader
}

// Reader exposes the underlying random stream.
func (e EntropySource) Reader() io.Reader {
	return e.reader()
}

// Bytes returns n fresh random bytes.
func (e EntropySource) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(e.reader(), b); err != nil {
		return nil, fmt.Errorf("entropy read: %w", err)
	}
	return b, nil
}
