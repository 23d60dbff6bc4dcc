package streams

import (
	"errors"
	"hash"
	"io"
)

// MacStream is a pass-through decorator that feeds every byte crossing it
// into a keyed MAC. Extra context can be mixed in with Update before the
// stream is finished; the tag is available only after Finish.
type MacStream struct {
	uw io.Writer
	ur io.Reader

	mac      hash.Hash
	tag      []byte
	finished bool

	bytesTransferred uint64
}

// NewMacWriter decorates under in write mode.
func NewMacWriter(under io.Writer, mac hash.Hash) *MacStream {
	return &MacStream{uw: under, mac: mac}
}

// NewMacReader decorates under in read mode.
func NewMacReader(under io.Reader, mac hash.Hash) *MacStream {
	return &MacStream{ur: under, mac: mac}
}

// Write feeds p to the MAC and forwards it to the underlying writer.
func (m *MacStream) Write(p []byte) (int, error) {
	if m.uw == nil {
		return 0, errors.New("mac stream is read-only")
	}
	if m.finished {
		return 0, ErrStreamFinished
	}
	m.mac.Write(p)
	n, err := m.uw.Write(p)
	m.bytesTransferred += uint64(n)
	return n, err
}

// Read pulls from the underlying reader and feeds whatever arrived to the
// MAC.
func (m *MacStream) Read(p []byte) (int, error) {
	if m.ur == nil {
		return 0, errors.New("mac stream is write-only")
	}
	if m.finished {
		return 0, io.EOF
	}
	n, err := m.ur.Read(p)
	if n > 0 {
		m.mac.Write(p[:n])
		m.bytesTransferred += uint64(n)
	}
	return n, err
}

// Update mixes extra bytes into the MAC without transferring them. It is
// how serialized configuration and metadata get bound to a ciphertext.
func (m *MacStream) Update(p []byte) error {
	if m.finished {
		return ErrStreamFinished
	}
	m.mac.Write(p)
	return nil
}

// Finish computes the tag. Finishing twice returns the same tag.
func (m *MacStream) Finish() []byte {
	if !m.finished {
		m.tag = m.mac.Sum(nil)
		m.finished = true
	}
	return m.tag
}

// Tag returns the tag computed by Finish, or nil before it.
func (m *MacStream) Tag() []byte {
	return m.tag
}

// BytesTransferred reports how many bytes crossed the stream (Update bytes
// excluded).
func (m *MacStream) BytesTransferred() uint64 {
	return m.bytesTransferred
}
