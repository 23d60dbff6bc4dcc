package streams

import (
	"errors"
	"fmt"
	"io"

	"github.com/zenith-nz/ObscurCore/internal/primitive"
)

// Ring sizing: writers buffer generously to batch underlying writes;
// readers only need room for one emission plus slack.
const (
	encryptRingOps = 256
	decryptRingOps = 4
)

// ErrStreamFinished is returned for writes after a stream was finished.
var ErrStreamFinished = errors.New("cipher stream already finished")

// CipherStream decorates an underlying stream with a cipher engine. In
// write mode plaintext goes in and ciphertext is pushed to the underlying
// writer; in read mode ciphertext is pulled from the underlying reader and
// plaintext comes out. A stream operates in exactly one direction.
type CipherStream struct {
	engine Engine
	op     int

	uw io.Writer
	ur io.Reader

	opBuf   []byte
	opLen   int
	tempBuf []byte
	ring    *ringBuffer

	finished bool
	readEOF  bool

	bytesIn  uint64
	bytesOut uint64
}

// NewEncryptStream builds a write-mode stream pushing ciphertext to under.
// Authenticated cipher modes are rejected before any I/O occurs.
func NewEncryptStream(under io.Writer, reg *primitive.Registry, cfg primitive.CipherConfig, key []byte) (*CipherStream, error) {
	engine, err := NewEngine(reg, cfg, true, key)
	if err != nil {
		return nil, err
	}
	op := engine.OperationSize()
	return &CipherStream{
		engine:  engine,
		op:      op,
		uw:      under,
		opBuf:   make([]byte, op),
		tempBuf: make([]byte, 3*op),
		ring:    newRingBuffer(op * encryptRingOps),
	}, nil
}

// NewDecryptWriter builds a write-mode stream that accepts ciphertext and
// pushes plaintext to under. It is the push-driven mirror of
// NewDecryptStream, used where an outer loop feeds ciphertext in measured
// chunks.
func NewDecryptWriter(under io.Writer, reg *primitive.Registry, cfg primitive.CipherConfig, key []byte) (*CipherStream, error) {
	engine, err := NewEngine(reg, cfg, false, key)
	if err != nil {
		return nil, err
	}
	op := engine.OperationSize()
	return &CipherStream{
		engine:  engine,
		op:      op,
		uw:      under,
		opBuf:   make([]byte, op),
		tempBuf: make([]byte, 3*op),
		ring:    newRingBuffer(op * decryptRingOps),
	}, nil
}

// NewDecryptStream builds a read-mode stream pulling ciphertext from under.
func NewDecryptStream(under io.Reader, reg *primitive.Registry, cfg primitive.CipherConfig, key []byte) (*CipherStream, error) {
	engine, err := NewEngine(reg, cfg, false, key)
	if err != nil {
		return nil, err
	}
	op := engine.OperationSize()
	return &CipherStream{
		engine:  engine,
		op:      op,
		ur:      under,
		opBuf:   make([]byte, op),
		tempBuf: make([]byte, 3*op),
		ring:    newRingBuffer(op * decryptRingOps),
	}, nil
}

// BytesIn reports bytes accepted from the caller (write mode) or consumed
// from the underlying stream (read mode).
func (s *CipherStream) BytesIn() uint64 { return s.bytesIn }

// BytesOut reports bytes pushed to the underlying stream (write mode) or
// returned to the caller (read mode).
func (s *CipherStream) BytesOut() uint64 { return s.bytesOut }

// Write passes plaintext through the engine in whole-operation strides; a
// trailing partial operation is retained for the next call or for Finish.
func (s *CipherStream) Write(p []byte) (int, error) {
	if s.uw == nil {
		return 0, errors.New("cipher stream is read-only")
	}
	if s.finished {
		return 0, ErrStreamFinished
	}
	total := 0
	for len(p) > 0 {
		n := copy(s.opBuf[s.opLen:], p)
		s.opLen += n
		p = p[n:]
		total += n
		if s.opLen == s.op {
			m, err := s.engine.Process(s.opBuf, s.tempBuf)
			if err != nil {
				return total, err
			}
			s.opLen = 0
			if err := s.emit(s.tempBuf[:m]); err != nil {
				return total, err
			}
		}
	}
	s.bytesIn += uint64(total)
	return total, nil
}

// emit queues engine output and drains the ring to the underlying writer
// whenever spare capacity runs low, always in whole operations.
func (s *CipherStream) emit(b []byte) error {
	for len(b) > 0 {
		if s.ring.Spare() < len(b) {
			if err := s.drain(false); err != nil {
				return err
			}
		}
		n := s.ring.Spare()
		if n > len(b) {
			n = len(b)
		}
		s.ring.put(b[:n])
		b = b[n:]
	}
	if s.ring.Spare() < s.op {
		return s.drain(false)
	}
	return nil
}

func (s *CipherStream) drain(all bool) error {
	n := s.ring.Len()
	if !all {
		n -= n % s.op
	}
	if n == 0 {
		return nil
	}
	buf := make([]byte, n)
	s.ring.take(buf)
	if _, err := s.uw.Write(buf); err != nil {
		return fmt.Errorf("cipher stream write: %w", err)
	}
	s.bytesOut += uint64(n)
	return nil
}

// Flush drains all buffered whole-operation output to the underlying
// writer. The retained partial operation stays put; only Finish moves it.
func (s *CipherStream) Flush() error {
	if s.uw == nil {
		return errors.New("cipher stream is read-only")
	}
	if s.finished {
		return nil
	}
	return s.drain(true)
}

// Finish flushes the retained partial through the engine's finalization
// and drains everything to the underlying stream. Finishing twice is a
// no-op; the underlying stream is never closed.
func (s *CipherStream) Finish() error {
	if s.finished {
		return nil
	}
	if s.uw == nil {
		return s.finishRead()
	}
	m, err := s.engine.ProcessFinal(s.opBuf[:s.opLen], s.tempBuf)
	if err != nil {
		return err
	}
	s.opLen = 0
	if err := s.emit(s.tempBuf[:m]); err != nil {
		return err
	}
	if err := s.drain(true); err != nil {
		return err
	}
	s.finished = true
	return nil
}

// Close finishes the stream. It does not close the underlying stream.
func (s *CipherStream) Close() error {
	return s.Finish()
}

// Read pulls ciphertext one operation at a time, processes it, and serves
// plaintext. Engine output that does not fit the caller's buffer spills
// into the ring and is served on subsequent calls.
func (s *CipherStream) Read(p []byte) (int, error) {
	if s.ur == nil {
		return 0, errors.New("cipher stream is write-only")
	}
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if s.ring.Len() > 0 {
			n := s.ring.take(p)
			s.bytesOut += uint64(n)
			return n, nil
		}
		if s.finished {
			return 0, io.EOF
		}
		if err := s.fillOp(); err != nil {
			return 0, err
		}
		if s.opLen == s.op && !s.readEOF {
			m, err := s.engine.Process(s.opBuf, s.tempBuf)
			if err != nil {
				return 0, err
			}
			s.opLen = 0
			s.ring.put(s.tempBuf[:m])
			continue
		}
		// End of the underlying stream: finalize whatever remains.
		if err := s.finishRead(); err != nil {
			return 0, err
		}
	}
}

// fillOp reads from the underlying stream until the operation buffer is
// full or the stream ends.
func (s *CipherStream) fillOp() error {
	for s.opLen < s.op && !s.readEOF {
		n, err := s.ur.Read(s.opBuf[s.opLen:s.op])
		s.opLen += n
		s.bytesIn += uint64(n)
		if err == io.EOF {
			s.readEOF = true
		} else if err != nil {
			return fmt.Errorf("cipher stream read: %w", err)
		}
	}
	return nil
}

func (s *CipherStream) finishRead() error {
	m, err := s.engine.ProcessFinal(s.opBuf[:s.opLen], s.tempBuf)
	if err != nil {
		return err
	}
	s.opLen = 0
	s.ring.put(s.tempBuf[:m])
	s.finished = true
	return nil
}
