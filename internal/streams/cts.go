package streams

import (
	"crypto/cipher"

	"github.com/zenith-nz/ObscurCore/internal/cerrors"
)

// CTS-CBC (ciphertext stealing, swapped final blocks). The final partial
// plaintext block is zero-extended, encrypted under the CBC chain, and the
// two final ciphertext blocks are emitted swapped with the second truncated
// to the partial length, so ciphertext length equals plaintext length.
//
// Both directions lag up to two operations; inputs shorter than one block
// (and longer than zero) cannot be encoded and fail as incomplete.

func newCTSEngine(block cipher.Block, iv []byte, encrypt bool) Engine {
	op := block.BlockSize()
	if encrypt {
		return &ctsEncryptEngine{mode: cipher.NewCBCEncrypter(block, iv), op: op}
	}
	prev := make([]byte, op)
	copy(prev, iv)
	return &ctsDecryptEngine{block: block, op: op, prev: prev}
}

type ctsEncryptEngine struct {
	mode cipher.BlockMode
	op   int
	q    [][]byte // up to two held plaintext blocks
}

func (e *ctsEncryptEngine) OperationSize() int { return e.op }

func (e *ctsEncryptEngine) push(in []byte) {
	b := make([]byte, e.op)
	copy(b, in)
	e.q = append(e.q, b)
}

func (e *ctsEncryptEngine) Process(in, out []byte) (int, error) {
	n := 0
	if len(e.q) == 2 {
		e.mode.CryptBlocks(out[:e.op], e.q[0])
		e.q = e.q[1:]
		n = e.op
	}
	e.push(in)
	return n, nil
}

func (e *ctsEncryptEngine) ProcessFinal(in, out []byte) (int, error) {
	n := 0
	if len(in) == e.op {
		m, err := e.Process(in, out)
		if err != nil {
			return 0, err
		}
		n, in = m, nil
	}
	r := len(in)

	if r == 0 {
		switch len(e.q) {
		case 0:
			return n, nil
		case 1:
			e.mode.CryptBlocks(out[n:n+e.op], e.q[0])
			return n + e.op, nil
		default:
			cA := make([]byte, e.op)
			cB := make([]byte, e.op)
			e.mode.CryptBlocks(cA, e.q[0])
			e.mode.CryptBlocks(cB, e.q[1])
			copy(out[n:], cB)
			copy(out[n+e.op:], cA)
			return n + 2*e.op, nil
		}
	}

	if len(e.q) == 0 {
		return 0, cerrors.ErrIncompleteBlock
	}
	if len(e.q) == 2 {
		e.mode.CryptBlocks(out[n:n+e.op], e.q[0])
		e.q = e.q[1:]
		n += e.op
	}
	cA := make([]byte, e.op)
	e.mode.CryptBlocks(cA, e.q[0])
	d := make([]byte, e.op)
	copy(d, in)
	cB := make([]byte, e.op)
	e.mode.CryptBlocks(cB, d)
	copy(out[n:], cB)
	copy(out[n+e.op:], cA[:r])
	return n + e.op + r, nil
}

type ctsDecryptEngine struct {
	block cipher.Block
	op    int
	prev  []byte
	q     [][]byte // up to two held ciphertext blocks
}

func (e *ctsDecryptEngine) OperationSize() int { return e.op }

func (e *ctsDecryptEngine) push(in []byte) {
	b := make([]byte, e.op)
	copy(b, in)
	e.q = append(e.q, b)
}

// decryptBlock is one raw CBC step: D(ct) xor chain.
func (e *ctsDecryptEngine) decryptBlock(out, ct, chain []byte) {
	tmp := make([]byte, e.op)
	e.block.Decrypt(tmp, ct)
	for i := range tmp {
		out[i] = tmp[i] ^ chain[i]
	}
}

func (e *ctsDecryptEngine) Process(in, out []byte) (int, error) {
	n := 0
	if len(e.q) == 2 {
		e.decryptBlock(out[:e.op], e.q[0], e.prev)
		e.prev = e.q[0]
		e.q = e.q[1:]
		n = e.op
	}
	e.push(in)
	return n, nil
}

func (e *ctsDecryptEngine) ProcessFinal(in, out []byte) (int, error) {
	n := 0
	if len(in) == e.op {
		m, err := e.Process(in, out)
		if err != nil {
			return 0, err
		}
		n, in = m, nil
	}
	r := len(in)

	if r == 0 {
		switch len(e.q) {
		case 0:
			return n, nil
		case 1:
			e.decryptBlock(out[n:n+e.op], e.q[0], e.prev)
			return n + e.op, nil
		default:
			// Stream order is cB, cA with the chain cA feeding cB.
			cB, cA := e.q[0], e.q[1]
			e.decryptBlock(out[n:n+e.op], cA, e.prev)
			e.decryptBlock(out[n+e.op:n+2*e.op], cB, cA)
			return n + 2*e.op, nil
		}
	}

	if len(e.q) == 0 {
		return 0, cerrors.ErrIncompleteBlock
	}
	if len(e.q) == 2 {
		e.decryptBlock(out[n:n+e.op], e.q[0], e.prev)
		e.prev = e.q[0]
		e.q = e.q[1:]
		n += e.op
	}
	cB := e.q[0]
	// X = D(cB) = (tail-zeroed plaintext block) xor cA, so the stolen
	// tail of cA is recoverable from X.
	x := make([]byte, e.op)
	e.block.Decrypt(x, cB)
	cA := make([]byte, e.op)
	copy(cA, in[:r])
	copy(cA[r:], x[r:])
	e.decryptBlock(out[n:n+e.op], cA, e.prev)
	for i := 0; i < r; i++ {
		out[n+e.op+i] = x[i] ^ cA[i]
	}
	return n + e.op + r, nil
}
