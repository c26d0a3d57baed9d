package hecodec

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// mockMagic tags mock-codec ciphertexts so corrupted or foreign bytes are
// rejected instead of silently misinterpreted.
const mockMagic = 0x4d4f434b // "MOCK"

// MockCodec is the deterministic HeCodec used by default and throughout
// the test suite. It stores the plaintext vector directly (length-prefixed,
// magic-tagged) rather than performing real encryption, so inner products
// are exact rather than approximate. It exists to make SearchEngine and
// ClientPipeline testable without lattice cryptography in the loop; it
// provides no confidentiality and must never be selected in production.
type MockCodec struct {
	dim int
}

// NewMockCodec returns a MockCodec configured for vectors of dimension dim.
func NewMockCodec(dim int) *MockCodec {
	return &MockCodec{dim: dim}
}

func (c *MockCodec) Dim() int { return c.dim }

func (c *MockCodec) encode(plain []float32) (Ciphertext, error) {
	if len(plain) != c.dim {
		return nil, fmt.Errorf("hecodec: vector has dimension %d, want %d", len(plain), c.dim)
	}

	buf := make([]byte, 8+4*len(plain))
	binary.LittleEndian.PutUint32(buf[0:4], mockMagic)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(plain)))
	for i, f := range plain {
		binary.LittleEndian.PutUint32(buf[8+4*i:12+4*i], math.Float32bits(f))
	}
	return Ciphertext(buf), nil
}

func (c *MockCodec) decode(cipher Ciphertext) ([]float32, error) {
	if len(cipher) < 8 {
		return nil, &ErrCorrupt{Reason: "too short to contain a header"}
	}
	if binary.LittleEndian.Uint32(cipher[0:4]) != mockMagic {
		return nil, &ErrCorrupt{Reason: "missing mock codec magic"}
	}
	n := int(binary.LittleEndian.Uint32(cipher[4:8]))
	if len(cipher) != 8+4*n {
		return nil, &ErrCorrupt{Reason: "length field does not match payload size"}
	}

	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(cipher[8+4*i : 12+4*i]))
	}
	return out, nil
}

func (c *MockCodec) EncodeVector(_ context.Context, plain []float32) (Ciphertext, error) {
	return c.encode(plain)
}

func (c *MockCodec) EncodeQuery(_ context.Context, plain []float32) (Ciphertext, error) {
	return c.encode(plain)
}

// InnerProduct recovers both plaintext vectors (legitimate here: a mock
// codec run server-side is test/dev infrastructure, not a confidentiality
// boundary) and computes the exact dot product, then re-encodes the
// scalar result behind the same magic-tagged framing.
func (c *MockCodec) InnerProduct(_ context.Context, a, b Ciphertext) (EncryptedScalar, error) {
	va, err := c.decode(a)
	if err != nil {
		return nil, err
	}
	vb, err := c.decode(b)
	if err != nil {
		return nil, err
	}
	if len(va) != len(vb) {
		return nil, fmt.Errorf("hecodec: operand dimension mismatch %d vs %d", len(va), len(vb))
	}

	var sum float64
	for i := range va {
		sum += float64(va[i]) * float64(vb[i])
	}

	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], mockMagic)
	binary.LittleEndian.PutUint64(buf[4:12], math.Float64bits(sum))
	return EncryptedScalar(buf), nil
}

func (c *MockCodec) Serialize(cipher Ciphertext) ([]byte, error) {
	return []byte(cipher), nil
}

func (c *MockCodec) Deserialize(data []byte) (Ciphertext, error) {
	if _, err := c.decode(Ciphertext(data)); err != nil {
		return nil, err
	}
	return Ciphertext(data), nil
}

func (c *MockCodec) EncodeScalarBytes(s EncryptedScalar) ([]byte, error) {
	return []byte(s), nil
}

func (c *MockCodec) DecodeScalarBytes(data []byte) (EncryptedScalar, error) {
	if len(data) != 12 || binary.LittleEndian.Uint32(data[0:4]) != mockMagic {
		return nil, &ErrCorrupt{Reason: "malformed encrypted scalar"}
	}
	return EncryptedScalar(data), nil
}

func (c *MockCodec) DecryptScalar(_ context.Context, s EncryptedScalar) (float32, error) {
	if len(s) != 12 || binary.LittleEndian.Uint32(s[0:4]) != mockMagic {
		return 0, &ErrCorrupt{Reason: "malformed encrypted scalar"}
	}
	return float32(math.Float64frombits(binary.LittleEndian.Uint64(s[4:12]))), nil
}
