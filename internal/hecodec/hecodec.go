// Package hecodec defines the homomorphic-encryption capability the
// search engine depends on, plus two implementations: a deterministic
// mock used by default and in tests, and a real CKKS-backed codec for
// production deployments.
package hecodec

import "context"

// Ciphertext is an opaque encrypted vector. Only a Codec may interpret
// its bytes.
type Ciphertext []byte

// EncryptedScalar is an opaque encrypted inner-product result.
type EncryptedScalar []byte

// Codec is the capability contract the search engine depends on. It
// never exposes a way to recover a plaintext vector from a ciphertext
// without the client's secret key.
type Codec interface {
	// EncodeVector encrypts a stored embedding. Client-side only.
	EncodeVector(ctx context.Context, plain []float32) (Ciphertext, error)
	// EncodeQuery encrypts a query vector. Client-side only.
	EncodeQuery(ctx context.Context, plain []float32) (Ciphertext, error)
	// InnerProduct homomorphically computes the dot product of two
	// encrypted vectors without ever decrypting either operand.
	InnerProduct(ctx context.Context, a, b Ciphertext) (EncryptedScalar, error)
	// Serialize/Deserialize round-trip a Ciphertext to/from storage bytes.
	Serialize(c Ciphertext) ([]byte, error)
	Deserialize(data []byte) (Ciphertext, error)
	// EncodeScalarBytes/DecodeScalarBytes round-trip an EncryptedScalar
	// to/from storage or wire bytes.
	EncodeScalarBytes(s EncryptedScalar) ([]byte, error)
	DecodeScalarBytes(data []byte) (EncryptedScalar, error)
	// DecryptScalar recovers the plaintext float from an encrypted
	// scalar. Client-side only; requires the secret key held by the
	// implementation instance.
	DecryptScalar(ctx context.Context, s EncryptedScalar) (float32, error)
	// Dim reports the vector dimension this codec instance is configured
	// for.
	Dim() int
}

// ErrCorrupt is returned by Deserialize/DecodeScalarBytes when the input
// bytes cannot possibly be a value this codec produced.
type ErrCorrupt struct {
	Reason string
}

func (e *ErrCorrupt) Error() string { return "hecodec: corrupt ciphertext: " + e.Reason }
