package hecodec

import (
	"context"
	"fmt"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/schemes/ckks"
)

// CKKSCodec is the production Codec backed by the CKKS approximate-
// arithmetic homomorphic scheme. A single instance holds one client's key
// material and parameters; it must never be shared across clients.
type CKKSCodec struct {
	dim    int
	params ckks.Parameters

	encoder   *ckks.Encoder
	encryptor *rlwe.Encryptor
	decryptor *rlwe.Decryptor
	evaluator *ckks.Evaluator
}

// CKKSKeyMaterial bundles the key set a CKKSCodec instance needs. The
// secret key is held only client-side; a server-side instance is
// constructed with SecretKey left nil and DecryptScalar will then error.
type CKKSKeyMaterial struct {
	PublicKey       *rlwe.PublicKey
	SecretKey       *rlwe.SecretKey
	RelinearizationKey *rlwe.RelinearizationKey
}

// NewCKKSCodec builds a codec for vectors of dimension dim using the CKKS
// parameters described by polyModulusDegree (ring degree candidates:
// 4096, 8192, 16384, 32768) and scaleBits.
func NewCKKSCodec(dim, polyModulusDegree int, scaleBits int, keys CKKSKeyMaterial) (*CKKSCodec, error) {
	logN := 0
	for n := polyModulusDegree; n > 1; n >>= 1 {
		logN++
	}
	if 1<<logN != polyModulusDegree {
		return nil, fmt.Errorf("hecodec: poly_modulus_degree %d is not a power of two", polyModulusDegree)
	}

	params, err := ckks.NewParametersFromLiteral(ckks.ParametersLiteral{
		LogN:            logN,
		LogQ:            []int{55, 45, 45, 45},
		LogP:            []int{61},
		LogDefaultScale: scaleBits,
	})
	if err != nil {
		return nil, fmt.Errorf("hecodec: building ckks parameters: %w", err)
	}

	encoder := ckks.NewEncoder(params)

	var encryptor *rlwe.Encryptor
	if keys.PublicKey != nil {
		encryptor = rlwe.NewEncryptor(params, keys.PublicKey)
	}

	var decryptor *rlwe.Decryptor
	if keys.SecretKey != nil {
		decryptor = rlwe.NewDecryptor(params, keys.SecretKey)
	}

	evalKeys := rlwe.NewMemEvaluationKeySet(keys.RelinearizationKey)
	evaluator := ckks.NewEvaluator(params, evalKeys)

	return &CKKSCodec{
		dim:       dim,
		params:    params,
		encoder:   encoder,
		encryptor: encryptor,
		decryptor: decryptor,
		evaluator: evaluator,
	}, nil
}

func (c *CKKSCodec) Dim() int { return c.dim }

func (c *CKKSCodec) encode(plain []float32) (Ciphertext, error) {
	if len(plain) != c.dim {
		return nil, fmt.Errorf("hecodec: vector has dimension %d, want %d", len(plain), c.dim)
	}
	if c.encryptor == nil {
		return nil, fmt.Errorf("hecodec: codec instance has no public key, cannot encrypt")
	}

	values := make([]float64, len(plain))
	for i, f := range plain {
		values[i] = float64(f)
	}

	pt := ckks.NewPlaintext(c.params, c.params.MaxLevel())
	if err := c.encoder.Encode(values, pt); err != nil {
		return nil, fmt.Errorf("hecodec: encoding plaintext: %w", err)
	}

	ct, err := c.encryptor.EncryptNew(pt)
	if err != nil {
		return nil, fmt.Errorf("hecodec: encrypting plaintext: %w", err)
	}

	data, err := ct.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("hecodec: marshaling ciphertext: %w", err)
	}
	return Ciphertext(data), nil
}

func (c *CKKSCodec) EncodeVector(_ context.Context, plain []float32) (Ciphertext, error) {
	return c.encode(plain)
}

func (c *CKKSCodec) EncodeQuery(_ context.Context, plain []float32) (Ciphertext, error) {
	return c.encode(plain)
}

func (c *CKKSCodec) unmarshalCiphertext(data []byte) (*rlwe.Ciphertext, error) {
	ct := new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(data); err != nil {
		return nil, &ErrCorrupt{Reason: err.Error()}
	}
	return ct, nil
}

// InnerProduct multiplies the two ciphertexts coefficient-wise and sums
// the resulting slots homomorphically (rotate-and-add), producing a
// ciphertext whose first slot decrypts to the plaintext dot product.
func (c *CKKSCodec) InnerProduct(_ context.Context, a, b Ciphertext) (EncryptedScalar, error) {
	ctA, err := c.unmarshalCiphertext(a)
	if err != nil {
		return nil, err
	}
	ctB, err := c.unmarshalCiphertext(b)
	if err != nil {
		return nil, err
	}

	product, err := c.evaluator.MulRelinNew(ctA, ctB)
	if err != nil {
		return nil, fmt.Errorf("hecodec: homomorphic multiply: %w", err)
	}
	if err := c.evaluator.Rescale(product, product); err != nil {
		return nil, fmt.Errorf("hecodec: rescaling product: %w", err)
	}

	sum := product.CopyNew()
	for rot := 1; rot < c.dim; rot <<= 1 {
		rotated, err := c.evaluator.RotateNew(sum, rot)
		if err != nil {
			return nil, fmt.Errorf("hecodec: rotating accumulator: %w", err)
		}
		if err := c.evaluator.Add(sum, rotated, sum); err != nil {
			return nil, fmt.Errorf("hecodec: accumulating slots: %w", err)
		}
	}

	data, err := sum.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("hecodec: marshaling result: %w", err)
	}
	return EncryptedScalar(data), nil
}

func (c *CKKSCodec) Serialize(cipher Ciphertext) ([]byte, error) {
	return []byte(cipher), nil
}

func (c *CKKSCodec) Deserialize(data []byte) (Ciphertext, error) {
	if _, err := c.unmarshalCiphertext(data); err != nil {
		return nil, err
	}
	return Ciphertext(data), nil
}

func (c *CKKSCodec) EncodeScalarBytes(s EncryptedScalar) ([]byte, error) {
	return []byte(s), nil
}

func (c *CKKSCodec) DecodeScalarBytes(data []byte) (EncryptedScalar, error) {
	if _, err := c.unmarshalCiphertext(data); err != nil {
		return nil, err
	}
	return EncryptedScalar(data), nil
}

func (c *CKKSCodec) DecryptScalar(_ context.Context, s EncryptedScalar) (float32, error) {
	if c.decryptor == nil {
		return 0, fmt.Errorf("hecodec: codec instance has no secret key, cannot decrypt")
	}

	ct, err := c.unmarshalCiphertext(s)
	if err != nil {
		return 0, err
	}

	pt := c.decryptor.DecryptNew(ct)
	values := make([]float64, c.params.MaxSlots())
	if err := c.encoder.Decode(pt, values); err != nil {
		return 0, fmt.Errorf("hecodec: decoding plaintext: %w", err)
	}
	return float32(values[0]), nil
}
