package hecodec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockCodec_InnerProductRoundTrip(t *testing.T) {
	ctx := context.Background()
	codec := NewMockCodec(4)

	a := []float32{1, 0, 0, 0}
	b := []float32{0.5, 0.5, 0, 0}

	encA, err := codec.EncodeVector(ctx, a)
	require.NoError(t, err)
	encB, err := codec.EncodeQuery(ctx, b)
	require.NoError(t, err)

	scalar, err := codec.InnerProduct(ctx, encA, encB)
	require.NoError(t, err)

	score, err := codec.DecryptScalar(ctx, scalar)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, score, 1e-6)
}

func TestMockCodec_SerializeDeserializeRoundTrip(t *testing.T) {
	ctx := context.Background()
	codec := NewMockCodec(3)

	cipher, err := codec.EncodeVector(ctx, []float32{1, 2, 3})
	require.NoError(t, err)

	data, err := codec.Serialize(cipher)
	require.NoError(t, err)

	restored, err := codec.Deserialize(data)
	require.NoError(t, err)

	other, err := codec.EncodeVector(ctx, []float32{1, 2, 3})
	require.NoError(t, err)

	scalar, err := codec.InnerProduct(ctx, restored, other)
	require.NoError(t, err)
	score, err := codec.DecryptScalar(ctx, scalar)
	require.NoError(t, err)
	assert.InDelta(t, 14.0, score, 1e-6)
}

func TestMockCodec_EncodeVector_WrongDimension(t *testing.T) {
	codec := NewMockCodec(4)
	_, err := codec.EncodeVector(context.Background(), []float32{1, 2})
	assert.Error(t, err)
}

func TestMockCodec_Deserialize_RejectsTooShort(t *testing.T) {
	codec := NewMockCodec(4)
	_, err := codec.Deserialize([]byte{1, 2, 3})
	var corrupt *ErrCorrupt
	assert.ErrorAs(t, err, &corrupt)
}

func TestMockCodec_Deserialize_RejectsMissingMagic(t *testing.T) {
	codec := NewMockCodec(2)
	cipher, err := codec.EncodeVector(context.Background(), []float32{1, 2})
	require.NoError(t, err)

	data, err := codec.Serialize(cipher)
	require.NoError(t, err)
	corrupted := append([]byte(nil), data...)
	corrupted[0] ^= 0xFF

	_, err = codec.Deserialize(corrupted)
	var corrupt *ErrCorrupt
	assert.ErrorAs(t, err, &corrupt)
}

func TestMockCodec_DecryptScalar_RejectsMalformedInput(t *testing.T) {
	codec := NewMockCodec(2)
	_, err := codec.DecryptScalar(context.Background(), EncryptedScalar([]byte{1, 2, 3}))
	var corrupt *ErrCorrupt
	assert.ErrorAs(t, err, &corrupt)
}

func TestMockCodec_InnerProduct_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	a := NewMockCodec(2)
	b := NewMockCodec(3)

	encA, err := a.EncodeVector(ctx, []float32{1, 2})
	require.NoError(t, err)
	encB, err := b.EncodeVector(ctx, []float32{1, 2, 3})
	require.NoError(t, err)

	_, err = a.InnerProduct(ctx, encA, encB)
	assert.Error(t, err)
}

func TestMockCodec_Dim(t *testing.T) {
	codec := NewMockCodec(7)
	assert.Equal(t, 7, codec.Dim())
}
