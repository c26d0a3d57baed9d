package service

import (
	"context"

	"github.com/securesearch/securesearch/internal/hecodec"
	"github.com/securesearch/securesearch/internal/models"
)

// DefaultCodecResolver returns the server-side Codec to use for a client's
// stored ciphertexts. Key-generation and key exchange for the real HE
// backend are out of scope: the server only ever receives a client's
// public key, never a relinearization key, so it cannot safely construct
// a production CKKSCodec capable of the rotate-and-add inner product CKKS
// requires. Every client therefore resolves to MockCodec, which is exact
// and requires no key material; CKKSCodec is the real-HE backend a
// deployment with full key exchange would wire in here instead. It has no
// tests of its own in this module.
func DefaultCodecResolver(_ context.Context, client *models.ClientRecord) (hecodec.Codec, error) {
	return hecodec.NewMockCodec(client.EmbeddingDim), nil
}
