// Package clientpipeline implements the client side of the search
// protocol: deterministic text embedding, local LSH hashing against a
// client's own planes, homomorphic encryption of vectors and queries,
// and decryption/ranking of the encrypted scores the server returns. No
// plaintext vector or score ever crosses the wire.
package clientpipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/securesearch/securesearch/internal/dto"
	"github.com/securesearch/securesearch/internal/hecodec"
	"github.com/securesearch/securesearch/internal/lshplanes"
)

// Session is the durable client-side state produced by Initialize and
// required by every later AddEmbedding/Search call. A CLI persists this
// to disk between invocations; a long-lived client keeps it in memory.
type Session struct {
	ServerURL     string    `json:"server_url"`
	APIKey        string    `json:"api_key"`
	ClientID      uuid.UUID `json:"client_id"`
	EmbeddingDim  int       `json:"embedding_dim"`
	NumTables     int       `json:"num_tables"`
	HashSize      int       `json:"hash_size"`
	NumCandidates int       `json:"num_candidates"`
	RandomPlanes  []byte    `json:"random_planes"`
}

// Pipeline is a ready-to-use client bound to one server and one
// initialized client identity.
type Pipeline struct {
	session   Session
	planes    *lshplanes.Planes
	codec     hecodec.Codec
	transport *transport
}

// InitializeParams configures a new client registration.
type InitializeParams struct {
	DisplayName       string
	EmbeddingDim      int
	NumTables         int
	HashSize          int
	NumCandidates     int
	PolyModulusDegree int
	Scale             int64
	PublicKey         []byte
}

// Initialize registers a new client (or re-initializes an existing one,
// if apiKey is non-empty and still valid) against serverURL and returns a
// ready-to-use Pipeline.
func Initialize(ctx context.Context, serverURL, apiKey string, params InitializeParams) (*Pipeline, error) {
	t := newTransport(serverURL, apiKey)

	req := dto.InitializeRequest{
		DisplayName: params.DisplayName,
		ContextParams: dto.ContextParams{
			PublicKey:         base64.StdEncoding.EncodeToString(params.PublicKey),
			Scheme:            "CKKS",
			PolyModulusDegree: params.PolyModulusDegree,
			Scale:             params.Scale,
		},
		EmbeddingDim: params.EmbeddingDim,
		LshConfig: dto.LshConfig{
			NumTables:     params.NumTables,
			HashSize:      params.HashSize,
			NumCandidates: params.NumCandidates,
		},
	}

	var resp dto.InitializeResponse
	if err := t.post(ctx, "/initialize", req, &resp); err != nil {
		return nil, err
	}

	planeBytes, err := base64.StdEncoding.DecodeString(resp.RandomPlanes)
	if err != nil {
		return nil, fmt.Errorf("clientpipeline: decoding random_planes: %w", err)
	}
	planes, err := lshplanes.Deserialize(planeBytes)
	if err != nil {
		return nil, fmt.Errorf("clientpipeline: parsing random_planes: %w", err)
	}

	token := resp.APIKey
	if token == "" {
		token = apiKey
	}

	session := Session{
		ServerURL:     serverURL,
		APIKey:        token,
		ClientID:      resp.ClientID,
		EmbeddingDim:  params.EmbeddingDim,
		NumTables:     resp.LshConfig.NumTables,
		HashSize:      resp.LshConfig.HashSize,
		NumCandidates: resp.LshConfig.NumCandidates,
		RandomPlanes:  planeBytes,
	}

	return &Pipeline{
		session:   session,
		planes:    planes,
		codec:     hecodec.NewMockCodec(params.EmbeddingDim),
		transport: newTransport(serverURL, token),
	}, nil
}

// Resume reconstructs a Pipeline from a previously persisted Session,
// without contacting the server.
func Resume(session Session) (*Pipeline, error) {
	planes, err := lshplanes.Deserialize(session.RandomPlanes)
	if err != nil {
		return nil, fmt.Errorf("clientpipeline: parsing stored random_planes: %w", err)
	}

	return &Pipeline{
		session:   session,
		planes:    planes,
		codec:     hecodec.NewMockCodec(session.EmbeddingDim),
		transport: newTransport(session.ServerURL, session.APIKey),
	}, nil
}

// Session returns the pipeline's current session state, for persistence.
func (p *Pipeline) Session() Session { return p.session }

// Stats fetches this client's usage counters from the server.
func (p *Pipeline) Stats(ctx context.Context) (*dto.StatsResponse, error) {
	var resp dto.StatsResponse
	path := fmt.Sprintf("/stats/%s", p.session.ClientID)
	if err := p.transport.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

// AddEmbedding encodes text into a vector, hashes and encrypts it, and
// uploads the result along with metadata and an optional external ID.
// When stripPlaintext is set, a "text" field in metadata is removed
// before upload and the call fails closed with ErrPlaintextLeak if one
// survives regardless.
func (p *Pipeline) AddEmbedding(ctx context.Context, text string, metadata map[string]any, externalID *string, stripPlaintext bool) (uuid.UUID, error) {
	vector := PseudoEmbed(text, p.session.EmbeddingDim)

	hashes, err := p.planes.Hash(toFloat64(vector))
	if err != nil {
		return uuid.Nil, fmt.Errorf("clientpipeline: hashing vector: %w", err)
	}

	cipher, err := p.codec.EncodeVector(ctx, vector)
	if err != nil {
		return uuid.Nil, fmt.Errorf("clientpipeline: encrypting vector: %w", err)
	}
	cipherBytes, err := p.codec.Serialize(cipher)
	if err != nil {
		return uuid.Nil, fmt.Errorf("clientpipeline: serializing ciphertext: %w", err)
	}

	sanitized, err := sanitizeMetadata(metadata, stripPlaintext)
	if err != nil {
		return uuid.Nil, err
	}

	req := dto.AddEmbeddingRequest{
		ClientID:           p.session.ClientID,
		EncryptedEmbedding: base64.StdEncoding.EncodeToString(cipherBytes),
		LshHashes:          hashes,
		Metadata:           sanitized,
		ExternalID:         externalID,
	}

	var resp dto.AddEmbeddingResponse
	if err := p.transport.post(ctx, "/add_embedding", req, &resp); err != nil {
		return uuid.Nil, err
	}
	return resp.EmbeddingID, nil
}

// ScoredResult is one ranked search hit with its plaintext similarity
// recovered client-side.
type ScoredResult struct {
	EmbeddingID uuid.UUID
	Score       float32
	Metadata    map[string]any
}

// SearchResult is the full client-visible outcome of a search call.
type SearchResult struct {
	Results           []ScoredResult
	CandidatesChecked int
	CandidatesFound   int
}

// Search encodes query text identically to AddEmbedding, submits it with
// the requested top_k and rerank budget, decrypts every returned score,
// sorts descending, and truncates to top_k.
func (p *Pipeline) Search(ctx context.Context, text string, topK, rerankCandidates int) (*SearchResult, error) {
	vector := PseudoEmbed(text, p.session.EmbeddingDim)

	hashes, err := p.planes.Hash(toFloat64(vector))
	if err != nil {
		return nil, fmt.Errorf("clientpipeline: hashing query vector: %w", err)
	}

	cipher, err := p.codec.EncodeQuery(ctx, vector)
	if err != nil {
		return nil, fmt.Errorf("clientpipeline: encrypting query: %w", err)
	}
	cipherBytes, err := p.codec.Serialize(cipher)
	if err != nil {
		return nil, fmt.Errorf("clientpipeline: serializing query ciphertext: %w", err)
	}

	req := dto.SearchRequest{
		ClientID:         p.session.ClientID,
		EncryptedQuery:   base64.StdEncoding.EncodeToString(cipherBytes),
		LshHashes:        hashes,
		TopK:             topK,
		RerankCandidates: rerankCandidates,
	}

	var resp dto.SearchResponse
	if err := p.transport.post(ctx, "/search", req, &resp); err != nil {
		return nil, err
	}

	scored := make([]ScoredResult, 0, len(resp.Results))
	for _, item := range resp.Results {
		scalarBytes, err := base64.StdEncoding.DecodeString(item.EncryptedSimilarity)
		if err != nil {
			return nil, fmt.Errorf("clientpipeline: decoding encrypted_similarity: %w", err)
		}
		scalar, err := p.codec.DecodeScalarBytes(scalarBytes)
		if err != nil {
			return nil, fmt.Errorf("clientpipeline: decoding encrypted scalar: %w", err)
		}
		score, err := p.codec.DecryptScalar(ctx, scalar)
		if err != nil {
			return nil, fmt.Errorf("clientpipeline: decrypting score: %w", err)
		}
		scored = append(scored, ScoredResult{
			EmbeddingID: item.EmbeddingID,
			Score:       score,
			Metadata:    item.Metadata,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > topK {
		scored = scored[:topK]
	}

	return &SearchResult{
		Results:           scored,
		CandidatesChecked: resp.CandidatesChecked,
		CandidatesFound:   resp.CandidatesFound,
	}, nil
}
