package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// FakeEmbedder is a deterministic ai.Embedder: the same text always maps to
// the same unit-length 1536-dimension vector, derived from a content hash.
// It lets vector search tests assert on similarity ordering without calling
// an embedding API.
type FakeEmbedder struct{}

func (FakeEmbedder) Name() string { return "testutil/fake-embedder" }

func (FakeEmbedder) Register(api.Registry) {}

func (FakeEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		var text string
		for _, part := range doc.Content {
			text += part.Text
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{
			Embedding: DeterministicVector(text),
		})
	}
	return resp, nil
}

// DeterministicVector expands a content hash into a unit vector. Distinct
// texts get near-orthogonal vectors, so only an exact text match scores a
// high cosine similarity.
func DeterministicVector(text string) []float32 {
	const dim = 1536

	seed := sha256.Sum256([]byte(text))
	vec := make([]float32, dim)

	// xorshift64 seeded from the hash gives a reproducible pseudo-random
	// direction on the unit sphere.
	state := binary.BigEndian.Uint64(seed[:8]) | 1
	var norm float64
	for i := range vec {
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		v := float64(int64(state))/math.MaxInt64 - 0.5
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
