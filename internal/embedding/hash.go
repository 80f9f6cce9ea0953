package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"regexp"
	"strings"
)

var hashTokenRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// HashProvider is a deterministic, offline embedding: each token hashes to a
// bucket, counts are accumulated and the vector is L2 normalized. Identical
// text always yields identical vectors.
type HashProvider struct {
	dim int
}

func NewHashProvider(dim int) *HashProvider {
	if dim <= 0 {
		dim = 384
	}
	return &HashProvider{dim: dim}
}

func (p *HashProvider) embed(text string) []float32 {
	vec := make([]float32, p.dim)
	for _, tok := range hashTokenRe.FindAllString(strings.ToLower(text), -1) {
		sum := sha256.Sum256([]byte(tok))
		idx := int(binary.BigEndian.Uint32(sum[:4])) % p.dim
		if idx < 0 {
			idx += p.dim
		}
		vec[idx]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

func (p *HashProvider) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return p.embed(text), nil
}

func (p *HashProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.embed(t)
	}
	return out, nil
}
